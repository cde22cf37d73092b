package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/darmiel/doigate/internal/core"
)

const DefaultPrefix = "http://hdl.handle.net/"

// HandleResolver maps handles to URLs under a fixed prefix,
// e.g. "123456789/42" to "http://hdl.handle.net/123456789/42".
type HandleResolver struct {
	prefix string
}

var _ core.URLResolver = (*HandleResolver)(nil)

// New creates a resolver for prefix. An empty prefix selects DefaultPrefix.
func New(prefix string) *HandleResolver {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &HandleResolver{prefix: prefix}
}

func (r *HandleResolver) Prefix() string { return r.prefix }

func (r *HandleResolver) ResolveToURL(_ context.Context, handle string) (string, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "hdl:")
	if handle == "" {
		return "", fmt.Errorf("cannot resolve empty handle")
	}
	return r.prefix + handle, nil
}

func (r *HandleResolver) ResolveURLToHandle(_ context.Context, url string) (string, bool) {
	handle, ok := strings.CutPrefix(url, r.prefix)
	if !ok || handle == "" {
		return "", false
	}
	return handle, true
}
