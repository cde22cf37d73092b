package protocol

import (
	"fmt"
	"net/http"
)

// Response is the outcome of exactly one remote call. It is not modified after creation.
type Response struct {
	statusCode int
	content    []byte
	handle     string
	header     http.Header
}

// NewResponse creates a Response. handle is the URL the registry reports the DOI
// to point to, or "" if the response did not carry one.
func NewResponse(statusCode int, content []byte, handle string, header http.Header) *Response {
	return &Response{
		statusCode: statusCode,
		content:    append([]byte(nil), content...),
		handle:     handle,
		header:     header.Clone(),
	}
}

func (r *Response) StatusCode() int { return r.statusCode }

// Content returns a copy of the response body.
func (r *Response) Content() []byte { return append([]byte(nil), r.content...) }

// ContentString returns the response body as text.
func (r *Response) ContentString() string { return string(r.content) }

func (r *Response) Handle() string { return r.handle }

// Header returns the value of the response header key.
func (r *Response) Header(key string) string { return r.header.Get(key) }

func (r *Response) String() string {
	return fmt.Sprintf("status=%d handle=%q content=%d bytes", r.statusCode, r.handle, len(r.content))
}
