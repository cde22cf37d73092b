// Package issuers verifies the bearer tokens of API callers.
package issuers

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/darmiel/doigate/internal/config"
	"github.com/darmiel/doigate/internal/core"
)

const (
	TypeStatic = "static"
	TypeOIDC   = "oidc"
)

var ErrUnknownIssuer = errors.New("no issuer accepts this token")

// Registry holds all configured issuers. It is read-only after BuildRegistry.
type Registry struct {
	byName map[string]core.Issuer
	byURL  map[string]core.Issuer // OIDC issuers by their "iss" claim
	static []core.Issuer
}

func BuildRegistry(ctx context.Context, cfgs []config.IssuerConfig) (*Registry, error) {
	reg := NewRegistry()
	for _, cfg := range cfgs {
		switch cfg.Type {
		case TypeStatic:
			iss, err := NewStatic(cfg)
			if err != nil {
				return nil, fmt.Errorf("building static issuer %q: %w", cfg.Name, err)
			}
			reg.Add(iss)
		case TypeOIDC:
			iss, err := NewOIDCIssuer(ctx, cfg)
			if err != nil {
				return nil, fmt.Errorf("building oidc issuer %q: %w", cfg.Name, err)
			}
			reg.Add(iss)
		default:
			return nil, fmt.Errorf("unknown issuer type %q for issuer %q", cfg.Type, cfg.Name)
		}
	}
	return reg, nil
}

// NewRegistry creates a registry from already built issuers.
func NewRegistry(issuers ...core.Issuer) *Registry {
	reg := &Registry{
		byName: make(map[string]core.Issuer),
		byURL:  make(map[string]core.Issuer),
	}
	for _, iss := range issuers {
		reg.Add(iss)
	}
	return reg
}

// Add registers iss. Issuers with a URL method are addressed by it, all others
// are tried in order. Add must not be called once the registry is in use.
func (r *Registry) Add(iss core.Issuer) {
	r.byName[iss.Name()] = iss
	if u, ok := iss.(interface{ URL() string }); ok {
		r.byURL[u.URL()] = iss
	} else {
		r.static = append(r.static, iss)
	}
}

func (r *Registry) Get(name string) (core.Issuer, bool) {
	iss, ok := r.byName[name]
	return iss, ok
}

// Names returns the names of all issuers, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// IdentifyIssuer picks the OIDC issuer named by the token's "iss" claim.
func (r *Registry) IdentifyIssuer(token string) (core.Issuer, error) {
	issuerURL, err := ExtractIssuerURL(token)
	if err != nil {
		return nil, err
	}
	iss, ok := r.byURL[issuerURL]
	if !ok {
		return nil, fmt.Errorf("%w: issuer '%s' is not trusted", ErrUnknownIssuer, issuerURL)
	}
	return iss, nil
}

// Verify authenticates token. JWTs go to the issuer they name; anything else is
// offered to the static issuers.
func (r *Registry) Verify(ctx context.Context, token string) (*core.Principal, error) {
	if iss, err := r.IdentifyIssuer(token); err == nil {
		return iss.Verify(ctx, token)
	}
	for _, iss := range r.static {
		if p, err := iss.Verify(ctx, token); err == nil {
			return p, nil
		}
	}
	return nil, ErrUnknownIssuer
}
