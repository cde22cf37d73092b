package core

import (
	"context"
	"strings"
)

// Principal represents the authenticated identity of the caller.
// It is produced by an Issuer after verifying a bearer token.
type Principal struct {
	// ID is the unique subject identifier (e.g., email, sub claim).
	ID string `json:"id"`
	// Issuer is the name of the trusted issuer that verified this principal.
	Issuer string `json:"issuer"`
	// Attributes are the claims extracted from the token.
	Attributes map[string]any `json:"attributes,omitempty"`
}

// HasRole reports whether the "roles" attribute names role. Both claim lists and
// comma separated strings (static issuers) are understood.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	switch roles := p.Attributes["roles"].(type) {
	case []any:
		for _, r := range roles {
			if s, ok := r.(string); ok && s == role {
				return true
			}
		}
	case []string:
		for _, r := range roles {
			if r == role {
				return true
			}
		}
	case string:
		for _, r := range strings.Split(roles, ",") {
			if strings.TrimSpace(r) == role {
				return true
			}
		}
	}
	return false
}

// Session is the ambient caller state of an evaluation or identifier action.
type Session struct {
	Principal *Principal

	// Privileged callers may bypass filters.
	Privileged bool
}

type sessionKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session carried by ctx, or nil.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

type correlationKey struct{}

// WithCorrelationID returns a copy of ctx carrying the request's correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation id carried by ctx, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
