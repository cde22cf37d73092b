package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/darmiel/doigate/internal/api/presenter"
	"github.com/darmiel/doigate/internal/core"
)

// Verifier authenticates bearer tokens.
type Verifier interface {
	Verify(ctx context.Context, token string) (*core.Principal, error)
}

// BearerToken returns the token of an "Authorization: Bearer" header, or "".
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer"))
}

// Authenticate requires a valid bearer token and attaches the caller's session
// to the request context. Callers holding privilegedRole may skip filters.
func Authenticate(verifier Verifier, privilegedRole string) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				presenter.Error(w, r, "login required", http.StatusUnauthorized)
				return
			}

			principal, err := verifier.Verify(r.Context(), token)
			if err != nil {
				log.Ctx(r.Context()).Warn().Err(err).Msg("bearer token verification failed")
				presenter.Error(w, r, "token verification failed", http.StatusUnauthorized)
				return
			}

			ctx := withPrincipal(r.Context(), principal, privilegedRole)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminAuth only lets session tokens holding role through.
// TODO(future): replace the single admin role with per-route permissions once the audit API grows.
func AdminAuth(sessions Verifier, role string) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				presenter.Error(w, r, "login required", http.StatusUnauthorized)
				return
			}

			principal, err := sessions.Verify(r.Context(), token)
			if err != nil {
				presenter.Error(w, r, "invalid session token", http.StatusUnauthorized)
				return
			}
			if !principal.HasRole(role) {
				presenter.Error(w, r, "insufficient privileges", http.StatusForbidden)
				return
			}

			ctx := withPrincipal(r.Context(), principal, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func withPrincipal(ctx context.Context, principal *core.Principal, privilegedRole string) context.Context {
	logger := log.Ctx(ctx)
	logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("sub", principal.ID)
	})
	return core.WithSession(ctx, &core.Session{
		Principal:  principal,
		Privileged: principal.HasRole(privilegedRole),
	})
}
