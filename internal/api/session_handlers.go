package api

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/doigate/internal/api/middleware"
	"github.com/darmiel/doigate/internal/api/presenter"
	"github.com/darmiel/doigate/internal/issuers"
)

type SessionResponse struct {
	*issuers.Session

	Principal string   `json:"principal"`
	Issuer    string   `json:"issuer"`
	Roles     []string `json:"roles,omitempty"`
}

// handleSession exchanges an upstream bearer token for a session token.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	if s.sessions == nil {
		presenter.Error(w, r, "session tokens are not enabled", http.StatusNotImplemented)
		return
	}

	token := middleware.BearerToken(r)
	if token == "" {
		logger.Warn().Msg("missing or empty Authorization header")
		presenter.Error(w, r, "missing Authorization header", http.StatusUnauthorized)
		return
	}

	principal, err := s.issuers.Verify(ctx, token)
	if err != nil {
		logger.Warn().Err(err).Msg("upstream token verification failed")
		presenter.Error(w, r, "token verification failed", http.StatusUnauthorized)
		return
	}

	roles := issuers.Roles(principal)
	session, err := s.sessions.Mint(principal, roles)
	if err != nil {
		logger.Error().Err(err).Msg("failed to mint session token")
		presenter.Error(w, r, "failed to mint session token", http.StatusInternalServerError)
		return
	}

	logger.Info().
		Str("sub", principal.ID).
		Str("issuer", principal.Issuer).
		Msg("session issued")

	presenter.JSON(w, r, SessionResponse{
		Session:   session,
		Principal: principal.ID,
		Issuer:    principal.Issuer,
		Roles:     roles,
	}, http.StatusCreated)
}
