package api

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/doigate/internal/api/presenter"
	"github.com/darmiel/doigate/internal/core"
)

// handleAdminAudit processes requests to retrieve audit log entries.
func (s *Server) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	querier, ok := s.auditor.(core.AuditQuerier)
	if !ok {
		presenter.Error(w, r, "the configured auditor can not be queried", http.StatusNotImplemented)
		return
	}

	// filters
	q := r.URL.Query()
	limitStr := q.Get("limit")

	filterCorrelationID := q.Get("correlation_id")
	filterPrincipalID := q.Get("principal_id")
	filterHandle := q.Get("handle")
	filterAction := q.Get("action")
	filterOutcome := q.Get("outcome")

	limit := 50
	if limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err != nil || v <= 0 {
			logger.Warn().Err(err).Str("limit", limitStr).Msg("invalid limit parameter")
			presenter.Error(w, r, "invalid limit parameter", http.StatusBadRequest)
			return
		} else {
			limit = v
		}
	}

	entries, err := querier.Find(func(entry core.AuditEntry) bool {
		if filterCorrelationID != "" && entry.ID != filterCorrelationID {
			return false
		}
		if filterPrincipalID != "" && (entry.Principal == nil || entry.Principal.ID != filterPrincipalID) {
			return false
		}
		if filterHandle != "" && entry.Handle != filterHandle {
			return false
		}
		if filterAction != "" && entry.Action != filterAction {
			return false
		}
		if filterOutcome != "" && entry.Outcome != filterOutcome {
			return false
		}
		return true
	}, limit)
	if err != nil {
		logger.Error().Err(err).Msg("failed to retrieve audit logs")
		presenter.Error(w, r, "failed to retrieve audit logs", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}

	presenter.JSON(w, r, entries, http.StatusOK)
}
