package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/doigate/internal/api/presenter"
	"github.com/darmiel/doigate/internal/buildinfo"
	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/internal/store"
)

// handleHealth responds with a simple OK status to indicate the server is healthy.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleAbout responds with service information including version and commit hash.
func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, buildinfo.GetBuildInfo(), http.StatusOK)
}

type FilterInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleListFilters(w http.ResponseWriter, r *http.Request) {
	out := []FilterInfo{}
	if s.filters != nil {
		for _, f := range s.filters.List() {
			out = append(out, FilterInfo{Name: f.Name(), Description: f.Description()})
		}
	}
	presenter.JSON(w, r, out, http.StatusOK)
}

// handleExplainFilter evaluates a filter against an object and returns the trace.
func (s *Server) handleExplainFilter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	if s.filters == nil {
		presenter.Error(w, r, "no filters configured", http.StatusNotFound)
		return
	}
	f, err := s.filters.Get(r.PathValue("name"))
	if err != nil {
		presenter.Err(w, r, err, "filter lookup failed")
		return
	}

	obj, ok := s.findObject(w, r, r.PathValue("handle"))
	if !ok {
		return
	}

	trace, err := f.Explain(ctx, obj)
	if err != nil {
		// the trace carries the error
		logger.Warn().Err(err).Str("filter", f.Name()).Msg("filter evaluation failed")
	}
	trace.CorrelationID = core.CorrelationID(ctx)

	presenter.JSON(w, r, trace, http.StatusOK)
}

// findObject looks up handle and writes the error response if it can't be found.
func (s *Server) findObject(w http.ResponseWriter, r *http.Request, handle string) (core.Object, bool) {
	if s.objects == nil {
		presenter.Error(w, r, "no object store configured", http.StatusNotFound)
		return nil, false
	}
	obj, err := s.objects.Find(r.Context(), handle)
	if err != nil {
		if errors.Is(err, store.ErrObjectNotFound) {
			presenter.Error(w, r, "object not found: "+handle, http.StatusNotFound)
			return nil, false
		}
		log.Ctx(r.Context()).Error().Err(err).Str("handle", handle).Msg("object lookup failed")
		presenter.Error(w, r, "object lookup failed", http.StatusInternalServerError)
		return nil, false
	}
	return obj, true
}
