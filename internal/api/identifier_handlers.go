package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/darmiel/doigate/internal/api/presenter"
	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/internal/service"
)

// ActionPayload is the optional body of an identifier action.
type ActionPayload struct {
	// SkipFilter bypasses the provider's filter. Requires the privileged role.
	SkipFilter bool `json:"skip_filter"`
}

// ActionResponse is returned by every successful identifier action.
type ActionResponse struct {
	Action     string           `json:"action"`
	Outcome    string           `json:"outcome"`
	DOI        string           `json:"doi,omitempty"`
	Identifier *core.Identifier `json:"identifier,omitempty"`

	// Applicable is only set by can_mint.
	Applicable *bool `json:"applicable,omitempty"`
}

func DecodePayload(r *http.Request, dest any, allowEmpty bool) error {
	switch r.Header.Get("Content-Type") {
	case "application/json", "":
		// strict encoding for JSON
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(dest); err != nil {
			if !errors.Is(err, io.EOF) || !allowEmpty {
				return err
			}
		}
		// ensure there's no extra data
		if dec.More() {
			return errors.New("extra data in request body")
		}
		return nil
	default:
		return errors.New("unsupported content type")
	}
}

// handleIdentifierStatus returns the stored state and the live registry view of an object's DOI.
func (s *Server) handleIdentifierStatus(w http.ResponseWriter, r *http.Request) {
	obj, ok := s.findObject(w, r, r.PathValue("handle"))
	if !ok {
		return
	}
	st, err := s.service.Status(r.Context(), r.PathValue("provider"), obj)
	if err != nil {
		presenter.Err(w, r, err, "status check failed")
		return
	}
	presenter.JSON(w, r, st, http.StatusOK)
}

type actionFunc func(ctx context.Context, provider string, obj core.Object, skipFilter bool) (*ActionResponse, error)

func (s *Server) actions() map[string]actionFunc {
	return map[string]actionFunc{
		"can_mint": func(ctx context.Context, provider string, obj core.Object, _ bool) (*ActionResponse, error) {
			ok, err := s.service.CanMint(ctx, provider, obj)
			return &ActionResponse{Action: service.ActionCanMint, Applicable: &ok}, err
		},
		"mint": func(ctx context.Context, provider string, obj core.Object, skip bool) (*ActionResponse, error) {
			id, err := s.service.Mint(ctx, provider, obj, skip)
			return &ActionResponse{Action: service.ActionMint, Identifier: id}, err
		},
		"reserve": func(ctx context.Context, provider string, obj core.Object, skip bool) (*ActionResponse, error) {
			id, err := s.service.Reserve(ctx, provider, obj, skip)
			return &ActionResponse{Action: service.ActionReserve, Identifier: id}, err
		},
		"register": func(ctx context.Context, provider string, obj core.Object, skip bool) (*ActionResponse, error) {
			doi, err := s.service.Register(ctx, provider, obj, skip)
			return &ActionResponse{Action: service.ActionRegister, DOI: doi}, err
		},
		"update": func(ctx context.Context, provider string, obj core.Object, skip bool) (*ActionResponse, error) {
			id, err := s.service.Update(ctx, provider, obj, skip)
			return &ActionResponse{Action: service.ActionUpdate, Identifier: id}, err
		},
		"delete": func(ctx context.Context, provider string, obj core.Object, _ bool) (*ActionResponse, error) {
			id, err := s.service.Delete(ctx, provider, obj)
			return &ActionResponse{Action: service.ActionDelete, Identifier: id}, err
		},
	}
}

// handleIdentifierAction runs one lifecycle operation for an object.
func (s *Server) handleIdentifierAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	action := r.PathValue("action")
	fn, ok := s.actions()[action]
	if !ok {
		presenter.Error(w, r, "unknown action: "+action, http.StatusNotFound)
		return
	}

	var payload ActionPayload
	if err := DecodePayload(r, &payload, true /* allow empty */); err != nil {
		logger.Warn().Err(err).Msg("failed to decode action payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	if q := r.URL.Query().Get("skip_filter"); q != "" {
		skip, err := strconv.ParseBool(q)
		if err != nil {
			presenter.Error(w, r, "invalid skip_filter parameter", http.StatusBadRequest)
			return
		}
		payload.SkipFilter = payload.SkipFilter || skip
	}

	obj, ok := s.findObject(w, r, r.PathValue("handle"))
	if !ok {
		return
	}

	logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("action", action).Str("handle", obj.Handle())
	})

	resp, err := fn(ctx, r.PathValue("provider"), obj, payload.SkipFilter)
	if err != nil {
		presenter.Err(w, r, err, action+" failed")
		return
	}
	resp.Outcome = core.OutcomeApplied

	status := http.StatusOK
	if action == "register" || action == "reserve" {
		status = http.StatusCreated
	}
	presenter.JSON(w, r, resp, status)
}
