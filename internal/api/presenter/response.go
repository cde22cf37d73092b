package presenter

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/internal/service"
)

type ErrorResponse struct {
	Error         string         `json:"error"`
	Outcome       string         `json:"outcome,omitempty"`
	ErrorKind     core.ErrorKind `json:"error_kind,omitempty"`
	CorrelationID string         `json:"correlation_id"`
}

func JSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to write json response")
	}
}

func Error(w http.ResponseWriter, r *http.Request, msg string, status int) {
	resp := ErrorResponse{
		Error:         msg,
		CorrelationID: core.CorrelationID(r.Context()),
	}
	JSON(w, r, resp, status)
}

// Err writes err with the status the service assigned to it.
func Err(w http.ResponseWriter, r *http.Request, err error, short string) {
	resp := ErrorResponse{
		Error:         short + ": " + err.Error(),
		Outcome:       service.OutcomeOf(err),
		ErrorKind:     core.KindOf(err),
		CorrelationID: core.CorrelationID(r.Context()),
	}
	JSON(w, r, resp, service.StatusFor(err))
}
