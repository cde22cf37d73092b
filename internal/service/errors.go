package service

import (
	"errors"
	"net/http"

	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/internal/filter"
)

var (
	// ErrNotApplicable means the filter rejected the object and nothing was done.
	ErrNotApplicable = errors.New("filter does not apply to object")

	ErrUnknownProvider = errors.New("unknown provider")
	ErrInvalidState    = errors.New("operation not allowed in current identifier state")
	ErrForbidden       = errors.New("skipping the filter requires the privileged role")
)

// HTTPError represents an error with an associated HTTP status code.
// TODO(future): it is probably not optimal to tie service errors to HTTP layer. We should refactor this later. :)
type HTTPError struct {
	StatusCode int
	Wrapped    error
}

func (e HTTPError) Error() string {
	return e.Wrapped.Error()
}

func (e HTTPError) Unwrap() error {
	return e.Wrapped
}

func httpError(statusCode int, err error) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Wrapped:    err,
	}
}

// wrap attaches the HTTP status matching err.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return err
	}
	return httpError(StatusFor(err), err)
}

// StatusFor maps service and identifier errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownProvider),
		errors.Is(err, filter.ErrUnknownFilter),
		errors.Is(err, core.ErrIdentifierNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotApplicable), errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	}

	switch core.KindOf(err) {
	case core.KindAlreadyExists, core.KindForeignDOI:
		return http.StatusConflict
	case core.KindReserveFirst:
		return http.StatusPreconditionFailed
	case core.KindConversion, core.KindBadRequest, core.KindRegistration:
		return http.StatusUnprocessableEntity
	case core.KindInternal:
		return http.StatusServiceUnavailable
	case core.KindBadAnswer, core.KindAuthentication:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// OutcomeOf classifies err for audit entries, metrics and API responses.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return core.OutcomeApplied
	case errors.Is(err, ErrNotApplicable):
		return core.OutcomeNotApplicable
	default:
		return core.OutcomeFailed
	}
}
