package core

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes identifier failures.
type ErrorKind string

const (
	KindEvaluation     ErrorKind = "evaluation_error"
	KindConversion     ErrorKind = "conversion_error"
	KindBadRequest     ErrorKind = "bad_request"
	KindAuthentication ErrorKind = "authentication_error"
	KindForeignDOI     ErrorKind = "foreign_doi"
	KindRegistration   ErrorKind = "registration_error"
	KindReserveFirst   ErrorKind = "reserve_first"
	KindAlreadyExists  ErrorKind = "already_exists"
	KindInternal       ErrorKind = "internal_error"
	KindBadAnswer      ErrorKind = "bad_answer"
)

// Sentinels for errors.Is. Any IdentifierError of the same kind matches.
var (
	ErrEvaluation     = &IdentifierError{Kind: KindEvaluation}
	ErrConversion     = &IdentifierError{Kind: KindConversion}
	ErrBadRequest     = &IdentifierError{Kind: KindBadRequest}
	ErrAuthentication = &IdentifierError{Kind: KindAuthentication}
	ErrForeignDOI     = &IdentifierError{Kind: KindForeignDOI}
	ErrRegistration   = &IdentifierError{Kind: KindRegistration}
	ErrReserveFirst   = &IdentifierError{Kind: KindReserveFirst}
	ErrAlreadyExists  = &IdentifierError{Kind: KindAlreadyExists}
	ErrInternal       = &IdentifierError{Kind: KindInternal}
	ErrBadAnswer      = &IdentifierError{Kind: KindBadAnswer}
)

// IdentifierError is the normalized error raised by the rule engine, the crosswalks
// and the registry connectors.
type IdentifierError struct {
	Kind    ErrorKind
	DOI     string
	Message string
	Err     error
}

// NewError creates an IdentifierError of the given kind.
func NewError(kind ErrorKind, doi, message string, err error) *IdentifierError {
	return &IdentifierError{
		Kind:    kind,
		DOI:     doi,
		Message: message,
		Err:     err,
	}
}

// Errorf creates an IdentifierError with a formatted message and no DOI.
func Errorf(kind ErrorKind, format string, args ...any) *IdentifierError {
	return &IdentifierError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *IdentifierError) Error() string {
	msg := string(e.Kind)
	if e.DOI != "" {
		msg += " (" + e.DOI + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IdentifierError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an IdentifierError of the same kind.
func (e *IdentifierError) Is(target error) bool {
	var t *IdentifierError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable reports whether retrying the same call later may succeed.
// Only registry-side failures (outage, timeout) qualify.
func (e *IdentifierError) Retryable() bool {
	return e.Kind == KindInternal
}

// KindOf returns the kind of the first IdentifierError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var ie *IdentifierError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}

// IsRetryable reports whether err may be retried with backoff.
func IsRetryable(err error) bool {
	var ie *IdentifierError
	if errors.As(err, &ie) {
		return ie.Retryable()
	}
	return false
}
