package core

import "time"

type AuditEntry struct {
	// ID is the unique request ID (X-Correlation-ID)
	ID string `json:"id"`

	// Time is the timestamp of the event
	Time time.Time `json:"time"`

	// Action describing what happened (e.g. "identifier.register")
	Action string `json:"action"`

	// Principal identifies who made the request, nil for local CLI runs
	Principal *Principal `json:"principal,omitempty"`

	// Provider is the identifier provider that was targeted
	Provider  string `json:"provider,omitempty"`
	Connector string `json:"connector,omitempty"`
	Filter    string `json:"filter,omitempty"`

	Handle string `json:"handle,omitempty"`
	DOI    string `json:"doi,omitempty"`

	// SkipFilter is set when the caller bypassed the filter
	SkipFilter bool `json:"skip_filter,omitempty"`

	// Outcome is one of OutcomeApplied, OutcomeNotApplicable or OutcomeFailed
	Outcome string `json:"outcome"`
	State   State  `json:"state,omitempty"`
	Error   string `json:"error,omitempty"`

	// ErrorKind is the IdentifierError kind, if any
	ErrorKind ErrorKind `json:"error_kind,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

const (
	OutcomeApplied       = "applied"
	OutcomeNotApplicable = "not_applicable"
	OutcomeFailed        = "failed"
)

type Auditor interface {
	Log(entry AuditEntry) error
	Close() error
}

// AuditQuerier is implemented by auditors that can be searched.
type AuditQuerier interface {
	Find(filter func(entry AuditEntry) bool, limit int) ([]AuditEntry, error)
}
