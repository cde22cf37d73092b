package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DOIScheme prefixes every DOI handled internally, e.g. "doi:10.5072/abc".
	DOIScheme = "doi:"

	// DOIResolver is the public resolver used for the external form of a DOI.
	DOIResolver = "https://doi.org"
)

var ErrIdentifierNotFound = errors.New("identifier not found")

// State is the lifecycle state of an identifier bound to an object.
type State string

const (
	StateUnassigned State = "UNASSIGNED"
	StateReserved   State = "RESERVED"
	StateRegistered State = "REGISTERED"
	StateConflict   State = "CONFLICT"
)

// Identifier is the local record of a DOI for one object and provider.
type Identifier struct {
	Provider  string    `json:"provider"`
	Handle    string    `json:"handle"`
	DOI       string    `json:"doi"`
	State     State     `json:"state"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanTransition reports whether the state machine allows moving from s to next.
// CONFLICT is reachable from anywhere; everything else only moves forward,
// except that a deleted reservation goes back to UNASSIGNED.
func (s State) CanTransition(next State) bool {
	if next == StateConflict || s == next {
		return true
	}
	switch s {
	case StateUnassigned:
		return next == StateReserved
	case StateReserved:
		return next == StateRegistered || next == StateUnassigned
	case StateConflict:
		// an operator resolved the conflict remotely
		return next == StateReserved || next == StateRegistered
	default:
		return false
	}
}

// NormalizeDOI accepts "doi:10.x/y", "10.x/y" or a resolver URL and returns the
// scheme-prefixed form.
func NormalizeDOI(doi string) (string, error) {
	doi = strings.TrimSpace(doi)
	lower := strings.ToLower(doi)
	switch {
	case strings.HasPrefix(lower, DOIScheme):
		doi = doi[len(DOIScheme):]
	case strings.HasPrefix(lower, "https://doi.org/"),
		strings.HasPrefix(lower, "http://doi.org/"),
		strings.HasPrefix(lower, "https://dx.doi.org/"),
		strings.HasPrefix(lower, "http://dx.doi.org/"):
		doi = doi[strings.Index(lower, ".org/")+len(".org/"):]
	}
	if !strings.HasPrefix(doi, "10.") || !strings.Contains(doi, "/") {
		return "", fmt.Errorf("%q is not a DOI", doi)
	}
	return DOIScheme + doi, nil
}

// StripScheme returns the DOI without its "doi:" prefix, as registries expect it.
func StripScheme(doi string) string {
	if strings.HasPrefix(strings.ToLower(doi), DOIScheme) {
		return doi[len(DOIScheme):]
	}
	return doi
}

// ExternalForm returns the resolvable URL of a DOI.
func ExternalForm(doi string) string {
	return DOIResolver + "/" + StripScheme(doi)
}
