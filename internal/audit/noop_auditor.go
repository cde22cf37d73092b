package audit

import "github.com/darmiel/doigate/internal/core"

// NoopAuditor is used for local CLI runs.
type NoopAuditor struct{}

func NewNoopAuditor() *NoopAuditor {
	return &NoopAuditor{}
}

func (n *NoopAuditor) Log(core.AuditEntry) error {
	return nil
}

func (n *NoopAuditor) Close() error {
	return nil
}
