package client

import (
	"context"

	"github.com/darmiel/doigate/internal/api"
	"github.com/darmiel/doigate/internal/core"
)

type ListAuditsOpts struct {
	Limit uint

	CorrelationID string
	PrincipalID   string
	Handle        string
	Action        string
	Outcome       string
}

// ListAudits retrieves the latest audit entries from the server. It needs an
// admin session token.
func (c *Client) ListAudits(ctx context.Context, opts ListAuditsOpts) ([]core.AuditEntry, string, error) {
	ub := c.url().setPath(api.ListAuditsRoute)
	if opts.Limit > 0 {
		ub = ub.addQueryParam("limit", opts.Limit)
	}
	for key, value := range map[string]string{
		"correlation_id": opts.CorrelationID,
		"principal_id":   opts.PrincipalID,
		"handle":         opts.Handle,
		"action":         opts.Action,
		"outcome":        opts.Outcome,
	} {
		if value != "" {
			ub = ub.addQueryParam(key, value)
		}
	}
	var resp []core.AuditEntry
	correlation, err := c.get(ctx, ub.build(), &resp)
	return resp, correlation, err
}
