package client

import (
	"context"
	"net/http"
	"strings"

	"github.com/darmiel/doigate/internal/api"
	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/internal/service"
)

func identifierPath(parts ...string) string {
	return api.IdentifierParent + strings.Join(parts, "/")
}

// Status returns the stored state and the live registry view of handle's DOI.
func (c *Client) Status(ctx context.Context, provider, handle string) (*service.Status, string, error) {
	var st service.Status
	correlation, err := c.get(ctx, c.url().
		setPath(identifierPath(provider, handle)).
		build(), &st)
	return &st, correlation, err
}

// Action runs a lifecycle action (mint, reserve, register, update, delete or
// can_mint) for handle.
func (c *Client) Action(
	ctx context.Context,
	provider, action, handle string,
	skipFilter bool,
) (*api.ActionResponse, string, error) {
	var payload *api.ActionPayload
	if skipFilter {
		payload = &api.ActionPayload{SkipFilter: true}
	}
	var resp api.ActionResponse
	correlation, err := c.post(ctx, c.url().
		setPath(identifierPath(provider, action, handle)).
		build(), payload, &resp)
	return &resp, correlation, err
}

func (c *Client) Filters(ctx context.Context) ([]api.FilterInfo, string, error) {
	var resp []api.FilterInfo
	correlation, err := c.get(ctx, c.url().
		setPath(api.FiltersRoute).
		build(), &resp)
	return resp, correlation, err
}

// Explain evaluates filter against handle on the server and returns the trace.
func (c *Client) Explain(ctx context.Context, filter, handle string) (*core.FilterTrace, string, error) {
	var trace core.FilterTrace
	correlation, err := c.get(ctx, c.url().
		setPath(api.FiltersRoute+"/"+filter+"/explain/"+handle).
		build(), &trace)
	return &trace, correlation, err
}

// CreateSession exchanges an upstream token for a session token.
func (c *Client) CreateSession(ctx context.Context, upstreamToken string) (*api.SessionResponse, string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.url().
		setPath(api.SessionRoute).
		build(), nil)
	if err != nil {
		return nil, "", err
	}
	// the upstream token replaces any stored credential for this request
	sub := *c
	sub.authToken = upstreamToken

	var resp api.SessionResponse
	correlation, err := sub.do(req, &resp)
	return &resp, correlation, err
}
