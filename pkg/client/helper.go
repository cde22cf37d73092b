package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/darmiel/doigate/internal/api/middleware"
	"github.com/darmiel/doigate/internal/api/presenter"
	"github.com/darmiel/doigate/internal/buildinfo"
	"github.com/darmiel/doigate/internal/core"
)

// ErrInvalidSession is returned when the server rejects the saved session token.
var ErrInvalidSession = errors.New("invalid session token")

// APIError is an error response of the doigate server.
type APIError struct {
	StatusCode    int
	CorrelationID string
	Message       string

	// Outcome is core.OutcomeNotApplicable when a filter rejected the object.
	Outcome   string
	ErrorKind core.ErrorKind
}

func (e APIError) Error() string {
	return fmt.Sprintf("api error: '%s' (status: %d, correlation: %s)", e.Message, e.StatusCode, e.CorrelationID)
}

// NotApplicable reports whether the request was refused by a filter.
func (e APIError) NotApplicable() bool {
	return e.Outcome == core.OutcomeNotApplicable
}

func (c *Client) get(ctx context.Context, url string, result any) (string, error) {
	return c.send(ctx, http.MethodGet, url, nil, result)
}

func (c *Client) post(ctx context.Context, url string, payload, result any) (string, error) {
	return c.send(ctx, http.MethodPost, url, payload, result)
}

// send performs a JSON request and returns the correlation ID the server
// answered with, also on failure.
func (c *Client) send(ctx context.Context, method, url string, payload, result any) (string, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("marshaling payload: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "doigate-cli/"+buildinfo.Version)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// a batch run shares one ID so its requests can be found in the audit log
	if id := core.CorrelationID(ctx); id != "" {
		req.Header.Set(middleware.CorrelationIDHeader, id)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("connection failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	correlation := correlationFromResponse(resp)
	if resp.StatusCode >= 400 {
		return correlation, parseErrorResponse(resp)
	}
	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return correlation, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return correlation, nil
}

func parseErrorResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("request failed with status %d and unreadable body: %w", resp.StatusCode, err)
	}

	var errResp presenter.ErrorResponse
	if json.Unmarshal(body, &errResp) != nil || errResp.Error == "" {
		return fmt.Errorf("api error: *unparsed '%s' (status %d)", string(body), resp.StatusCode)
	}
	apiErr := APIError{
		StatusCode:    resp.StatusCode,
		CorrelationID: errResp.CorrelationID,
		Message:       errResp.Error,
		Outcome:       errResp.Outcome,
		ErrorKind:     errResp.ErrorKind,
	}
	if resp.StatusCode == http.StatusUnauthorized && errResp.Error == ErrInvalidSession.Error() {
		return fmt.Errorf("%w: %w", ErrInvalidSession, apiErr)
	}
	return apiErr
}
