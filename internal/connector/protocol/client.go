// Package protocol is the request, response and error-handling skeleton shared
// by all registration agency connectors.
package protocol

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/darmiel/doigate/internal/audit"
	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/internal/metrics"
)

const DefaultTimeout = 5 * time.Second

// maxBodySize caps how much of a response body is kept.
const maxBodySize = 4 << 20

// ErrorCodeHandler maps registry-specific status codes to typed errors.
// It returns nil for codes the caller interprets itself.
type ErrorCodeHandler func(status int, doi string, content string) error

// HandleExtractor returns the URL a DOI points to from a raw response, or "".
type HandleExtractor func(resp *http.Response, body []byte) string

// BodyHandle uses the trimmed response body as handle.
func BodyHandle(_ *http.Response, body []byte) string {
	return string(bytes.TrimSpace(body))
}

// LocationHandle uses the Location header as handle.
func LocationHandle(resp *http.Response, _ []byte) string {
	return resp.Header.Get("Location")
}

// ClientConfig configures a registry client.
type ClientConfig struct {
	// Connector names the connector in logs and metrics.
	Connector string

	// Timeout bounds every call (default: 5s).
	Timeout time.Duration

	// RateLimit requests per second; 0 disables limiting.
	RateLimit float64

	// RateBurst maximum burst size (default: 1).
	RateBurst int

	// Username and Password are sent as basic auth when Username is set.
	Username string
	Password string

	// NoRedirects returns redirect responses instead of following them.
	NoRedirects bool

	ErrorCodes    ErrorCodeHandler
	ExtractHandle HandleExtractor

	Metrics *metrics.Metrics

	// Transport allows injecting a custom HTTP transport (for tests/stubs).
	Transport http.RoundTripper
}

// Client executes requests against one registry.
type Client struct {
	config      ClientConfig
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

func NewClient(config ClientConfig) *Client {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.RateBurst <= 0 {
		config.RateBurst = 1
	}
	httpClient := &http.Client{
		Timeout:   config.Timeout,
		Transport: config.Transport,
	}
	if config.NoRedirects {
		httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	c := &Client{config: config, httpClient: httpClient}
	if config.RateLimit > 0 {
		c.rateLimiter = rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst)
	}
	return c
}

// Do sends req and returns the interpreted response.
//
// Transport failures and timeouts become core.KindInternal errors. The registry's
// ErrorCodeHandler runs before the response is returned; its error is returned
// together with the response.
func (c *Client) Do(ctx context.Context, req *http.Request, doi string) (*Response, error) {
	logger := log.Ctx(ctx).With().
		Str("connector", c.config.Connector).
		Str("doi", doi).
		Str("method", req.Method).
		Str("url", req.URL.Redacted()).
		Logger()

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, core.NewError(core.KindInternal, doi, "waiting for rate limiter", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	req = req.WithContext(ctx)

	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}
	req.Header.Set("User-Agent", audit.CreateUserAgent(core.CorrelationID(ctx), c.config.Connector))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.config.Metrics.ObserveRegistryRequest(c.config.Connector, req.Method, 0, time.Since(start))
		logger.Warn().Err(err).Msg("registry.request.failed")
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, core.NewError(core.KindInternal, doi, "registry did not answer in time", err)
		}
		return nil, core.NewError(core.KindInternal, doi, "sending request to registry", err)
	}
	defer func() {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	c.config.Metrics.ObserveRegistryRequest(c.config.Connector, req.Method, resp.StatusCode, time.Since(start))
	if err != nil {
		logger.Warn().Err(err).Int("status", resp.StatusCode).Msg("registry.response.unreadable")
		return nil, core.NewError(core.KindInternal, doi, "reading registry response", err)
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("registry.request.handled")

	if c.config.ErrorCodes != nil {
		if err := c.config.ErrorCodes(resp.StatusCode, doi, string(body)); err != nil {
			return NewResponse(resp.StatusCode, body, "", resp.Header), err
		}
	}

	var handle string
	if c.config.ExtractHandle != nil {
		handle = c.config.ExtractHandle(resp, body)
	}
	return NewResponse(resp.StatusCode, body, handle, resp.Header), nil
}

// BadAnswer is the error for a status code a connector did not expect.
func BadAnswer(doi string, resp *Response) error {
	return core.NewError(core.KindBadAnswer, doi,
		fmt.Sprintf("unexpected answer from registry: status %d: %s", resp.StatusCode(), truncate(resp.ContentString(), 200)), nil)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
