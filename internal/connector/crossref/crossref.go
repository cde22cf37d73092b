// Package crossref deposits DOI metadata with Crossref. There is no reservation
// step: a deposit registers the DOI, and depositing again updates it.
package crossref

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/doigate/internal/connector/protocol"
	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/internal/crosswalk"
	"github.com/darmiel/doigate/internal/metrics"
)

const (
	Type = "crossref"

	DefaultResolverURL = "https://dx.doi.org"
)

// form fields of the deposit endpoint
const (
	formFile     = "mdFile"
	formUser     = "usr"
	formPassword = "pwd"
)

type Config struct {
	Scheme      string `mapstructure:"scheme"`
	Host        string `mapstructure:"host"`
	DepositPath string `mapstructure:"deposit_path"`

	// ResolverURL is asked where a DOI points to (default: https://dx.doi.org).
	ResolverURL string `mapstructure:"resolver_url"`

	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	DepositorName  string `mapstructure:"depositor"`
	DepositorEmail string `mapstructure:"depositor_email"`
	Registrant     string `mapstructure:"registrant"`

	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	RateBurst int           `mapstructure:"rate_burst"`
}

func (c *Config) Validate() error {
	switch {
	case c.Host == "":
		return fmt.Errorf("missing 'host'")
	case c.Username == "" || c.Password == "":
		return fmt.Errorf("missing 'username' or 'password'")
	case c.DepositorName == "" || c.DepositorEmail == "":
		return fmt.Errorf("missing 'depositor' or 'depositor_email'")
	case c.Registrant == "":
		return fmt.Errorf("missing 'registrant'")
	}
	return nil
}

// Connector implements core.Connector for Crossref.
type Connector struct {
	name        string
	depositURL  string
	resolverURL string

	username   string
	password   string
	depositor  crosswalk.Depositor
	registrant string

	deposits *protocol.Client
	lookups  *protocol.Client
	resolver core.URLResolver

	// now is replaced in tests
	now func() time.Time
}

var _ core.Connector = (*Connector)(nil)

// NewFromMap decodes the inline connector settings and creates the connector.
func NewFromMap(name string, raw map[string]any, resolver core.URLResolver, m *metrics.Metrics) (*Connector, error) {
	var cfg Config
	if err := protocol.DecodeConfig(name, raw, &cfg); err != nil {
		return nil, err
	}
	return New(name, cfg, resolver, m)
}

func New(name string, cfg Config, resolver core.URLResolver, m *metrics.Metrics) (*Connector, error) {
	if resolver == nil {
		return nil, fmt.Errorf("crossref connector '%s' needs a URL resolver", name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("crossref connector '%s': %w", name, err)
	}
	baseURL, err := protocol.BaseURL(cfg.Scheme, cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("crossref connector '%s': %w", name, err)
	}
	if cfg.DepositPath == "" {
		cfg.DepositPath = "/servlet/deposit"
	}
	if !strings.HasPrefix(cfg.DepositPath, "/") {
		cfg.DepositPath = "/" + cfg.DepositPath
	}
	if cfg.ResolverURL == "" {
		cfg.ResolverURL = DefaultResolverURL
	}

	return &Connector{
		name:        name,
		depositURL:  baseURL + cfg.DepositPath,
		resolverURL: strings.TrimSuffix(cfg.ResolverURL, "/"),
		username:    cfg.Username,
		password:    cfg.Password,
		depositor:   crosswalk.Depositor{Name: cfg.DepositorName, Email: cfg.DepositorEmail},
		registrant:  cfg.Registrant,
		resolver:    resolver,
		deposits: protocol.NewClient(protocol.ClientConfig{
			Connector:  name,
			Timeout:    cfg.Timeout,
			RateLimit:  cfg.RateLimit,
			RateBurst:  cfg.RateBurst,
			ErrorCodes: handleDepositErrorCodes,
			Metrics:    m,
		}),
		lookups: protocol.NewClient(protocol.ClientConfig{
			Connector:     name,
			Timeout:       cfg.Timeout,
			RateLimit:     cfg.RateLimit,
			RateBurst:     cfg.RateBurst,
			NoRedirects:   true,
			ErrorCodes:    handleErrorCodes,
			ExtractHandle: protocol.LocationHandle,
			Metrics:       m,
		}),
		now: time.Now,
	}, nil
}

func (c *Connector) Name() string { return c.name }

func handleErrorCodes(status int, doi, content string) error {
	switch status {
	case http.StatusBadRequest:
		return core.NewError(core.KindBadRequest, doi, "Crossref did not accept the request: "+content, nil)
	case http.StatusUnauthorized:
		return core.NewError(core.KindAuthentication, doi, "Crossref rejected our credentials", nil)
	case http.StatusForbidden:
		return core.NewError(core.KindForeignDOI, doi, "managing the DOI was prohibited by Crossref", nil)
	}
	return handleDepositErrorCodes(status, doi, content)
}

// handleDepositErrorCodes leaves 400, 401 and 403 to the deposit itself, which
// reads 403 as a processing error of the submission.
func handleDepositErrorCodes(status int, doi, content string) error {
	switch status {
	case http.StatusInternalServerError:
		return core.NewError(core.KindInternal, doi, "Crossref internal error: "+content, nil)
	case http.StatusGatewayTimeout:
		return core.NewError(core.KindInternal, doi, "Crossref took too long to answer; consider a higher timeout", nil)
	}
	return nil
}

// IsDOIReserved is always true: Crossref has no reservations.
func (c *Connector) IsDOIReserved(context.Context, core.Object, string) (bool, error) {
	return true, nil
}

// IsDOIRegistered resolves doi without following the redirect and compares the
// target with the canonical URL of obj.
func (c *Connector) IsDOIRegistered(ctx context.Context, obj core.Object, doi string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolverURL+"/"+core.StripScheme(doi), nil)
	if err != nil {
		return false, fmt.Errorf("building resolve request for %s: %w", doi, err)
	}
	resp, err := c.lookups.Do(ctx, req, doi)
	if err != nil {
		return false, err
	}
	return protocol.CheckRegistration(ctx, resp, http.StatusFound, obj, c.resolver, doi)
}

func (c *Connector) ReserveDOI(ctx context.Context, _ core.Object, doi string) error {
	log.Ctx(ctx).Warn().Str("doi", doi).Str("connector", c.name).
		Msg("Crossref does not support reserving DOIs; nothing to do")
	return nil
}

func (c *Connector) DeleteDOI(ctx context.Context, doi string) error {
	log.Ctx(ctx).Warn().Str("doi", doi).Str("connector", c.name).
		Msg("Crossref does not support deleting DOIs; nothing to do")
	return nil
}

// UpdateMetadata deposits again.
func (c *Connector) UpdateMetadata(ctx context.Context, obj core.Object, doi string) error {
	return c.RegisterDOI(ctx, obj, doi)
}

// RegisterDOI deposits the metadata of obj for doi. Objects that carry a
// different DOI fail with ForeignDOI and incomplete metadata with
// ConversionError, both before anything is sent.
func (c *Connector) RegisterDOI(ctx context.Context, obj core.Object, doi string) error {
	logger := log.Ctx(ctx).With().Str("doi", doi).Str("handle", obj.Handle()).Logger()

	existing, err := crosswalk.ExistingDOI(ctx, obj)
	if err != nil {
		return core.NewError(core.KindConversion, doi, "reading object metadata", err)
	}
	if existing != "" && !strings.EqualFold(existing, doi) {
		logger.Info().Str("existing_doi", existing).
			Msg("object already carries a different DOI; won't register it")
		return core.NewError(core.KindForeignDOI, doi, "object already carries DOI "+existing, nil)
	}

	canonical, err := c.resolver.ResolveToURL(ctx, obj.Handle())
	if err != nil {
		return core.NewError(core.KindConversion, doi, "resolving canonical URL", err)
	}
	batch, err := crosswalk.Crossref(ctx, obj, doi, canonical)
	if err != nil {
		return err
	}

	registered, err := c.IsDOIRegistered(ctx, nil, doi)
	if err != nil {
		return err
	}
	if registered {
		mine, err := c.IsDOIRegistered(ctx, obj, doi)
		if err != nil {
			return err
		}
		if !mine {
			logger.Warn().Msg("DOI is registered for another object already")
			return core.NewError(core.KindAlreadyExists, doi, "registered for another object", nil)
		}
	}

	batch.SetHead(obj.Handle(), strconv.FormatInt(c.now().UnixMilli(), 10), c.depositor, c.registrant)
	document, err := batch.Marshal()
	if err != nil {
		return core.NewError(core.KindConversion, doi, "serializing Crossref deposit", err)
	}

	body, contentType, err := c.depositForm(document)
	if err != nil {
		return core.NewError(core.KindInternal, doi, "building deposit form", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.depositURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building deposit request for %s: %w", doi, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.deposits.Do(ctx, req, doi)
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusBadRequest:
		logger.Warn().Str("content", resp.ContentString()).Msg("Crossref was unable to understand the deposit")
		logger.Debug().Bytes("deposit", document).Msg("rejected deposit")
		return core.NewError(core.KindBadRequest, doi, "Crossref rejected the deposit", nil)
	case http.StatusUnauthorized:
		return core.NewError(core.KindAuthentication, doi, "Crossref rejected our credentials", nil)
	case http.StatusForbidden:
		logger.Warn().Str("content", resp.ContentString()).Msg("Crossref reported a submission processing error")
		return core.NewError(core.KindRegistration, doi, "Crossref could not process the deposit", nil)
	default:
		return protocol.BadAnswer(doi, resp)
	}
}

func (c *Connector) depositForm(document []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="requestData.xml"`, formFile))
	header.Set("Content-Type", "text/xml")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(document); err != nil {
		return nil, "", err
	}
	if err := w.WriteField(formUser, c.username); err != nil {
		return nil, "", err
	}
	if err := w.WriteField(formPassword, c.password); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
