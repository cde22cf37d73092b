// Package datacite connects to the DataCite Metadata Store. DOIs are first
// reserved by uploading metadata and then registered by binding a URL.
package datacite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/doigate/internal/connector/protocol"
	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/internal/crosswalk"
	"github.com/darmiel/doigate/internal/metrics"
)

const Type = "datacite"

type Config struct {
	Scheme       string `mapstructure:"scheme"`
	Host         string `mapstructure:"host"`
	DOIPath      string `mapstructure:"doi_path"`
	MetadataPath string `mapstructure:"metadata_path"`

	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// Publisher is used for objects without dc.publisher.
	Publisher string `mapstructure:"publisher"`

	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	RateBurst int           `mapstructure:"rate_burst"`
}

// Connector implements core.Connector for DataCite.
type Connector struct {
	name         string
	baseURL      string
	doiPath      string
	metadataPath string
	publisher    string

	client   *protocol.Client
	resolver core.URLResolver
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
		return nil, fmt.Errorf("datacite connector '%s' needs a URL resolver", name)
	}
	baseURL, err := protocol.BaseURL(cfg.Scheme, cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("datacite connector '%s': %w", name, err)
	}
	if cfg.DOIPath == "" {
		cfg.DOIPath = "doi"
	}
	if cfg.MetadataPath == "" {
		cfg.MetadataPath = "metadata"
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("datacite connector '%s' missing 'username'", name)
	}

	return &Connector{
		name:         name,
		baseURL:      baseURL,
		doiPath:      protocol.NormalizePath(cfg.DOIPath),
		metadataPath: protocol.NormalizePath(cfg.MetadataPath),
		publisher:    cfg.Publisher,
		resolver:     resolver,
		client: protocol.NewClient(protocol.ClientConfig{
			Connector:     name,
			Timeout:       cfg.Timeout,
			RateLimit:     cfg.RateLimit,
			RateBurst:     cfg.RateBurst,
			Username:      cfg.Username,
			Password:      cfg.Password,
			ErrorCodes:    handleErrorCodes,
			ExtractHandle: protocol.BodyHandle,
			Metrics:       m,
		}),
	}, nil
}

func (c *Connector) Name() string { return c.name }

func handleErrorCodes(status int, doi, content string) error {
	switch status {
	case http.StatusUnauthorized:
		return core.NewError(core.KindAuthentication, doi, "DataCite rejected our credentials", nil)
	case http.StatusForbidden:
		return core.NewError(core.KindForeignDOI, doi, "the DOI prefix is not managed by our DataCite account", nil)
	case http.StatusInternalServerError:
		return core.NewError(core.KindInternal, doi, "DataCite internal error: "+content, nil)
	}
	return nil
}

func (c *Connector) send(ctx context.Context, method, path, doi string, body []byte, contentType string) (*protocol.Response, error) {
	target := c.baseURL + path
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	} else {
		req, err = http.NewRequestWithContext(ctx, method, target, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("building %s request for %s: %w", method, doi, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.client.Do(ctx, req, doi)
}

func (c *Connector) IsDOIRegistered(ctx context.Context, obj core.Object, doi string) (bool, error) {
	resp, err := c.send(ctx, http.MethodGet, c.doiPath+core.StripScheme(doi), doi, nil, "")
	if err != nil {
		return false, err
	}
	return protocol.CheckRegistration(ctx, resp, http.StatusOK, obj, c.resolver, doi)
}

func (c *Connector) IsDOIReserved(ctx context.Context, obj core.Object, doi string) (bool, error) {
	resp, err := c.send(ctx, http.MethodGet, c.metadataPath+core.StripScheme(doi), doi, nil, "")
	if err != nil {
		return false, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		if obj == nil {
			return true, nil
		}
		record, err := crosswalk.ParseResource(resp.Content())
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("doi", doi).Msg("unparsable metadata from DataCite")
			return false, core.NewError(core.KindBadAnswer, doi, "unparsable metadata from DataCite", err)
		}
		handle, ok := c.resolver.ResolveURLToHandle(ctx, record.URL())
		if !ok {
			// reserved, but not with one of our URLs
			return false, nil
		}
		return handle == obj.Handle(), nil

	case http.StatusNotFound:
		return false, nil

	case http.StatusGone:
		// inactive: the metadata was deleted, and nobody knows for which object
		return obj == nil, nil

	default:
		log.Ctx(ctx).Warn().
			Str("doi", doi).
			Int("status", resp.StatusCode()).
			Str("content", resp.ContentString()).
			Msg("unexpected answer while checking reservation")
		return false, protocol.BadAnswer(doi, resp)
	}
}

// ReserveDOI uploads the metadata of obj for doi. Reserving again updates the metadata.
func (c *Connector) ReserveDOI(ctx context.Context, obj core.Object, doi string) error {
	if err := c.checkNotReservedElsewhere(ctx, obj, doi); err != nil {
		return err
	}

	canonical, err := c.resolver.ResolveToURL(ctx, obj.Handle())
	if err != nil {
		return core.NewError(core.KindConversion, doi, "resolving canonical URL", err)
	}
	record, err := crosswalk.DataCite(ctx, obj, c.publisher, canonical)
	if err != nil {
		return withDOI(err, doi)
	}
	if err := record.SetDOI(doi); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("doi", doi).Str("handle", obj.Handle()).
			Msg("object metadata carries a different DOI")
		return err
	}
	body, err := record.Marshal()
	if err != nil {
		return core.NewError(core.KindConversion, doi, "serializing DataCite metadata", err)
	}

	resp, err := c.send(ctx, http.MethodPost, c.metadataPath, doi, body, "application/xml;charset=UTF-8")
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case http.StatusCreated:
		return nil
	case http.StatusBadRequest:
		return core.NewError(core.KindBadRequest, doi, "DataCite rejected the metadata: "+resp.ContentString(), nil)
	default:
		return protocol.BadAnswer(doi, resp)
	}
}

// RegisterDOI binds doi to the canonical URL of obj. The DOI must be reserved for obj.
func (c *Connector) RegisterDOI(ctx context.Context, obj core.Object, doi string) error {
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
			log.Ctx(ctx).Warn().Str("doi", doi).Msg("DOI is registered for another object already")
			return core.NewError(core.KindAlreadyExists, doi, "registered for another object", nil)
		}
		return nil
	}

	reservedForObj, err := c.IsDOIReserved(ctx, obj, doi)
	if err != nil {
		return err
	}
	if !reservedForObj {
		reserved, err := c.IsDOIReserved(ctx, nil, doi)
		if err != nil {
			return err
		}
		if reserved {
			log.Ctx(ctx).Warn().Str("doi", doi).Msg("DOI is reserved for another object already")
			return core.NewError(core.KindAlreadyExists, doi, "reserved for another object", nil)
		}
		return core.NewError(core.KindReserveFirst, doi, "the DOI has to be reserved before it can be registered", nil)
	}

	canonical, err := c.resolver.ResolveToURL(ctx, obj.Handle())
	if err != nil {
		return core.NewError(core.KindConversion, doi, "resolving canonical URL", err)
	}
	body := fmt.Sprintf("doi=%s\nurl=%s\n", core.StripScheme(doi), canonical)

	resp, err := c.send(ctx, http.MethodPost, c.doiPath, doi, []byte(body), "text/plain;charset=UTF-8")
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case http.StatusCreated:
		return nil
	case http.StatusBadRequest:
		return core.NewError(core.KindBadRequest, doi, "DataCite rejected the registration: "+resp.ContentString(), nil)
	case http.StatusPreconditionFailed:
		return core.NewError(core.KindReserveFirst, doi, "DataCite has no metadata for the DOI", nil)
	default:
		return protocol.BadAnswer(doi, resp)
	}
}

// UpdateMetadata uploads the current metadata again. ReserveDOI already refuses
// DOIs reserved for other objects.
func (c *Connector) UpdateMetadata(ctx context.Context, obj core.Object, doi string) error {
	return c.ReserveDOI(ctx, obj, doi)
}

// DeleteDOI removes the metadata of a reserved DOI. Unknown DOIs are ignored.
func (c *Connector) DeleteDOI(ctx context.Context, doi string) error {
	reserved, err := c.IsDOIReserved(ctx, nil, doi)
	if err != nil {
		return err
	}
	if !reserved {
		return nil
	}

	resp, err := c.send(ctx, http.MethodDelete, c.metadataPath+core.StripScheme(doi), doi, nil, "")
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		log.Ctx(ctx).Error().Str("doi", doi).Msg("DOI is reserved, but DataCite does not know it on delete")
		return nil
	default:
		return protocol.BadAnswer(doi, resp)
	}
}

func (c *Connector) checkNotReservedElsewhere(ctx context.Context, obj core.Object, doi string) error {
	reserved, err := c.IsDOIReserved(ctx, nil, doi)
	if err != nil || !reserved {
		return err
	}
	mine, err := c.IsDOIReserved(ctx, obj, doi)
	if err != nil {
		return err
	}
	if !mine {
		log.Ctx(ctx).Warn().Str("doi", doi).Msg("DOI is reserved for another object already")
		return core.NewError(core.KindAlreadyExists, doi, "reserved for another object", nil)
	}
	return nil
}

// withDOI attaches doi to identifier errors raised before the DOI was known.
func withDOI(err error, doi string) error {
	var ie *core.IdentifierError
	if errors.As(err, &ie) && ie.DOI == "" {
		return core.NewError(ie.Kind, doi, ie.Message, ie.Err)
	}
	return err
}
