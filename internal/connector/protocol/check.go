package protocol

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/doigate/internal/core"
)

// CheckRegistration interprets the answer to a "where does this DOI point"
// request.
//
// With a nil obj any registration counts. Otherwise the DOI only counts as
// registered if the handle in resp equals the canonical URL of obj. A 204
// ("known, but no URL") means reserved but not registered; such answers are
// never cached.
func CheckRegistration(ctx context.Context, resp *Response, successCode int, obj core.Object, resolver core.URLResolver, doi string) (bool, error) {
	switch resp.StatusCode() {
	case successCode:
		if obj == nil {
			return true, nil
		}
		if resp.Handle() == "" {
			log.Ctx(ctx).Error().Str("doi", doi).Int("status", resp.StatusCode()).
				Msg("registry answered without the registered URL")
			return false, core.NewError(core.KindBadAnswer, doi,
				fmt.Sprintf("registry answered %d without the registered URL", resp.StatusCode()), nil)
		}
		canonical, err := resolver.ResolveToURL(ctx, obj.Handle())
		if err != nil {
			return false, fmt.Errorf("resolving canonical URL of %s: %w", obj.Handle(), err)
		}
		return canonical == resp.Handle(), nil

	case http.StatusNoContent:
		return false, nil

	case http.StatusNotFound:
		return false, nil

	default:
		log.Ctx(ctx).Warn().
			Str("doi", doi).
			Int("status", resp.StatusCode()).
			Str("content", truncate(resp.ContentString(), 200)).
			Msg("unexpected answer while checking registration")
		return false, BadAnswer(doi, resp)
	}
}
