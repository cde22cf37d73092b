package issuers

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/mapstructure"

	"github.com/darmiel/doigate/internal/config"
	"github.com/darmiel/doigate/internal/core"
)

type oidcSettings struct {
	IssuerURL string `mapstructure:"issuer_url"`
	// ClientID is the expected audience.
	ClientID string `mapstructure:"client_id"`

	// IDClaim names the principal, "sub" by default. Curators are easier to find
	// in the audit log by e.g. "preferred_username".
	IDClaim string `mapstructure:"id_claim"`

	// RolesClaim is copied to the "roles" attribute, e.g. "groups" for Keycloak.
	RolesClaim string `mapstructure:"roles_claim"`
}

// OIDCIssuer verifies ID tokens of an OpenID Connect provider, e.g. the
// institution's single sign-on used by repository curators.
type OIDCIssuer struct {
	name     string
	settings oidcSettings
	verifier *oidc.IDTokenVerifier
}

func decodeOIDCSettings(cfg config.IssuerConfig) (oidcSettings, error) {
	var s oidcSettings
	if err := mapstructure.Decode(cfg.Config, &s); err != nil {
		return s, fmt.Errorf("decoding settings of oidc issuer '%s': %w", cfg.Name, err)
	}
	if s.IssuerURL == "" {
		return s, fmt.Errorf("oidc issuer '%s' missing 'issuer_url'", cfg.Name)
	}
	if s.ClientID == "" {
		return s, fmt.Errorf("oidc issuer '%s' missing 'client_id'", cfg.Name)
	}
	if s.IDClaim == "" {
		s.IDClaim = "sub"
	}
	if s.RolesClaim == "" {
		s.RolesClaim = "roles"
	}
	return s, nil
}

// NewOIDCIssuer discovers the provider at issuer_url. It fails if the provider
// cannot be reached.
func NewOIDCIssuer(ctx context.Context, cfg config.IssuerConfig) (*OIDCIssuer, error) {
	settings, err := decodeOIDCSettings(cfg)
	if err != nil {
		return nil, err
	}

	provider, err := oidc.NewProvider(ctx, settings.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("creating oidc provider for issuer '%s': %w", cfg.Name, err)
	}

	return &OIDCIssuer{
		name:     cfg.Name,
		settings: settings,
		verifier: provider.Verifier(&oidc.Config{ClientID: settings.ClientID}),
	}, nil
}

func (o *OIDCIssuer) Name() string {
	return o.name
}

// URL is the expected "iss" claim.
func (o *OIDCIssuer) URL() string {
	return o.settings.IssuerURL
}

func (o *OIDCIssuer) Verify(ctx context.Context, token string) (*core.Principal, error) {
	idToken, err := o.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("oidc verification failed: %w", err)
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("extracting oidc claims: %w", err)
	}
	return principalFromClaims(o.name, o.settings, claims)
}

func principalFromClaims(issuer string, s oidcSettings, claims map[string]any) (*core.Principal, error) {
	id, ok := claims[s.IDClaim].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("token has no string claim '%s'", s.IDClaim)
	}
	if s.RolesClaim != "roles" {
		if roles, ok := claims[s.RolesClaim]; ok {
			claims["roles"] = roles
		} else {
			delete(claims, "roles")
		}
	}
	return &core.Principal{
		ID:         id,
		Issuer:     issuer,
		Attributes: claims,
	}, nil
}

// ExtractIssuerURL extracts the 'iss' claim from a JWT token string without verifying it.
func ExtractIssuerURL(tokenString string) (string, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("parsing token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}
	iss, err := claims.GetIssuer()
	if err != nil {
		return "", fmt.Errorf("invalid 'iss' claim: %w", err)
	}
	if iss == "" {
		return "", fmt.Errorf("token missing 'iss' claim")
	}
	return iss, nil
}
