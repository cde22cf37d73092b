package issuers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/darmiel/doigate/internal/core"
)

const (
	SessionIssuerName = "doigate"
	SessionIssuerURL  = "doigate-auth"

	DefaultSessionTTL = time.Hour
)

// SessionIssuer mints and verifies the short-lived session tokens handed out by
// the API after an upstream token was verified.
type SessionIssuer struct {
	signingKey []byte
	ttl        time.Duration

	// now is replaced in tests
	now func() time.Time
}

// Session is a minted session token.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewSessionIssuer(signingKey []byte, ttl time.Duration) (*SessionIssuer, error) {
	if len(signingKey) < 32 {
		return nil, errors.New("session signing key must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionIssuer{signingKey: signingKey, ttl: ttl, now: time.Now}, nil
}

func (s *SessionIssuer) Name() string { return SessionIssuerName }

func (s *SessionIssuer) URL() string { return SessionIssuerURL }

// Mint creates a session token for principal carrying the given roles.
func (s *SessionIssuer) Mint(principal *core.Principal, roles []string) (*Session, error) {
	now := s.now()
	exp := now.Add(s.ttl)

	claims := jwt.MapClaims{
		"iss":        SessionIssuerURL,
		"sub":        principal.ID,
		"iat":        now.Unix(),
		"exp":        exp.Unix(),
		"roles":      roles,
		"origin_iss": principal.Issuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return &Session{Token: signed, ExpiresAt: exp}, nil
}

func (s *SessionIssuer) Verify(_ context.Context, tokenStr string) (*core.Principal, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(SessionIssuerURL),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, errors.New("session token without subject")
	}
	return &core.Principal{
		ID:         sub,
		Issuer:     SessionIssuerName,
		Attributes: map[string]any(claims),
	}, nil
}

// Roles returns the roles of principal as a string slice.
func Roles(principal *core.Principal) []string {
	if principal == nil {
		return nil
	}
	var out []string
	switch roles := principal.Attributes["roles"].(type) {
	case []any:
		for _, r := range roles {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, roles...)
	case string:
		for _, r := range strings.Split(roles, ",") {
			if r = strings.TrimSpace(r); r != "" {
				out = append(out, r)
			}
		}
	}
	return out
}
