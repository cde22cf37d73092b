package issuers

import (
	"context"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/darmiel/doigate/internal/config"
	"github.com/darmiel/doigate/internal/core"
)

var errInvalidToken = errors.New("invalid token")

// StaticToken describes the caller behind one configured token.
type StaticToken struct {
	ID    string   `mapstructure:"id"`
	Roles []string `mapstructure:"roles"`
}

// StaticIssuer accepts a fixed set of tokens, e.g. for service accounts.
type StaticIssuer struct {
	name   string
	tokens map[string]StaticToken
}

func NewStatic(cfg config.IssuerConfig) (*StaticIssuer, error) {
	var settings struct {
		Tokens map[string]StaticToken `mapstructure:"tokens"`
	}
	if err := mapstructure.Decode(cfg.Config, &settings); err != nil {
		return nil, fmt.Errorf("decoding static issuer '%s': %w", cfg.Name, err)
	}
	for token, st := range settings.Tokens {
		if st.ID == "" {
			return nil, fmt.Errorf("static issuer '%s': token %.4s... has no id", cfg.Name, token)
		}
	}
	return &StaticIssuer{
		name:   cfg.Name,
		tokens: settings.Tokens,
	}, nil
}

func (s *StaticIssuer) Name() string {
	return s.name
}

func (s *StaticIssuer) Verify(_ context.Context, token string) (*core.Principal, error) {
	st, ok := s.tokens[token]
	if !ok {
		return nil, errInvalidToken
	}
	roles := make([]any, 0, len(st.Roles))
	for _, r := range st.Roles {
		roles = append(roles, r)
	}
	return &core.Principal{
		ID:         st.ID,
		Issuer:     s.name,
		Attributes: map[string]any{"roles": roles},
	}, nil
}
