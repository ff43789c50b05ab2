// Package auth is the seam to the external identity provider. The server
// only needs to turn a bearer access token into an owner id; issuing and
// managing credentials stays with the provider.
package auth

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned for missing or unknown access tokens.
var ErrUnauthorized = errors.New("unauthorized")

// Provider resolves an access token to the owner id it belongs to.
type Provider interface {
	OwnerForToken(ctx context.Context, accessToken string) (string, error)
}

// StaticProvider maps pre-issued access tokens to owner ids from
// configuration. It stands in for the hosted identity service in
// single-box deployments and tests.
type StaticProvider struct {
	tokens map[string]string
}

func NewStaticProvider(tokens map[string]string) *StaticProvider {
	return &StaticProvider{tokens: tokens}
}

func (p *StaticProvider) OwnerForToken(_ context.Context, accessToken string) (string, error) {
	if accessToken == "" {
		return "", ErrUnauthorized
	}
	owner, ok := p.tokens[accessToken]
	if !ok {
		return "", ErrUnauthorized
	}
	return owner, nil
}
