// Package oidc verifies bearer tokens issued by an external OpenID Connect
// provider, as an alternative to locally issued admin tokens.
package oidc

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/centrodecompra/catalog/pkg/middleware"
)

// Verifier wraps the OIDC provider and token verifier
type Verifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers the provider at issuer. Discovery needs network
// access, so it runs once at startup.
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return FromProvider(provider, clientID), nil
}

func FromProvider(provider *oidc.Provider, clientID string) *Verifier {
	return &Verifier{provider: provider, verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}
}

func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}
