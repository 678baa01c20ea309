package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc"
)

// IDTokenValidator verifies an id_token's signature and structure and
// returns the token's claims. Implementations are responsible for signature
// and structural correctness only: audience and issuer binding are enforced
// by the Flow after a validator accepts a token, so a validator backed by an
// external library must not be trusted to do it.
type IDTokenValidator interface {
	// Validate verifies the token and returns its claims as an Identity.
	// The clientID and metadata parameters are available for key discovery;
	// implementations must not rely on them for audience/issuer checks.
	Validate(ctx context.Context, t IdToken, clientID string, md ProviderMetadata) (*Identity, error)
}

// KeySetValidator is the default IDTokenValidator. It verifies id_token
// signatures against the provider's published JWKS, checks the token's
// expiry, and returns the payload claims. It deliberately skips audience and
// issuer checks, which belong to the Flow.
type KeySetValidator struct {
	client *http.Client
	now    func() time.Time
}

// NewKeySetValidator creates a KeySetValidator. The client is used for JWKS
// requests; pass nil to use http.DefaultClient.
func NewKeySetValidator(client *http.Client) *KeySetValidator {
	if client == nil {
		client = http.DefaultClient
	}
	return &KeySetValidator{
		client: client,
		now:    time.Now,
	}
}

// Validate implements IDTokenValidator.
func (v *KeySetValidator) Validate(ctx context.Context, t IdToken, _ string, md ProviderMetadata) (*Identity, error) {
	const op = "KeySetValidator.Validate"
	if t == "" {
		return nil, fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	if md.JWKSURL == "" {
		return nil, fmt.Errorf("%s: provider metadata has no jwks_uri: %w", op, ErrInvalidParameter)
	}

	keySet := oidc.NewRemoteKeySet(HTTPClientContext(ctx, v.client), md.JWKSURL)
	payload, err := keySet.VerifySignature(ctx, string(t))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid id_token signature: %w", op, err)
	}

	var all map[string]interface{}
	if err := json.Unmarshal(payload, &all); err != nil {
		return nil, fmt.Errorf("%s: unable to unmarshal id_token claims: %w", op, err)
	}

	exp, ok := all["exp"].(float64)
	if !ok {
		return nil, fmt.Errorf("%s: id_token has no exp claim: %w", op, ErrInvalidParameter)
	}
	if time.Unix(int64(exp), 0).Before(v.now()) {
		return nil, fmt.Errorf("%s: id_token is expired: %w", op, ErrInvalidParameter)
	}

	return &Identity{Claims: claimsFromMap(all)}, nil
}

// HTTPClientContext returns a new Context that carries the provided HTTP
// client. This method sets the same context key used by the
// github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func HTTPClientContext(ctx context.Context, client *http.Client) context.Context {
	// simple to implement as a wrapper for the coreos package
	return oidc.ClientContext(ctx, client)
}
