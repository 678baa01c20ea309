package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// ProviderMetadata is an immutable snapshot of the provider endpoints the
// flows need, as published in the provider's discovery document. Snapshots
// are passed by value: validation never shares mutable discovery state
// between attempts.
//
// See: https://openid.net/specs/openid-connect-discovery-1_0.html
type ProviderMetadata struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserInfoEndpoint      string `json:"userinfo_endpoint"`
	JWKSURL               string `json:"jwks_uri"`
}

// MetadataSource provides ProviderMetadata snapshots to the flows. The
// source owns any caching policy; the flows treat every snapshot as opaque
// and immutable for the duration of one validation pass.
type MetadataSource interface {
	// ProviderMetadata returns a metadata snapshot. Implementations must be
	// safe for concurrent use.
	ProviderMetadata(ctx context.Context) (ProviderMetadata, error)
}

// StaticMetadata is a MetadataSource for a fixed, already-known set of
// provider endpoints.
type StaticMetadata ProviderMetadata

// ProviderMetadata implements MetadataSource by returning the static
// snapshot.
func (s StaticMetadata) ProviderMetadata(ctx context.Context) (ProviderMetadata, error) {
	return ProviderMetadata(s), nil
}

// DiscoveryMetadata is a MetadataSource which fetches the provider's
// discovery document from its well-known location, once, and serves cached
// snapshots afterward. It is safe for concurrent use.
type DiscoveryMetadata struct {
	issuer string
	client *http.Client

	mu       sync.Mutex
	fetched  bool
	metadata ProviderMetadata
}

// NewDiscoveryMetadata creates a DiscoveryMetadata for the given issuer. The
// client is used for the discovery request; pass nil to use
// http.DefaultClient.
func NewDiscoveryMetadata(issuer string, client *http.Client) (*DiscoveryMetadata, error) {
	const op = "oidc.NewDiscoveryMetadata"
	if issuer == "" {
		return nil, fmt.Errorf("%s: issuer is empty: %w", op, ErrInvalidParameter)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &DiscoveryMetadata{
		issuer: issuer,
		client: client,
	}, nil
}

// ProviderMetadata implements MetadataSource. The first call makes an http
// request to the issuer's /.well-known/openid-configuration; subsequent
// calls return the cached snapshot.
func (d *DiscoveryMetadata) ProviderMetadata(ctx context.Context) (ProviderMetadata, error) {
	const op = "DiscoveryMetadata.ProviderMetadata"
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fetched {
		return d.metadata, nil
	}

	wellKnown := strings.TrimSuffix(d.issuer, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnown, nil)
	if err != nil {
		return ProviderMetadata{}, fmt.Errorf("%s: unable to create discovery request: %w", op, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return ProviderMetadata{}, fmt.Errorf("%s: unable to get discovery document from %s: %w", op, wellKnown, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ProviderMetadata{}, fmt.Errorf("%s: discovery request to %s returned status %d: %w", op, wellKnown, resp.StatusCode, ErrInvalidParameter)
	}

	var md ProviderMetadata
	if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
		return ProviderMetadata{}, fmt.Errorf("%s: unable to decode discovery document: %w", op, err)
	}
	d.metadata = md
	d.fetched = true
	return d.metadata, nil
}
