package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// UserInfoClient fetches the claims the provider's user info endpoint
// asserts for an access token.
type UserInfoClient interface {
	// Fetch returns the user info claims. Implementations must be safe for
	// concurrent use.
	Fetch(ctx context.Context, userInfoEndpoint string, accessToken AccessToken) ([]Claim, error)
}

// HTTPUserInfoClient is the default UserInfoClient.
type HTTPUserInfoClient struct {
	client *http.Client
}

// NewHTTPUserInfoClient creates an HTTPUserInfoClient. The http client is
// used for all requests; pass nil to use http.DefaultClient.
func NewHTTPUserInfoClient(client *http.Client) *HTTPUserInfoClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPUserInfoClient{client: client}
}

// Fetch implements UserInfoClient.
func (c *HTTPUserInfoClient) Fetch(ctx context.Context, userInfoEndpoint string, accessToken AccessToken) ([]Claim, error) {
	const op = "HTTPUserInfoClient.Fetch"
	if userInfoEndpoint == "" {
		return nil, fmt.Errorf("%s: user info endpoint is empty: %w", op, ErrInvalidParameter)
	}
	if accessToken == "" {
		return nil, fmt.Errorf("%s: access token is empty: %w", op, ErrInvalidParameter)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userInfoEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create user info request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+string(accessToken))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: user info request failed: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read user info response: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: user info endpoint returned status %d: %w", op, resp.StatusCode, ErrUserInfoFailed)
	}

	var all map[string]interface{}
	if err := json.Unmarshal(body, &all); err != nil {
		return nil, fmt.Errorf("%s: unable to unmarshal user info claims: %w", op, err)
	}
	return claimsFromMap(all), nil
}
