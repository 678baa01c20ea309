package oidc

import (
	"context"
	"fmt"
	"sync"
)

// RefreshTokenHandler is a capability for renewing a token pair without
// re-running the login flow. It bundles the token endpoint client (which
// carries the endpoint and client credentials) with the current
// refresh/access token pair, and rotates the pair as the provider reissues
// tokens. Its lifetime is independent of the Flow that produced it, and it
// is safe for concurrent use.
type RefreshTokenHandler struct {
	tokens TokenClient

	mu           sync.Mutex
	refreshToken RefreshToken
	accessToken  AccessToken
}

// NewRefreshTokenHandler creates a RefreshTokenHandler from a token endpoint
// client and the current token pair.
func NewRefreshTokenHandler(tokens TokenClient, refreshToken RefreshToken, accessToken AccessToken) (*RefreshTokenHandler, error) {
	const op = "oidc.NewRefreshTokenHandler"
	if tokens == nil {
		return nil, fmt.Errorf("%s: token client is nil: %w", op, ErrNilParameter)
	}
	if refreshToken == "" {
		return nil, fmt.Errorf("%s: refresh token is empty: %w", op, ErrInvalidParameter)
	}
	return &RefreshTokenHandler{
		tokens:       tokens,
		refreshToken: refreshToken,
		accessToken:  accessToken,
	}, nil
}

// Refresh redeems the current refresh token for a new token pair. On success
// the handler's stored pair is updated; when the provider rotates the
// refresh token, subsequent calls use the rotated one.
func (h *RefreshTokenHandler) Refresh(ctx context.Context) (*TokenResponse, error) {
	const op = "RefreshTokenHandler.Refresh"
	h.mu.Lock()
	defer h.mu.Unlock()

	tr, err := h.tokens.Refresh(ctx, h.refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to refresh token: %w", op, err)
	}
	if tr.IsError() {
		return nil, fmt.Errorf("%s: %s: %w", op, tr.ErrorText(), ErrTokenEndpoint)
	}

	if tr.AccessToken != "" {
		h.accessToken = tr.AccessToken
	}
	if tr.RefreshToken != "" {
		h.refreshToken = tr.RefreshToken
	}
	return tr, nil
}

// AccessToken returns the most recent access token.
func (h *RefreshTokenHandler) AccessToken() AccessToken {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.accessToken
}

// RefreshToken returns the current refresh token.
func (h *RefreshTokenHandler) RefreshToken() RefreshToken {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refreshToken
}
