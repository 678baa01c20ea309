package oidc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPTokenClient(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	_, err := NewHTTPTokenClient("", "client", "secret", nil)
	require.Error(err)
	assert.ErrorIs(err, ErrInvalidParameter)

	_, err = NewHTTPTokenClient("https://provider.example.com/token", "", "secret", nil)
	require.Error(err)
	assert.ErrorIs(err, ErrInvalidParameter)

	c, err := NewHTTPTokenClient("https://provider.example.com/token", "client", "secret", nil)
	require.NoError(err)
	assert.NotNil(c)
}

func TestHTTPTokenClient_Exchange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	newClient := func(t *testing.T, p *TestProvider) *HTTPTokenClient {
		t.Helper()
		c, err := NewHTTPTokenClient(p.Addr()+"/token", "client", "secret", testProviderClient(t, p))
		require.NoError(t, err)
		return c
	}

	t.Run("success", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := StartTestProvider(t)
		p.SetClientCreds("client", "secret")
		p.SetExpectedAuthCode("test-code")
		p.WithRefreshTokens()

		tr, err := newClient(t, p).Exchange(ctx, "test-code", "https://example.com/callback", "")
		require.NoError(err)
		require.False(tr.IsError())
		assert.NotEmpty(tr.AccessToken)
		assert.NotEmpty(tr.IdToken)
		assert.NotEmpty(tr.RefreshToken)
		assert.Equal("Bearer", tr.TokenType)
		assert.InDelta(3600, tr.ExpiresIn, 5)
	})
	t.Run("pkce-verifier-is-sent", func(t *testing.T) {
		require := require.New(t)
		p := StartTestProvider(t)
		p.SetClientCreds("client", "secret")
		p.SetExpectedAuthCode("test-code")
		v, err := NewCodeVerifier()
		require.NoError(err)
		p.SetExpectedCodeChallenge(v.Challenge())

		tr, err := newClient(t, p).Exchange(ctx, "test-code", "https://example.com/callback", v.Verifier())
		require.NoError(err)
		require.False(tr.IsError())
	})
	t.Run("endpoint-rejection-is-a-token-response", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := StartTestProvider(t)
		p.SetClientCreds("client", "secret")
		p.SetExpectedAuthCode("test-code")

		tr, err := newClient(t, p).Exchange(ctx, "wrong-code", "https://example.com/callback", "")
		require.NoError(err)
		require.True(tr.IsError())
		assert.Equal("invalid_grant", tr.Error)
		assert.Equal("unexpected auth code", tr.ErrorDescription)
	})
	t.Run("empty-code", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := StartTestProvider(t)
		_, err := newClient(t, p).Exchange(ctx, "", "https://example.com/callback", "")
		require.Error(err)
		assert.ErrorIs(err, ErrInvalidParameter)
	})
}

func TestHTTPTokenClient_Refresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := StartTestProvider(t)
		p.SetClientCreds("client", "secret")
		p.SetExpectedAuthCode("test-code")
		p.WithRefreshTokens()

		c, err := NewHTTPTokenClient(p.Addr()+"/token", "client", "secret", testProviderClient(t, p))
		require.NoError(err)

		// a redemption seeds the provider's current refresh token
		tr, err := c.Exchange(ctx, "test-code", "https://example.com/callback", "")
		require.NoError(err)
		require.False(tr.IsError())

		refreshed, err := c.Refresh(ctx, tr.RefreshToken)
		require.NoError(err)
		require.False(refreshed.IsError())
		assert.NotEmpty(refreshed.AccessToken)
		assert.NotEqual(tr.AccessToken, refreshed.AccessToken)
		assert.Equal(string(refreshed.RefreshToken), p.CurrentRefreshToken())
	})
	t.Run("unknown-refresh-token", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := StartTestProvider(t)
		p.SetClientCreds("client", "secret")
		p.WithRefreshTokens()

		c, err := NewHTTPTokenClient(p.Addr()+"/token", "client", "secret", testProviderClient(t, p))
		require.NoError(err)

		tr, err := c.Refresh(ctx, "never-issued")
		require.NoError(err)
		require.True(tr.IsError())
		assert.Equal("invalid_grant", tr.Error)
	})
	t.Run("empty-refresh-token", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p := StartTestProvider(t)
		c, err := NewHTTPTokenClient(p.Addr()+"/token", "client", "secret", testProviderClient(t, p))
		require.NoError(err)
		_, err = c.Refresh(ctx, "")
		require.Error(err)
		assert.ErrorIs(err, ErrInvalidParameter)
	})
}
