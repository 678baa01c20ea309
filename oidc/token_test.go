package oidc

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessToken_Redaction(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tk := AccessToken("super secret token")
	assert.Equalf(RedactedAccessToken, tk.String(), "AccessToken.String() failed to redact")
	assert.Equal(RedactedAccessToken, fmt.Sprintf("%s", tk))
	assert.Equal(RedactedAccessToken, fmt.Sprintf("%v", tk))

	got, err := json.Marshal(tk)
	require.NoError(err)
	assert.Equalf(`"`+RedactedAccessToken+`"`, string(got), "AccessToken.MarshalJSON() failed to redact")
}

func TestRefreshToken_Redaction(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tk := RefreshToken("super secret token")
	assert.Equalf(RedactedRefreshToken, tk.String(), "RefreshToken.String() failed to redact")

	got, err := json.Marshal(tk)
	require.NoError(err)
	assert.Equalf(`"`+RedactedRefreshToken+`"`, string(got), "RefreshToken.MarshalJSON() failed to redact")
}

func TestIdToken_Redaction(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tk := IdToken("super secret token")
	assert.Equalf(RedactedIdToken, tk.String(), "IdToken.String() failed to redact")

	got, err := json.Marshal(tk)
	require.NoError(err)
	assert.Equalf(`"`+RedactedIdToken+`"`, string(got), "IdToken.MarshalJSON() failed to redact")
}

func TestClientSecret_Redaction(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	secret := ClientSecret("super secret")
	assert.Equalf(RedactedClientSecret, secret.String(), "ClientSecret.String() failed to redact")

	got, err := json.Marshal(secret)
	require.NoError(err)
	assert.Equalf(`"`+RedactedClientSecret+`"`, string(got), "ClientSecret.MarshalJSON() failed to redact")
}

func TestIdToken_Claims(t *testing.T) {
	t.Parallel()
	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tk := IdToken(testJWT(t, map[string]interface{}{
			"sub":  "alice",
			"name": "Alice",
		}))
		var claims map[string]interface{}
		require.NoError(tk.Claims(&claims))
		assert.Equal("alice", claims["sub"])
		assert.Equal("Alice", claims["name"])
	})
	t.Run("empty-token", func(t *testing.T) {
		assert := assert.New(t)
		var claims map[string]interface{}
		err := IdToken("").Claims(&claims)
		assert.ErrorIs(err, ErrInvalidParameter)
	})
	t.Run("nil-claims", func(t *testing.T) {
		assert := assert.New(t)
		tk := IdToken(testJWT(t, map[string]interface{}{"sub": "alice"}))
		err := tk.Claims(nil)
		assert.ErrorIs(err, ErrNilParameter)
	})
	t.Run("malformed-token", func(t *testing.T) {
		assert := assert.New(t)
		var claims map[string]interface{}
		err := IdToken("only-one-part").Claims(&claims)
		assert.ErrorIs(err, ErrInvalidParameter)
	})
}

func TestTokenResponse_ErrorText(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	tr := &TokenResponse{AccessToken: "access"}
	assert.False(tr.IsError())
	assert.Equal("", tr.ErrorText())

	tr = &TokenResponse{Error: "invalid_grant"}
	assert.True(tr.IsError())
	assert.Equal("invalid_grant", tr.ErrorText())

	tr = &TokenResponse{Error: "invalid_grant", ErrorDescription: "code expired"}
	assert.Equal("invalid_grant: code expired", tr.ErrorText())
}
