package oidc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuthResponse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want *AuthResponse
	}{
		{
			name: "bare-query",
			raw:  "state=st_1&code=abc",
			want: &AuthResponse{State: "st_1", Code: "abc"},
		},
		{
			name: "full-url-query",
			raw:  "https://example.com/callback?state=st_1&code=abc",
			want: &AuthResponse{State: "st_1", Code: "abc"},
		},
		{
			name: "full-url-fragment",
			raw:  "https://example.com/callback#state=st_1&code=abc&id_token=h.p.s",
			want: &AuthResponse{State: "st_1", Code: "abc", IdToken: "h.p.s"},
		},
		{
			name: "bare-fragment",
			raw:  "#state=st_1&code=abc",
			want: &AuthResponse{State: "st_1", Code: "abc"},
		},
		{
			name: "error-response",
			raw:  "state=st_1&error=access_denied&error_description=user+cancelled",
			want: &AuthResponse{State: "st_1", Error: "access_denied", ErrorDescription: "user cancelled"},
		},
		{
			name: "empty",
			raw:  "",
			want: &AuthResponse{},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := ParseAuthResponse(tt.raw)
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}

	t.Run("unparseable", func(t *testing.T) {
		require := require.New(t)
		_, err := ParseAuthResponse("a=%zz")
		require.Error(err)
	})
}

func TestAuthResponse_ErrorText(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	r := &AuthResponse{Error: "access_denied"}
	assert.Equal("access_denied", r.ErrorText())

	r = &AuthResponse{Error: "access_denied", ErrorDescription: "user cancelled"}
	assert.Equal("access_denied: user cancelled", r.ErrorText())
}
