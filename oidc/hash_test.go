package oidc

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_verifyTokenHash(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		secret      string
		claimedHash string
		want        bool
	}{
		{
			name:        "matching-hash",
			secret:      "test-authorization-code",
			claimedHash: tokenHash("test-authorization-code"),
			want:        true,
		},
		{
			name:        "mismatched-hash",
			secret:      "test-authorization-code",
			claimedHash: tokenHash("some-other-code"),
			want:        false,
		},
		{
			name:        "absent-claim-is-satisfied",
			secret:      "test-authorization-code",
			claimedHash: "",
			want:        true,
		},
		{
			name:        "garbage-claim",
			secret:      "test-authorization-code",
			claimedHash: "not-a-hash",
			want:        false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, verifyTokenHash(tt.secret, tt.claimedHash))
		})
	}
}

func Test_tokenHash(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	// left half of the sha256 digest, base64url without padding
	sum := sha256.Sum256([]byte("test-access-token"))
	want := base64.RawURLEncoding.EncodeToString(sum[:16])
	assert.Equal(want, tokenHash("test-access-token"))
	assert.NotContains(tokenHash("test-access-token"), "=")
}

func Test_verifyNonce(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.True(verifyNonce("n_test", "n_test"))
	assert.False(verifyNonce("n_test", "n_TEST"))
	assert.False(verifyNonce("n_test", ""))
	assert.False(verifyNonce("n_test", "n_test "))
}
