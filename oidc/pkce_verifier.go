package oidc

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/rpkit/oidclogin/oidc/internal/base62"
)

// ChallengeMethod represents PKCE code challenge methods as defined by RFC
// 7636.
type ChallengeMethod string

const (
	// S256 is the S256 challenge method: the SHA-256 digest of the verifier,
	// base64url encoded without padding. It is the only method supported.
	S256 ChallengeMethod = "S256"
)

// verifierLen is the length of a generated code verifier. RFC 7636 requires
// 43 to 128 characters; 43 carries 256 bits of base62 entropy.
const verifierLen = 43

// CodeVerifier represents an oauth PKCE code verifier and its S256
// challenge. It gets created with a Request and proven at code redemption,
// preventing authorization code interception attacks.
type CodeVerifier struct {
	verifier  string
	method    ChallengeMethod
	challenge string
}

// NewCodeVerifier creates a verifier of verifierLen random characters with
// its S256 challenge precomputed.
func NewCodeVerifier() (CodeVerifier, error) {
	const op = "oidc.NewCodeVerifier"
	data, err := base62.Random(verifierLen)
	if err != nil {
		return CodeVerifier{}, fmt.Errorf("%s: unable to create verifier data: %w", op, err)
	}
	v := CodeVerifier{
		verifier: data,
		method:   S256,
	}
	if v.challenge, err = CreateCodeChallenge(S256, v); err != nil {
		return CodeVerifier{}, fmt.Errorf("%s: unable to create verifier challenge: %w", op, err)
	}
	return v, nil
}

// Verifier returns the verifier's random secret
func (v CodeVerifier) Verifier() string { return v.verifier }

// Challenge returns the verifier's precomputed challenge
func (v CodeVerifier) Challenge() string { return v.challenge }

// Method returns the verifier's challenge method
func (v CodeVerifier) Method() ChallengeMethod { return v.method }

// CreateCodeChallenge creates a code challenge for a verifier using the
// given method. S256 is the only supported method.
func CreateCodeChallenge(method ChallengeMethod, v CodeVerifier) (string, error) {
	const op = "oidc.CreateCodeChallenge"
	if method != S256 {
		return "", fmt.Errorf("%s: %s: %w", op, method, ErrUnsupportedChallengeMethod)
	}
	sum := sha256.Sum256([]byte(v.Verifier()))
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}
