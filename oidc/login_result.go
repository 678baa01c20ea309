package oidc

import (
	"time"
)

// LoginResult is the outcome of one validation pass over an authorization
// response. It takes exactly one of two shapes: a success carrying the
// user's Identity and tokens with an empty Error, or a failure carrying a
// non-empty Error and nothing else. It is created once per attempt and never
// modified.
type LoginResult struct {
	// Error is the terminal failure reason, or "" on success. Binding
	// failures (state, nonce, hash, audience, issuer) can never be retried
	// with the same artifacts; a fresh Request is required.
	Error string

	// Identity is the user's final claim set: the validated id_token claims,
	// optionally merged with user info claims and filtered.
	Identity *Identity

	// AccessToken is the issued access token.
	AccessToken AccessToken

	// IdToken is the validated id_token.
	IdToken IdToken

	// RefreshToken is the issued refresh token, when the provider issued
	// one.
	RefreshToken RefreshToken

	// ExpiresAt is when the access token expires, computed from the token
	// response's expires_in at validation time. Zero when the endpoint did
	// not report a lifetime.
	ExpiresAt time.Time

	// AuthTime is when the validation completed.
	AuthTime time.Time

	// Refresher renews the token pair without re-running the login flow.
	// Only present when the provider issued a refresh token.
	Refresher *RefreshTokenHandler
}

// Success reports whether the login attempt was validated.
func (r *LoginResult) Success() bool { return r.Error == "" }

// failedLogin creates the failure shape of a LoginResult.
func failedLogin(err error) *LoginResult {
	return &LoginResult{Error: err.Error()}
}
