package oidc

import (
	"errors"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
	ErrInvalidCACert    = errors.New("invalid CA certificate")

	// ErrUnsupportedFlow is returned by NewFlow for a Style it does not
	// implement. It is a configuration error, never a login outcome.
	ErrUnsupportedFlow = errors.New("unsupported flow")

	ErrUnsupportedChallengeMethod = errors.New("unsupported challenge method")
	ErrIdGeneratorFailed          = errors.New("id generation failed")

	// Login failures. Validation is fail-closed: each of these is terminal
	// for the attempt and a fresh Request is required to retry.
	ErrMissingCode            = errors.New("missing authorization code")
	ErrMissingState           = errors.New("missing state")
	ErrInvalidState           = errors.New("invalid state")
	ErrInvalidNonce           = errors.New("invalid nonce")
	ErrInvalidCodeHash        = errors.New("invalid c_hash")
	ErrInvalidAccessTokenHash = errors.New("invalid at_hash")
	ErrInvalidAudience        = errors.New("invalid audience")
	ErrInvalidIssuer          = errors.New("invalid issuer")
	ErrMissingIdToken         = errors.New("missing identity token")
	ErrConsumedRequest        = errors.New("request already used")
	ErrExpiredRequest         = errors.New("request is expired")
	ErrTokenEndpoint          = errors.New("token endpoint error")
	ErrUserInfoFailed         = errors.New("user info failed")

	ErrNotFound = errors.New("not found")
)
