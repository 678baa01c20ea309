package oidc

// verifyNonce compares the nonce generated for the authentication attempt
// with the nonce claim asserted by the id_token, using exact (ordinal)
// equality. A token without a nonce claim presents as the empty string and
// can never match a real session nonce.
func verifyNonce(sessionNonce string, tokenNonce string) bool {
	return sessionNonce == tokenNonce
}
