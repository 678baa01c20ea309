package oidc

import (
	"crypto/sha256"
	"encoding/base64"
)

// verifyTokenHash checks an id_token hash binding claim (c_hash or at_hash)
// against the plaintext secret it is supposed to bind: the authorization
// code for c_hash, the access token for at_hash. Per the oidc spec the
// claimed value is the base64url encoding (no padding) of the left half of
// the SHA-256 digest of the secret's ascii representation.
//
// An absent claim satisfies the binding. Some providers omit the hash
// claims and the flows must still work against them; callers that want the
// binding enforced need a provider that issues it.
func verifyTokenHash(secret string, claimedHash string) bool {
	if claimedHash == "" {
		return true
	}
	return tokenHash(secret) == claimedHash
}

// tokenHash computes the expected c_hash/at_hash value for a secret.
func tokenHash(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}
