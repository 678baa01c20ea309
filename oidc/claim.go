package oidc

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rpkit/oidclogin/oidc/internal/strutils"
)

// Claim is a single typed statement about the authenticated user. A claim
// type may repeat within an Identity (group memberships, multiple audiences,
// etc).
type Claim struct {
	Type  string
	Value string
}

// Identity is the set of claims describing an authenticated user. It is an
// ordered list: claim types may repeat, and lookups of singular claims (iss,
// aud, sub, nonce, the hash bindings) take the first claim of that type.
type Identity struct {
	Claims []Claim
}

// Value returns the value of the first claim of the given type, or "" when
// the type is absent. Treating an absent claim as the empty string is what
// the binding checks rely on: an empty configured value is the only thing an
// absent claim can ever match.
func (i *Identity) Value(claimType string) string {
	for _, c := range i.Claims {
		if c.Type == claimType {
			return c.Value
		}
	}
	return ""
}

// Values returns all values of the given claim type, in order.
func (i *Identity) Values(claimType string) []string {
	var values []string
	for _, c := range i.Claims {
		if c.Type == claimType {
			values = append(values, c.Value)
		}
	}
	return values
}

// Has reports whether the identity carries at least one claim of the given
// type.
func (i *Identity) Has(claimType string) bool {
	for _, c := range i.Claims {
		if c.Type == claimType {
			return true
		}
	}
	return false
}

// Subject returns the identity's "sub" claim.
func (i *Identity) Subject() string { return i.Value("sub") }

// mergeClaims unions userInfo claims into primary, producing a new Identity.
// Claim types already present in primary win: they are never overwritten or
// duplicated, regardless of value. Only claim types absent from primary are
// appended, preserving their order.
func mergeClaims(primary *Identity, userInfo []Claim) *Identity {
	merged := &Identity{
		Claims: make([]Claim, len(primary.Claims), len(primary.Claims)+len(userInfo)),
	}
	copy(merged.Claims, primary.Claims)
	for _, c := range userInfo {
		if merged.Has(c.Type) {
			continue
		}
		merged.Claims = append(merged.Claims, c)
	}
	return merged
}

// filterClaims returns a new Identity without any claims whose type is in
// excluded. It operates on the already-merged set, so it can remove claims
// introduced by either the id_token or the user info endpoint.
func filterClaims(identity *Identity, excluded []string) *Identity {
	filtered := &Identity{
		Claims: make([]Claim, 0, len(identity.Claims)),
	}
	for _, c := range identity.Claims {
		if strutils.StrListContains(excluded, c.Type) {
			continue
		}
		filtered.Claims = append(filtered.Claims, c)
	}
	return filtered
}

// claimsFromMap flattens a decoded JSON claims object into Claim pairs.
// Array-valued claims become one claim per element, numbers and bools are
// rendered in their JSON form, and nested objects are kept as raw JSON.
// Types are sorted so the result is deterministic.
func claimsFromMap(all map[string]interface{}) []Claim {
	types := make([]string, 0, len(all))
	for k := range all {
		types = append(types, k)
	}
	sort.Strings(types)

	var claims []Claim
	for _, typ := range types {
		switch v := all[typ].(type) {
		case []interface{}:
			for _, e := range v {
				claims = append(claims, Claim{Type: typ, Value: claimValue(e)})
			}
		default:
			claims = append(claims, Claim{Type: typ, Value: claimValue(v)})
		}
	}
	return claims
}

func claimValue(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}

// unmarshalJWTPayload unmarshals the payload of a JWS compact serialization
// into claims, without any verification.
func unmarshalJWTPayload(token string, claims interface{}) error {
	const op = "oidc.unmarshalJWTPayload"
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return fmt.Errorf("%s: malformed jwt, expected 3 parts got %d: %w", op, len(parts), ErrInvalidParameter)
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return fmt.Errorf("%s: malformed jwt payload: %w", op, err)
	}
	if err := json.Unmarshal(raw, claims); err != nil {
		return fmt.Errorf("%s: unable to unmarshal jwt payload: %w", op, err)
	}
	return nil
}
