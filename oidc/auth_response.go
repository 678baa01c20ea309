package oidc

import (
	"fmt"
	"net/url"
	"strings"
)

// AuthResponse is the parsed view of a raw authorization response payload.
// It is derived once from the redirect callback's parameters and never
// modified.
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#AuthResponse
type AuthResponse struct {
	// Code is the authorization code, when the provider issued one.
	Code string

	// State is the echoed request state.
	State string

	// IdToken is the front-channel id_token. Only hybrid flow responses
	// carry one.
	IdToken IdToken

	// Error is the provider's error code, when the provider reported an
	// error instead of authenticating the user.
	Error string

	// ErrorDescription is the provider's optional human readable error text.
	ErrorDescription string
}

// ParseAuthResponse parses a raw authorization response payload into an
// AuthResponse. The raw payload may be a full redirect URL, a bare query
// string, or a bare fragment, since providers deliver code flow responses in
// the query and hybrid flow responses in the fragment (or via form post).
func ParseAuthResponse(raw string) (*AuthResponse, error) {
	const op = "oidc.ParseAuthResponse"
	values, err := responseValues(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to parse response parameters: %w", op, err)
	}
	return &AuthResponse{
		Code:             values.Get("code"),
		State:            values.Get("state"),
		IdToken:          IdToken(values.Get("id_token")),
		Error:            values.Get("error"),
		ErrorDescription: values.Get("error_description"),
	}, nil
}

// ErrorText renders the provider's error response as a single message,
// verbatim: the error code, plus the description when one was sent.
func (r *AuthResponse) ErrorText() string {
	if r.ErrorDescription == "" {
		return r.Error
	}
	return r.Error + ": " + r.ErrorDescription
}

func responseValues(raw string) (url.Values, error) {
	raw = strings.TrimSpace(raw)
	if u, err := url.Parse(raw); err == nil && (u.RawQuery != "" || u.Fragment != "") {
		if u.Fragment != "" {
			// hybrid responses arrive in the fragment
			return url.ParseQuery(u.Fragment)
		}
		return url.ParseQuery(u.RawQuery)
	}
	return url.ParseQuery(strings.TrimPrefix(raw, "#"))
}
