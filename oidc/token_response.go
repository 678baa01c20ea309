package oidc

// TokenResponse is the token endpoint's response to a code redemption or a
// refresh_token grant.
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#TokenResponse
type TokenResponse struct {
	IdToken      IdToken      `json:"id_token,omitempty"`
	AccessToken  AccessToken  `json:"access_token,omitempty"`
	RefreshToken RefreshToken `json:"refresh_token,omitempty"`
	TokenType    string       `json:"token_type,omitempty"`

	// ExpiresIn is the access token's lifetime in seconds.
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// Error and ErrorDescription carry the endpoint's error response, when
	// the redemption was rejected.
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// IsError reports whether the endpoint rejected the grant.
func (t *TokenResponse) IsError() bool { return t.Error != "" }

// ErrorText renders the endpoint's error response as a single message.
func (t *TokenResponse) ErrorText() string {
	if t.ErrorDescription == "" {
		return t.Error
	}
	return t.Error + ": " + t.ErrorDescription
}
