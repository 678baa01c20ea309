package callback

import (
	"net/http"

	"github.com/rpkit/oidclogin/oidc"
)

// SuccessResponseFunc is used by Callbacks to create a http response when
// the callback is successful.
//
// The state parameter contains the state that was returned as part of the
// authorization response, and the result is a successful validation's
// LoginResult. The function should use the http.ResponseWriter to send back
// whatever content (headers, html, JSON, etc) it wishes to the client that
// originated the oidc flow.
type SuccessResponseFunc func(state string, result *oidc.LoginResult, w http.ResponseWriter, req *http.Request)

// ErrorResponseFunc is used by Callbacks to create a http response when the
// callback fails.
//
// The state parameter contains the state returned as part of the response,
// when there was one. A non-nil result carries a failed validation's
// LoginResult (including errors the authorization server itself reported);
// a non-nil e carries a callback processing error raised before validation
// could run. The function should use the http.ResponseWriter to send back
// whatever content it wishes to the client that originated the oidc flow.
type ErrorResponseFunc func(state string, result *oidc.LoginResult, e error, w http.ResponseWriter, req *http.Request)
