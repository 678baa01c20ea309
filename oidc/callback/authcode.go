package callback

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rpkit/oidclogin/oidc"
)

// AuthCode creates an authorization code flow callback handler which uses a
// RequestReader to find the attempt's oidc.Request via the response's
// "state" parameter, then validates the raw response against it.
//
// The SuccessResponseFunc is used to create a response when the callback is
// successful. The ErrorResponseFunc is used to create a response when the
// callback fails.
func AuthCode(ctx context.Context, f *oidc.Flow, rr RequestReader, sFn SuccessResponseFunc, eFn ErrorResponseFunc) (http.HandlerFunc, error) {
	const op = "callback.AuthCode"
	if f == nil {
		return nil, fmt.Errorf("%s: flow is nil: %w", op, oidc.ErrNilParameter)
	}
	if rr == nil {
		return nil, fmt.Errorf("%s: request reader is nil: %w", op, oidc.ErrNilParameter)
	}
	if sFn == nil {
		return nil, fmt.Errorf("%s: success response func is nil: %w", op, oidc.ErrNilParameter)
	}
	if eFn == nil {
		return nil, fmt.Errorf("%s: error response func is nil: %w", op, oidc.ErrNilParameter)
	}
	return func(w http.ResponseWriter, req *http.Request) {
		reqState := req.FormValue("state")

		oidcRequest, err := rr.Read(ctx, reqState)
		if err != nil {
			eFn(reqState, nil, fmt.Errorf("%s: unable to read auth request: %w", op, err), w, req)
			return
		}
		if oidcRequest == nil {
			// could have expired or it could be invalid... no way to know
			// for sure
			eFn(reqState, nil, fmt.Errorf("%s: auth request not found: %w", op, oidc.ErrNotFound), w, req)
			return
		}

		result := f.Validate(ctx, rawResponse(req), oidcRequest)
		if !result.Success() {
			eFn(reqState, result, nil, w, req)
			return
		}
		sFn(reqState, result, w, req)
	}, nil
}

// rawResponse re-encodes the request's parameters (query or form body) as
// the raw payload Flow.Validate parses. FormValue semantics apply: body
// values are read for form posts, query values otherwise.
func rawResponse(req *http.Request) string {
	if err := req.ParseForm(); err != nil {
		return req.URL.RawQuery
	}
	return req.Form.Encode()
}
