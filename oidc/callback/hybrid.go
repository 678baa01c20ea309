package callback

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rpkit/oidclogin/oidc"
)

// Hybrid creates a hybrid flow callback handler. Hybrid responses are
// delivered as a form post (the id_token is too large and too sensitive for
// a query string), so the handler reads the response parameters from the
// posted form, finds the attempt's oidc.Request via the "state" parameter,
// and validates the raw response against it.
//
// The SuccessResponseFunc is used to create a response when the callback is
// successful. The ErrorResponseFunc is used to create a response when the
// callback fails.
func Hybrid(ctx context.Context, f *oidc.Flow, rr RequestReader, sFn SuccessResponseFunc, eFn ErrorResponseFunc) (http.HandlerFunc, error) {
	const op = "callback.Hybrid"
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
