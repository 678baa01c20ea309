package oidc

import (
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/text/language"
)

// DefaultRequestExpirySkew defines a default time skew when checking a
// Request's expiration.
const DefaultRequestExpirySkew = 1 * time.Second

// Request represents one OIDC authentication attempt for a user. It contains
// the data needed to uniquely bind the provider's authorization response
// back to the attempt that initiated it: the state passed through to the
// provider and returned in the response, the nonce embedded in the issued
// id_token, and the PKCE code verifier proven at redemption.
//
// A Request is immutable once created and is valid for exactly one
// authorization response: Flow.Validate consumes it, successful or not, and
// a retry requires a fresh Request (codes and nonces are single use).
type Request struct {
	state       string
	nonce       string
	expiration  time.Time
	redirectURL string
	verifier    CodeVerifier
	scopes      []string
	uiLocales   []language.Tag
	nowFunc     func() time.Time

	consumed uint32
}

// NewRequest creates a new Request (*Request).
//
// State and nonce are generated unless the WithState/WithNonce options
// provide them, and they can never be equal. A PKCE CodeVerifier is always
// generated unless WithPKCE provides one.
//
// Supported options: WithNow, WithState, WithNonce, WithPKCE, WithScopes,
// WithUILocales.
func NewRequest(expireIn time.Duration, redirectURL string, opt ...Option) (*Request, error) {
	const op = "oidc.NewRequest"
	opts := getReqOpts(opt...)
	if expireIn <= 0 {
		return nil, fmt.Errorf("%s: expireIn not greater than zero: %w", op, ErrInvalidParameter)
	}
	if redirectURL == "" {
		return nil, fmt.Errorf("%s: redirect URL is empty: %w", op, ErrInvalidParameter)
	}

	state := opts.withState
	if state == "" {
		var err error
		if state, err = NewID(WithPrefix("st")); err != nil {
			return nil, fmt.Errorf("%s: unable to generate a request's state: %w", op, err)
		}
	}
	nonce := opts.withNonce
	if nonce == "" {
		var err error
		if nonce, err = NewID(WithPrefix("n")); err != nil {
			return nil, fmt.Errorf("%s: unable to generate a request's nonce: %w", op, err)
		}
	}
	if state == nonce {
		return nil, fmt.Errorf("%s: state and nonce cannot be equal: %w", op, ErrInvalidParameter)
	}

	verifier := opts.withVerifier
	if verifier == nil {
		v, err := NewCodeVerifier()
		if err != nil {
			return nil, fmt.Errorf("%s: unable to generate a request's code verifier: %w", op, err)
		}
		verifier = &v
	}

	nowFunc := time.Now
	if opts.withNowFunc != nil {
		nowFunc = opts.withNowFunc
	}

	return &Request{
		state:       state,
		nonce:       nonce,
		expiration:  nowFunc().Add(expireIn),
		redirectURL: redirectURL,
		verifier:    *verifier,
		scopes:      opts.withScopes,
		uiLocales:   opts.withUILocales,
		nowFunc:     nowFunc,
	}, nil
}

// State returns the request's state, an opaque value passed to the provider
// and echoed back in the authorization response.
func (r *Request) State() string { return r.state }

// Nonce returns the request's nonce, which binds the issued id_token to this
// attempt.
func (r *Request) Nonce() string { return r.nonce }

// RedirectURL returns the request's redirect URL.
func (r *Request) RedirectURL() string { return r.redirectURL }

// PKCEVerifier returns the request's PKCE code verifier.
func (r *Request) PKCEVerifier() CodeVerifier { return r.verifier }

// Scopes returns any additional scopes requested beyond the mandatory
// "openid" scope.
func (r *Request) Scopes() []string { return r.scopes }

// UILocales returns the preferred languages for the provider's pages, if
// any were requested.
func (r *Request) UILocales() []language.Tag { return r.uiLocales }

// IsExpired returns true if the request has expired, applying a
// DefaultRequestExpirySkew.
func (r *Request) IsExpired() bool {
	return r.expiration.Before(r.now().Add(DefaultRequestExpirySkew))
}

// consume marks the request used. It returns true exactly once.
func (r *Request) consume() bool {
	return atomic.CompareAndSwapUint32(&r.consumed, 0, 1)
}

func (r *Request) now() time.Time {
	if r.nowFunc != nil {
		return r.nowFunc()
	}
	return time.Now()
}

// reqOptions is the set of available options for NewRequest
type reqOptions struct {
	withNowFunc   func() time.Time
	withState     string
	withNonce     string
	withVerifier  *CodeVerifier
	withScopes    []string
	withUILocales []language.Tag
}

// reqDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func reqDefaults() reqOptions {
	return reqOptions{}
}

// getReqOpts gets the request defaults and applies the opt overrides passed
// in
func getReqOpts(opt ...Option) reqOptions {
	opts := reqDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithNow provides an optional func for determining what the current time is
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *reqOptions:
			v.withNowFunc = now
		case *flowOptions:
			v.withNowFunc = now
		}
	}
}

// WithState provides an optional state value, instead of a generated one.
// Callers must provide a unique, non-guessable value per attempt.
func WithState(s string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withState = s
		}
	}
}

// WithNonce provides an optional nonce value, instead of a generated one.
// Callers must provide a unique, non-guessable value per attempt.
func WithNonce(n string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withNonce = n
		}
	}
}

// WithPKCE provides an optional PKCE code verifier, instead of a generated
// one.
func WithPKCE(v CodeVerifier) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withVerifier = &v
		}
	}
}

// WithUILocales provides an optional list of preferred languages for the
// provider's authentication pages.
func WithUILocales(locales ...language.Tag) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withUILocales = locales
		}
	}
}
