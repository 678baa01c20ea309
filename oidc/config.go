package oidc

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/rpkit/oidclogin/oidc/internal/strutils"
)

// ClientSecret is a relying party client secret
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// Style is the negotiated response style of an OIDC flow. It is a closed
// set: exactly CodeFlow and HybridFlow are implemented, and NewFlow rejects
// anything else.
type Style string

const (
	// CodeFlow is the authorization code flow: the front channel carries
	// only a code, and tokens are obtained via back-channel redemption.
	CodeFlow Style = "code"

	// HybridFlow is the hybrid flow: the front channel carries an id_token
	// alongside the code, and the code is redeemed afterward.
	HybridFlow Style = "hybrid"
)

// supportedStyles is the closed set NewConfig/NewFlow validate against.
var supportedStyles = map[Style]bool{
	CodeFlow:   true,
	HybridFlow: true,
}

// Config represents the configuration for an OIDC relying party flow.
type Config struct {
	// ClientID is the relying party id
	ClientID string

	// ClientSecret is the relying party secret
	ClientSecret ClientSecret

	// Issuer is a case-sensitive URL string using the https scheme that
	// contains scheme, host, and optionally, port number and path components
	// and no query or fragment components.
	Issuer string

	// Style selects which response style validation follows. One of
	// CodeFlow or HybridFlow.
	Style Style

	// RedirectURL is the URL the provider redirects the authorization
	// response to.
	RedirectURL string

	// Scopes is a list of default additional oidc scopes to request of the
	// provider. The required "openid" scope is always requested and should
	// not be part of this optional list.
	Scopes []string

	// UseUserInfo requests the user info endpoint's claims after a
	// successful validation and merges them into the identity.
	UseUserInfo bool

	// ExcludedClaims is a list of claim types removed from the final
	// identity after merging. Claim filtering is enabled iff the list is
	// non-empty.
	ExcludedClaims []string

	// ProviderCA is an optional CA cert PEM to use when sending requests to
	// the provider.
	ProviderCA string

	// Logger is an optional diagnostic sink. When set, validation steps log
	// at debug level, including claim contents, so only wire a logger whose
	// destination may see them.
	Logger hclog.Logger
}

// NewConfig composes a new relying party config.
//
// Supported options: WithScopes, WithUserInfo, WithClaimFilter,
// WithProviderCA, WithLogger.
func NewConfig(issuer string, clientID string, clientSecret ClientSecret, style Style, redirectURL string, opt ...Option) (*Config, error) {
	const op = "oidc.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		Issuer:         issuer,
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		Style:          style,
		RedirectURL:    redirectURL,
		Scopes:         opts.withScopes,
		UseUserInfo:    opts.withUserInfo,
		ExcludedClaims: opts.withClaimFilter,
		ProviderCA:     opts.withProviderCA,
		Logger:         opts.withLogger,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid relying party config: %w", op, err)
	}
	return c, nil
}

// Validate the config, reporting every problem found rather than the first
// one.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if c.ClientID == "" {
		result = multierror.Append(result, fmt.Errorf("client id is empty: %w", ErrInvalidParameter))
	}
	if c.ClientSecret == "" {
		result = multierror.Append(result, fmt.Errorf("client secret is empty: %w", ErrInvalidParameter))
	}
	if c.RedirectURL == "" {
		result = multierror.Append(result, fmt.Errorf("redirect URL is empty: %w", ErrInvalidParameter))
	}
	if !supportedStyles[c.Style] {
		result = multierror.Append(result, fmt.Errorf("style %q: %w", c.Style, ErrUnsupportedFlow))
	}
	switch {
	case c.Issuer == "":
		result = multierror.Append(result, fmt.Errorf("issuer is empty: %w", ErrInvalidParameter))
	default:
		u, err := url.Parse(c.Issuer)
		switch {
		case err != nil:
			result = multierror.Append(result, fmt.Errorf("issuer %s is invalid: %w", c.Issuer, err))
		case !strutils.StrListContains([]string{"https", "http"}, u.Scheme):
			result = multierror.Append(result, fmt.Errorf("issuer %s scheme is not http or https: %w", c.Issuer, ErrInvalidParameter))
		}
	}
	return result.ErrorOrNil()
}

// HTTPClient creates a new http client for the configured provider, using
// the optional ProviderCA PEM if provided, otherwise the installed system CA
// chain.
func (c *Config) HTTPClient() (*http.Client, error) {
	const op = "Config.HTTPClient"
	tr := cleanhttp.DefaultPooledTransport()

	if c.ProviderCA != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(c.ProviderCA)); !ok {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		tr.TLSClientConfig = &tls.Config{
			RootCAs: certPool,
		}
	}

	return &http.Client{
		Transport: tr,
	}, nil
}

// configOptions is the set of available options for NewConfig
type configOptions struct {
	withScopes      []string
	withUserInfo    bool
	withClaimFilter []string
	withProviderCA  string
	withLogger      hclog.Logger
}

// configDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func configDefaults() configOptions {
	return configOptions{}
}

// getConfigOpts gets the config defaults and applies the opt overrides
// passed in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithScopes provides optional additional scopes for the config or for one
// request.
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *configOptions:
			v.withScopes = scopes
		case *reqOptions:
			v.withScopes = scopes
		}
	}
}

// WithUserInfo enables fetching the user info endpoint's claims after a
// successful validation. Claims already asserted by the id_token always win
// over user info claims.
func WithUserInfo() Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withUserInfo = true
		}
	}
}

// WithClaimFilter provides claim types to remove from the final identity.
// Passing at least one type enables claim filtering.
func WithClaimFilter(claimTypes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withClaimFilter = claimTypes
		}
	}
}

// WithProviderCA provides an optional CA cert PEM for the provider's config
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithLogger provides an optional diagnostic logger for the config
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withLogger = l
		}
	}
}
