package oidc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/rpkit/oidclogin/oidc/internal/strutils"
)

// Flow validates raw authorization responses for one configured response
// style and produces LoginResults. The style is fixed at construction:
// NewFlow selects exactly one of the two implemented strategies
// (authorization code, hybrid) and rejects anything else, so validation
// never inspects the style again.
//
// A Flow is safe for concurrent use: every login attempt owns its own
// Request and the flow itself holds no per-attempt state.
type Flow struct {
	config    *Config
	style     flowStyle
	metadata  MetadataSource
	tokens    TokenClient
	userInfo  UserInfoClient
	validator IDTokenValidator
	client    *http.Client
	logger    hclog.Logger
	now       func() time.Time
}

// NewFlow creates a Flow for the config's Style.
//
// Supported options: WithMetadataSource, WithTokenClient,
// WithUserInfoClient, WithIDTokenValidator, WithNow. Collaborators not
// provided get default HTTP implementations driven by the config's issuer
// and ProviderCA.
func NewFlow(c *Config, opt ...Option) (*Flow, error) {
	const op = "oidc.NewFlow"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: config is invalid: %w", op, err)
	}

	var style flowStyle
	switch c.Style {
	case CodeFlow:
		style = codeFlow{}
	case HybridFlow:
		style = hybridFlow{}
	default:
		return nil, fmt.Errorf("%s: style %q: %w", op, c.Style, ErrUnsupportedFlow)
	}

	client, err := c.HTTPClient()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}

	opts := getFlowOpts(opt...)
	f := &Flow{
		config:    c,
		style:     style,
		metadata:  opts.withMetadataSource,
		tokens:    opts.withTokenClient,
		userInfo:  opts.withUserInfoClient,
		validator: opts.withValidator,
		client:    client,
		logger:    c.Logger,
		now:       time.Now,
	}
	if f.metadata == nil {
		if f.metadata, err = NewDiscoveryMetadata(c.Issuer, client); err != nil {
			return nil, fmt.Errorf("%s: unable to create metadata source: %w", op, err)
		}
	}
	if f.validator == nil {
		f.validator = NewKeySetValidator(client)
	}
	if f.userInfo == nil {
		f.userInfo = NewHTTPUserInfoClient(client)
	}
	if f.logger == nil {
		f.logger = hclog.NewNullLogger()
	}
	if opts.withNowFunc != nil {
		f.now = opts.withNowFunc
	}
	return f, nil
}

// AuthURL generates the URL that kicks off the authorization request for a
// Request, against the provider's authorization endpoint. The response type
// follows the configured style: "code" for the authorization code flow,
// "code id_token" (delivered via form post) for the hybrid flow. The
// request's PKCE challenge and nonce are always included.
func (f *Flow) AuthURL(ctx context.Context, oidcRequest *Request) (string, error) {
	const op = "Flow.AuthURL"
	if oidcRequest == nil {
		return "", fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	md, err := f.metadata.ProviderMetadata(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: unable to get provider metadata: %w", op, err)
	}

	// "openid" is required for oidc flows and always requested first.
	scopes := append([]string{"openid"}, f.config.Scopes...)
	scopes = append(scopes, oidcRequest.Scopes()...)
	scopes = strutils.RemoveDuplicatesStable(scopes, false)

	v := oidcRequest.PKCEVerifier()
	query := url.Values{}
	query.Set("client_id", f.config.ClientID)
	query.Set("redirect_uri", oidcRequest.RedirectURL())
	query.Set("scope", strings.Join(scopes, " "))
	query.Set("state", oidcRequest.State())
	query.Set("nonce", oidcRequest.Nonce())
	query.Set("code_challenge", v.Challenge())
	query.Set("code_challenge_method", string(v.Method()))
	switch f.config.Style {
	case HybridFlow:
		query.Set("response_type", "code id_token")
		query.Set("response_mode", "form_post")
	default:
		query.Set("response_type", "code")
	}
	if locales := oidcRequest.UILocales(); len(locales) > 0 {
		tags := make([]string, 0, len(locales))
		for _, l := range locales {
			tags = append(tags, l.String())
		}
		query.Set("ui_locales", strings.Join(tags, " "))
	}
	return fmt.Sprintf("%s?%s", md.AuthorizationEndpoint, query.Encode()), nil
}

// Validate decides whether a raw authorization response authenticates the
// user who initiated oidcRequest. It is fail-fast and fail-closed: every
// check short-circuits to a failed LoginResult, and no check is ever skipped
// on the success path.
//
// The raw response may be a full redirect URL, a query string, or a
// fragment. The request is consumed whatever the outcome: validating a
// second response against the same Request always fails.
func (f *Flow) Validate(ctx context.Context, rawResponse string, oidcRequest *Request) *LoginResult {
	const op = "Flow.Validate"
	if oidcRequest == nil {
		return failedLogin(fmt.Errorf("request is missing: %w", ErrNilParameter))
	}
	if !oidcRequest.consume() {
		return failedLogin(ErrConsumedRequest)
	}
	if oidcRequest.IsExpired() {
		return failedLogin(ErrExpiredRequest)
	}

	resp, err := ParseAuthResponse(rawResponse)
	if err != nil {
		return failedLogin(err)
	}
	if resp.Error != "" {
		// the authorization server itself reported an error; surface it
		// verbatim
		f.logger.Debug("authorization response reported an error", "error", resp.Error)
		return &LoginResult{Error: resp.ErrorText()}
	}
	if resp.Code == "" {
		return failedLogin(ErrMissingCode)
	}
	if resp.State == "" {
		return failedLogin(ErrMissingState)
	}
	if resp.State != oidcRequest.State() {
		return failedLogin(ErrInvalidState)
	}

	md, err := f.metadata.ProviderMetadata(ctx)
	if err != nil {
		return failedLogin(fmt.Errorf("unable to get provider metadata: %w", err))
	}
	tokens, err := f.tokenClient(md)
	if err != nil {
		return failedLogin(fmt.Errorf("unable to create token client: %w", err))
	}

	validated, err := f.style.validate(ctx, f, md, tokens, resp, oidcRequest)
	if err != nil {
		return failedLogin(err)
	}

	identity := validated.identity
	var userInfoClaims []Claim
	if f.config.UseUserInfo && md.UserInfoEndpoint != "" && validated.token.AccessToken != "" {
		if userInfoClaims, err = f.userInfo.Fetch(ctx, md.UserInfoEndpoint, validated.token.AccessToken); err != nil {
			return failedLogin(fmt.Errorf("unable to fetch user info claims: %w", err))
		}
		f.logger.Debug("fetched user info claims", "count", len(userInfoClaims))
	}
	// always a fresh union, so the pre-merge identity is never aliased
	identity = mergeClaims(identity, userInfoClaims)
	if len(f.config.ExcludedClaims) > 0 {
		identity = filterClaims(identity, f.config.ExcludedClaims)
	}
	f.logger.Debug("assembled final identity", "subject", identity.Subject(), "claims", identity.Claims)

	now := f.now()
	result := &LoginResult{
		Identity:     identity,
		AccessToken:  validated.token.AccessToken,
		IdToken:      validated.idToken,
		RefreshToken: validated.token.RefreshToken,
		AuthTime:     now,
	}
	if validated.token.ExpiresIn > 0 {
		result.ExpiresAt = now.Add(time.Duration(validated.token.ExpiresIn) * time.Second)
	}
	if validated.token.RefreshToken != "" {
		refresher, err := NewRefreshTokenHandler(tokens, validated.token.RefreshToken, validated.token.AccessToken)
		if err != nil {
			return failedLogin(fmt.Errorf("unable to create refresh token handler: %w", err))
		}
		result.Refresher = refresher
	}
	return result
}

// UserInfo gets the user info claims from the provider for an access token.
func (f *Flow) UserInfo(ctx context.Context, accessToken AccessToken) ([]Claim, error) {
	const op = "Flow.UserInfo"
	md, err := f.metadata.ProviderMetadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to get provider metadata: %w", op, err)
	}
	claims, err := f.userInfo.Fetch(ctx, md.UserInfoEndpoint, accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return claims, nil
}

// Refresh redeems a refresh_token grant at the provider's token endpoint.
// Callers holding a LoginResult should prefer its Refresher, which also
// tracks token rotation.
func (f *Flow) Refresh(ctx context.Context, refreshToken RefreshToken) (*TokenResponse, error) {
	const op = "Flow.Refresh"
	md, err := f.metadata.ProviderMetadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to get provider metadata: %w", op, err)
	}
	tokens, err := f.tokenClient(md)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	tr, err := tokens.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if tr.IsError() {
		return nil, fmt.Errorf("%s: %s: %w", op, tr.ErrorText(), ErrTokenEndpoint)
	}
	return tr, nil
}

// tokenClient returns the injected TokenClient or a default bound to the
// metadata snapshot's token endpoint.
func (f *Flow) tokenClient(md ProviderMetadata) (TokenClient, error) {
	if f.tokens != nil {
		return f.tokens, nil
	}
	return NewHTTPTokenClient(md.TokenEndpoint, f.config.ClientID, f.config.ClientSecret, f.client)
}

// validateIDToken invokes the injected validator for signature/structure
// verification, then enforces the two bindings the validator is not
// responsible for: the audience claim must equal the configured client id
// and the issuer claim must equal the discovery document's issuer. Both are
// exact string comparisons; an absent claim reads as "" and fails against
// any configured value.
func (f *Flow) validateIDToken(ctx context.Context, t IdToken, md ProviderMetadata) (*Identity, error) {
	identity, err := f.validator.Validate(ctx, t, f.config.ClientID, md)
	if err != nil {
		return nil, fmt.Errorf("id_token failed verification: %w", err)
	}
	if identity.Value("aud") != f.config.ClientID {
		return nil, ErrInvalidAudience
	}
	if identity.Value("iss") != md.Issuer {
		return nil, ErrInvalidIssuer
	}
	f.logger.Debug("validated id_token", "subject", identity.Subject(), "claims", identity.Claims)
	return identity, nil
}

// redeem exchanges the authorization code, folding endpoint rejections into
// the login error.
func (f *Flow) redeem(ctx context.Context, tokens TokenClient, resp *AuthResponse, oidcRequest *Request) (*TokenResponse, error) {
	tr, err := tokens.Exchange(ctx, resp.Code, oidcRequest.RedirectURL(), oidcRequest.PKCEVerifier().Verifier())
	if err != nil {
		return nil, fmt.Errorf("unable to exchange authorization code: %w", err)
	}
	if tr.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrTokenEndpoint, tr.ErrorText())
	}
	return tr, nil
}

// flowStyle is the closed set of flow validation strategies. Exactly
// codeFlow and hybridFlow implement it.
type flowStyle interface {
	validate(ctx context.Context, f *Flow, md ProviderMetadata, tokens TokenClient, resp *AuthResponse, oidcRequest *Request) (*validated, error)
}

// validated is a strategy's successful output: the redeemed token response,
// the authoritative validated identity, and the id_token the identity came
// from.
type validated struct {
	token    *TokenResponse
	identity *Identity
	idToken  IdToken
}

// codeFlow validates authorization code flow responses. The code is the only
// front-channel artifact, so the code is redeemed first and the id_token is
// validated the moment the back channel delivers it; the at_hash binding
// then proves the accompanying access token was issued with that token.
type codeFlow struct{}

func (codeFlow) validate(ctx context.Context, f *Flow, md ProviderMetadata, tokens TokenClient, resp *AuthResponse, oidcRequest *Request) (*validated, error) {
	tr, err := f.redeem(ctx, tokens, resp, oidcRequest)
	if err != nil {
		return nil, err
	}
	if tr.IdToken == "" {
		return nil, ErrMissingIdToken
	}
	identity, err := f.validateIDToken(ctx, tr.IdToken, md)
	if err != nil {
		return nil, err
	}
	if !verifyTokenHash(string(tr.AccessToken), identity.Value("at_hash")) {
		return nil, ErrInvalidAccessTokenHash
	}
	return &validated{token: tr, identity: identity, idToken: tr.IdToken}, nil
}

// hybridFlow validates hybrid flow responses. The id_token arrives
// unauthenticated over the front channel, so it is validated first and every
// later artifact has to be proven against it: the nonce ties the token to
// this attempt and the c_hash ties the code to the token. Only then is the
// code trustworthy enough to redeem.
type hybridFlow struct{}

func (hybridFlow) validate(ctx context.Context, f *Flow, md ProviderMetadata, tokens TokenClient, resp *AuthResponse, oidcRequest *Request) (*validated, error) {
	if resp.IdToken == "" {
		return nil, ErrMissingIdToken
	}
	identity, err := f.validateIDToken(ctx, resp.IdToken, md)
	if err != nil {
		return nil, err
	}
	if !verifyNonce(oidcRequest.Nonce(), identity.Value("nonce")) {
		return nil, ErrInvalidNonce
	}
	if !verifyTokenHash(resp.Code, identity.Value("c_hash")) {
		return nil, ErrInvalidCodeHash
	}
	tr, err := f.redeem(ctx, tokens, resp, oidcRequest)
	if err != nil {
		return nil, err
	}
	// the validated front-channel id_token stays authoritative; the token
	// response's copy is not re-validated
	return &validated{token: tr, identity: identity, idToken: resp.IdToken}, nil
}

// flowOptions is the set of available options for NewFlow
type flowOptions struct {
	withMetadataSource MetadataSource
	withTokenClient    TokenClient
	withUserInfoClient UserInfoClient
	withValidator      IDTokenValidator
	withNowFunc        func() time.Time
}

// flowDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func flowDefaults() flowOptions {
	return flowOptions{}
}

// getFlowOpts gets the flow defaults and applies the opt overrides passed in
func getFlowOpts(opt ...Option) flowOptions {
	opts := flowDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithMetadataSource provides an optional MetadataSource, replacing the
// default discovery fetcher.
func WithMetadataSource(s MetadataSource) Option {
	return func(o interface{}) {
		if o, ok := o.(*flowOptions); ok {
			o.withMetadataSource = s
		}
	}
}

// WithTokenClient provides an optional TokenClient, replacing the default
// HTTP token endpoint client.
func WithTokenClient(c TokenClient) Option {
	return func(o interface{}) {
		if o, ok := o.(*flowOptions); ok {
			o.withTokenClient = c
		}
	}
}

// WithUserInfoClient provides an optional UserInfoClient, replacing the
// default HTTP user info client.
func WithUserInfoClient(c UserInfoClient) Option {
	return func(o interface{}) {
		if o, ok := o.(*flowOptions); ok {
			o.withUserInfoClient = c
		}
	}
}

// WithIDTokenValidator provides an optional IDTokenValidator, replacing the
// default JWKS-backed validator.
func WithIDTokenValidator(v IDTokenValidator) Option {
	return func(o interface{}) {
		if o, ok := o.(*flowOptions); ok {
			o.withValidator = v
		}
	}
}
