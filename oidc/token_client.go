package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// TokenClient exchanges grants at the provider's token endpoint.
type TokenClient interface {
	// Exchange redeems an authorization code, proving the PKCE code
	// verifier. A *TokenResponse with its Error field set reports the
	// endpoint's rejection; a non-nil error reports a transport failure.
	Exchange(ctx context.Context, code string, redirectURL string, codeVerifier string) (*TokenResponse, error)

	// Refresh redeems a refresh_token grant.
	Refresh(ctx context.Context, refreshToken RefreshToken) (*TokenResponse, error)
}

// HTTPTokenClient is the default TokenClient. It speaks the standard OAuth2
// token endpoint contract over HTTP.
type HTTPTokenClient struct {
	clientID     string
	clientSecret ClientSecret
	endpoint     string
	client       *http.Client
}

// NewHTTPTokenClient creates an HTTPTokenClient bound to a token endpoint
// and client credentials. The http client is used for all requests; pass nil
// to use http.DefaultClient.
func NewHTTPTokenClient(tokenEndpoint string, clientID string, clientSecret ClientSecret, client *http.Client) (*HTTPTokenClient, error) {
	const op = "oidc.NewHTTPTokenClient"
	if tokenEndpoint == "" {
		return nil, fmt.Errorf("%s: token endpoint is empty: %w", op, ErrInvalidParameter)
	}
	if clientID == "" {
		return nil, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTokenClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		endpoint:     tokenEndpoint,
		client:       client,
	}, nil
}

// Exchange implements TokenClient.
func (c *HTTPTokenClient) Exchange(ctx context.Context, code string, redirectURL string, codeVerifier string) (*TokenResponse, error) {
	const op = "HTTPTokenClient.Exchange"
	if code == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	}
	oauth2Config := c.oauth2Config(redirectURL)
	opts := []oauth2.AuthCodeOption{}
	if codeVerifier != "" {
		opts = append(opts, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
	}
	oauth2Token, err := oauth2Config.Exchange(HTTPClientContext(ctx, c.client), code, opts...)
	if err != nil {
		if tr, ok := retrieveErrorResponse(err); ok {
			return tr, nil
		}
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w", op, err)
	}
	return tokenResponseFromOauth2(oauth2Token), nil
}

// Refresh implements TokenClient.
func (c *HTTPTokenClient) Refresh(ctx context.Context, refreshToken RefreshToken) (*TokenResponse, error) {
	const op = "HTTPTokenClient.Refresh"
	if refreshToken == "" {
		return nil, fmt.Errorf("%s: refresh token is empty: %w", op, ErrInvalidParameter)
	}
	oauth2Config := c.oauth2Config("")
	src := oauth2Config.TokenSource(HTTPClientContext(ctx, c.client), &oauth2.Token{
		RefreshToken: string(refreshToken),
	})
	oauth2Token, err := src.Token()
	if err != nil {
		if tr, ok := retrieveErrorResponse(err); ok {
			return tr, nil
		}
		return nil, fmt.Errorf("%s: unable to refresh token with provider: %w", op, err)
	}
	return tokenResponseFromOauth2(oauth2Token), nil
}

func (c *HTTPTokenClient) oauth2Config(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: string(c.clientSecret),
		RedirectURL:  redirectURL,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.endpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// retrieveErrorResponse maps an oauth2 endpoint rejection into a
// TokenResponse carrying the endpoint's error code, so callers can
// distinguish "the endpoint said no" from "the endpoint was unreachable".
func retrieveErrorResponse(err error) (*TokenResponse, bool) {
	var rErr *oauth2.RetrieveError
	if !errors.As(err, &rErr) {
		return nil, false
	}
	tr := &TokenResponse{
		Error:            rErr.ErrorCode,
		ErrorDescription: rErr.ErrorDescription,
	}
	if tr.Error == "" {
		tr.Error = fmt.Sprintf("token endpoint returned status %d", rErr.Response.StatusCode)
	}
	return tr, true
}

func tokenResponseFromOauth2(t *oauth2.Token) *TokenResponse {
	tr := &TokenResponse{
		AccessToken:  AccessToken(t.AccessToken),
		RefreshToken: RefreshToken(t.RefreshToken),
		TokenType:    t.Type(),
	}
	if idToken, ok := t.Extra("id_token").(string); ok {
		tr.IdToken = IdToken(idToken)
	}
	if !t.Expiry.IsZero() {
		tr.ExpiresIn = int64(time.Until(t.Expiry).Round(time.Second).Seconds())
	}
	return tr
}
