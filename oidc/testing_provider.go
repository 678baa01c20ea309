package oidc

import (
	"bytes"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"

	"github.com/rpkit/oidclogin/oidc/internal/strutils"
)

// TestProvider is a local server that implements enough of an OIDC provider
// to exercise both flow styles end to end: discovery, authorization (code
// and hybrid responses with c_hash), single-use code redemption with PKCE
// and at_hash, refresh grants with token rotation, JWKS, and user info.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string

	jwks                *jose.JSONWebKeySet
	allowedRedirectURIs []string
	replySubject        string
	replyUserinfo       map[string]interface{}

	mu                    sync.Mutex
	style                 Style
	clientID              string
	clientSecret          string
	expectedAuthCode      string
	expectedAuthNonce     string
	expectedCodeChallenge string
	customClaims          map[string]interface{}
	customAudience        string
	customIssuer          string
	omitIDToken           bool
	omitHashes            bool
	withRefreshToken      bool
	disableUserInfo       bool
	redeemedCodes         map[string]bool
	currentRefreshToken   string
	tokenSequence         int

	ecdsaPublicKey  string
	ecdsaPrivateKey string

	t *testing.T
}

// StartTestProvider creates a disposable TestProvider serving the
// authorization code style by default; see SetStyle for hybrid responses.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	p := &TestProvider{
		t:     t,
		style: CodeFlow,
		allowedRedirectURIs: []string{
			"https://example.com/callback",
		},
		replySubject: "alice@example.com",
		replyUserinfo: map[string]interface{}{
			"color":       "red",
			"temperature": "76",
			"flavor":      "umami",
		},
		redeemedCodes: map[string]bool{},
	}
	p.ecdsaPublicKey, p.ecdsaPrivateKey = TestGenerateKeys(t)
	p.jwks = testJWKS(t, p.ecdsaPublicKey)

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	cert := p.httpServer.Certificate()

	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	require.NoError(err)
	p.caCert = buf.String()

	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the current base URL for the test provider's running
// webserver.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the test provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// SigningKeys returns the test provider's pem-encoded keys used to sign
// JWTs.
func (p *TestProvider) SigningKeys() (pub, priv string) {
	return p.ecdsaPublicKey, p.ecdsaPrivateKey
}

// SetStyle selects which response style the /auth endpoint produces.
func (p *TestProvider) SetStyle(s Style) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.style = s
}

// SetClientCreds is for configuring the client information required for the
// OIDC workflows.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// SetExpectedAuthCode configures the auth code to return from /auth and the
// allowed auth code for /token. Each configured code is redeemable once.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
	delete(p.redeemedCodes, code)
}

// SetExpectedAuthNonce configures the nonce value embedded in issued
// id_tokens.
func (p *TestProvider) SetExpectedAuthNonce(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthNonce = nonce
}

// SetExpectedCodeChallenge makes /token require a code_verifier matching the
// given S256 challenge.
func (p *TestProvider) SetExpectedCodeChallenge(challenge string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedCodeChallenge = challenge
}

// SetAllowedRedirectURIs allows you to configure the allowed redirect URIs
// for the OIDC workflow. If not configured a sample of
// "https://example.com/callback" is used.
func (p *TestProvider) SetAllowedRedirectURIs(uris []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetCustomClaims lets you set claims to return in the JWTs issued by the
// OIDC workflow.
func (p *TestProvider) SetCustomClaims(customClaims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = customClaims
}

// SetCustomAudience configures what audience value to embed in issued JWTs.
func (p *TestProvider) SetCustomAudience(customAudience string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customAudience = customAudience
}

// SetCustomIssuer configures what issuer value to embed in issued JWTs.
func (p *TestProvider) SetCustomIssuer(customIssuer string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customIssuer = customIssuer
}

// OmitIDTokens forces an error state where the /token endpoint does not
// return id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// OmitHashes issues id_tokens without c_hash/at_hash claims, the way some
// providers do.
func (p *TestProvider) OmitHashes() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitHashes = true
}

// WithRefreshTokens makes /token issue a refresh token, rotated on every
// refresh grant.
func (p *TestProvider) WithRefreshTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.withRefreshToken = true
}

// DisableUserInfo makes the userinfo endpoint return 404 and omits it from
// the discovery config.
func (p *TestProvider) DisableUserInfo() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableUserInfo = true
}

// CurrentRefreshToken returns the refresh token most recently issued by the
// provider.
func (p *TestProvider) CurrentRefreshToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentRefreshToken
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorMessage string) {
	qv := req.URL.Query()

	redirectURI := qv.Get("redirect_uri") +
		"?state=" + url.QueryEscape(qv.Get("state")) +
		"&error=" + url.QueryEscape(errorCode)

	if errorMessage != "" {
		redirectURI += "&error_description=" + url.QueryEscape(errorMessage)
	}

	http.Redirect(w, req, redirectURI, http.StatusFound)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) error {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}

	w.WriteHeader(statusCode)
	return p.writeJSON(w, &body)
}

// issueIDToken signs an id_token binding the given artifacts. Lock must be
// held.
func (p *TestProvider) issueIDToken(accessToken string, code string) string {
	issuer := p.Addr()
	if p.customIssuer != "" {
		issuer = p.customIssuer
	}
	audience := p.clientID
	if p.customAudience != "" {
		audience = p.customAudience
	}

	stdClaims := jwt.Claims{
		Subject:   p.replySubject,
		Issuer:    issuer,
		NotBefore: jwt.NewNumericDate(time.Now().Add(-5 * time.Second)),
		Expiry:    jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		Audience:  jwt.Audience{audience},
	}
	privateClaims := map[string]interface{}{}
	for k, v := range p.customClaims {
		privateClaims[k] = v
	}
	if p.expectedAuthNonce != "" {
		privateClaims["nonce"] = p.expectedAuthNonce
	}
	if !p.omitHashes {
		if accessToken != "" {
			privateClaims["at_hash"] = tokenHash(accessToken)
		}
		if code != "" {
			privateClaims["c_hash"] = tokenHash(code)
		}
	}
	return TestSignJWT(p.t, p.ecdsaPrivateKey, stdClaims, privateClaims)
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.t.Helper()

	w.Header().Set("Content-Type", "application/json")

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		reply := struct {
			Issuer           string `json:"issuer"`
			AuthEndpoint     string `json:"authorization_endpoint"`
			TokenEndpoint    string `json:"token_endpoint"`
			JWKSURI          string `json:"jwks_uri"`
			UserinfoEndpoint string `json:"userinfo_endpoint,omitempty"`
		}{
			Issuer:           p.Addr(),
			AuthEndpoint:     p.Addr() + "/auth",
			TokenEndpoint:    p.Addr() + "/token",
			JWKSURI:          p.Addr() + "/certs",
			UserinfoEndpoint: p.Addr() + "/userinfo",
		}
		if p.disableUserInfo {
			reply.UserinfoEndpoint = ""
		}

		_ = p.writeJSON(w, &reply)

	case "/auth":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		qv := req.URL.Query()

		wantResponseType := "code"
		if p.style == HybridFlow {
			wantResponseType = "code id_token"
		}
		if qv.Get("response_type") != wantResponseType {
			p.writeAuthErrorResponse(w, req, "unsupported_response_type", "")
			return
		}

		if p.expectedAuthCode == "" {
			p.writeAuthErrorResponse(w, req, "access_denied", "")
			return
		}

		nonce := qv.Get("nonce")
		if p.expectedAuthNonce != "" && p.expectedAuthNonce != nonce {
			p.writeAuthErrorResponse(w, req, "access_denied", "")
			return
		}

		state := qv.Get("state")
		if state == "" {
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing state parameter")
			return
		}

		redirectURI := qv.Get("redirect_uri")
		if redirectURI == "" {
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing redirect_uri parameter")
			return
		}

		params := "state=" + url.QueryEscape(state) +
			"&code=" + url.QueryEscape(p.expectedAuthCode)
		switch p.style {
		case HybridFlow:
			// hybrid responses carry the id_token on the front channel
			idToken := p.issueIDToken("", p.expectedAuthCode)
			redirectURI += "#" + params + "&id_token=" + url.QueryEscape(idToken)
		default:
			redirectURI += "?" + params
		}

		http.Redirect(w, req, redirectURI, http.StatusFound)

	case "/certs":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		_ = p.writeJSON(w, p.jwks)

	case "/token":
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		switch req.FormValue("grant_type") {
		case "authorization_code":
			switch {
			case !strutils.StrListContains(p.allowedRedirectURIs, req.FormValue("redirect_uri")):
				_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not allowed")
				return
			case req.FormValue("code") != p.expectedAuthCode:
				_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_grant", "unexpected auth code")
				return
			case p.redeemedCodes[req.FormValue("code")]:
				// codes are single use
				_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_grant", "auth code already redeemed")
				return
			}
			if p.expectedCodeChallenge != "" {
				v := CodeVerifier{verifier: req.FormValue("code_verifier"), method: S256}
				challenge, err := CreateCodeChallenge(S256, v)
				if err != nil || challenge != p.expectedCodeChallenge {
					_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_grant", "code_verifier does not match challenge")
					return
				}
			}
			p.redeemedCodes[req.FormValue("code")] = true
			p.writeTokenReply(w, req.FormValue("code"))

		case "refresh_token":
			if !p.withRefreshToken || req.FormValue("refresh_token") != p.currentRefreshToken {
				_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_grant", "unexpected refresh token")
				return
			}
			p.writeTokenReply(w, "")

		default:
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "bad grant_type")
		}

	case "/userinfo":
		if p.disableUserInfo {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		_ = p.writeJSON(w, p.replyUserinfo)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// writeTokenReply issues a fresh access token (and id_token/refresh token as
// configured) for a code redemption or a refresh grant. Lock must be held.
func (p *TestProvider) writeTokenReply(w http.ResponseWriter, code string) {
	p.tokenSequence++
	accessToken := fmt.Sprintf("test-access-token-%d", p.tokenSequence)

	reply := struct {
		AccessToken  string `json:"access_token"`
		IDToken      string `json:"id_token,omitempty"`
		RefreshToken string `json:"refresh_token,omitempty"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
	}{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   3600,
	}
	if !p.omitIDToken {
		reply.IDToken = p.issueIDToken(accessToken, code)
	}
	if p.withRefreshToken {
		p.currentRefreshToken = fmt.Sprintf("test-refresh-token-%d", p.tokenSequence)
		reply.RefreshToken = p.currentRefreshToken
	}
	_ = p.writeJSON(w, &reply)
}

// testJWKS converts a pem-encoded public key into JWKS data suitable for a
// verification endpoint response
func testJWKS(t *testing.T, pubKey string) *jose.JSONWebKeySet {
	t.Helper()
	require := require.New(t)

	block, _ := pem.Decode([]byte(pubKey))
	require.NotNil(block)

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(err)

	return &jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       pub,
				Algorithm: string(jose.ES256),
				Use:       "sig",
			},
		},
	}
}
