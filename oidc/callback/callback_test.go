package callback_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpkit/oidclogin/oidc"
	"github.com/rpkit/oidclogin/oidc/callback"
)

func testReadBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

// testSuccessFn writes the subject so tests can tell the success path ran.
func testSuccessFn(state string, result *oidc.LoginResult, w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "login successful: %s", result.Identity.Subject())
}

// testFailFn writes either the validation failure or the callback error.
func testFailFn(state string, result *oidc.LoginResult, e error, w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusUnauthorized)
	switch {
	case e != nil:
		_, _ = fmt.Fprintf(w, "callback error: %s", e.Error())
	case result != nil:
		_, _ = fmt.Fprintf(w, "login failed: %s", result.Error)
	}
}

// testLogin drives the provider's authorization endpoint as a browser would
// and returns the redirect location carrying the authorization response.
func testLogin(t *testing.T, p *oidc.TestProvider, c *oidc.Config, f *oidc.Flow, oidcRequest *oidc.Request) string {
	t.Helper()
	require := require.New(t)

	authURL, err := f.AuthURL(context.Background(), oidcRequest)
	require.NoError(err)

	client, err := c.HTTPClient()
	require.NoError(err)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err := client.Get(authURL)
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusFound, resp.StatusCode)
	loc := resp.Header.Get("Location")
	require.NotEmpty(loc)
	return loc
}

func TestAuthCode(t *testing.T) {
	ctx := context.Background()

	newFlow := func(t *testing.T) (*oidc.TestProvider, *oidc.Config, *oidc.Flow) {
		t.Helper()
		require := require.New(t)
		p := oidc.StartTestProvider(t)
		p.SetClientCreds("callback-client", "callback-secret")
		p.SetExpectedAuthCode("callback-code")
		c, err := oidc.NewConfig(p.Addr(), "callback-client", "callback-secret", oidc.CodeFlow, "https://example.com/callback",
			oidc.WithProviderCA(p.CACert()))
		require.NoError(err)
		f, err := oidc.NewFlow(c)
		require.NoError(err)
		return p, c, f
	}

	t.Run("success", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p, c, f := newFlow(t)
		oidcRequest, err := oidc.NewRequest(1*time.Minute, "https://example.com/callback")
		require.NoError(err)

		handler, err := callback.AuthCode(ctx, f, &callback.SingleRequestReader{Request: oidcRequest}, testSuccessFn, testFailFn)
		require.NoError(err)
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)

		loc := testLogin(t, p, c, f, oidcRequest)
		u, err := url.Parse(loc)
		require.NoError(err)

		resp, err := http.Get(srv.URL + "?" + u.RawQuery)
		require.NoError(err)
		defer resp.Body.Close()
		body := testReadBody(t, resp)
		assert.Equal(http.StatusOK, resp.StatusCode)
		assert.Equal("login successful: alice@example.com", body)
	})
	t.Run("unknown-state", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		_, _, f := newFlow(t)
		oidcRequest, err := oidc.NewRequest(1*time.Minute, "https://example.com/callback")
		require.NoError(err)

		handler, err := callback.AuthCode(ctx, f, &callback.SingleRequestReader{Request: oidcRequest}, testSuccessFn, testFailFn)
		require.NoError(err)
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)

		resp, err := http.Get(srv.URL + "?state=st_unknown&code=callback-code")
		require.NoError(err)
		defer resp.Body.Close()
		body := testReadBody(t, resp)
		assert.Equal(http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(body, "callback error")
		assert.Contains(body, oidc.ErrNotFound.Error())
	})
	t.Run("validation-failure", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p, c, f := newFlow(t)
		p.SetCustomAudience("someone-else")
		oidcRequest, err := oidc.NewRequest(1*time.Minute, "https://example.com/callback")
		require.NoError(err)

		handler, err := callback.AuthCode(ctx, f, &callback.SingleRequestReader{Request: oidcRequest}, testSuccessFn, testFailFn)
		require.NoError(err)
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)

		loc := testLogin(t, p, c, f, oidcRequest)
		u, err := url.Parse(loc)
		require.NoError(err)

		resp, err := http.Get(srv.URL + "?" + u.RawQuery)
		require.NoError(err)
		defer resp.Body.Close()
		body := testReadBody(t, resp)
		assert.Equal(http.StatusUnauthorized, resp.StatusCode)
		assert.Equal("login failed: invalid audience", body)
	})
	t.Run("nil-parameters", func(t *testing.T) {
		require := require.New(t)
		_, _, f := newFlow(t)
		oidcRequest, err := oidc.NewRequest(1*time.Minute, "https://example.com/callback")
		require.NoError(err)
		rr := &callback.SingleRequestReader{Request: oidcRequest}

		_, err = callback.AuthCode(ctx, nil, rr, testSuccessFn, testFailFn)
		require.ErrorIs(err, oidc.ErrNilParameter)
		_, err = callback.AuthCode(ctx, f, nil, testSuccessFn, testFailFn)
		require.ErrorIs(err, oidc.ErrNilParameter)
		_, err = callback.AuthCode(ctx, f, rr, nil, testFailFn)
		require.ErrorIs(err, oidc.ErrNilParameter)
		_, err = callback.AuthCode(ctx, f, rr, testSuccessFn, nil)
		require.ErrorIs(err, oidc.ErrNilParameter)
	})
}

func TestHybrid(t *testing.T) {
	ctx := context.Background()

	newFlow := func(t *testing.T) (*oidc.TestProvider, *oidc.Config, *oidc.Flow) {
		t.Helper()
		require := require.New(t)
		p := oidc.StartTestProvider(t)
		p.SetStyle(oidc.HybridFlow)
		p.SetClientCreds("callback-client", "callback-secret")
		p.SetExpectedAuthCode("callback-code")
		c, err := oidc.NewConfig(p.Addr(), "callback-client", "callback-secret", oidc.HybridFlow, "https://example.com/callback",
			oidc.WithProviderCA(p.CACert()))
		require.NoError(err)
		f, err := oidc.NewFlow(c)
		require.NoError(err)
		return p, c, f
	}

	t.Run("success", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		p, c, f := newFlow(t)
		oidcRequest, err := oidc.NewRequest(1*time.Minute, "https://example.com/callback")
		require.NoError(err)
		p.SetExpectedAuthNonce(oidcRequest.Nonce())

		handler, err := callback.Hybrid(ctx, f, &callback.SingleRequestReader{Request: oidcRequest}, testSuccessFn, testFailFn)
		require.NoError(err)
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)

		// the provider redirects with the response in the fragment; a real
		// relying party receives the same parameters as a form post
		loc := testLogin(t, p, c, f, oidcRequest)
		_, fragment, found := strings.Cut(loc, "#")
		require.True(found)
		form, err := url.ParseQuery(fragment)
		require.NoError(err)

		resp, err := http.PostForm(srv.URL, form)
		require.NoError(err)
		defer resp.Body.Close()
		body := testReadBody(t, resp)
		assert.Equal(http.StatusOK, resp.StatusCode)
		assert.Equal("login successful: alice@example.com", body)
	})
	t.Run("nil-parameters", func(t *testing.T) {
		require := require.New(t)
		_, _, f := newFlow(t)
		oidcRequest, err := oidc.NewRequest(1*time.Minute, "https://example.com/callback")
		require.NoError(err)
		rr := &callback.SingleRequestReader{Request: oidcRequest}

		_, err = callback.Hybrid(ctx, nil, rr, testSuccessFn, testFailFn)
		require.ErrorIs(err, oidc.ErrNilParameter)
		_, err = callback.Hybrid(ctx, f, nil, testSuccessFn, testFailFn)
		require.ErrorIs(err, oidc.ErrNilParameter)
		_, err = callback.Hybrid(ctx, f, rr, nil, testFailFn)
		require.ErrorIs(err, oidc.ErrNilParameter)
		_, err = callback.Hybrid(ctx, f, rr, testSuccessFn, nil)
		require.ErrorIs(err, oidc.ErrNilParameter)
	})
}

func TestSingleRequestReader_Read(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)

	oidcRequest, err := oidc.NewRequest(1*time.Minute, "https://example.com/callback")
	require.NoError(err)
	rr := &callback.SingleRequestReader{Request: oidcRequest}

	got, err := rr.Read(ctx, oidcRequest.State())
	require.NoError(err)
	assert.Same(oidcRequest, got)

	_, err = rr.Read(ctx, "st_other")
	require.Error(err)
	assert.ErrorIs(err, oidc.ErrNotFound)
}
