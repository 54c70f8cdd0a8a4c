// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/hashicorp/capsession/authn"
	"github.com/hashicorp/capsession/cookie"
	"github.com/hashicorp/capsession/oidc"
	"github.com/stretchr/testify/require"
)

const (
	testClientId     = "test-client-id"
	testClientSecret = "test-client-secret"
	testCookieSecret = "0123456789abcdef0123456789abcdef"
	testAuthCode     = "valid-code"
)

type testEnv struct {
	tp    *oidc.TestProvider
	app   *oidc.Application
	codec *cookie.Codec
}

// testNewEnv creates an Application for baseURL backed by a TestProvider
// which issues testAuthCode for the Application's redirect URL and nonce.
func testNewEnv(t *testing.T, baseURL string) *testEnv {
	t.Helper()
	require := require.New(t)
	tp := oidc.StartTestProvider(t)
	tp.SetClientCreds(testClientId, testClientSecret)
	app, err := oidc.NewApplication(context.Background(), baseURL, tp.Addr(), testClientId, testClientSecret, oidc.WithProviderCA(tp.CACert()))
	require.NoError(err)
	t.Cleanup(app.Done)
	tp.SetAllowedRedirectURIs([]string{app.RedirectURL()})
	tp.SetExpectedAuthCode(testAuthCode)
	tp.SetExpectedAuthNonce(app.Nonce())
	codec, err := cookie.NewCodec([]byte(testCookieSecret))
	require.NoError(err)
	return &testEnv{tp: tp, app: app, codec: codec}
}

// callbackRequest returns a request for the redirect route with the query
// parameters.
func callbackRequest(params map[string]string, cookies ...*http.Cookie) *http.Request {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodGet, "https://app.example.com"+oidc.RedirectPath+"?"+q.Encode(), nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

// destinationCookie returns the encrypted redirect destination cookie.
func (e *testEnv) destinationCookie(t *testing.T, dest string) *http.Cookie {
	t.Helper()
	v, err := e.codec.Encode(authn.RedirectDestinationCookieName, dest)
	require.NoError(t, err)
	return &http.Cookie{Name: authn.RedirectDestinationCookieName, Value: v}
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
