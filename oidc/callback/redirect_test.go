// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/capsession/authn"
	"github.com/hashicorp/capsession/oidc"
	"github.com/hashicorp/capsession/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedirect(t *testing.T) {
	t.Parallel()

	t.Run("nil-params", func(t *testing.T) {
		assert := assert.New(t)
		env := testNewEnv(t, "https://app.example.com")
		h, err := Redirect(nil, env.codec)
		assert.ErrorIs(err, oidc.ErrNilParameter)
		assert.Nil(h)
		h, err = Redirect(env.app, nil)
		assert.ErrorIs(err, oidc.ErrNilParameter)
		assert.Nil(h)
	})

	tests := []struct {
		name           string
		params         func(env *testEnv) map[string]string
		setup          func(t *testing.T, env *testEnv)
		destination    string
		wantStatus     int
		wantLocation   string
		wantSession    bool
		wantBody       string
		wantTokenCalls int
	}{
		{
			name:           "valid-with-destination",
			destination:    "/dashboard",
			wantStatus:     http.StatusFound,
			wantLocation:   "/dashboard",
			wantSession:    true,
			wantTokenCalls: 1,
		},
		{
			name:           "valid-with-query-destination",
			destination:    "/dashboard?tab=2",
			wantStatus:     http.StatusFound,
			wantLocation:   "/dashboard?tab=2",
			wantSession:    true,
			wantTokenCalls: 1,
		},
		{
			name:           "valid-no-destination",
			wantStatus:     http.StatusFound,
			wantLocation:   "/",
			wantSession:    true,
			wantTokenCalls: 1,
		},
		{
			name:           "off-site-destination",
			destination:    "//evil.example.com/phish",
			wantStatus:     http.StatusFound,
			wantLocation:   "/",
			wantSession:    true,
			wantTokenCalls: 1,
		},
		{
			name:           "absolute-url-destination",
			destination:    "https://evil.example.com/phish",
			wantStatus:     http.StatusFound,
			wantLocation:   "/",
			wantSession:    true,
			wantTokenCalls: 1,
		},
		{
			name: "no-id-token",
			setup: func(t *testing.T, env *testEnv) {
				env.tp.SetOmitIDTokens(true)
			},
			destination:    "/dashboard",
			wantStatus:     http.StatusFound,
			wantLocation:   "/",
			wantTokenCalls: 1,
		},
		{
			name: "state-mismatch",
			params: func(env *testEnv) map[string]string {
				return map[string]string{"code": testAuthCode, "state": "st_forged"}
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   "invalid state",
		},
		{
			name: "provider-error",
			params: func(env *testEnv) map[string]string {
				return map[string]string{
					"state":             env.app.CSRFToken(),
					"error":             "access_denied",
					"error_description": "user said no",
				}
			},
			wantStatus: http.StatusUnauthorized,
			wantBody:   "authentication failed: access_denied: user said no",
		},
		{
			name: "missing-code",
			params: func(env *testEnv) map[string]string {
				return map[string]string{"state": env.app.CSRFToken()}
			},
			wantStatus: http.StatusBadRequest,
			wantBody:   ErrMissingParameter.Error(),
		},
		{
			name: "missing-state",
			params: func(env *testEnv) map[string]string {
				return map[string]string{"code": testAuthCode}
			},
			wantStatus: http.StatusBadRequest,
			wantBody:   ErrMissingParameter.Error(),
		},
		{
			name: "unknown-code",
			params: func(env *testEnv) map[string]string {
				return map[string]string{"code": "not-the-code", "state": env.app.CSRFToken()}
			},
			wantStatus:     http.StatusInternalServerError,
			wantBody:       "unable to exchange authorization code",
			wantTokenCalls: 1,
		},
		{
			name: "id-token-wrong-nonce",
			setup: func(t *testing.T, env *testEnv) {
				env.tp.SetExpectedAuthNonce("n_someone-elses")
			},
			wantStatus:     http.StatusInternalServerError,
			wantBody:       "unable to exchange authorization code",
			wantTokenCalls: 1,
		},
		{
			name: "session-too-large",
			setup: func(t *testing.T, env *testEnv) {
				env.tp.SetCustomClaims(map[string]interface{}{"padding": strings.Repeat("x", 4096)})
			},
			wantStatus:     http.StatusInternalServerError,
			wantBody:       ErrSessionFailed.Error(),
			wantTokenCalls: 1,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			env := testNewEnv(t, "https://app.example.com")
			if tt.setup != nil {
				tt.setup(t, env)
			}
			params := map[string]string{
				"code":          testAuthCode,
				"state":         env.app.CSRFToken(),
				"session_state": "opaque",
			}
			if tt.params != nil {
				params = tt.params(env)
			}
			var cookies []*http.Cookie
			if tt.destination != "" {
				cookies = append(cookies, env.destinationCookie(t, tt.destination))
			}

			h, err := Redirect(env.app, env.codec)
			require.NoError(err)
			rec := httptest.NewRecorder()
			h(rec, callbackRequest(params, cookies...))

			assert.Equal(tt.wantStatus, rec.Code)
			assert.Equal(tt.wantTokenCalls, env.tp.TokenRequests())
			if tt.wantLocation != "" {
				assert.Equal(tt.wantLocation, rec.Header().Get("Location"))
			}
			if tt.wantBody != "" {
				assert.Equal(tt.wantBody, strings.TrimSpace(rec.Body.String()))
			}

			set := findCookie(rec.Result().Cookies(), session.CookieName)
			if !tt.wantSession {
				assert.Nil(set)
				return
			}
			require.NotNil(set)
			assert.True(set.HttpOnly)
			assert.True(set.Secure)
			assert.Equal("/", set.Path)
			assert.Equal(http.SameSiteLaxMode, set.SameSite)
			assert.Zero(set.MaxAge)

			v, err := env.codec.Decode(session.CookieName, set.Value)
			require.NoError(err)
			s, err := session.Decode(v)
			require.NoError(err)
			assert.Equal(oidc.AccessToken("access_"+testAuthCode), s.AccessToken)
			assert.NotContains(rec.Body.String(), string(s.IdToken))

			if tt.destination != "" {
				dest := findCookie(rec.Result().Cookies(), authn.RedirectDestinationCookieName)
				require.NotNil(dest)
				assert.Equal(-1, dest.MaxAge)
			}
		})
	}
}

func TestRedirect_codeReused(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	env := testNewEnv(t, "https://app.example.com")
	h, err := Redirect(env.app, env.codec)
	require.NoError(err)
	params := map[string]string{"code": testAuthCode, "state": env.app.CSRFToken()}

	first := httptest.NewRecorder()
	h(first, callbackRequest(params))
	assert.Equal(http.StatusFound, first.Code)

	second := httptest.NewRecorder()
	h(second, callbackRequest(params))
	assert.Equal(http.StatusInternalServerError, second.Code)
	assert.Nil(findCookie(second.Result().Cookies(), session.CookieName))

	// one token request per callback, nothing retried
	assert.Equal(2, env.tp.TokenRequests())
}

func TestRedirect_withErrorResponse(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	env := testNewEnv(t, "https://app.example.com")

	var gotState string
	var gotErr error
	h, err := Redirect(env.app, env.codec, WithErrorResponse(func(state string, respErr *AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request) {
		gotState, gotErr = state, e
		w.WriteHeader(http.StatusTeapot)
	}))
	require.NoError(err)
	rec := httptest.NewRecorder()
	h(rec, callbackRequest(map[string]string{"code": testAuthCode, "state": "st_forged"}))

	assert.Equal(http.StatusTeapot, rec.Code)
	assert.Equal("st_forged", gotState)
	assert.True(errors.Is(gotErr, ErrInvalidState))
	assert.Equal(0, env.tp.TokenRequests())
}

func TestGotoAuth(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	env := testNewEnv(t, "https://app.example.com")

	_, err := GotoAuth(nil)
	assert.ErrorIs(err, oidc.ErrNilParameter)

	h, err := GotoAuth(env.app)
	require.NoError(err)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, oidc.GotoAuthPath, nil))
		assert.Equal(http.StatusFound, rec.Code)
		assert.Equal(env.app.AuthURL(), rec.Header().Get("Location"))
	}
}

func TestAttach(t *testing.T) {
	t.Parallel()
	env := testNewEnv(t, "https://app.example.com")
	tests := []struct {
		name   string
		router interface {
			Router
			http.Handler
		}
	}{
		{name: "serve-mux", router: http.NewServeMux()},
		{name: "chi", router: chi.NewRouter()},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			require.NoError(Attach(tt.router, env.app, env.codec))

			rec := httptest.NewRecorder()
			tt.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, oidc.GotoAuthPath, nil))
			assert.Equal(http.StatusFound, rec.Code)
			assert.Equal(env.app.AuthURL(), rec.Header().Get("Location"))

			rec = httptest.NewRecorder()
			tt.router.ServeHTTP(rec, callbackRequest(map[string]string{"state": env.app.CSRFToken()}))
			assert.Equal(http.StatusBadRequest, rec.Code)
		})
	}
	t.Run("nil", func(t *testing.T) {
		assert := assert.New(t)
		assert.ErrorIs(Attach(nil, env.app, env.codec), oidc.ErrNilParameter)
		assert.ErrorIs(Attach(http.NewServeMux(), nil, env.codec), oidc.ErrNilParameter)
	})
}

func Test_isLocalPath(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	for _, p := range []string{"/", "/dashboard", "/a/b?c=d#e"} {
		assert.Truef(isLocalPath(p), "%q", p)
	}
	for _, p := range []string{"", "dashboard", "//evil.example.com", "/\\evil.example.com", "https://evil.example.com", "javascript:alert(1)"} {
		assert.Falsef(isLocalPath(p), "%q", p)
	}
}

// TestRoundTrip follows the browser from an unauthenticated request through
// the provider and back to the page it first asked for.
func TestRoundTrip(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	env := testNewEnv(t, srv.URL)
	// the nonce comes from the authorize request
	env.tp.SetExpectedAuthNonce("")

	require.NoError(Attach(mux, env.app, env.codec))
	mux.Handle("/dashboard", authn.Require(env.app, env.codec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := authn.UserFromContext(r.Context())
		if !ok {
			http.Error(w, "no user", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("hello " + u.Subject))
	})))

	jar, err := cookiejar.New(nil)
	require.NoError(err)
	client := *env.tp.HTTPClient()
	client.Jar = jar

	get := func(path string) (*http.Response, string) {
		resp, err := client.Get(srv.URL + path)
		require.NoError(err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(err)
		return resp, string(body)
	}

	resp, body := get("/dashboard")
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("/dashboard", resp.Request.URL.Path)
	assert.Equal("hello alice@example.com", body)
	assert.Equal(1, env.tp.TokenRequests())

	// the session cookie is enough from now on
	env.tp.Stop()
	resp, body = get("/dashboard")
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("hello alice@example.com", body)
	assert.Equal(1, env.tp.TokenRequests())
}
