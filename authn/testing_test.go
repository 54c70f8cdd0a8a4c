// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/capsession/cookie"
	"github.com/hashicorp/capsession/oidc"
	"github.com/hashicorp/capsession/session"
	"github.com/stretchr/testify/require"
)

const (
	testClientId     = "test-client-id"
	testClientSecret = "test-client-secret"
	testCookieSecret = "0123456789abcdef0123456789abcdef"
)

type testEnv struct {
	tp    *oidc.TestProvider
	app   *oidc.Application
	codec *cookie.Codec
}

func testNewEnv(t *testing.T) *testEnv {
	t.Helper()
	require := require.New(t)
	tp := oidc.StartTestProvider(t)
	tp.SetClientCreds(testClientId, testClientSecret)
	app, err := oidc.NewApplication(context.Background(), "https://app.example.com", tp.Addr(), testClientId, testClientSecret, oidc.WithProviderCA(tp.CACert()))
	require.NoError(err)
	t.Cleanup(app.Done)
	codec, err := cookie.NewCodec([]byte(testCookieSecret))
	require.NoError(err)
	return &testEnv{tp: tp, app: app, codec: codec}
}

// idToken signs a valid id_token for the env's Application, which fn may
// modify.
func (e *testEnv) idToken(t *testing.T, fn func(*jwt.Claims, map[string]interface{})) oidc.IdToken {
	t.Helper()
	_, priv, keyID := e.tp.SigningKeys()
	now := time.Now()
	claims := jwt.Claims{
		Issuer:    e.tp.Addr(),
		Subject:   "alice@example.com",
		Audience:  jwt.Audience{testClientId},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-1 * time.Minute)),
		Expiry:    jwt.NewNumericDate(now.Add(5 * time.Minute)),
	}
	private := map[string]interface{}{
		"nonce":              e.app.Nonce(),
		"preferred_username": "alice",
		"name":               "Alice Doe",
		"name#de":            "Alicia Doe",
	}
	if fn != nil {
		fn(&claims, private)
	}
	return oidc.IdToken(oidc.TestSignJWT(t, priv, claims, private, keyID))
}

// sessionValue encodes a session for the id_token.
func (e *testEnv) sessionValue(t *testing.T, idToken oidc.IdToken) string {
	t.Helper()
	v, err := session.Encode(&session.Cookie{AccessToken: "access", IdToken: idToken})
	require.NoError(t, err)
	return v
}

// sessionCookie returns the encrypted session cookie for the id_token.
func (e *testEnv) sessionCookie(t *testing.T, idToken oidc.IdToken) *http.Cookie {
	t.Helper()
	encoded, err := e.codec.Encode(session.CookieName, e.sessionValue(t, idToken))
	require.NoError(t, err)
	return &http.Cookie{Name: session.CookieName, Value: encoded}
}

// testJar is an in memory cookie.Jar which records writes.
type testJar struct {
	values  map[string]string
	getErr  map[string]error
	setErr  map[string]error
	sets    map[string]string
	deletes []string
}

var _ cookie.Jar = (*testJar)(nil)

func newTestJar() *testJar {
	return &testJar{
		values: map[string]string{},
		getErr: map[string]error{},
		setErr: map[string]error{},
		sets:   map[string]string{},
	}
}

func (j *testJar) Get(name string) (string, error) {
	if err, ok := j.getErr[name]; ok {
		return "", err
	}
	v, ok := j.values[name]
	if !ok {
		return "", cookie.ErrNotFound
	}
	return v, nil
}

func (j *testJar) Set(name, value string) error {
	if err, ok := j.setErr[name]; ok {
		return err
	}
	j.sets[name] = value
	j.values[name] = value
	return nil
}

func (j *testJar) Delete(name string) {
	j.deletes = append(j.deletes, name)
	delete(j.values, name)
	delete(j.getErr, name)
}

func (j *testJar) mutated() bool {
	return len(j.sets) > 0 || len(j.deletes) > 0
}
