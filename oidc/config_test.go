// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSecret_String(t *testing.T) {
	t.Parallel()
	t.Run("redacted", func(t *testing.T) {
		assert := assert.New(t)
		const want = RedactedClientSecret
		secret := ClientSecret("bob's phone number")
		assert.Equalf(want, secret.String(), "ClientSecret.String() = %v, want %v", secret.String(), want)
		assert.NotContains(fmt.Sprintf("%v", secret), "phone")
	})
}

func TestClientSecret_MarshalJSON(t *testing.T) {
	t.Parallel()
	t.Run("redacted", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		want := fmt.Sprintf(`"%s"`, RedactedClientSecret)
		secret := ClientSecret("bob's phone number")
		got, err := secret.MarshalJSON()
		require.NoError(err)
		assert.Equalf([]byte(want), got, "ClientSecret.MarshalJSON() = %s, want %s", got, want)
	})
}

func TestNewConfig(t *testing.T) {
	t.Parallel()
	testCaPem := TestGenerateCA(t, []string{"localhost"})

	type args struct {
		issuer       string
		clientId     string
		clientSecret ClientSecret
		supported    []Alg
		redirectUrl  string
		opt          []Option
	}
	tests := []struct {
		name      string
		args      args
		want      *Config
		wantIsErr error
	}{
		{
			name: "valid-with-all-valid-opts",
			args: args{
				issuer:       "http://YOUR_ISSUER/",
				clientId:     "YOUR_CLIENT_ID",
				clientSecret: "YOUR_CLIENT_SECRET",
				supported:    []Alg{RS512},
				redirectUrl:  "http://YOUR_REDIRECT_URL",
				opt: []Option{
					WithAudiences("YOUR_AUD1", "YOUR_AUD2"),
					WithScopes("email", "profile"),
					WithProviderCA(testCaPem),
				},
			},
			want: &Config{
				Issuer:               "http://YOUR_ISSUER/",
				ClientId:             "YOUR_CLIENT_ID",
				ClientSecret:         "YOUR_CLIENT_SECRET",
				SupportedSigningAlgs: []Alg{RS512},
				RedirectUrl:          "http://YOUR_REDIRECT_URL",
				Audiences:            []string{"YOUR_AUD1", "YOUR_AUD2"},
				Scopes:               []string{"email", "profile"},
				ProviderCA:           testCaPem,
			},
		},
		{
			name: "valid-no-opts",
			args: args{
				issuer:       "https://YOUR_ISSUER/",
				clientId:     "YOUR_CLIENT_ID",
				clientSecret: "YOUR_CLIENT_SECRET",
				supported:    []Alg{ES256},
				redirectUrl:  "https://YOUR_REDIRECT_URL/oidc_redirect",
			},
			want: &Config{
				Issuer:               "https://YOUR_ISSUER/",
				ClientId:             "YOUR_CLIENT_ID",
				ClientSecret:         "YOUR_CLIENT_SECRET",
				SupportedSigningAlgs: []Alg{ES256},
				RedirectUrl:          "https://YOUR_REDIRECT_URL/oidc_redirect",
			},
		},
		{
			name: "empty-issuer",
			args: args{
				clientId:     "YOUR_CLIENT_ID",
				clientSecret: "YOUR_CLIENT_SECRET",
				supported:    []Alg{RS512},
				redirectUrl:  "http://YOUR_REDIRECT_URL",
			},
			wantIsErr: ErrInvalidParameter,
		},
		{
			name: "issuer-not-a-url",
			args: args{
				issuer:       "YOUR_ISSUER",
				clientId:     "YOUR_CLIENT_ID",
				clientSecret: "YOUR_CLIENT_SECRET",
				supported:    []Alg{RS512},
				redirectUrl:  "http://YOUR_REDIRECT_URL",
			},
			wantIsErr: ErrInvalidParameter,
		},
		{
			name: "issuer-bad-scheme",
			args: args{
				issuer:       "ftp://YOUR_ISSUER",
				clientId:     "YOUR_CLIENT_ID",
				clientSecret: "YOUR_CLIENT_SECRET",
				supported:    []Alg{RS512},
				redirectUrl:  "http://YOUR_REDIRECT_URL",
			},
			wantIsErr: ErrInvalidParameter,
		},
		{
			name: "empty-client-id",
			args: args{
				issuer:       "http://YOUR_ISSUER/",
				clientSecret: "YOUR_CLIENT_SECRET",
				supported:    []Alg{RS512},
				redirectUrl:  "http://YOUR_REDIRECT_URL",
			},
			wantIsErr: ErrInvalidParameter,
		},
		{
			name: "empty-client-secret",
			args: args{
				issuer:      "http://YOUR_ISSUER/",
				clientId:    "YOUR_CLIENT_ID",
				supported:   []Alg{RS512},
				redirectUrl: "http://YOUR_REDIRECT_URL",
			},
			wantIsErr: ErrInvalidParameter,
		},
		{
			name: "empty-redirect",
			args: args{
				issuer:       "http://YOUR_ISSUER/",
				clientId:     "YOUR_CLIENT_ID",
				clientSecret: "YOUR_CLIENT_SECRET",
				supported:    []Alg{RS512},
			},
			wantIsErr: ErrInvalidParameter,
		},
		{
			name: "empty-algs",
			args: args{
				issuer:       "http://YOUR_ISSUER/",
				clientId:     "YOUR_CLIENT_ID",
				clientSecret: "YOUR_CLIENT_SECRET",
				redirectUrl:  "http://YOUR_REDIRECT_URL",
			},
			wantIsErr: ErrInvalidParameter,
		},
		{
			name: "unsupported-alg",
			args: args{
				issuer:       "http://YOUR_ISSUER/",
				clientId:     "YOUR_CLIENT_ID",
				clientSecret: "YOUR_CLIENT_SECRET",
				supported:    []Alg{"HS256"},
				redirectUrl:  "http://YOUR_REDIRECT_URL",
			},
			wantIsErr: ErrUnsupportedAlg,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := NewConfig(tt.args.issuer, tt.args.clientId, tt.args.clientSecret, tt.args.supported, tt.args.redirectUrl, tt.args.opt...)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.Nil(got)
				assert.ErrorIs(err, tt.wantIsErr)
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	t.Run("nil", func(t *testing.T) {
		var c *Config
		assert.ErrorIs(t, c.Validate(), ErrNilParameter)
	})
}

func TestConfig_Now(t *testing.T) {
	t.Parallel()
	t.Run("default", func(t *testing.T) {
		assert := assert.New(t)
		c := &Config{}
		assert.WithinDuration(time.Now(), c.Now(), time.Second)
	})
	t.Run("override", func(t *testing.T) {
		assert := assert.New(t)
		then := time.Now().Add(-1 * time.Hour)
		c := &Config{NowFunc: func() time.Time { return then }}
		assert.Equal(then, c.Now())
	})
}

func TestConfig_HttpClient(t *testing.T) {
	t.Parallel()
	t.Run("default", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := &Config{}
		client, err := c.HttpClient()
		require.NoError(err)
		assert.NotNil(client)
	})
	t.Run("with-ca", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := &Config{ProviderCA: TestGenerateCA(t, []string{"localhost"})}
		client, err := c.HttpClient()
		require.NoError(err)
		assert.NotNil(client)
	})
	t.Run("bad-ca", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c := &Config{ProviderCA: "not a pem"}
		client, err := c.HttpClient()
		require.Error(err)
		assert.Nil(client)
		assert.ErrorIs(err, ErrInvalidCACert)
	})
}
