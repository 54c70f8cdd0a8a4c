// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// Token interface represents an OIDC id_token, as well as an Oauth2
// access_token (including the the access_token expiry).
type Token interface {
	// AccessToken returns the Token's access_token.
	AccessToken() AccessToken

	// IdToken returns the Token's id_token.  It is empty when the provider
	// didn't include an id_token in its token response.
	IdToken() IdToken

	// Expiry returns the expiration of the access_token.
	Expiry() time.Time

	// IsExpired will return true if the token's access token is expired or
	// empty.
	IsExpired() bool
}

// Tk satisfies the Token interface and represents an Oauth2 access_token
// and an OIDC id_token.
type Tk struct {
	idToken IdToken
	token   *oauth2.Token

	// nowFunc is an optional function that returns the current time
	nowFunc func() time.Time
}

// ensure that Tk implements the Token interface.
var _ Token = (*Tk)(nil)

// NewToken creates a new Token (*Tk).  The IdToken is optional, the
// oauth2.Token is required and must contain an access_token.
func NewToken(i IdToken, t *oauth2.Token, opt ...Option) (*Tk, error) {
	const op = "NewToken"
	if t == nil {
		return nil, fmt.Errorf("%s: oauth2 token is nil: %w", op, ErrNilParameter)
	}
	if t.AccessToken == "" {
		return nil, fmt.Errorf("%s: access_token is empty: %w", op, ErrMissingAccessToken)
	}
	opts := getTokenOpts(opt...)
	return &Tk{
		idToken: i,
		token:   t,
		nowFunc: opts.withNowFunc,
	}, nil
}

// AccessToken implements the Token.AccessToken() interface function
func (t *Tk) AccessToken() AccessToken { return AccessToken(t.token.AccessToken) }

// IdToken implements the Token.IdToken() interface function
func (t *Tk) IdToken() IdToken { return t.idToken }

// Expiry implements the Token.Expiry() interface function
func (t *Tk) Expiry() time.Time { return t.token.Expiry }

// tokenExpirySkew defines a time skew when checking a Token's expiration.
const tokenExpirySkew = 10 * time.Second

// IsExpired will return true if the token's access token is expired or empty.
// A token without an expiry never expires.
func (t *Tk) IsExpired() bool {
	if t.token.AccessToken == "" {
		return true
	}
	if t.token.Expiry.IsZero() {
		return false
	}
	return t.token.Expiry.Round(0).Before(t.now().Add(tokenExpirySkew))
}

// now returns the current time using the optional nowFunc.
func (t *Tk) now() time.Time {
	if t.nowFunc != nil {
		return t.nowFunc()
	}
	return time.Now() // fallback to this default
}

// tokenOptions is the set of available options for Token functions
type tokenOptions struct {
	withNowFunc func() time.Time
}

// tokenDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func tokenDefaults() tokenOptions {
	return tokenOptions{}
}

// getTokenOpts gets the token defaults and applies the opt overrides passed
// in
func getTokenOpts(opt ...Option) tokenOptions {
	opts := tokenDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithTokenNow provides an optional func for determining what the current
// time is when checking a Token's expiry.
func WithTokenNow(now func() time.Time) Option {
	return func(o interface{}) {
		if v, ok := o.(*tokenOptions); ok {
			v.withNowFunc = now
		}
	}
}

// AccessToken is an oauth access_token.
type AccessToken string

// RedactedAccessToken is the redacted string or json for an oauth access_token.
const RedactedAccessToken = "[REDACTED: access_token]"

// String will redact the token.
func (t AccessToken) String() string {
	return RedactedAccessToken
}

// MarshalJSON will redact the token.
func (t AccessToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedAccessToken)
}
