// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/capsession/oidc/internal/strutils"
	"golang.org/x/oauth2"
)

// Provider provides integration with a provider using the typical
// 3-legged OIDC authorization code flow.
type Provider struct {
	config   *Config
	provider *oidc.Provider
	client   *http.Client

	// keySet holds the provider's signing keys, captured during discovery.
	keySet *oidc.StaticKeySet
}

// NewProvider creates and initializes a Provider for the OIDC authorization
// code flow.  Initializing the provider includes making http requests to the
// provider's issuer for discovery and to the provider's jwks_uri for its
// signing keys.  Both requests are bound by ctx.
//
// See Provider.Done() which should be called to release provider resources.
func NewProvider(ctx context.Context, c *Config) (*Provider, error) {
	const op = "NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}

	client, err := c.HttpClient()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}

	provider, err := oidc.NewProvider(HttpClientContext(ctx, client), c.Issuer) // makes http req to issuer for discovery
	if err != nil {
		// we don't know what's causing the problem, so we only classify it as
		// a discovery failure
		return nil, fmt.Errorf("%s: unable to create provider: %w: %w", op, ErrDiscoveryFailed, err)
	}

	var discovery struct {
		JWKSURL string `json:"jwks_uri"`
	}
	if err := provider.Claims(&discovery); err != nil {
		return nil, fmt.Errorf("%s: unable to read discovery document: %w: %w", op, ErrDiscoveryFailed, err)
	}
	keySet, err := fetchKeySet(ctx, client, discovery.JWKSURL)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to get provider signing keys: %w: %w", op, ErrDiscoveryFailed, err)
	}

	return &Provider{
		config:   c,
		provider: provider,
		client:   client,
		keySet:   keySet,
	}, nil
}

// Done with the provider's background resources and should be called for
// every Provider created.
func (p *Provider) Done() {
	if p == nil || p.client == nil {
		return
	}
	p.client.CloseIdleConnections()
}

// HTTPClient returns the http client used to communicate with the provider.
func (p *Provider) HTTPClient() *http.Client {
	return p.client
}

func (p *Provider) oauth2Config() oauth2.Config {
	// Add the "openid" scope, which is a required scope for oidc flows
	scopes := append([]string{oidc.ScopeOpenID}, p.config.Scopes...)
	endpoint := p.provider.Endpoint()
	if endpoint.AuthStyle == oauth2.AuthStyleAutoDetect {
		// auto detection retries a failed request, which would present the
		// same authorization code twice
		endpoint.AuthStyle = oauth2.AuthStyleInHeader
	}
	return oauth2.Config{
		ClientID:     p.config.ClientId,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  p.config.RedirectUrl,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}
}

// AuthURL will generate a URL the caller can use to kick off an OIDC
// authorization code flow with an IdP.  The State's Id() is sent as the
// "state" parameter and its Nonce() as the "nonce" parameter.  The same
// State always produces the same URL.
//
// See NewState() to create an oidc flow State with a valid Id and Nonce.
func (p *Provider) AuthURL(ctx context.Context, s State) (url string, e error) {
	const op = "Provider.AuthURL"
	if s == nil {
		return "", fmt.Errorf("%s: state is nil: %w", op, ErrNilParameter)
	}
	if s.Id() == "" || s.Nonce() == "" {
		return "", fmt.Errorf("%s: state id and nonce cannot be empty: %w", op, ErrInvalidParameter)
	}
	if s.Id() == s.Nonce() {
		return "", fmt.Errorf("%s: state id and nonce cannot be equal: %w", op, ErrInvalidParameter)
	}
	oauth2Config := p.oauth2Config()
	return oauth2Config.AuthCodeURL(s.Id(), oidc.Nonce(s.Nonce())), nil
}

// Exchange will request a token from the oidc token endpoint, using the
// authorizationCode it received in an earlier successful oidc authentication
// response.  The token endpoint is called exactly once and the call is never
// retried: authorization codes are single use.
//
// If the provider's response has no id_token the error wraps
// ErrMissingIdToken.  An access_token which expires within the token expiry
// skew wraps ErrExpiredToken.  Otherwise the id_token is verified using the
// nonce before the Token is returned.
func (p *Provider) Exchange(ctx context.Context, authorizationCode string, nonce string) (*Tk, error) {
	const op = "Provider.Exchange"
	if p.config == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if authorizationCode == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	}

	oauth2Config := p.oauth2Config()
	oauth2Token, err := oauth2Config.Exchange(HttpClientContext(ctx, p.client), authorizationCode)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w: %w", op, ErrExchangeFailed, err)
	}

	idToken, _ := oauth2Token.Extra("id_token").(string)
	if idToken == "" {
		return nil, fmt.Errorf("%s: id_token is missing from auth code exchange: %w", op, ErrMissingIdToken)
	}
	t, err := NewToken(IdToken(idToken), oauth2Token, WithTokenNow(p.config.NowFunc))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create new token: %w", op, err)
	}
	if t.IsExpired() {
		return nil, fmt.Errorf("%s: access_token is expired or about to expire: %w", op, ErrExpiredToken)
	}
	if _, err := p.VerifyIdToken(ctx, t.IdToken(), nonce); err != nil {
		return nil, fmt.Errorf("%s: id_token failed verification: %w", op, err)
	}
	return t, nil
}

// VerifyIdToken will verify the inbound IdToken and return its claims.  It
// verifies it's been signed by the provider using the keys captured during
// discovery, and checks the issuer, audience, expiry, subject and nonce.  It
// never makes a network request.
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#IDTokenValidation
func (p *Provider) VerifyIdToken(ctx context.Context, t IdToken, nonce string) (*IdTokenClaims, error) {
	const op = "Provider.VerifyIdToken"
	if t == "" {
		return nil, fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	if nonce == "" {
		return nil, fmt.Errorf("%s: nonce is empty: %w", op, ErrInvalidParameter)
	}
	algs := make([]string, 0, len(p.config.SupportedSigningAlgs))
	for _, a := range p.config.SupportedSigningAlgs {
		algs = append(algs, string(a))
	}
	oidcConfig := &oidc.Config{
		SupportedSigningAlgs: algs,
		// audiences are checked below, since configured Audiences are also
		// accepted
		SkipClientIDCheck: true,
		Now:               p.config.Now,
	}
	verifier := oidc.NewVerifier(p.config.Issuer, p.keySet, oidcConfig)

	oidcIdToken, err := verifier.Verify(ctx, string(t))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w: %w", op, ErrIdTokenVerificationFailed, p.classifyVerifyErr(t, err), err)
	}

	if oidcIdToken.Nonce != nonce {
		return nil, fmt.Errorf("%s: %w: id_token nonce does not match: %w", op, ErrIdTokenVerificationFailed, ErrInvalidNonce)
	}
	if oidcIdToken.Subject == "" {
		return nil, fmt.Errorf("%s: %w: id_token is missing sub claim: %w", op, ErrIdTokenVerificationFailed, ErrMissingClaim)
	}
	if len(oidcIdToken.Audience) == 0 {
		return nil, fmt.Errorf("%s: %w: id_token is missing aud claim: %w", op, ErrIdTokenVerificationFailed, ErrMissingClaim)
	}
	if !p.validAudience(oidcIdToken.Audience) {
		return nil, fmt.Errorf("%s: %w: invalid id_token audiences: %w", op, ErrIdTokenVerificationFailed, ErrInvalidAudience)
	}

	raw := map[string]interface{}{}
	if err := oidcIdToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("%s: %w: unable to get id_token claims: %w", op, ErrIdTokenVerificationFailed, err)
	}
	return newIdTokenClaims(raw), nil
}

func (p *Provider) validAudience(aud []string) bool {
	if strutils.StrListContains(aud, p.config.ClientId) {
		return true
	}
	for _, v := range p.config.Audiences {
		if strutils.StrListContains(aud, v) {
			return true
		}
	}
	return false
}

// classifyVerifyErr maps a go-oidc verification error onto one of this
// package's errors.
func (p *Provider) classifyVerifyErr(t IdToken, err error) error {
	var expired *oidc.TokenExpiredError
	if errors.As(err, &expired) {
		return ErrExpiredToken
	}
	var unverified struct {
		Issuer string `json:"iss"`
	}
	if t.Claims(&unverified) == nil && unverified.Issuer != p.config.Issuer {
		return ErrInvalidIssuer
	}
	return ErrInvalidSignature
}

// HttpClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key used
// by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func HttpClientContext(ctx context.Context, client *http.Client) context.Context {
	// simple to implement as a wrapper for the coreos package
	return oidc.ClientContext(ctx, client)
}
