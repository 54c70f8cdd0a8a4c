// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/hashicorp/go-hclog"
)

// RedirectPath is the path, relative to an Application's base URL, the
// provider redirects to after authenticating a user.
const RedirectPath = "/oidc_redirect"

// GotoAuthPath is the path which sends the browser to the provider's authorize
// URL.
const GotoAuthPath = "/oidc_goto_auth"

// DefaultDiscoveryTimeout bounds provider discovery when an Application is
// created without WithDiscoveryTimeout.
const DefaultDiscoveryTimeout = 30 * time.Second

// Application is the OIDC state of a running web application.  It's created
// once, before serving requests, and is read-only for the rest of its
// lifetime, so it can be shared by concurrent request handlers.
//
// The authorize URL, CSRF token and nonce are generated together when the
// Application is created and never change.
type Application struct {
	provider    *Provider
	state       State
	authURL     string
	redirectURL string
	secure      bool
	logger      hclog.Logger
}

// NewApplication creates an Application for the web application served at
// baseURL.  It discovers the issuer's configuration (bounded by ctx and the
// discovery timeout), binds the redirect URL baseURL + RedirectPath and
// precomputes the authorize URL from a freshly generated CSRF token and nonce.
//
// An error is fatal: the web application should refuse to serve traffic.
//
// Supported options:
//   - WithLogger
//   - WithDiscoveryTimeout
//   - WithSupportedSigningAlgs
//   - WithProviderCA
//   - WithScopes
//   - WithAudiences
//   - WithNow
func NewApplication(ctx context.Context, baseURL, issuer, clientId string, clientSecret ClientSecret, opt ...Option) (*Application, error) {
	const op = "NewApplication"
	opts := getApplicationOpts(opt...)

	if err := validateHTTPURL(baseURL); err != nil {
		return nil, fmt.Errorf("%s: base URL %s is invalid: %w", op, baseURL, err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: base URL %s is invalid: %w", op, baseURL, ErrInvalidParameter)
	}
	redirectURL := base.ResolveReference(&url.URL{Path: RedirectPath}).String()

	c, err := NewConfig(issuer, clientId, clientSecret, opts.withSupportedAlgs, redirectURL,
		WithScopes(opts.withScopes...),
		WithAudiences(opts.withAudiences...),
		WithProviderCA(opts.withProviderCA),
		WithNow(opts.withNowFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger := opts.withLogger.Named("oidc")
	logger.Debug("discovering provider", "issuer", issuer, "redirect_url", redirectURL)

	discoveryCtx, cancel := context.WithTimeout(ctx, opts.withDiscoveryTimeout)
	defer cancel()
	p, err := NewProvider(discoveryCtx, c)
	if err != nil {
		logger.Error("provider discovery failed", "issuer", issuer, "error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s, err := NewState()
	if err != nil {
		p.Done()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	authURL, err := p.AuthURL(ctx, s)
	if err != nil {
		p.Done()
		return nil, fmt.Errorf("%s: unable to create authorize URL: %w", op, err)
	}
	logger.Info("oidc application ready", "issuer", issuer, "redirect_url", redirectURL)

	return &Application{
		provider:    p,
		state:       s,
		authURL:     authURL,
		redirectURL: redirectURL,
		secure:      base.Scheme == "https",
		logger:      logger,
	}, nil
}

// AuthURL returns the precomputed authorize URL.
func (a *Application) AuthURL() string { return a.authURL }

// CSRFToken returns the token sent as the "state" parameter of the authorize
// URL.
func (a *Application) CSRFToken() string { return a.state.Id() }

// Nonce returns the nonce every id_token issued to the Application must carry.
func (a *Application) Nonce() string { return a.state.Nonce() }

// RedirectURL returns the callback URL registered with the provider.
func (a *Application) RedirectURL() string { return a.redirectURL }

// Provider returns the Application's provider client.
func (a *Application) Provider() *Provider { return a.provider }

// Logger returns the Application's logger.
func (a *Application) Logger() hclog.Logger { return a.logger }

// SecureCookies reports whether cookies should carry the Secure attribute,
// which is the case when the base URL uses https.
func (a *Application) SecureCookies() bool { return a != nil && a.secure }

// Exchange exchanges the authorization code for a Token, verifying its
// id_token against the Application's nonce.
func (a *Application) Exchange(ctx context.Context, authorizationCode string) (*Tk, error) {
	const op = "Application.Exchange"
	t, err := a.provider.Exchange(ctx, authorizationCode, a.Nonce())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// VerifyIdToken verifies the id_token against the Application's nonce and
// returns its claims.  It never makes a network request.
func (a *Application) VerifyIdToken(ctx context.Context, t IdToken) (*IdTokenClaims, error) {
	const op = "Application.VerifyIdToken"
	claims, err := a.provider.VerifyIdToken(ctx, t, a.Nonce())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return claims, nil
}

// Done releases the Application's provider resources.
func (a *Application) Done() {
	if a == nil {
		return
	}
	a.provider.Done()
}

// applicationOptions is the set of available options for NewApplication
type applicationOptions struct {
	withLogger           hclog.Logger
	withDiscoveryTimeout time.Duration
	withSupportedAlgs    []Alg
	withScopes           []string
	withAudiences        []string
	withProviderCA       string
	withNowFunc          func() time.Time
}

// applicationDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func applicationDefaults() applicationOptions {
	return applicationOptions{
		withLogger:           hclog.NewNullLogger(),
		withDiscoveryTimeout: DefaultDiscoveryTimeout,
		withSupportedAlgs:    DefaultSupportedSigningAlgs,
	}
}

// getApplicationOpts gets the application defaults and applies the opt
// overrides passed in
func getApplicationOpts(opt ...Option) applicationOptions {
	opts := applicationDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger for the Application.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if v, ok := o.(*applicationOptions); ok && l != nil {
			v.withLogger = l
		}
	}
}

// WithDiscoveryTimeout provides an optional bound on provider discovery.
func WithDiscoveryTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if v, ok := o.(*applicationOptions); ok && d > 0 {
			v.withDiscoveryTimeout = d
		}
	}
}

// WithSupportedSigningAlgs provides an optional list of algorithms accepted
// for id_token signatures.
func WithSupportedSigningAlgs(algs ...Alg) Option {
	return func(o interface{}) {
		if v, ok := o.(*applicationOptions); ok {
			v.withSupportedAlgs = algs
		}
	}
}
