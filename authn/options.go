// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"github.com/hashicorp/capsession/oidc"
	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// options is the set of available options for Middleware and Require
type options struct {
	withLogger     hclog.Logger
	withSignInPath string
}

// getDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func getDefaults(app *oidc.Application) options {
	logger := hclog.NewNullLogger()
	if app != nil {
		logger = app.Logger().Named("authn")
	}
	return options{
		withLogger:     logger,
		withSignInPath: oidc.GotoAuthPath,
	}
}

// getOpts gets the defaults and applies the opt overrides passed in
func getOpts(app *oidc.Application, opt ...Option) options {
	opts := getDefaults(app)
	for _, o := range opt {
		if o != nil {
			o(&opts)
		}
	}
	return opts
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if v, ok := o.(*options); ok && l != nil {
			v.withLogger = l
		}
	}
}

// WithSignInPath provides an optional path unauthenticated requests are
// redirected to.
func WithSignInPath(p string) Option {
	return func(o interface{}) {
		if v, ok := o.(*options); ok && p != "" {
			v.withSignInPath = p
		}
	}
}
