// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"github.com/hashicorp/capsession/oidc"
	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// options is the set of available options for the callback handlers
type options struct {
	withLogger        hclog.Logger
	withErrorResponse ErrorResponseFunc
}

// getDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func getDefaults(app *oidc.Application) options {
	return options{
		withLogger:        app.Logger().Named("callback"),
		withErrorResponse: DefaultErrorResponse,
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

// WithLogger provides an optional logger for the callback handlers.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if v, ok := o.(*options); ok && l != nil {
			v.withLogger = l
		}
	}
}

// WithErrorResponse provides an optional ErrorResponseFunc.
func WithErrorResponse(fn ErrorResponseFunc) Option {
	return func(o interface{}) {
		if v, ok := o.(*options); ok && fn != nil {
			v.withErrorResponse = fn
		}
	}
}
