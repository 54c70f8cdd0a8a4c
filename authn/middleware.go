// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"context"
	"net/http"

	"github.com/hashicorp/capsession/cookie"
	"github.com/hashicorp/capsession/oidc"
	"github.com/hashicorp/go-hclog"
)

type contextKey struct{}

var resultKey contextKey

// NewContext returns a copy of ctx carrying the Result.
func NewContext(ctx context.Context, r Result) context.Context {
	return context.WithValue(ctx, resultKey, r)
}

// ResultFromContext returns the Result stored by Middleware or Require.
func ResultFromContext(ctx context.Context) (Result, bool) {
	r, ok := ctx.Value(resultKey).(Result)
	return r, ok
}

// UserFromContext returns the authenticated User of the request, if any.
func UserFromContext(ctx context.Context) (*User, bool) {
	r, ok := ResultFromContext(ctx)
	if !ok || r.Outcome != Authenticated || r.User == nil {
		return nil, false
	}
	return r.User, true
}

// Middleware resolves the authentication of every request and stores the
// Result in the request's context.  It never rejects a request; see Require.
//
// Supported options:
//   - WithLogger
func Middleware(app *oidc.Application, codec *cookie.Codec, opt ...Option) func(http.Handler) http.Handler {
	opts := getOpts(app, opt...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := resolveRequest(w, r, app, codec, opts.withLogger)
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), res)))
		})
	}
}

// Require only lets authenticated requests, or every request when app is
// nil, reach the next handler.  An unauthenticated request is redirected to
// the sign in path and a request whose session failed verification gets a 422
// response.  A Result already stored by Middleware is reused.
//
// Supported options:
//   - WithLogger
//   - WithSignInPath
func Require(app *oidc.Application, codec *cookie.Codec, opt ...Option) func(http.Handler) http.Handler {
	opts := getOpts(app, opt...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := ResultFromContext(r.Context())
			if !ok {
				res = resolveRequest(w, r, app, codec, opts.withLogger)
				r = r.WithContext(NewContext(r.Context(), res))
			}
			switch res.Outcome {
			case Unauthenticated:
				http.Redirect(w, r, opts.withSignInPath, http.StatusFound)
			case AuthError:
				http.Error(w, "unprocessable", http.StatusUnprocessableEntity)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func resolveRequest(w http.ResponseWriter, r *http.Request, app *oidc.Application, codec *cookie.Codec, logger hclog.Logger) Result {
	if app == nil {
		return Result{Outcome: PassThrough}
	}
	jar := codec.NewJar(w, r, cookie.WithSecure(app.SecureCookies()))
	res := Resolve(r.Context(), app, jar, r.URL.RequestURI())
	switch {
	case res.Outcome == AuthError:
		logger.Error("session failed verification", "path", r.URL.Path, "error", res.Err)
	case res.Err != nil:
		logger.Debug("resolved request", "path", r.URL.Path, "outcome", res.Outcome.String(), "error", res.Err)
	default:
		logger.Debug("resolved request", "path", r.URL.Path, "outcome", res.Outcome.String())
	}
	return res
}
