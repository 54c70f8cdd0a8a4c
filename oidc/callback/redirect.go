// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/capsession/authn"
	"github.com/hashicorp/capsession/cookie"
	"github.com/hashicorp/capsession/oidc"
	"github.com/hashicorp/capsession/session"
)

// Redirect creates the handler for the provider's redirect back to the
// application (oidc.RedirectPath).  It exchanges the authorization code once,
// stores the resulting session cookie and redirects the browser to the
// destination recorded when the user was found unauthenticated, or "/".
//
// The request's state must equal the application's CSRF token.  A response
// without an id_token redirects to "/" without starting a session.  Every
// other failure is handed to the ErrorResponseFunc, which defaults to
// DefaultErrorResponse.
//
// Supported options:
//   - WithLogger
//   - WithErrorResponse
func Redirect(app *oidc.Application, codec *cookie.Codec, opt ...Option) (http.HandlerFunc, error) {
	const op = "callback.Redirect"
	if app == nil {
		return nil, fmt.Errorf("%s: application is nil: %w", op, oidc.ErrNilParameter)
	}
	if codec == nil {
		return nil, fmt.Errorf("%s: cookie codec is nil: %w", op, oidc.ErrNilParameter)
	}
	opts := getOpts(app, opt...)
	logger, eFn := opts.withLogger, opts.withErrorResponse

	return func(w http.ResponseWriter, req *http.Request) {
		// get parameters from either the body or query parameters.
		// FormValue prioritizes body values, if found.
		reqState := req.FormValue("state")

		if err := req.FormValue("error"); err != "" {
			reqError := &AuthenErrorResponse{
				Error:       err,
				Description: req.FormValue("error_description"),
				Uri:         req.FormValue("error_uri"),
			}
			logger.Info("provider returned an error", "error", reqError.Error, "description", reqError.Description)
			eFn(reqState, reqError, nil, w, req)
			return
		}

		reqCode := req.FormValue("code")
		if reqCode == "" || reqState == "" {
			responseErr := fmt.Errorf("%s: code and state are required: %w", op, ErrMissingParameter)
			logger.Info("invalid callback request", "error", responseErr)
			eFn(reqState, nil, responseErr, w, req)
			return
		}

		if subtle.ConstantTimeCompare([]byte(reqState), []byte(app.CSRFToken())) != 1 {
			responseErr := fmt.Errorf("%s: state doesn't match the application's csrf token: %w", op, ErrInvalidState)
			logger.Error("callback state mismatch", "error", responseErr)
			eFn(reqState, nil, responseErr, w, req)
			return
		}

		responseToken, err := app.Exchange(req.Context(), reqCode)
		switch {
		case errors.Is(err, oidc.ErrMissingIdToken):
			logger.Info("provider response has no id_token, no session created")
			http.Redirect(w, req, "/", http.StatusFound)
			return
		case err != nil:
			responseErr := fmt.Errorf("%s: unable to exchange authorization code: %w", op, err)
			logger.Error("authorization code exchange failed", "error", responseErr)
			eFn(reqState, nil, responseErr, w, req)
			return
		}

		jar := codec.NewJar(w, req, cookie.WithSecure(app.SecureCookies()))
		if err := setSession(jar, responseToken); err != nil {
			responseErr := fmt.Errorf("%s: %w: %w", op, ErrSessionFailed, err)
			logger.Error("unable to store session", "error", responseErr)
			eFn(reqState, nil, responseErr, w, req)
			return
		}

		dest := consumeDestination(jar)
		logger.Debug("session started", "destination", dest)
		http.Redirect(w, req, dest, http.StatusFound)
	}, nil
}

func setSession(jar cookie.Jar, t oidc.Token) error {
	s, err := session.New(t)
	if err != nil {
		return err
	}
	v, err := session.Encode(s)
	if err != nil {
		return err
	}
	return jar.Set(session.CookieName, v)
}

// consumeDestination reads and deletes the redirect destination cookie.  It
// returns "/" when the cookie is absent or isn't a local path.
func consumeDestination(jar cookie.Jar) string {
	d, err := jar.Get(authn.RedirectDestinationCookieName)
	switch {
	case errors.Is(err, cookie.ErrNotFound):
		return "/"
	case err != nil:
		jar.Delete(authn.RedirectDestinationCookieName)
		return "/"
	}
	jar.Delete(authn.RedirectDestinationCookieName)
	if !isLocalPath(d) {
		return "/"
	}
	return d
}

// isLocalPath reports whether p is an absolute path on this host, which
// can't be read by a browser as another host.
func isLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	u, err := url.Parse(p)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}

// GotoAuth creates the handler for the sign in route (oidc.GotoAuthPath),
// which always redirects to the application's authorize URL.
func GotoAuth(app *oidc.Application) (http.HandlerFunc, error) {
	const op = "callback.GotoAuth"
	if app == nil {
		return nil, fmt.Errorf("%s: application is nil: %w", op, oidc.ErrNilParameter)
	}
	authURL := app.AuthURL()
	return func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, authURL, http.StatusFound)
	}, nil
}

// Router is satisfied by *http.ServeMux and chi.Router.
type Router interface {
	Handle(pattern string, h http.Handler)
}

// Attach registers the Redirect handler at oidc.RedirectPath and the GotoAuth
// handler at oidc.GotoAuthPath.
//
// Supported options:
//   - WithLogger
//   - WithErrorResponse
func Attach(r Router, app *oidc.Application, codec *cookie.Codec, opt ...Option) error {
	const op = "callback.Attach"
	if r == nil {
		return fmt.Errorf("%s: router is nil: %w", op, oidc.ErrNilParameter)
	}
	redirect, err := Redirect(app, codec, opt...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	gotoAuth, err := GotoAuth(app)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	r.Handle(oidc.RedirectPath, redirect)
	r.Handle(oidc.GotoAuthPath, gotoAuth)
	return nil
}
