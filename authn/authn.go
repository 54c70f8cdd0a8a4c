// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// Package authn resolves the authenticated user of a request from its session
// cookie.
package authn

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/capsession/cookie"
	"github.com/hashicorp/capsession/oidc"
	"github.com/hashicorp/capsession/session"
)

// RedirectDestinationCookieName is the name of the cookie which preserves the
// request an unauthenticated user wanted, until the provider calls back.
const RedirectDestinationCookieName = "oidc_redirect_destination"

// Outcome is the result of resolving a request's authentication.
type Outcome int

const (
	// PassThrough means there's no Application, so authentication doesn't
	// apply to the request.
	PassThrough Outcome = iota

	// Unauthenticated means the request has no valid session.  The request
	// was recorded as the redirect destination.
	Unauthenticated

	// AuthError means the request's session failed verification and was
	// deleted.
	AuthError

	// Authenticated means the request has a verified session.
	Authenticated
)

// String returns the name of the outcome.
func (o Outcome) String() string {
	switch o {
	case PassThrough:
		return "pass-through"
	case Unauthenticated:
		return "unauthenticated"
	case AuthError:
		return "authentication error"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Result of Resolve.  User is only set when the Outcome is Authenticated.
// Err is set when the Outcome is AuthError, or when it's Unauthenticated and
// the redirect destination couldn't be recorded.
type Result struct {
	Outcome Outcome
	User    *User
	Err     error
}

// User is the identity of an authenticated user, from the verified claims of
// the session's id_token.
type User struct {
	Subject string

	// PreferredUsername is empty when the provider didn't issue it.
	PreferredUsername string

	// Names maps language tags to the user's name.  See: Name()
	Names oidc.LocalizedClaim
}

// Name returns the user's name issued without a language tag.
func (u *User) Name() (string, bool) {
	return u.Names.Default()
}

func newUser(c *oidc.IdTokenClaims) *User {
	return &User{
		Subject:           c.Subject,
		PreferredUsername: c.PreferredUsername,
		Names:             c.Name,
	}
}

// Resolve the authentication of a request from the cookies in jar.
//
// A nil app yields PassThrough without touching the jar.  A missing session
// cookie yields Unauthenticated and records requestURI as the redirect
// destination.  A session cookie that can't be decoded is deleted, then
// handled like a missing one.  A session whose id_token fails verification is
// deleted and yields AuthError.  Otherwise the result is Authenticated and the
// jar is left unchanged, so resolving again gives the same User.
//
// Resolve never makes a network request.
func Resolve(ctx context.Context, app *oidc.Application, jar cookie.Jar, requestURI string) Result {
	if app == nil {
		return Result{Outcome: PassThrough}
	}

	value, err := jar.Get(session.CookieName)
	switch {
	case errors.Is(err, cookie.ErrNotFound):
		return unauthenticated(jar, requestURI)
	case err != nil:
		jar.Delete(session.CookieName)
		return unauthenticated(jar, requestURI)
	}

	s, err := session.Decode(value)
	if err != nil {
		jar.Delete(session.CookieName)
		return unauthenticated(jar, requestURI)
	}

	claims, err := app.VerifyIdToken(ctx, s.IdToken)
	if err != nil {
		jar.Delete(session.CookieName)
		return Result{Outcome: AuthError, Err: err}
	}
	return Result{Outcome: Authenticated, User: newUser(claims)}
}

func unauthenticated(jar cookie.Jar, requestURI string) Result {
	const op = "authn.Resolve"
	if requestURI == "" {
		requestURI = "/"
	}
	// a destination which can't be written only loses the redirect after
	// sign in, so the request is still unauthenticated
	if err := jar.Set(RedirectDestinationCookieName, requestURI); err != nil {
		return Result{Outcome: Unauthenticated, Err: fmt.Errorf("%s: unable to record redirect destination: %w", op, err)}
	}
	return Result{Outcome: Unauthenticated}
}
