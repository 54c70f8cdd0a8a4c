// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"errors"
	"net/http"
)

var (
	// ErrMissingParameter is used when the callback request has no code or
	// state.
	ErrMissingParameter = errors.New("missing callback parameter")

	// ErrInvalidState is used when the callback's state isn't the
	// application's CSRF token.
	ErrInvalidState = errors.New("invalid state")

	// ErrSessionFailed is used when the session cookie can't be created.
	ErrSessionFailed = errors.New("unable to create session")
)

// ErrorResponseFunc is used by Redirect to create a http response when the
// callback fails.
//
// The function receives the state returned as part of the oidc authentication
// response.  It also gets parameters for the oidc authentication error response
// or the callback error raised while processing the request.  The function
// should use the http.ResponseWriter to send back whatever content (headers,
// html, JSON, etc) it wishes to the client that originated the oidc flow.
type ErrorResponseFunc func(state string, respErr *AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request)

// AuthenErrorResponse represents Oauth2 error responses.  See:
// https://openid.net/specs/openid-connect-core-1_0.html#AuthError
type AuthenErrorResponse struct {
	Error       string
	Description string
	Uri         string
}

// DefaultErrorResponse is the ErrorResponseFunc used unless WithErrorResponse
// is given.  A provider error response is sent as 401 and a request missing
// its code or state as 400.  Every other failure is terminal and sent as 500,
// with a short diagnostic that never includes token values.
func DefaultErrorResponse(_ string, respErr *AuthenErrorResponse, e error, w http.ResponseWriter, _ *http.Request) {
	switch {
	case respErr != nil:
		msg := "authentication failed: " + respErr.Error
		if respErr.Description != "" {
			msg += ": " + respErr.Description
		}
		http.Error(w, msg, http.StatusUnauthorized)
	case errors.Is(e, ErrMissingParameter):
		http.Error(w, ErrMissingParameter.Error(), http.StatusBadRequest)
	case errors.Is(e, ErrInvalidState):
		http.Error(w, ErrInvalidState.Error(), http.StatusInternalServerError)
	case errors.Is(e, ErrSessionFailed):
		http.Error(w, ErrSessionFailed.Error(), http.StatusInternalServerError)
	default:
		http.Error(w, "unable to exchange authorization code", http.StatusInternalServerError)
	}
}
