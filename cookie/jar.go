// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package cookie

import (
	"errors"
	"fmt"
	"net/http"
)

// Jar reads and writes the cookies of one request.
type Jar interface {
	// Get returns the value of the named cookie.  It returns an error
	// wrapping ErrNotFound when the cookie is absent, or ErrInvalid when its
	// value can't be verified.
	Get(name string) (string, error)

	// Set writes the named cookie.
	Set(name, value string) error

	// Delete removes the named cookie.
	Delete(name string)
}

// RequestJar is a Jar backed by an http request and its response.  Writes are
// sent as Set-Cookie headers and are also visible to later reads of the same
// RequestJar.  A RequestJar must not be shared between requests.
type RequestJar struct {
	codec  *Codec
	w      http.ResponseWriter
	r      *http.Request
	secure bool

	// pending holds values written by this jar; a nil value is a deletion
	pending map[string]*string
}

// ensure that RequestJar implements the Jar interface.
var _ Jar = (*RequestJar)(nil)

// NewJar returns a RequestJar for the request.  Cookies are written with
// Path=/, HttpOnly, SameSite=Lax and no expiry, so they last for the browser
// session.
//
// Supported options:
//   - WithSecure
func (c *Codec) NewJar(w http.ResponseWriter, r *http.Request, opt ...Option) *RequestJar {
	opts := getJarOpts(opt...)
	return &RequestJar{
		codec:   c,
		w:       w,
		r:       r,
		secure:  opts.withSecure,
		pending: map[string]*string{},
	}
}

// Get implements the Jar.Get() interface function.
func (j *RequestJar) Get(name string) (string, error) {
	const op = "cookie.(RequestJar).Get"
	if v, ok := j.pending[name]; ok {
		if v == nil {
			return "", fmt.Errorf("%s: %s was deleted: %w", op, name, ErrNotFound)
		}
		return *v, nil
	}
	c, err := j.r.Cookie(name)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", fmt.Errorf("%s: %s: %w", op, name, ErrNotFound)
		}
		return "", fmt.Errorf("%s: %s: %w: %w", op, name, ErrInvalid, err)
	}
	v, err := j.codec.Decode(name, c.Value)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// Set implements the Jar.Set() interface function.
func (j *RequestJar) Set(name, value string) error {
	const op = "cookie.(RequestJar).Set"
	encoded, err := j.codec.Encode(name, value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	http.SetCookie(j.w, j.cookie(name, encoded, 0))
	j.pending[name] = &value
	return nil
}

// Delete implements the Jar.Delete() interface function.
func (j *RequestJar) Delete(name string) {
	http.SetCookie(j.w, j.cookie(name, "", -1))
	j.pending[name] = nil
}

func (j *RequestJar) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// jarOptions is the set of available options for NewJar
type jarOptions struct {
	withSecure bool
}

// jarDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func jarDefaults() jarOptions {
	return jarOptions{}
}

// getJarOpts gets the jar defaults and applies the opt overrides passed in
func getJarOpts(opt ...Option) jarOptions {
	opts := jarDefaults()
	for _, o := range opt {
		if o != nil {
			o(&opts)
		}
	}
	return opts
}

// WithSecure sets the Secure attribute of written cookies.
func WithSecure(secure bool) Option {
	return func(o interface{}) {
		if v, ok := o.(*jarOptions); ok {
			v.withSecure = secure
		}
	}
}
