// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// Package session encodes the tokens of an authenticated user into the value
// stored in the session cookie, and decodes them back.
package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/capsession/oidc"
)

// CookieName is the name of the cookie which carries an encoded Cookie.
const CookieName = "oidc_user_session"

// ErrMalformed is returned when a value can't be decoded into a Cookie.
var ErrMalformed = errors.New("malformed session cookie")

// Cookie is the session of an authenticated user.  Both tokens are required.
// The fields redact themselves when printed or marshaled with encoding/json;
// use Encode to get the cookie's value.
type Cookie struct {
	AccessToken oidc.AccessToken
	IdToken     oidc.IdToken
}

// field names of the encoded form
const (
	accessTokenField = "access_token"
	idTokenField     = "id_token"
)

// wireCookie is the encoded form of a Cookie.
type wireCookie struct {
	AccessToken string `json:"access_token"`
	IdToken     string `json:"id_token"`
}

// New creates a Cookie from the result of a successful authorization code
// exchange.  The token must carry both an access_token and an id_token.
func New(t oidc.Token) (*Cookie, error) {
	const op = "session.New"
	if t == nil {
		return nil, fmt.Errorf("%s: token is nil: %w", op, oidc.ErrNilParameter)
	}
	c := &Cookie{
		AccessToken: t.AccessToken(),
		IdToken:     t.IdToken(),
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

func (c *Cookie) validate() error {
	switch {
	case c.AccessToken == "":
		return fmt.Errorf("access_token is empty: %w", oidc.ErrMissingAccessToken)
	case c.IdToken == "":
		return fmt.Errorf("id_token is empty: %w", oidc.ErrMissingIdToken)
	}
	return nil
}

// Encode returns the Cookie as compact JSON:
//
//	{"access_token":"...","id_token":"..."}
func Encode(c *Cookie) (string, error) {
	const op = "session.Encode"
	if c == nil {
		return "", fmt.Errorf("%s: cookie is nil: %w", op, oidc.ErrNilParameter)
	}
	if err := c.validate(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// tokens are opaque, so they're written without html escaping
	enc.SetEscapeHTML(false)
	if err := enc.Encode(&wireCookie{AccessToken: string(c.AccessToken), IdToken: string(c.IdToken)}); err != nil {
		return "", fmt.Errorf("%s: unable to encode cookie: %w", op, err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Decode is the inverse of Encode.  The value must be a single JSON object
// with exactly the access_token and id_token fields, each once and both
// non-empty strings.  Field names are case sensitive.  Every failure wraps
// ErrMalformed.
func Decode(value string) (*Cookie, error) {
	const op = "session.Decode"
	dec := json.NewDecoder(strings.NewReader(value))

	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformed, err)
	}
	fields := make(map[string]string, 2)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformed, err)
		}
		name, _ := tok.(string)
		switch name {
		case accessTokenField, idTokenField:
		default:
			return nil, fmt.Errorf("%s: unknown field %q: %w", op, name, ErrMalformed)
		}
		if _, ok := fields[name]; ok {
			return nil, fmt.Errorf("%s: duplicate field %q: %w", op, name, ErrMalformed)
		}
		var v *string
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("%s: field %q: %w: %w", op, name, ErrMalformed, err)
		}
		if v == nil || *v == "" {
			return nil, fmt.Errorf("%s: field %q is empty: %w", op, name, ErrMalformed)
		}
		fields[name] = *v
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformed, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: trailing data after cookie: %w", op, ErrMalformed)
	}

	c := &Cookie{
		AccessToken: oidc.AccessToken(fields[accessTokenField]),
		IdToken:     oidc.IdToken(fields[idTokenField]),
	}
	switch {
	case c.AccessToken == "":
		return nil, fmt.Errorf("%s: missing access_token: %w", op, ErrMalformed)
	case c.IdToken == "":
		return nil, fmt.Errorf("%s: missing id_token: %w", op, ErrMalformed)
	}
	return c, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
