// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// Package cookie provides tamper-evident, encrypted cookies and a
// request-scoped Jar to read and write them.
package cookie

import (
	"crypto/sha512"
	"errors"
	"fmt"
	"io"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/hkdf"
)

// MinSecretLength is the minimum length of the secret used to derive a
// Codec's keys.
const MinSecretLength = 32

const (
	hashKeyLength  = 64
	blockKeyLength = 32
)

var (
	// ErrInvalidSecret is returned when a Codec's secret is too short.
	ErrInvalidSecret = errors.New("invalid cookie secret")

	// ErrNotFound is returned when a cookie isn't present.
	ErrNotFound = errors.New("cookie not found")

	// ErrInvalid is returned when a cookie's value was tampered with, was
	// issued for another cookie name or with another secret, or can't be
	// decoded.
	ErrInvalid = errors.New("invalid cookie")
)

// Codec signs and encrypts cookie values.  A value is bound to the name of
// the cookie it was encoded for.  Codec is safe for concurrent use.
type Codec struct {
	sc *securecookie.SecureCookie
}

// NewCodec creates a Codec whose signing and encryption keys are derived from
// secret, which must be at least MinSecretLength bytes.  The same secret
// always derives the same keys, so cookies survive a restart.
func NewCodec(secret []byte) (*Codec, error) {
	const op = "cookie.NewCodec"
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%s: secret must be at least %d bytes: %w", op, MinSecretLength, ErrInvalidSecret)
	}
	hashKey, err := deriveKey(secret, "SIGNING", hashKeyLength)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to derive signing key: %w", op, err)
	}
	blockKey, err := deriveKey(secret, "ENCRYPTION", blockKeyLength)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to derive encryption key: %w", op, err)
	}

	sc := securecookie.New(hashKey, blockKey)
	sc.SetSerializer(securecookie.JSONEncoder{})
	// cookies live as long as the browser session, so the embedded timestamp
	// isn't checked
	sc.MaxAge(0)
	return &Codec{sc: sc}, nil
}

func deriveKey(secret []byte, info string, length int) ([]byte, error) {
	key := make([]byte, length)
	if _, err := io.ReadFull(hkdf.New(sha512.New, secret, nil, []byte(info)), key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encode returns value signed and encrypted for the cookie name.
func (c *Codec) Encode(name, value string) (string, error) {
	const op = "cookie.(Codec).Encode"
	encoded, err := c.sc.Encode(name, value)
	if err != nil {
		return "", fmt.Errorf("%s: unable to encode %s: %w", op, name, err)
	}
	return encoded, nil
}

// Decode verifies and decrypts a value produced by Encode for the same
// cookie name.  Every failure wraps ErrInvalid.
func (c *Codec) Decode(name, encoded string) (string, error) {
	const op = "cookie.(Codec).Decode"
	var value string
	if err := c.sc.Decode(name, encoded, &value); err != nil {
		return "", fmt.Errorf("%s: unable to decode %s: %w: %w", op, name, ErrInvalid, err)
	}
	return value, nil
}
