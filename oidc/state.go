// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
)

// State represents the authentication attempt of an application. Id() is
// passed to the provider as the oauth "state" parameter and echoed back on
// callback, Nonce() is bound into the id_token the provider issues.  The Id()
// and Nonce() cannot be equal, and are used to prevent CSRF and replay attacks
// (see OpenID Connect Core 1.0 for specifics).
type State interface {
	// Id is a unique identifier and an opaque value used to maintain state
	// between the oidc request and the callback. Id cannot equal the Nonce.
	Id() string

	// Nonce is a unique nonce and a string value used to associate a Client
	// session with an ID Token, and to mitigate replay attacks. Nonce cannot
	// equal the Id
	Nonce() string
}

// St represents the oidc state used for oidc flows.
type St struct {
	// id is a unique identifier and an opaque value used to maintain state
	// between the oidc request and the callback
	id string

	// nonce is a unique nonce and suitable for use as an oidc nonce
	nonce string
}

// ensure that St implements the State interface
var _ State = (*St)(nil)

// NewState creates a new State (*St) with a freshly generated id and nonce.
func NewState() (*St, error) {
	const op = "NewState"
	nonce, err := NewId("n")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a state's nonce: %w", op, err)
	}

	id, err := NewId("st")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a state's id: %w", op, err)
	}
	return &St{
		id:    id,
		nonce: nonce,
	}, nil
}

func (s *St) Id() string    { return s.id }    // Id implements the State.Id() interface function
func (s *St) Nonce() string { return s.nonce } // Nonce implements the State.Nonce() interface function
