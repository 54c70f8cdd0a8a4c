// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"

	"github.com/hashicorp/capsession/sdk/id"
)

// NewId generates a ID with an optional prefix.   The ID generated is suitable
// for a State's Id or Nonce
func NewId(optionalPrefix string) (string, error) {
	const op = "NewId"
	id, err := id.New(optionalPrefix)
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate id: %w", op, ErrIdGeneratorFailed)
	}
	return id, nil
}
