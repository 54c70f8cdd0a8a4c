// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"crypto"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
)

// maxKeySetSize bounds how much of a jwks_uri response is read.
const maxKeySetSize = 1 << 20

// fetchKeySet retrieves the provider's JSON Web Key Set once.  The returned
// KeySet only holds the public signing keys and never makes further requests,
// so id_token verification stays local to the process.
func fetchKeySet(ctx context.Context, client *http.Client, jwksURL string) (*oidc.StaticKeySet, error) {
	const op = "fetchKeySet"
	if jwksURL == "" {
		return nil, fmt.Errorf("%s: provider discovery document is missing jwks_uri: %w", op, ErrInvalidParameter)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create request for %s: %w", op, jwksURL, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to fetch keys from %s: %w", op, jwksURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetSize))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read keys from %s: %w", op, jwksURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %s from %s", op, resp.Status, jwksURL)
	}

	var jwks jose.JSONWebKeySet
	if err := json.Unmarshal(body, &jwks); err != nil {
		return nil, fmt.Errorf("%s: unable to parse keys from %s: %w", op, jwksURL, err)
	}

	keys := make([]crypto.PublicKey, 0, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		if !k.IsPublic() {
			continue
		}
		keys = append(keys, k.Key)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%s: no public signing keys found at %s: %w", op, jwksURL, ErrInvalidParameter)
	}
	return &oidc.StaticKeySet{PublicKeys: keys}, nil
}
