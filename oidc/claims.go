// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// NoLanguage is the LocalizedClaim key of a value which was issued without a
// language tag (ie: "name" rather than "name#de").
const NoLanguage = ""

// LocalizedClaim is a claim which the provider may issue in several
// languages. It maps a canonical BCP47 language tag, or NoLanguage, to the
// claim's value.
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#ClaimsLanguagesAndScripts
type LocalizedClaim map[string]string

// Get returns the claim's value for the language tag.
func (l LocalizedClaim) Get(tag language.Tag) (string, bool) {
	v, ok := l[tag.String()]
	return v, ok
}

// Default returns the claim's value issued without a language tag. A claim
// which only has localized values has no default.
func (l LocalizedClaim) Default() (string, bool) {
	v, ok := l[NoLanguage]
	return v, ok
}

// IdTokenClaims are the verified claims of an id_token.
type IdTokenClaims struct {
	Issuer            string
	Subject           string
	Audience          []string
	Expiry            time.Time
	IssuedAt          time.Time
	Nonce             string
	PreferredUsername string
	Name              LocalizedClaim

	raw map[string]interface{}
}

// Claims unmarshals all of the id_token's claims into v.
func (c *IdTokenClaims) Claims(v interface{}) error {
	const op = "IdTokenClaims.Claims"
	if v == nil {
		return fmt.Errorf("%s: claims interface is nil: %w", op, ErrNilParameter)
	}
	b, err := json.Marshal(c.raw)
	if err != nil {
		return fmt.Errorf("%s: unable to marshal claims: %w", op, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%s: unable to unmarshal claims: %w", op, err)
	}
	return nil
}

// newIdTokenClaims builds the IdTokenClaims from the raw claims of a verified
// id_token.
func newIdTokenClaims(raw map[string]interface{}) *IdTokenClaims {
	c := &IdTokenClaims{
		Issuer:            stringClaim(raw, "iss"),
		Subject:           stringClaim(raw, "sub"),
		Nonce:             stringClaim(raw, "nonce"),
		PreferredUsername: stringClaim(raw, "preferred_username"),
		Name:              localizedClaim(raw, "name"),
		Expiry:            timeClaim(raw, "exp"),
		IssuedAt:          timeClaim(raw, "iat"),
		raw:               raw,
	}
	switch aud := raw["aud"].(type) {
	case string:
		c.Audience = []string{aud}
	case []interface{}:
		for _, a := range aud {
			if s, ok := a.(string); ok {
				c.Audience = append(c.Audience, s)
			}
		}
	}
	return c
}

func stringClaim(raw map[string]interface{}, name string) string {
	s, _ := raw[name].(string)
	return s
}

func timeClaim(raw map[string]interface{}, name string) time.Time {
	f, ok := raw[name].(float64)
	if !ok {
		return time.Time{}
	}
	return time.Unix(int64(f), 0)
}

// localizedClaim collects every "<name>" and "<name>#<tag>" string claim.
// Values with unparsable language tags are ignored. It returns nil when the
// claim isn't present in any language.
func localizedClaim(raw map[string]interface{}, name string) LocalizedClaim {
	var l LocalizedClaim
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var key string
		switch {
		case k == name:
			key = NoLanguage
		case strings.HasPrefix(k, name+"#"):
			tag, err := language.Parse(strings.TrimPrefix(k, name+"#"))
			if err != nil {
				continue
			}
			key = tag.String()
		default:
			continue
		}
		if l == nil {
			l = LocalizedClaim{}
		}
		l[key] = s
	}
	return l
}
