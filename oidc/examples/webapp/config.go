// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/capsession/cookie"
	"github.com/hashicorp/capsession/oidc"
	"github.com/hashicorp/go-multierror"
)

// List of configuration environment variables
const (
	envIssuer       = "OIDC_ISSUER"
	envClientId     = "OIDC_CLIENT_ID"
	envClientSecret = "OIDC_CLIENT_SECRET"
	envBaseURL      = "OIDC_BASE_URL"
	envCookieSecret = "OIDC_COOKIE_SECRET"
	envProviderCA   = "OIDC_PROVIDER_CA"
	envLogLevel     = "OIDC_LOG_LEVEL"
	envListen       = "OIDC_LISTEN"
)

const (
	defaultLogLevel = "info"
	defaultListen   = "localhost:8080"
)

type config struct {
	issuer       string
	clientId     string
	clientSecret oidc.ClientSecret
	baseURL      string
	cookieSecret []byte
	providerCA   string
	logLevel     string
	listen       string
}

// envConfig reads the configuration with getenv.  Every missing or invalid
// variable is reported in the returned error.
func envConfig(getenv func(string) string) (*config, error) {
	const op = "envConfig"
	c := &config{
		issuer:       getenv(envIssuer),
		clientId:     getenv(envClientId),
		clientSecret: oidc.ClientSecret(getenv(envClientSecret)),
		baseURL:      getenv(envBaseURL),
		cookieSecret: []byte(getenv(envCookieSecret)),
		logLevel:     getenv(envLogLevel),
		listen:       getenv(envListen),
	}

	var result *multierror.Error
	for k, v := range map[string]string{
		envIssuer:       c.issuer,
		envClientId:     c.clientId,
		envClientSecret: string(c.clientSecret),
		envBaseURL:      c.baseURL,
	} {
		if v == "" {
			result = multierror.Append(result, fmt.Errorf("%s is empty", k))
		}
	}
	if len(c.cookieSecret) < cookie.MinSecretLength {
		result = multierror.Append(result, fmt.Errorf("%s must be at least %d bytes", envCookieSecret, cookie.MinSecretLength))
	}
	if path := getenv(envProviderCA); path != "" {
		pem, err := os.ReadFile(path)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("unable to read %s: %w", envProviderCA, err))
		}
		c.providerCA = string(pem)
	}
	if c.logLevel == "" {
		c.logLevel = defaultLogLevel
	}
	if c.listen == "" {
		c.listen = defaultListen
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}
