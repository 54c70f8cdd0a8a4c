// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

/*
oidc is a package for integrating a web application with an OIDC provider
using the authorization code flow.

Primary types provided by the package

* Application: the OIDC state of a running web application.  It's created
once at startup and holds the provider client, the redirect URL, and the
precomputed authorize URL with its CSRF token and nonce.  It's read-only
afterwards and safe for concurrent use.

* Provider: provides integration with a provider using the typical
3-legged OIDC authorization code flow.  Discovery and the provider's signing
keys are fetched once, when the Provider is created, so id_token verification
never makes a network request.

* Config: provides the configuration for a Provider (for example: client
Id/Secret, redirect URL, supported signing algorithms, additional scopes
requested, etc)

* State: the CSRF token (sent as the "state" parameter) and nonce of an
authorize URL.

* Token: represents an OIDC id_token, as well as an Oauth2 access_token
(including the access_token expiry)

* IdTokenClaims: the verified claims of an id_token, including the localized
"name" claims.

* Alg: represents asymmetric signing algorithms

Testing

TestProvider is a local OIDC provider for tests.  See StartTestProvider.

Example

	app, err := oidc.NewApplication(ctx, "https://app.example.com",
		"https://issuer.example.com", "client-id", "client-secret",
		oidc.WithLogger(logger))
	if err != nil {
		// refuse to serve traffic
	}
	defer app.Done()
	http.Redirect(w, r, app.AuthURL(), http.StatusFound)
*/
package oidc
