// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

/*
callback is a package that provides the http handlers an oidc.Application
needs: the provider's redirect back to the application after authenticating a
user, which exchanges the authorization code and starts the user's session,
and the sign in route which sends the browser to the provider.

	mux := http.NewServeMux()
	if err := callback.Attach(mux, app, codec); err != nil {
		// handle err
	}
*/
package callback
