// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// capsession provides a collection of related packages which sign the users
// of a web application in with an OIDC provider and keep them signed in with
// an encrypted session cookie.
//
//   - oidc: the application's provider client, authorize URL, code exchange
//     and id_token verification
//   - oidc/callback: the provider's redirect back to the application and the
//     sign in route
//   - authn: resolves the authenticated user of a request
//   - session: the session cookie's value
//   - cookie: tamper-evident encrypted cookies
package capsession
