// oidclogin provides packages for implementing the relying-party half of an
// OpenID Connect login: building authorization requests and validating the
// responses that come back (state, nonce, token hash bindings, audience and
// issuer checks, claims assembly).
//
// See README.md
package oidclogin
