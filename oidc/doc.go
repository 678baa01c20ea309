/*
oidc implements the response-validation half of an OIDC relying party.

Primary types provided by the package

* Request: represents one OIDC authentication attempt for a user. It carries
the state, nonce and PKCE code verifier needed to bind the provider's
response back to the attempt that initiated it. A Request is single use and
expires.

* Flow: validates raw authorization responses for a configured flow style
(authorization code or hybrid), redeems authorization codes, enforces the
state/nonce/c_hash/at_hash/audience/issuer bindings, and assembles a
LoginResult.

* LoginResult: the outcome of a validation pass. Either it succeeded and
carries the user's Identity and tokens (plus an optional RefreshTokenHandler)
or it failed and carries a terminal error message.

* Config: the relying party configuration (client id/secret, issuer, flow
style, redirect URL, scopes, claim filtering).

The flow's network collaborators (discovery metadata, token endpoint, user
info endpoint, id_token signature validation) are all interfaces with default
HTTP implementations, so any of them can be replaced in tests or swapped for
a caching layer.

The oidc/callback package provides http.HandlerFunc constructors which wire a
Flow into the redirect endpoint of an HTTP server.
*/
package oidc
