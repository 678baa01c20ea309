/*
callback provides callbacks (in the form of http.HandlerFunc) for handling
OIDC provider responses to authorization code and hybrid flow authentication
attempts.
*/
package callback
