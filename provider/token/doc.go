// Package token is a JWT backed reference implementation of the
// navauth.AuthProvider capability. Access tokens received through the
// callback exchange are verified with golang-jwt; keys come from a static
// signing key, a set of given keys, or a JWKS endpoint via keyfunc.
//
// The provider keeps the session in memory and reports every transition to
// its listeners. Untrusted tokens are rejected, so an expired or malformed
// token never becomes a session.
package token
