// Package auth verifies bearer tokens presented on authenticated
// routes. Tokens are JWTs validated against either a shared HMAC
// secret or a remote JWKS endpoint, and the verified identity carries
// the roles claim used for role checks.
package auth
