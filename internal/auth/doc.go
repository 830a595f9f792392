// Package auth verifies bearer tokens for the reading API.
//
// Tokens are HS256-signed JWTs. A token must carry a subject; issuer and
// audience are checked only when configured. The verified identity is stored
// on the request context for logging. It never changes what an operation does.
package auth
