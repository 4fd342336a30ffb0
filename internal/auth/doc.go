// Package auth issues and validates bearer tokens for the read-only API.
//
// Tokens are HS256-signed JWTs carrying a subject (who the dashboard or
// script is) and a scope. There are no users, passwords or refresh tokens:
// an operator mints a token with the configured secret and hands it to the
// client. Rotating the secret revokes every outstanding token.
package auth
