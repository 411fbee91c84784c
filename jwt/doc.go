// Package jwt issues and verifies the HS256 access and refresh tokens used by
// sessiongate.
//
// Each token kind has an independent secret and lifetime, so a leaked access
// secret cannot mint refresh tokens. Every issued token carries a fresh
// random jti (RegisteredClaims.ID) that the session allowlist is keyed on.
//
// # Architecture boundaries
//
// Verification here is stateless: signature, algorithm, expiry and kind.
// Whether a verified token is still live is decided by the allowlist in
// package session.
package jwt
