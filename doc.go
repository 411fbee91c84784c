// Package sessiongate issues signed bearer token pairs, keeps a revocable
// allowlist of live sessions in Redis, and enforces one-time refresh
// rotation and bulk revocation.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// sessiongate is the public surface. It exposes [Engine], [Builder],
// [Config], the collaborator interfaces [CredentialStore], [PasswordHasher]
// and [SessionStore], and value types. Flow orchestration lives in
// internal/flows; token signing in package jwt; the allowlist in package
// session.
//
// A token is live only while its `{kind}:{jti}` allowlist key exists. When
// the session store is unreachable every check reports absence, so
// [Engine.Authenticate] and [Engine.Refresh] reject all tokens until it
// recovers, while logout and issuance degrade to no-ops.
//
// # What this package must NOT do
//
//   - Expose Redis clients or key layout details in its public API.
//   - Surface ErrNotFound from a credential store; unknown accounts read as
//     invalid credentials or a gone account.
//   - Perform I/O during Build beyond hashing the timing-equalization
//     password.
package sessiongate
