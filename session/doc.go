// Package session implements the token allowlist: short string entries
// keyed `{kind}:{jti}` whose existence means a token is live, plus a
// `user:{id}:sessions` set per user used for bulk revocation.
//
// # Degraded mode
//
// [Store] never surfaces Redis failures. While Redis is unreachable, writes
// are dropped and reads report absence ([Store.Exists] is false,
// [Store.MembersOf] is empty). Authentication therefore fails closed while
// login, register and logout keep working without recording anything.
//
// Connection is lazy. The first operation pings with one retry; after that
// the store is either connected or unavailable. An unavailable store lets a
// single caller retry the connection once per recovery interval, and [Store.Ping]
// reconnects on demand.
//
// # Architecture boundaries
//
// This package stores opaque strings. It does not parse tokens or make
// authentication decisions; those belong to the Engine.
//
// # What this package must NOT do
//
//   - Import sessiongate or jwt (no upward imports).
//   - Use multi-key transactions; every operation is a single-key or
//     single-set command.
package session
