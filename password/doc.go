// Package password provides the two password hashers sessiongate ships
// with: bcrypt (the default, cost 10) and argon2id in PHC string format.
//
// Both enforce the same minimum length and report an unparseable stored
// hash as an error, distinct from a plain mismatch. NeedsUpgrade lets a
// caller re-hash after a successful login when parameters were raised.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other sessiongate package.
//   - Log plaintext passwords.
package password
