// Package credentials is the gorm-backed user table behind
// sessiongate.CredentialStore.
//
// Postgres is the production driver; sqlite (pure Go, no cgo) serves
// development and tests. Emails are stored normalized and carry a unique
// index, so a duplicate registration surfaces as sessiongate.ErrEmailTaken
// even when two requests race past the engine's lookup.
//
// # What this package must NOT do
//
//   - Hash or compare passwords.
//   - Touch tokens or the session store.
package credentials
