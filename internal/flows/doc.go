// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunRegister, RunLogin, RunRefresh, RunAuthenticate, etc.)
// accepts a typed dependency struct and returns a result carrying a failure
// kind. The root package maps failure kinds onto public errors, metrics and
// audit events, which keeps the flows free of presentation concerns and easy
// to test against session.Memory.
//
// # Architecture boundaries
//
// Flow functions coordinate the token codec, the session allowlist and the
// credential store. They do NOT own any of these resources; ownership stays
// with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import sessiongate (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency interfaces.
package flows
