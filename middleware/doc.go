// Package middleware adapts Engine.Authenticate to net/http.
//
// [Guard] reads the Authorization header, asks the Authenticator whether the
// access token is live, and on success stores the [sessiongate.SessionContext]
// in the request context for [SessionFromContext]. Every failure, including
// an unreachable session store, rejects the request.
//
// # What this package must NOT do
//
//   - Parse or verify JWTs itself.
//   - Touch the session store.
//   - Make role decisions. Handlers read SessionContext.Role.
package middleware
