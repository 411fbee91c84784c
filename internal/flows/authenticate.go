package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/sessiongate/jwt"
	"github.com/MrEthical07/sessiongate/session"
)

// AuthenticateFailureKind separates why a bearer token was refused. The
// distinction is for logs and metrics only.
type AuthenticateFailureKind int

const (
	AuthenticateFailureNone AuthenticateFailureKind = iota
	AuthenticateFailureMissing
	AuthenticateFailureExpired
	AuthenticateFailureInvalid
	AuthenticateFailureRevoked
)

type AuthenticateResult struct {
	Failure AuthenticateFailureKind
	Err     error
	Claims  *jwt.Claims
}

// AuthenticateDeps captures request-authentication dependencies. Timeout
// bounds the allowlist check; zero leaves it to the store.
type AuthenticateDeps struct {
	Verify  VerifyFunc
	Store   SessionStore
	Keys    session.Keyspace
	Timeout time.Duration
}

// RunAuthenticate verifies token statelessly first and only then asks the
// allowlist. Any store failure, including a timeout, reads as revoked.
func RunAuthenticate(ctx context.Context, token string, deps AuthenticateDeps) AuthenticateResult {
	if token == "" {
		return AuthenticateResult{Failure: AuthenticateFailureMissing}
	}

	claims, err := deps.Verify(token, jwt.KindAccess)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return AuthenticateResult{Failure: AuthenticateFailureExpired, Err: err}
		}
		return AuthenticateResult{Failure: AuthenticateFailureInvalid, Err: err}
	}

	checkCtx := ctx
	if deps.Timeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, deps.Timeout)
		defer cancel()
	}
	if !deps.Store.Exists(checkCtx, allowlistKey(deps.Keys, jwt.KindAccess, claims.ID)) {
		return AuthenticateResult{Failure: AuthenticateFailureRevoked, Claims: claims}
	}
	return AuthenticateResult{Claims: claims}
}
