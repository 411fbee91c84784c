package flows

import (
	"context"
	"errors"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureUnknownUser
	LoginFailureBadPassword
	LoginFailureCorruptHash
	LoginFailureLookup
	LoginFailureIssue
)

// LoginDeps captures login flow dependencies. DummyHash is verified when the
// email is unknown so both failure paths cost one hash comparison.
type LoginDeps struct {
	FindByEmail FindByEmailFunc
	Verify      func(password, hash string) (bool, error)
	DummyHash   string
	NotFound    error
	Issue       IssueDeps
}

type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	User    UserRecord
	Pair    TokenPair
}

func RunLogin(ctx context.Context, email, password string, deps LoginDeps) LoginResult {
	user, err := deps.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, deps.NotFound) {
			if deps.DummyHash != "" {
				_, _ = deps.Verify(password, deps.DummyHash)
			}
			return LoginResult{Failure: LoginFailureUnknownUser, Err: err}
		}
		return LoginResult{Failure: LoginFailureLookup, Err: err}
	}

	ok, err := deps.Verify(password, user.PasswordHash)
	if err != nil {
		return LoginResult{Failure: LoginFailureCorruptHash, Err: err, User: user}
	}
	if !ok {
		return LoginResult{Failure: LoginFailureBadPassword, User: user}
	}

	pair, err := RunIssuePair(ctx, user.ID, user.Role, deps.Issue)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, User: user}
	}
	return LoginResult{User: user, Pair: pair}
}
