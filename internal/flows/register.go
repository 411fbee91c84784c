package flows

import (
	"context"
	"errors"
)

// RegisterFailureKind classifies register flow failures for root-level mapping.
type RegisterFailureKind int

const (
	RegisterFailureNone RegisterFailureKind = iota
	RegisterFailureConflict
	RegisterFailureLookup
	RegisterFailureHash
	RegisterFailureCreate
	RegisterFailureIssue
)

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

// RegisterDeps captures register flow dependencies. NotFound and Conflict
// are the credential store's sentinels for a missing row and a unique
// violation.
type RegisterDeps struct {
	FindByEmail FindByEmailFunc
	Create      func(ctx context.Context, u NewUser) (UserRecord, error)
	Hash        func(password string) (string, error)
	RoleFor     func(email string) (role string, seeded bool)
	NotFound    error
	Conflict    error
	Issue       IssueDeps
}

type RegisterResult struct {
	Failure RegisterFailureKind
	Err     error
	User    UserRecord
	Pair    TokenPair
	Seeded  bool
}

// RunRegister creates the account and logs it in. Email is expected to be
// normalized by the caller.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) RegisterResult {
	_, err := deps.FindByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return RegisterResult{Failure: RegisterFailureConflict, Err: deps.Conflict}
	case !errors.Is(err, deps.NotFound):
		return RegisterResult{Failure: RegisterFailureLookup, Err: err}
	}

	hash, err := deps.Hash(req.Password)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureHash, Err: err}
	}

	role, seeded := deps.RoleFor(req.Email)
	user, err := deps.Create(ctx, NewUser{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		// A concurrent registration can win between lookup and insert.
		if deps.Conflict != nil && errors.Is(err, deps.Conflict) {
			return RegisterResult{Failure: RegisterFailureConflict, Err: err}
		}
		return RegisterResult{Failure: RegisterFailureCreate, Err: err}
	}

	pair, err := RunIssuePair(ctx, user.ID, user.Role, deps.Issue)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureIssue, Err: err, User: user, Seeded: seeded}
	}
	return RegisterResult{User: user, Pair: pair, Seeded: seeded}
}
