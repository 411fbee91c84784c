package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/sessiongate/jwt"
	"github.com/MrEthical07/sessiongate/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureToken
	RefreshFailureRevoked
	RefreshFailureAccountGone
	RefreshFailureLookup
	RefreshFailureIssue
)

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	UserID  string
	TokenID string
	User    UserRecord
	Pair    TokenPair
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Verify   VerifyFunc
	FindByID FindByIDFunc
	NotFound error
	Store    SessionStore
	Keys     session.Keyspace
	Issue    IssueDeps
}

// RunRefresh rotates a refresh token: verify, confirm it is allowlisted,
// reload the user, consume the old entry, issue a new pair. The access
// token issued alongside the old refresh token is left to expire on its own.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	claims, err := deps.Verify(refreshToken, jwt.KindRefresh)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureToken, Err: err}
	}
	userID, jti := claims.Subject, claims.ID

	key := allowlistKey(deps.Keys, jwt.KindRefresh, jti)
	owner, ok := deps.Store.Get(ctx, key)
	if !ok || owner != userID {
		return RefreshResult{Failure: RefreshFailureRevoked, UserID: userID, TokenID: jti}
	}

	user, err := deps.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, deps.NotFound) {
			return RefreshResult{Failure: RefreshFailureAccountGone, Err: err, UserID: userID, TokenID: jti}
		}
		return RefreshResult{Failure: RefreshFailureLookup, Err: err, UserID: userID, TokenID: jti}
	}

	// Only the caller whose DEL removed the entry may proceed.
	if !deps.Store.Consume(ctx, key) {
		return RefreshResult{Failure: RefreshFailureRevoked, UserID: userID, TokenID: jti}
	}
	deps.Store.RemoveFromSet(ctx, deps.Keys.UserSessions(userID), jti)

	pair, err := RunIssuePair(ctx, user.ID, user.Role, deps.Issue)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, UserID: userID, TokenID: jti, User: user}
	}
	return RefreshResult{UserID: userID, TokenID: jti, User: user, Pair: pair}
}
