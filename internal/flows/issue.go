package flows

import (
	"context"

	"github.com/MrEthical07/sessiongate/jwt"
	"github.com/MrEthical07/sessiongate/session"
)

// IssueDeps captures token-pair issuance dependencies.
type IssueDeps struct {
	Issue IssueFunc
	Store SessionStore
	Keys  session.Keyspace
}

// TokenPair is a signed access/refresh pair. The two tokens never share a
// jti.
type TokenPair struct {
	Access  jwt.Issued
	Refresh jwt.Issued
}

// RunIssuePair signs both tokens, then records them: two allowlist entries
// with TTLs equal to the token lifetimes and two set members. The four
// writes are independent; a failure part-way leaves whatever was written.
func RunIssuePair(ctx context.Context, userID, role string, deps IssueDeps) (TokenPair, error) {
	access, err := deps.Issue(userID, role, jwt.KindAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := deps.Issue(userID, role, jwt.KindRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	setKey := deps.Keys.UserSessions(userID)
	deps.Store.Set(ctx, allowlistKey(deps.Keys, jwt.KindAccess, access.ID), userID, access.TTL)
	deps.Store.Set(ctx, allowlistKey(deps.Keys, jwt.KindRefresh, refresh.ID), userID, refresh.TTL)
	deps.Store.AddToSet(ctx, setKey, access.ID)
	deps.Store.AddToSet(ctx, setKey, refresh.ID)

	return TokenPair{Access: access, Refresh: refresh}, nil
}
