package flows

import (
	"context"
	"sort"

	"github.com/MrEthical07/sessiongate/jwt"
)

// SessionRef reports which allowlist entries still exist for a jti found in
// a user's session set. Both false means the membership is stale.
type SessionRef struct {
	TokenID     string
	AccessLive  bool
	RefreshLive bool
}

// RunListSessions reads the user's set and checks both allowlist keys per
// member. It never mutates the store.
func RunListSessions(ctx context.Context, userID string, deps LogoutDeps) []SessionRef {
	members := deps.Store.MembersOf(ctx, deps.Keys.UserSessions(userID))
	sort.Strings(members)

	out := make([]SessionRef, 0, len(members))
	for _, jti := range members {
		out = append(out, SessionRef{
			TokenID:     jti,
			AccessLive:  deps.Store.Exists(ctx, allowlistKey(deps.Keys, jwt.KindAccess, jti)),
			RefreshLive: deps.Store.Exists(ctx, allowlistKey(deps.Keys, jwt.KindRefresh, jti)),
		})
	}
	return out
}
