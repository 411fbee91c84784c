package flows

import (
	"context"

	"github.com/MrEthical07/sessiongate/jwt"
	"github.com/MrEthical07/sessiongate/session"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Store SessionStore
	Keys  session.Keyspace
}

// RunLogout revokes one access token. The refresh token issued with it is
// untouched.
func RunLogout(ctx context.Context, userID, accessJTI string, deps LogoutDeps) {
	deps.Store.Del(ctx, allowlistKey(deps.Keys, jwt.KindAccess, accessJTI))
	deps.Store.RemoveFromSet(ctx, deps.Keys.UserSessions(userID), accessJTI)
}

// RunLogoutAll deletes both possible allowlist keys for every jti in the
// user's set, then the set itself. It returns the number of jti visited.
// Deleting a key of the wrong kind, or one that already expired, is a no-op.
func RunLogoutAll(ctx context.Context, userID string, deps LogoutDeps) int {
	setKey := deps.Keys.UserSessions(userID)
	members := deps.Store.MembersOf(ctx, setKey)

	keys := make([]string, 0, 2*len(members))
	for _, jti := range members {
		keys = append(keys,
			allowlistKey(deps.Keys, jwt.KindAccess, jti),
			allowlistKey(deps.Keys, jwt.KindRefresh, jti),
		)
	}
	deps.Store.DelMany(ctx, keys...)
	deps.Store.Del(ctx, setKey)
	return len(members)
}
