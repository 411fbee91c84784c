package session

// Keyspace builds the allowlist and per-user set keys. The zero value uses
// the bare `{kind}:{jti}` and `user:{id}:sessions` layout; Prefix namespaces
// every key when several deployments share one Redis.
type Keyspace struct {
	Prefix string
}

// Allowlist returns the key whose existence marks token jti of kind as live.
func (k Keyspace) Allowlist(kind, jti string) string {
	return k.Prefix + kind + ":" + jti
}

// UserSessions returns the key of the set holding every jti issued to userID.
func (k Keyspace) UserSessions(userID string) string {
	return k.Prefix + "user:" + userID + ":sessions"
}
