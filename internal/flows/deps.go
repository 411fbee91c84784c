package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/sessiongate/jwt"
	"github.com/MrEthical07/sessiongate/session"
)

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Register     RegisterDeps
	Login        LoginDeps
	Issue        IssueDeps
	Refresh      RefreshDeps
	Logout       LogoutDeps
	Authenticate AuthenticateDeps
}

// SessionStore is the allowlist surface the flows need. Implementations
// must follow the degraded-mode contract: no errors, negative reads.
type SessionStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Get(ctx context.Context, key string) (string, bool)
	Exists(ctx context.Context, key string) bool
	Consume(ctx context.Context, key string) bool
	Del(ctx context.Context, key string)
	DelMany(ctx context.Context, keys ...string)
	AddToSet(ctx context.Context, setKey, member string)
	RemoveFromSet(ctx context.Context, setKey, member string)
	MembersOf(ctx context.Context, setKey string) []string
}

// UserRecord is the credential-store view the flows operate on.
type UserRecord struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser is what RunRegister asks the credential store to persist.
type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
	Role         string
}

type (
	FindByEmailFunc func(ctx context.Context, email string) (UserRecord, error)
	FindByIDFunc    func(ctx context.Context, id string) (UserRecord, error)
	IssueFunc       func(userID, role string, kind jwt.Kind) (jwt.Issued, error)
	VerifyFunc      func(token string, kind jwt.Kind) (*jwt.Claims, error)
)

func allowlistKey(keys session.Keyspace, kind jwt.Kind, jti string) string {
	return keys.Allowlist(string(kind), jti)
}
