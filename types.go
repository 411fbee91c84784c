package sessiongate

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/sessiongate/session"
)

// Role is the coarse authorization role carried in every token.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// ParseRole accepts any casing of a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

// User is an account as held by the CredentialStore. PasswordHash is never
// serialized.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewUser is the row Register asks the CredentialStore to create.
type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
	Role         Role
}

// CredentialStore persists user accounts. FindByEmail and FindByID return
// an error matching ErrNotFound for a missing user; Create returns one
// matching ErrConflict when the email is taken.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	Create(ctx context.Context, u NewUser) (User, error)
	DeleteByID(ctx context.Context, id string) error
}

// PasswordHasher hashes and verifies passwords. Verify returns (false, nil)
// on mismatch and an error only for an unusable stored hash.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
}

// SessionStore is the token allowlist. See package session for the
// degraded-mode contract every implementation must honor.
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
	State() session.State
	Ping(ctx context.Context) error
}

// RegisterInput is the payload of Register.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// TokenPair is an access token and its sibling refresh token.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessTokenID    string    `json:"-"`
	RefreshTokenID   string    `json:"-"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

// LoginResult is returned by Register and Login.
type LoginResult struct {
	User   User
	Tokens TokenPair
}

// SessionContext identifies the caller of an authenticated request.
type SessionContext struct {
	UserID  string `json:"userId"`
	Role    Role   `json:"role"`
	TokenID string `json:"jti"`
}

// SessionRef describes one jti in a user's session set.
type SessionRef struct {
	TokenID     string `json:"jti"`
	AccessLive  bool   `json:"access"`
	RefreshLive bool   `json:"refresh"`
}

// HealthStatus is an on-demand session store health result.
type HealthStatus struct {
	SessionStore session.State
	Latency      time.Duration
	Err          error
}

// Healthy reports whether the session store answered the health ping.
func (h HealthStatus) Healthy() bool {
	return h.Err == nil && h.SessionStore == session.StateConnected
}
