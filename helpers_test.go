package sessiongate

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/sessiongate/password"
	"github.com/MrEthical07/sessiongate/session"
)

const testPassword = "correct-horse-battery"

var (
	testAccessSecret  = []byte("access-secret-0123456789abcdefghijklmnop")
	testRefreshSecret = []byte("refresh-secret-0123456789abcdefghijklmno")
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = testAccessSecret
	cfg.JWT.RefreshSecret = testRefreshSecret
	cfg.Session.ConnectRetryDelay = 5 * time.Millisecond
	cfg.Session.RecoveryInterval = 20 * time.Millisecond
	return cfg
}

// memoryCredentials is an in-process CredentialStore.
type memoryCredentials struct {
	mu      sync.Mutex
	seq     int
	byID    map[string]User
	byEmail map[string]string
	fail    error
	lookups int
}

func newMemoryCredentials() *memoryCredentials {
	return &memoryCredentials{
		byID:    map[string]User{},
		byEmail: map[string]string{},
	}
}

func (m *memoryCredentials) FindByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.fail != nil {
		return User{}, m.fail
	}
	id, ok := m.byEmail[email]
	if !ok {
		return User{}, fmt.Errorf("%w: email %s", ErrNotFound, email)
	}
	return m.byID[id], nil
}

func (m *memoryCredentials) FindByID(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return User{}, m.fail
	}
	u, ok := m.byID[id]
	if !ok {
		return User{}, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return u, nil
}

func (m *memoryCredentials) Create(_ context.Context, nu NewUser) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return User{}, m.fail
	}
	if _, ok := m.byEmail[nu.Email]; ok {
		return User{}, ErrEmailTaken
	}
	m.seq++
	now := time.Now().UTC()
	u := User{
		ID:           "user-" + strconv.Itoa(m.seq),
		Name:         nu.Name,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		Role:         nu.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.byID[u.ID] = u
	m.byEmail[u.Email] = u.ID
	return u, nil
}

func (m *memoryCredentials) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	u, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	delete(m.byID, id)
	delete(m.byEmail, u.Email)
	return nil
}

func (m *memoryCredentials) setRole(id string, role Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.byID[id]
	u.Role = role
	m.byID[id] = u
}

func (m *memoryCredentials) setFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func fastHasher(t testing.TB) *password.Bcrypt {
	t.Helper()
	h, err := password.NewBcrypt(4)
	require.NoError(t, err)
	return h
}

func newTestMemoryStore() *session.Memory {
	return session.NewMemory()
}

type engineOption func(*Builder)

func withSink(sink AuditSink) engineOption {
	return func(b *Builder) { b.WithAuditSink(sink) }
}

// newMemoryEngine builds an engine over session.Memory; no sockets.
func newMemoryEngine(t testing.TB, mutate func(*Config), opts ...engineOption) (*Engine, *memoryCredentials, *session.Memory) {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	users := newMemoryCredentials()
	store := session.NewMemory()

	b := New().
		WithConfig(cfg).
		WithSessionStore(store).
		WithCredentialStore(users).
		WithPasswordHasher(fastHasher(t))
	for _, o := range opts {
		o(b)
	}
	engine, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine, users, store
}

// newRedisEngine builds an engine over miniredis through session.Store.
func newRedisEngine(t testing.TB, mutate func(*Config), opts ...engineOption) (*Engine, *memoryCredentials, *miniredis.Miniredis) {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{
		Addr:        mr.Addr(),
		MaxRetries:            -1,
		DialTimeout:           100 * time.Millisecond,
		ContextTimeoutEnabled: true,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	users := newMemoryCredentials()
	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(users).
		WithPasswordHasher(fastHasher(t))
	for _, o := range opts {
		o(b)
	}
	engine, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine, users, mr
}

func registerAlice(t testing.TB, e *Engine) *LoginResult {
	t.Helper()
	res, err := e.Register(context.Background(), RegisterInput{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: testPassword,
	})
	require.NoError(t, err)
	return res
}
