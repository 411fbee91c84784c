package flows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/sessiongate/jwt"
	"github.com/MrEthical07/sessiongate/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errNotFound = errors.New("not found")
	errConflict = errors.New("conflict")
)

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]UserRecord
	byID    map[string]UserRecord
	failAll error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: map[string]UserRecord{}, byID: map[string]UserRecord{}}
}

func (f *fakeUsers) findByEmail(_ context.Context, email string) (UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return UserRecord{}, f.failAll
	}
	u, ok := f.byEmail[email]
	if !ok {
		return UserRecord{}, errNotFound
	}
	return u, nil
}

func (f *fakeUsers) findByID(_ context.Context, id string) (UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return UserRecord{}, f.failAll
	}
	u, ok := f.byID[id]
	if !ok {
		return UserRecord{}, errNotFound
	}
	return u, nil
}

func (f *fakeUsers) create(_ context.Context, n NewUser) (UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byEmail[n.Email]; ok {
		return UserRecord{}, errConflict
	}
	u := UserRecord{ID: "id-" + n.Email, Name: n.Name, Email: n.Email, PasswordHash: n.PasswordHash, Role: n.Role}
	f.byEmail[u.Email] = u
	f.byID[u.ID] = u
	return u, nil
}

type flowFixture struct {
	store *session.Memory
	users *fakeUsers
	jwt   *jwt.Manager
	deps  Deps
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{
		AccessSecret:  []byte("flows-access-secret-0123456789abcdef"),
		RefreshSecret: []byte("flows-refresh-secret-0123456789abcdef"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	})
	require.NoError(t, err)

	f := &flowFixture{store: session.NewMemory(), users: newFakeUsers(), jwt: m}
	issue := IssueDeps{Issue: m.Issue, Store: f.store}
	verify := func(p, h string) (bool, error) { return "hash:"+p == h, nil }
	f.deps = Deps{
		Issue: issue,
		Register: RegisterDeps{
			FindByEmail: f.users.findByEmail,
			Create:      f.users.create,
			Hash:        func(p string) (string, error) { return "hash:" + p, nil },
			RoleFor:     func(string) (string, bool) { return "USER", false },
			NotFound:    errNotFound,
			Conflict:    errConflict,
			Issue:       issue,
		},
		Login: LoginDeps{
			FindByEmail: f.users.findByEmail,
			Verify:      verify,
			DummyHash:   "hash:dummy",
			NotFound:    errNotFound,
			Issue:       issue,
		},
		Refresh: RefreshDeps{
			Verify:   m.Verify,
			FindByID: f.users.findByID,
			NotFound: errNotFound,
			Store:    f.store,
			Issue:    issue,
		},
		Logout:       LogoutDeps{Store: f.store},
		Authenticate: AuthenticateDeps{Verify: m.Verify, Store: f.store},
	}
	return f
}

func (f *flowFixture) register(t *testing.T, email string) RegisterResult {
	t.Helper()
	res := RunRegister(context.Background(), RegisterRequest{Name: "N", Email: email, Password: "password1"}, f.deps.Register)
	require.Equal(t, RegisterFailureNone, res.Failure, "register: %v", res.Err)
	return res
}

func TestIssuePairRecordsBothTokens(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	pair, err := RunIssuePair(ctx, "u1", "USER", f.deps.Issue)
	require.NoError(t, err)
	require.NotEqual(t, pair.Access.ID, pair.Refresh.ID)

	owner, ok := f.store.Get(ctx, "access:"+pair.Access.ID)
	require.True(t, ok)
	assert.Equal(t, "u1", owner)
	assert.True(t, f.store.Exists(ctx, "refresh:"+pair.Refresh.ID))
	assert.ElementsMatch(t, []string{pair.Access.ID, pair.Refresh.ID}, f.store.MembersOf(ctx, "user:u1:sessions"))

	f.store.Advance(16 * time.Minute)
	assert.False(t, f.store.Exists(ctx, "access:"+pair.Access.ID), "access entry expires with the token")
	assert.True(t, f.store.Exists(ctx, "refresh:"+pair.Refresh.ID))
}

func TestRegisterConflictAndLookupFailure(t *testing.T) {
	f := newFlowFixture(t)
	f.register(t, "a@example.com")

	res := RunRegister(context.Background(), RegisterRequest{Email: "a@example.com", Password: "password1"}, f.deps.Register)
	assert.Equal(t, RegisterFailureConflict, res.Failure)

	f.users.failAll = errors.New("db down")
	res = RunRegister(context.Background(), RegisterRequest{Email: "b@example.com", Password: "password1"}, f.deps.Register)
	assert.Equal(t, RegisterFailureLookup, res.Failure)
}

func TestRegisterInsertRaceMapsToConflict(t *testing.T) {
	f := newFlowFixture(t)
	deps := f.deps.Register
	deps.FindByEmail = func(context.Context, string) (UserRecord, error) { return UserRecord{}, errNotFound }
	f.register(t, "race@example.com")

	res := RunRegister(context.Background(), RegisterRequest{Email: "race@example.com", Password: "password1"}, deps)
	assert.Equal(t, RegisterFailureConflict, res.Failure)
}

func TestLoginFailuresAreIndistinguishableKinds(t *testing.T) {
	f := newFlowFixture(t)
	f.register(t, "a@example.com")
	dummyChecked := false
	deps := f.deps.Login
	deps.Verify = func(p, h string) (bool, error) {
		if h == "hash:dummy" {
			dummyChecked = true
		}
		return "hash:"+p == h, nil
	}

	ok := RunLogin(context.Background(), "a@example.com", "password1", deps)
	require.Equal(t, LoginFailureNone, ok.Failure)
	assert.Equal(t, "id-a@example.com", ok.User.ID)

	bad := RunLogin(context.Background(), "a@example.com", "nope", deps)
	assert.Equal(t, LoginFailureBadPassword, bad.Failure)

	unknown := RunLogin(context.Background(), "ghost@example.com", "password1", deps)
	assert.Equal(t, LoginFailureUnknownUser, unknown.Failure)
	assert.True(t, dummyChecked, "unknown email still pays for one verification")
}

func TestRefreshRotatesOnce(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@example.com")

	first := RunRefresh(ctx, reg.Pair.Refresh.Token, f.deps.Refresh)
	require.Equal(t, RefreshFailureNone, first.Failure, "refresh: %v", first.Err)
	assert.NotEqual(t, reg.Pair.Refresh.ID, first.Pair.Refresh.ID)

	replay := RunRefresh(ctx, reg.Pair.Refresh.Token, f.deps.Refresh)
	assert.Equal(t, RefreshFailureRevoked, replay.Failure)

	// The access token minted with the rotated refresh token survives.
	auth := RunAuthenticate(ctx, reg.Pair.Access.Token, f.deps.Authenticate)
	assert.Equal(t, AuthenticateFailureNone, auth.Failure)

	members := f.store.MembersOf(ctx, "user:"+reg.User.ID+":sessions")
	assert.NotContains(t, members, reg.Pair.Refresh.ID)
}

func TestRefreshConcurrentSingleWinner(t *testing.T) {
	f := newFlowFixture(t)
	reg := f.register(t, "a@example.com")

	const n = 16
	results := make(chan RefreshFailureKind, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- RunRefresh(context.Background(), reg.Pair.Refresh.Token, f.deps.Refresh).Failure
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for kind := range results {
		if kind == RefreshFailureNone {
			wins++
			continue
		}
		assert.Equal(t, RefreshFailureRevoked, kind)
	}
	assert.Equal(t, 1, wins)
}

func TestRefreshAccountGoneAndBadToken(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	pair, err := RunIssuePair(ctx, "deleted-user", "USER", f.deps.Issue)
	require.NoError(t, err)
	res := RunRefresh(ctx, pair.Refresh.Token, f.deps.Refresh)
	assert.Equal(t, RefreshFailureAccountGone, res.Failure)

	res = RunRefresh(ctx, pair.Access.Token, f.deps.Refresh)
	assert.Equal(t, RefreshFailureToken, res.Failure)
}

func TestLogoutRevokesOnlyAccess(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@example.com")

	RunLogout(ctx, reg.User.ID, reg.Pair.Access.ID, f.deps.Logout)
	RunLogout(ctx, reg.User.ID, reg.Pair.Access.ID, f.deps.Logout)

	auth := RunAuthenticate(ctx, reg.Pair.Access.Token, f.deps.Authenticate)
	assert.Equal(t, AuthenticateFailureRevoked, auth.Failure)

	refreshed := RunRefresh(ctx, reg.Pair.Refresh.Token, f.deps.Refresh)
	assert.Equal(t, RefreshFailureNone, refreshed.Failure)
}

func TestLogoutAllCoversEveryLogin(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@example.com")
	second := RunLogin(ctx, "a@example.com", "password1", f.deps.Login)
	require.Equal(t, LoginFailureNone, second.Failure)

	visited := RunLogoutAll(ctx, reg.User.ID, f.deps.Logout)
	assert.Equal(t, 4, visited)

	for _, tok := range []string{reg.Pair.Access.Token, second.Pair.Access.Token} {
		assert.Equal(t, AuthenticateFailureRevoked, RunAuthenticate(ctx, tok, f.deps.Authenticate).Failure)
	}
	for _, tok := range []string{reg.Pair.Refresh.Token, second.Pair.Refresh.Token} {
		assert.Equal(t, RefreshFailureRevoked, RunRefresh(ctx, tok, f.deps.Refresh).Failure)
	}
	assert.Empty(t, f.store.MembersOf(ctx, "user:"+reg.User.ID+":sessions"))
}

func TestAuthenticateFailClosedWhenStoreDown(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@example.com")

	f.store.SetAvailable(false)
	auth := RunAuthenticate(ctx, reg.Pair.Access.Token, f.deps.Authenticate)
	assert.Equal(t, AuthenticateFailureRevoked, auth.Failure)

	login := RunLogin(ctx, "a@example.com", "password1", f.deps.Login)
	assert.Equal(t, LoginFailureNone, login.Failure, "write side degrades silently")
	assert.NotEmpty(t, login.Pair.Access.Token)
}

func TestAuthenticateClassifiesTokenFailures(t *testing.T) {
	f := newFlowFixture(t)

	assert.Equal(t, AuthenticateFailureMissing, RunAuthenticate(context.Background(), "", f.deps.Authenticate).Failure)
	assert.Equal(t, AuthenticateFailureInvalid, RunAuthenticate(context.Background(), "x.y.z", f.deps.Authenticate).Failure)
}

func TestListSessionsReportsDrift(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@example.com")

	f.store.Advance(time.Hour)
	refs := RunListSessions(ctx, reg.User.ID, f.deps.Logout)
	require.Len(t, refs, 2)
	for _, ref := range refs {
		switch ref.TokenID {
		case reg.Pair.Access.ID:
			assert.False(t, ref.AccessLive, "expired access entry stays in the set")
		case reg.Pair.Refresh.ID:
			assert.True(t, ref.RefreshLive)
		default:
			t.Fatalf("unexpected jti %s", ref.TokenID)
		}
	}
}
