package sessiongate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/sessiongate/internal/flows"
	"github.com/MrEthical07/sessiongate/jwt"
	"github.com/MrEthical07/sessiongate/password"
	"github.com/MrEthical07/sessiongate/session"
)

// Engine issues, rotates, revokes and checks token pairs. Build one with
// New().WithCredentialStore(...).Build(); all methods are safe for
// concurrent use.
type Engine struct {
	config     Config
	flow       flows.Service
	store      SessionStore
	users      CredentialStore
	hasher     PasswordHasher
	jwtManager *jwt.Manager
	keys       session.Keyspace
	seeds      map[string]Role
	audit      *auditDispatcher
	metrics    *Metrics
	logger     *slog.Logger
}

// Close flushes and stops the audit dispatcher. It does not close the
// session or credential stores.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine counters and, when the session store
// keeps them, its degraded-mode counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	s := e.metrics.Snapshot()
	if st, ok := e.store.(storeStatser); ok && e.metrics.Enabled() {
		stats := st.Stats()
		s.Counters[MetricStoreDegradedReads] = stats.DegradedReads
		s.Counters[MetricStoreDegradedWrites] = stats.DegradedWrites
	}
	return s
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) log(ctx context.Context) *slog.Logger {
	if id := CorrelationIDFromContext(ctx); id != "" {
		return e.logger.With("correlation_id", id)
	}
	return e.logger
}

func (e *Engine) ready() bool {
	return e != nil && e.flow.Initialized()
}

// Register creates an account and logs it in. The role comes from
// Config.Roles: a matching seed, otherwise the default.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	switch {
	case name == "":
		return nil, invalidInput("name is required")
	case !strings.Contains(email, "@"):
		return nil, invalidInput("email must be a valid email address")
	case in.Password == "":
		return nil, invalidInput("password is required")
	}

	res := e.flow.Register(ctx, flows.RegisterRequest{Name: name, Email: email, Password: in.Password})
	if res.Failure != flows.RegisterFailureNone {
		err := e.registerError(ctx, res)
		e.emitAudit(ctx, auditEventRegisterFailure, false, res.User.ID, "", err, func() map[string]string {
			return map[string]string{"email": email}
		})
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.metricInc(MetricTokenPairIssued)
	pair := fromFlowPair(res.Pair)
	if res.Seeded {
		e.log(ctx).Warn("role granted from seed configuration", "user_id", res.User.ID, "role", res.User.Role)
		e.emitAudit(ctx, auditEventRoleSeeded, true, res.User.ID, "", nil, func() map[string]string {
			return map[string]string{"role": res.User.Role}
		})
	}
	e.emitAudit(ctx, auditEventRegisterSuccess, true, res.User.ID, pair.AccessTokenID, nil, nil)
	e.log(ctx).Info("user registered", "user_id", res.User.ID, "role", res.User.Role)

	return &LoginResult{User: fromFlowUser(res.User), Tokens: pair}, nil
}

func (e *Engine) registerError(ctx context.Context, res flows.RegisterResult) error {
	switch res.Failure {
	case flows.RegisterFailureConflict:
		e.metricInc(MetricRegisterConflict)
		return ErrEmailTaken
	case flows.RegisterFailureHash:
		switch {
		case errors.Is(res.Err, password.ErrTooShort):
			return invalidInput("password must be at least %d characters", password.MinLength)
		case errors.Is(res.Err, password.ErrTooLong):
			return invalidInput("password is too long")
		}
		e.log(ctx).Error("password hashing failed", "error", res.Err)
		return fmt.Errorf("%w: %v", ErrInternal, res.Err)
	case flows.RegisterFailureIssue:
		e.log(ctx).Error("token issuance failed", "user_id", res.User.ID, "error", res.Err)
		return fmt.Errorf("%w: %v", ErrTokenIssue, res.Err)
	default:
		e.log(ctx).Error("credential store failed during register", "error", res.Err)
		return fmt.Errorf("%w: %v", ErrCredentialStore, res.Err)
	}
}

// Login verifies email and password. An unknown email and a wrong password
// return the same ErrInvalidCredentials after the same hashing work.
func (e *Engine) Login(ctx context.Context, email, pw string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	email = normalizeEmail(email)
	if email == "" || pw == "" {
		return nil, invalidInput("email and password are required")
	}

	res := e.flow.Login(ctx, email, pw)
	if res.Failure != flows.LoginFailureNone {
		err := e.loginError(ctx, res)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.User.ID, "", err, func() map[string]string {
			return map[string]string{"reason": loginReason(res.Failure)}
		})
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricTokenPairIssued)
	pair := fromFlowPair(res.Pair)
	e.emitAudit(ctx, auditEventLoginSuccess, true, res.User.ID, pair.AccessTokenID, nil, nil)
	e.log(ctx).Debug("login succeeded", "user_id", res.User.ID)

	return &LoginResult{User: fromFlowUser(res.User), Tokens: pair}, nil
}

func (e *Engine) loginError(ctx context.Context, res flows.LoginResult) error {
	switch res.Failure {
	case flows.LoginFailureUnknownUser, flows.LoginFailureBadPassword:
		return ErrInvalidCredentials
	case flows.LoginFailureCorruptHash:
		e.log(ctx).Error("stored password hash is unusable", "user_id", res.User.ID, "error", res.Err)
		return ErrInvalidCredentials
	case flows.LoginFailureIssue:
		e.log(ctx).Error("token issuance failed", "user_id", res.User.ID, "error", res.Err)
		return fmt.Errorf("%w: %v", ErrTokenIssue, res.Err)
	default:
		e.log(ctx).Error("credential store failed during login", "error", res.Err)
		return fmt.Errorf("%w: %v", ErrCredentialStore, res.Err)
	}
}

func loginReason(k flows.LoginFailureKind) string {
	switch k {
	case flows.LoginFailureUnknownUser:
		return "unknown_user"
	case flows.LoginFailureBadPassword:
		return "bad_password"
	case flows.LoginFailureCorruptHash:
		return "corrupt_hash"
	case flows.LoginFailureIssue:
		return "issue"
	default:
		return "lookup"
	}
}

// IssueTokenPair signs a fresh pair for an already-authenticated user and
// records both tokens in the allowlist.
func (e *Engine) IssueTokenPair(ctx context.Context, userID string, role Role) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, invalidInput("user id is required")
	}
	if !role.Valid() {
		return nil, invalidInput("unknown role %q", role)
	}

	p, err := e.flow.IssuePair(ctx, userID, string(role))
	if err != nil {
		e.log(ctx).Error("token issuance failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrTokenIssue, err)
	}
	e.metricInc(MetricTokenPairIssued)
	pair := fromFlowPair(p)
	return &pair, nil
}

// Refresh rotates refreshToken: it is consumed and a new pair is returned.
// The access token issued with the old refresh token stays valid until it
// expires or is logged out.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flow.Refresh(ctx, refreshToken)
	if res.Failure != flows.RefreshFailureNone {
		err := e.refreshError(ctx, res)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, res.UserID, res.TokenID, err, nil)
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.metricInc(MetricTokenPairIssued)
	pair := fromFlowPair(res.Pair)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, res.UserID, pair.RefreshTokenID, nil, func() map[string]string {
		return map[string]string{"rotated_from": res.TokenID}
	})
	return &pair, nil
}

func (e *Engine) refreshError(ctx context.Context, res flows.RefreshResult) error {
	switch res.Failure {
	case flows.RefreshFailureToken:
		if errors.Is(res.Err, jwt.ErrExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	case flows.RefreshFailureRevoked:
		e.metricInc(MetricRefreshRevoked)
		e.log(ctx).Info("refresh token not in allowlist", "user_id", res.UserID, "jti", res.TokenID)
		return ErrTokenRevoked
	case flows.RefreshFailureAccountGone:
		return ErrAccountGone
	case flows.RefreshFailureIssue:
		e.log(ctx).Error("token issuance failed", "user_id", res.UserID, "error", res.Err)
		return fmt.Errorf("%w: %v", ErrTokenIssue, res.Err)
	default:
		e.log(ctx).Error("credential store failed during refresh", "user_id", res.UserID, "error", res.Err)
		return fmt.Errorf("%w: %v", ErrCredentialStore, res.Err)
	}
}

// Logout revokes the access token identified by sc. The refresh token from
// the same login is left alone.
func (e *Engine) Logout(ctx context.Context, sc SessionContext) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if sc.UserID == "" || sc.TokenID == "" {
		return invalidInput("session context requires user id and token id")
	}

	e.flow.Logout(ctx, sc.UserID, sc.TokenID)
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, sc.UserID, sc.TokenID, nil, nil)
	return nil
}

// LogoutAll revokes every token recorded in the user's session set.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if userID == "" {
		return invalidInput("user id is required")
	}

	n := e.flow.LogoutAll(ctx, userID)
	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", nil, func() map[string]string {
		return map[string]string{"sessions": strconv.Itoa(n)}
	})
	e.log(ctx).Info("all sessions revoked", "user_id", userID, "sessions", n)
	return nil
}

// Authenticate checks an access token's signature and expiry, then its
// allowlist entry. When the session store cannot answer, the token is
// rejected.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*SessionContext, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	res := e.flow.Authenticate(ctx, accessToken)
	e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))

	var err error
	switch res.Failure {
	case flows.AuthenticateFailureNone:
	case flows.AuthenticateFailureMissing:
		err = ErrTokenMissing
	case flows.AuthenticateFailureExpired:
		err = ErrTokenExpired
	case flows.AuthenticateFailureRevoked:
		e.metricInc(MetricAuthenticateRevoked)
		err = ErrTokenRevoked
	default:
		err = ErrTokenInvalid
	}

	var role Role
	if err == nil {
		if role = Role(res.Claims.Role); !role.Valid() {
			err = ErrTokenInvalid
		}
	}

	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
		var userID, jti string
		if res.Claims != nil {
			userID, jti = res.Claims.Subject, res.Claims.ID
		}
		e.emitAudit(ctx, auditEventAuthenticateFailure, false, userID, jti, err, nil)
		e.log(ctx).Debug("bearer token rejected", "reason", auditErrorCode(err), "user_id", userID)
		return nil, err
	}

	e.metricInc(MetricAuthenticateSuccess)
	return &SessionContext{UserID: res.Claims.Subject, Role: role, TokenID: res.Claims.ID}, nil
}
