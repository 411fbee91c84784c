package sessiongate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrEthical07/sessiongate/internal/flows"
	"github.com/MrEthical07/sessiongate/jwt"
	"github.com/MrEthical07/sessiongate/password"
	"github.com/MrEthical07/sessiongate/session"
	"github.com/redis/go-redis/v9"
)

// dummyPassword is hashed once at Build; login verifies against it when the
// email is unknown.
const dummyPassword = "sessiongate-timing-equalizer"

// Builder assembles an Engine. A Builder can be built once.
type Builder struct {
	config Config

	redis        redis.UniversalClient
	sessionStore SessionStore
	credentials  CredentialStore
	hasher       PasswordHasher
	auditSink    AuditSink
	logger       *slog.Logger

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs the allowlist with client through session.NewStore. The
// client is not contacted until the first session operation.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSessionStore supplies a ready allowlist and takes precedence over
// WithRedis.
func (b *Builder) WithSessionStore(store SessionStore) *Builder {
	b.sessionStore = store
	return b
}

func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

// WithPasswordHasher overrides the default bcrypt hasher.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- SESSION STORE --------
	store := b.sessionStore
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("session store or redis client required")
		}
		store = session.NewStore(b.redis, session.Options{
			OperationTimeout:  cfg.Session.OperationTimeout,
			ConnectRetryDelay: cfg.Session.ConnectRetryDelay,
			RecoveryInterval:  cfg.Session.RecoveryInterval,
			Logger:            logger,
		})
	}

	// -------- PASSWORD HASHER --------
	hasher := b.hasher
	if hasher == nil {
		bc, err := password.NewBcrypt(password.DefaultBcryptCost)
		if err != nil {
			return nil, err
		}
		hasher = bc
	}
	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}

	// -------- TOKEN CODEC --------
	jm, err := jwt.NewManager(jwt.Config{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	seeds := make(map[string]Role, len(cfg.Roles.Seeds))
	for _, s := range cfg.Roles.Seeds {
		seeds[normalizeEmail(s.Email)] = s.Role
	}

	engine := &Engine{
		config:     cfg,
		store:      store,
		users:      b.credentials,
		hasher:     hasher,
		jwtManager: jm,
		keys:       session.Keyspace{Prefix: cfg.Session.KeyPrefix},
		seeds:      seeds,
		logger:     logger.With("component", "sessiongate"),
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, engine.logger)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.flow = flows.New(engine.flowDeps(dummyHash))

	b.built = true

	return engine, nil
}

func (e *Engine) flowDeps(dummyHash string) flows.Deps {
	issue := flows.IssueDeps{
		Issue: e.jwtManager.Issue,
		Store: e.store,
		Keys:  e.keys,
	}
	findByEmail := func(ctx context.Context, email string) (flows.UserRecord, error) {
		u, err := e.users.FindByEmail(ctx, email)
		if err != nil {
			return flows.UserRecord{}, err
		}
		return toFlowUser(u), nil
	}
	findByID := func(ctx context.Context, id string) (flows.UserRecord, error) {
		u, err := e.users.FindByID(ctx, id)
		if err != nil {
			return flows.UserRecord{}, err
		}
		return toFlowUser(u), nil
	}
	sessions := flows.LogoutDeps{Store: e.store, Keys: e.keys}

	return flows.Deps{
		Register: flows.RegisterDeps{
			FindByEmail: findByEmail,
			Create: func(ctx context.Context, nu flows.NewUser) (flows.UserRecord, error) {
				u, err := e.users.Create(ctx, NewUser{
					Name:         nu.Name,
					Email:        nu.Email,
					PasswordHash: nu.PasswordHash,
					Role:         Role(nu.Role),
				})
				if err != nil {
					return flows.UserRecord{}, err
				}
				return toFlowUser(u), nil
			},
			Hash:     e.hasher.Hash,
			RoleFor:  e.roleFor,
			NotFound: ErrNotFound,
			Conflict: ErrConflict,
			Issue:    issue,
		},
		Login: flows.LoginDeps{
			FindByEmail: findByEmail,
			Verify:      e.hasher.Verify,
			DummyHash:   dummyHash,
			NotFound:    ErrNotFound,
			Issue:       issue,
		},
		Issue: issue,
		Refresh: flows.RefreshDeps{
			Verify:   e.jwtManager.Verify,
			FindByID: findByID,
			NotFound: ErrNotFound,
			Store:    e.store,
			Keys:     e.keys,
			Issue:    issue,
		},
		Logout: sessions,
		Authenticate: flows.AuthenticateDeps{
			Verify:  e.jwtManager.Verify,
			Store:   e.store,
			Keys:    e.keys,
			Timeout: e.config.Session.AuthenticateTimeout,
		},
	}
}

func (e *Engine) roleFor(email string) (string, bool) {
	if r, ok := e.seeds[email]; ok {
		return string(r), true
	}
	return string(e.config.Roles.Default), false
}

func toFlowUser(u User) flows.UserRecord {
	return flows.UserRecord{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func fromFlowUser(u flows.UserRecord) User {
	return User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         Role(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func fromFlowPair(p flows.TokenPair) TokenPair {
	return TokenPair{
		AccessToken:      p.Access.Token,
		RefreshToken:     p.Refresh.Token,
		AccessTokenID:    p.Access.ID,
		RefreshTokenID:   p.Refresh.ID,
		AccessExpiresAt:  p.Access.ExpiresAt,
		RefreshExpiresAt: p.Refresh.ExpiresAt,
	}
}
