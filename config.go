package sessiongate

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/sessiongate/jwt"
)

// Config is the engine configuration. Build clones it, so later mutation of
// the caller's copy has no effect.
type Config struct {
	JWT     JWTConfig
	Session SessionConfig
	Roles   RolesConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds the two HS256 secrets and token lifetimes. The secrets
// must differ so a leaked access secret cannot mint refresh tokens.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes the allowlist. KeyPrefix is prepended to every key;
// the empty default yields `access:{jti}` and `user:{id}:sessions`.
type SessionConfig struct {
	KeyPrefix           string
	OperationTimeout    time.Duration // zero takes the session package default
	ConnectRetryDelay   time.Duration
	RecoveryInterval    time.Duration
	AuthenticateTimeout time.Duration
}

/*
====================================
ROLES CONFIG
====================================
*/

// RoleSeed grants Role to the account registered with Email.
type RoleSeed struct {
	Email string
	Role  Role
}

type RolesConfig struct {
	Default Role
	Seeds   []RoleSeed
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns lifetimes of 15 minutes and 7 days with no
// secrets. Callers must set both secrets before Build.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Session: SessionConfig{
			OperationTimeout:    250 * time.Millisecond,
			ConnectRetryDelay:   200 * time.Millisecond,
			RecoveryInterval:    30 * time.Second,
			AuthenticateTimeout: 250 * time.Millisecond,
		},
		Roles: RolesConfig{
			Default: RoleUser,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = bytes.Clone(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = bytes.Clone(cfg.JWT.RefreshSecret)
	if cfg.Roles.Seeds != nil {
		out.Roles.Seeds = append([]RoleSeed(nil), cfg.Roles.Seeds...)
	}
	return out
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.AccessSecret) == 0 || len(c.JWT.RefreshSecret) == 0 {
		return errors.New("JWT AccessSecret and RefreshSecret are required")
	}
	if len(c.JWT.AccessSecret) < jwt.MinSecretBytes || len(c.JWT.RefreshSecret) < jwt.MinSecretBytes {
		return fmt.Errorf("JWT secrets must be at least %d bytes", jwt.MinSecretBytes)
	}
	if bytes.Equal(c.JWT.AccessSecret, c.JWT.RefreshSecret) {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Session
	if c.Session.OperationTimeout < 0 || c.Session.ConnectRetryDelay < 0 ||
		c.Session.RecoveryInterval < 0 || c.Session.AuthenticateTimeout < 0 {
		return errors.New("Session timeouts must be >= 0")
	}
	if strings.ContainsAny(c.Session.KeyPrefix, " \t\r\n") {
		return errors.New("Session KeyPrefix must not contain whitespace")
	}

	// Roles
	if !c.Roles.Default.Valid() {
		return fmt.Errorf("Roles Default %q is not a known role", c.Roles.Default)
	}
	seen := make(map[string]struct{}, len(c.Roles.Seeds))
	for _, s := range c.Roles.Seeds {
		email := normalizeEmail(s.Email)
		if email == "" || !strings.Contains(email, "@") {
			return fmt.Errorf("Roles seed email %q is invalid", s.Email)
		}
		if !s.Role.Valid() {
			return fmt.Errorf("Roles seed %q has unknown role %q", s.Email, s.Role)
		}
		if _, dup := seen[email]; dup {
			return fmt.Errorf("Roles seed %q is listed twice", s.Email)
		}
		seen[email] = struct{}{}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	return nil
}

/*
====================================
LINT
====================================
*/

// LintSeverity orders lint findings.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is a valid but questionable setting.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns warnings at or above min.
func (ws LintWarnings) BySeverity(min LintSeverity) LintWarnings {
	var out LintWarnings
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins warnings at or above min into one error, or returns nil.
func (ws LintWarnings) AsError(min LintSeverity) error {
	var errs []error
	for _, w := range ws.BySeverity(min) {
		errs = append(errs, fmt.Errorf("%s [%s]: %s", w.Code, w.Severity, w.Message))
	}
	return errors.Join(errs...)
}

// Lint inspects a config that already passes Validate.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.JWT.AccessTTL > 30*time.Minute {
		add("access_ttl_long", LintWarn, "revoked access tokens stay valid until expiry after a refresh")
	}
	if c.JWT.RefreshTTL > 30*24*time.Hour {
		add("refresh_ttl_long", LintWarn, "user session sets do not expire and grow with refresh lifetime")
	}
	if c.JWT.Leeway > 30*time.Second {
		add("leeway_large", LintInfo, "leeway above 30s extends every token lifetime")
	}
	if c.Session.KeyPrefix == "" {
		add("key_prefix_empty", LintInfo, "allowlist keys share the Redis keyspace unprefixed")
	}
	if c.Session.RecoveryInterval > 5*time.Minute {
		add("store_recovery_slow", LintWarn, "an unavailable session store rejects every request until the next recovery ping")
	}
	if c.Roles.Default == RoleAdmin {
		add("default_role_admin", LintHigh, "every registration is granted ADMIN")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "authentication events are not recorded")
	}
	return ws
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
