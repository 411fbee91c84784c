// Package settings loads process configuration from the environment, an
// optional .env file and command-line flags using Viper.
package settings

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MrEthical07/sessiongate"
)

// RedisMemory as REDIS_URL starts an embedded Redis. Development only.
const RedisMemory = "memory"

// Settings holds process configuration.
type Settings struct {
	HTTPAddr        string        `mapstructure:"HTTP_ADDR"`
	Env             string        `mapstructure:"APP_ENV"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	LogFormat       string        `mapstructure:"LOG_FORMAT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`

	// RedisURL is a redis:// URL, or "memory".
	RedisURL              string        `mapstructure:"REDIS_URL"`
	RedisOpTimeout        time.Duration `mapstructure:"REDIS_OP_TIMEOUT"`
	RedisRecoveryInterval time.Duration `mapstructure:"REDIS_RECOVERY_INTERVAL"`
	SessionKeyPrefix      string        `mapstructure:"SESSION_KEY_PREFIX"`

	JWTAccessSecret  string        `mapstructure:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret string        `mapstructure:"JWT_REFRESH_SECRET"`
	JWTAccessTTL     time.Duration `mapstructure:"JWT_ACCESS_TTL"`
	JWTRefreshTTL    time.Duration `mapstructure:"JWT_REFRESH_TTL"`
	JWTIssuer        string        `mapstructure:"JWT_ISSUER"`
	JWTAudience      string        `mapstructure:"JWT_AUDIENCE"`

	// PasswordAlgorithm is bcrypt or argon2id.
	PasswordAlgorithm string `mapstructure:"PASSWORD_ALGORITHM"`
	BcryptCost        int    `mapstructure:"BCRYPT_COST"`

	DefaultRole string `mapstructure:"DEFAULT_ROLE"`
	// RoleSeedAdmins is a comma-separated list of emails registered as ADMIN.
	RoleSeedAdmins string `mapstructure:"ROLE_SEED_ADMINS"`

	AuditEnabled    bool   `mapstructure:"AUDIT_ENABLED"`
	KafkaBrokers    string `mapstructure:"KAFKA_BROKERS"`
	KafkaAuditTopic string `mapstructure:"KAFKA_AUDIT_TOPIC"`

	MetricsEnabled      bool   `mapstructure:"METRICS_ENABLED"`
	OTLPMetricsEndpoint string `mapstructure:"OTLP_METRICS_ENDPOINT"`
}

// flagKeys maps command-line flag names to settings keys.
var flagKeys = map[string]string{
	"http-addr":       "HTTP_ADDR",
	"log-level":       "LOG_LEVEL",
	"log-format":      "LOG_FORMAT",
	"database-driver": "DATABASE_DRIVER",
	"database-url":    "DATABASE_URL",
	"redis-url":       "REDIS_URL",
}

// RegisterFlags adds the overridable settings and --env-file to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("env-file", ".env", "optional dotenv file")
	fs.String("http-addr", "", "listen address (HTTP_ADDR)")
	fs.String("log-level", "", "debug, info, warn or error (LOG_LEVEL)")
	fs.String("log-format", "", "json or text (LOG_FORMAT)")
	fs.String("database-driver", "", "postgres or sqlite (DATABASE_DRIVER)")
	fs.String("database-url", "", "database DSN (DATABASE_URL)")
	fs.String("redis-url", "", "redis:// URL or \"memory\" (REDIS_URL)")
}

// Load reads the .env file named by --env-file when it exists, then the
// environment, then any flags set on fs. fs may be nil.
func Load(fs *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	envFile := ".env"
	if fs != nil {
		if f := fs.Lookup("env-file"); f != nil {
			envFile = f.Value.String()
		}
	}
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("settings: read %s: %w", envFile, err)
			}
		}
	}

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":3000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("REDIS_OP_TIMEOUT", "250ms")
	v.SetDefault("REDIS_RECOVERY_INTERVAL", "30s")
	v.SetDefault("SESSION_KEY_PREFIX", "")
	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")
	v.SetDefault("PASSWORD_ALGORITHM", "bcrypt")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("DEFAULT_ROLE", "USER")
	v.SetDefault("ROLE_SEED_ADMINS", "")
	v.SetDefault("AUDIT_ENABLED", true)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_AUDIT_TOPIC", "sessiongate-audit")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("OTLP_METRICS_ENDPOINT", "")

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("settings: bind --%s: %w", name, err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) validate() error {
	if s.HTTPAddr == "" {
		return errors.New("settings: HTTP_ADDR must be set")
	}
	switch strings.ToLower(s.DatabaseDriver) {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("settings: DATABASE_DRIVER must be postgres or sqlite, got %q", s.DatabaseDriver)
	}
	switch strings.ToLower(s.PasswordAlgorithm) {
	case "bcrypt", "argon2id":
	default:
		return fmt.Errorf("settings: PASSWORD_ALGORITHM must be bcrypt or argon2id, got %q", s.PasswordAlgorithm)
	}
	if s.BcryptCost == 0 {
		s.BcryptCost = 10
	}
	if s.BcryptCost < 4 || s.BcryptCost > 31 {
		return errors.New("settings: BCRYPT_COST must be between 4 and 31")
	}
	if _, ok := sessiongate.ParseRole(s.DefaultRole); !ok {
		return fmt.Errorf("settings: DEFAULT_ROLE must be ADMIN or USER, got %q", s.DefaultRole)
	}
	if s.Production() {
		if s.RedisURL == RedisMemory {
			return errors.New("settings: REDIS_URL=memory is not allowed when APP_ENV=production")
		}
		if strings.EqualFold(s.DatabaseDriver, "sqlite") {
			return errors.New("settings: DATABASE_DRIVER=sqlite is not allowed when APP_ENV=production")
		}
	}
	return nil
}

// Production reports APP_ENV=production.
func (s *Settings) Production() bool {
	return strings.EqualFold(s.Env, "production")
}

// KafkaBrokersList splits KAFKA_BROKERS. Empty means audit events are not
// published to Kafka.
func (s *Settings) KafkaBrokersList() []string {
	return splitList(s.KafkaBrokers)
}

// EngineConfig maps the settings onto a library Config. Secrets are not
// checked here; Config.Validate does that when the engine is built.
func (s *Settings) EngineConfig() sessiongate.Config {
	cfg := sessiongate.DefaultConfig()

	cfg.JWT.AccessSecret = []byte(s.JWTAccessSecret)
	cfg.JWT.RefreshSecret = []byte(s.JWTRefreshSecret)
	if s.JWTAccessTTL > 0 {
		cfg.JWT.AccessTTL = s.JWTAccessTTL
	}
	if s.JWTRefreshTTL > 0 {
		cfg.JWT.RefreshTTL = s.JWTRefreshTTL
	}
	cfg.JWT.Issuer = s.JWTIssuer
	cfg.JWT.Audience = s.JWTAudience

	cfg.Session.KeyPrefix = s.SessionKeyPrefix
	if s.RedisOpTimeout > 0 {
		cfg.Session.OperationTimeout = s.RedisOpTimeout
	}
	if s.RedisRecoveryInterval > 0 {
		cfg.Session.RecoveryInterval = s.RedisRecoveryInterval
	}

	if role, ok := sessiongate.ParseRole(s.DefaultRole); ok {
		cfg.Roles.Default = role
	}
	for _, email := range splitList(s.RoleSeedAdmins) {
		cfg.Roles.Seeds = append(cfg.Roles.Seeds, sessiongate.RoleSeed{Email: email, Role: sessiongate.RoleAdmin})
	}

	cfg.Audit.Enabled = s.AuditEnabled
	cfg.Metrics.Enabled = s.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = s.MetricsEnabled
	return cfg
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
