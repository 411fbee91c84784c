package jwt

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind identifies which half of a token pair a token belongs to. Each kind
// is signed with its own secret and carries its own lifetime.
type Kind string

const (
	// KindAccess marks short-lived tokens presented on every request.
	KindAccess Kind = "access"
	// KindRefresh marks long-lived tokens exchanged for a new pair.
	KindRefresh Kind = "refresh"
)

// MinSecretBytes is the smallest HS256 secret NewManager accepts.
const MinSecretBytes = 32

var (
	// ErrInvalidSignature is returned when the token was not signed with the
	// secret of the requested kind, or is structurally unusable.
	ErrInvalidSignature = errors.New("jwt: invalid token signature")
	// ErrExpired is returned for a correctly signed token past its expiry.
	ErrExpired = errors.New("jwt: token expired")
	// ErrMalformed is returned when the token cannot be decoded or is
	// missing required claims.
	ErrMalformed = errors.New("jwt: malformed token")
	// ErrWrongKind is returned when a correctly signed token declares a
	// different kind than the checkpoint expects.
	ErrWrongKind = errors.New("jwt: token kind mismatch")
)

// Config carries per-kind secrets and lifetimes.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// Claims is the payload of both token kinds. Subject is the user id and ID
// is the jti.
type Claims struct {
	Role string `json:"role"`
	Kind Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// Issued describes a freshly signed token.
type Issued struct {
	Token     string
	ID        string
	ExpiresAt time.Time
	TTL       time.Duration
}

// Manager signs and verifies HS256 tokens. It is immutable after
// construction and safe for concurrent use.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must not be shorter than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.AccessSecret) < MinSecretBytes {
		return nil, fmt.Errorf("access secret must be at least %d bytes", MinSecretBytes)
	}
	if len(cfg.RefreshSecret) < MinSecretBytes {
		return nil, fmt.Errorf("refresh secret must be at least %d bytes", MinSecretBytes)
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	return &Manager{config: cfg, now: time.Now}, nil
}

// TTL returns the configured lifetime for kind.
func (m *Manager) TTL(kind Kind) time.Duration {
	if kind == KindRefresh {
		return m.config.RefreshTTL
	}
	return m.config.AccessTTL
}

// Issue signs a new token of the given kind for userID. Every call draws a
// fresh random jti, so two tokens never share one even when issued in the
// same instant.
func (m *Manager) Issue(userID, role string, kind Kind) (Issued, error) {
	secret, err := m.secret(kind)
	if err != nil {
		return Issued{}, err
	}
	if userID == "" {
		return Issued{}, errors.New("jwt: empty subject")
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return Issued{}, fmt.Errorf("jwt: generate token id: %w", err)
	}

	ttl := m.TTL(kind)
	now := m.now()
	exp := now.Add(ttl)
	claims := Claims{
		Role: role,
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        id.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: signed, ID: claims.ID, ExpiresAt: exp, TTL: ttl}, nil
}

// Verify checks signature and expiry of token against the secret of kind.
// It performs no I/O; allowlist membership is checked by the caller.
func (m *Manager) Verify(token string, kind Kind) (*Claims, error) {
	secret, err := m.secret(kind)
	if err != nil {
		return nil, err
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.Kind != kind {
		return nil, ErrWrongKind
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

func (m *Manager) secret(kind Kind) ([]byte, error) {
	switch kind {
	case KindAccess:
		return m.config.AccessSecret, nil
	case KindRefresh:
		return m.config.RefreshSecret, nil
	default:
		return nil, fmt.Errorf("jwt: unknown token kind %q", kind)
	}
}

// classify maps library parse errors onto the package sentinels. The
// parser only evaluates expiry after the signature checks out, so an
// expired result implies a genuine token.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
}
