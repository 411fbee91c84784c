package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MrEthical07/sessiongate"
)

// Driver selects the SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// ParseDriver accepts the names used in DATABASE_DRIVER.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pg":
		return DriverPostgres, nil
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("credentials: unknown database driver %q", s)
	}
}

// Options configures Open.
type Options struct {
	Driver Driver
	DSN    string
	// PingTimeout bounds the startup ping. Zero means 3s.
	PingTimeout time.Duration
}

// userRow is the persisted shape of sessiongate.User.
type userRow struct {
	ID           string `gorm:"primaryKey;size:36"`
	Name         string `gorm:"size:50;not null"`
	Email        string `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"size:16;not null;default:USER"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

func (r userRow) toUser() sessiongate.User {
	return sessiongate.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         sessiongate.Role(r.Role),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// Store implements sessiongate.CredentialStore.
type Store struct {
	db *gorm.DB
}

var _ sessiongate.CredentialStore = (*Store)(nil)

// Open connects, pings, and migrates the users table.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.DSN == "" {
		return nil, errors.New("credentials: DATABASE_URL is empty")
	}

	var dialector gorm.Dialector
	switch opts.Driver {
	case DriverPostgres:
		dialector = postgres.Open(opts.DSN)
	case DriverSQLite:
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("credentials: unknown database driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		PrepareStmt:    opts.Driver == DriverPostgres,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("credentials: connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("credentials: sql.DB: %w", err)
	}
	configurePool(sqlDB, opts.Driver)

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("credentials: ping: %w", err)
	}

	s := &Store{db: db}
	if err := s.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an existing connection. The caller is responsible for
// Migrate.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func configurePool(sqlDB *sql.DB, driver Driver) {
	if driver == DriverSQLite {
		// One connection keeps an in-memory database alive and serializes
		// writers the way sqlite wants.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
		return
	}

	const (
		maxOpenConns    = 20
		maxIdleConns    = 10
		connMaxLifetime = 30 * time.Minute
		connMaxIdleTime = 5 * time.Minute
	)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
}

// Migrate creates or updates the users table.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&userRow{}); err != nil {
		return fmt.Errorf("credentials: migrate: %w", err)
	}
	return nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (sessiongate.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Take(&row).Error
	if err != nil {
		return sessiongate.User{}, translate(err)
	}
	return row.toUser(), nil
}

func (s *Store) FindByID(ctx context.Context, id string) (sessiongate.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return sessiongate.User{}, translate(err)
	}
	return row.toUser(), nil
}

// Create inserts a user with a fresh UUID.
func (s *Store) Create(ctx context.Context, u sessiongate.NewUser) (sessiongate.User, error) {
	row := userRow{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(u.Name),
		Email:        normalizeEmail(u.Email),
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
	}
	if row.Role == "" {
		row.Role = string(sessiongate.RoleUser)
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return sessiongate.User{}, translate(err)
	}
	return row.toUser(), nil
}

func (s *Store) DeleteByID(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&userRow{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %s", sessiongate.ErrNotFound, id)
	}
	return nil
}

// SetRole changes the role of the account with the given email. Live
// tokens keep their old role until the next login or refresh.
func (s *Store) SetRole(ctx context.Context, email string, role sessiongate.Role) (sessiongate.User, error) {
	if !role.Valid() {
		return sessiongate.User{}, fmt.Errorf("%w: unknown role %q", sessiongate.ErrInvalidInput, role)
	}

	var row userRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", normalizeEmail(email)).Take(&row).Error; err != nil {
			return err
		}
		row.Role = string(role)
		return tx.Model(&row).Update("role", row.Role).Error
	})
	if err != nil {
		return sessiongate.User{}, translate(err)
	}
	return row.toUser(), nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return sessiongate.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return sessiongate.ErrEmailTaken
	default:
		return err
	}
}

// isUniqueViolation catches drivers that do not implement error translation.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
