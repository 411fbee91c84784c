package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/credentials"
	"github.com/MrEthical07/sessiongate/internal/settings"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRunUnknownCommand(t *testing.T) {
	assert.Error(t, run([]string{"explode"}))
}

func TestGrantRoleValidatesFlags(t *testing.T) {
	assert.Error(t, grantRole([]string{"--role", "ADMIN"}))
	assert.Error(t, grantRole([]string{"--email", "a@example.com", "--role", "ROOT"}))
}

func TestGrantRoleUpdatesAccount(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "grant.db")
	ctx := context.Background()

	db, err := credentials.Open(ctx, credentials.Options{Driver: credentials.DriverSQLite, DSN: dsn})
	require.NoError(t, err)
	u, err := db.Create(ctx, sessiongate.NewUser{Name: "Ops", Email: "ops@example.com", PasswordHash: "x", Role: sessiongate.RoleUser})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	err = grantRole([]string{
		"--env-file", filepath.Join(t.TempDir(), "missing.env"),
		"--database-driver", "sqlite",
		"--database-url", dsn,
		"--email", "OPS@example.com",
		"--role", "admin",
	})
	require.NoError(t, err)

	db, err = credentials.Open(ctx, credentials.Options{Driver: credentials.DriverSQLite, DSN: dsn})
	require.NoError(t, err)
	defer db.Close()
	got, err := db.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, sessiongate.RoleAdmin, got.Role)
}

func TestOpenRedisMemory(t *testing.T) {
	client, closeFn, err := openRedis(settings.RedisMemory, quiet)
	require.NoError(t, err)
	defer closeFn()
	require.NoError(t, client.Ping(context.Background()).Err())

	_, _, err = openRedis("not a url", quiet)
	assert.Error(t, err)
}
