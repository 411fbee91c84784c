package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/credentials"
	"github.com/MrEthical07/sessiongate/internal/logging"
	"github.com/MrEthical07/sessiongate/metrics/export/prometheus"
	"github.com/MrEthical07/sessiongate/password"
)

const testPassword = "correct horse battery"

type testServer struct {
	e      *echo.Echo
	mr     *miniredis.Miniredis
	db     *credentials.Store
	engine *sessiongate.Engine
	logs   *bytes.Buffer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr:        mr.Addr(),
		MaxRetries:            -1,
		DialTimeout:           100 * time.Millisecond,
		ContextTimeoutEnabled: true,
	})
	t.Cleanup(func() { _ = client.Close() })

	db, err := credentials.Open(ctx, credentials.Options{Driver: credentials.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)

	cfg := sessiongate.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("access-secret-access-secret-0123")
	cfg.JWT.RefreshSecret = []byte("refresh-secret-refresh-secret-01")
	cfg.Session.ConnectRetryDelay = 5 * time.Millisecond
	cfg.Session.RecoveryInterval = 20 * time.Millisecond
	cfg.Metrics.EnableLatencyHistograms = true

	logs := &bytes.Buffer{}
	logger := logging.NewWithWriter(logs, "debug", "json")

	engine, err := sessiongate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(db).
		WithPasswordHasher(hasher).
		WithLogger(logger).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	e := New(Deps{
		Engine:           engine,
		Database:         db,
		Metrics:          prometheus.NewExporter(engine).Handler(),
		Logger:           logger,
		PasswordMaxBytes: password.MaxBytes(hasher),
	})
	return &testServer{e: e, mr: mr, db: db, engine: engine, logs: logs}
}

type reqOption func(*http.Request)

func withBearer(token string) reqOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withRequestID(id string) reqOption {
	return func(r *http.Request) { r.Header.Set(echo.HeaderXRequestID, id) }
}

func (s *testServer) do(t *testing.T, method, path string, body any, opts ...reqOption) *httptest.ResponseRecorder {
	t.Helper()

	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type authBody struct {
	Message      string         `json:"message"`
	User         map[string]any `json:"user"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
}

func (s *testServer) register(t *testing.T, email string) authBody {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/register", map[string]string{
		"name": "Alice", "email": email, "password": testPassword,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[authBody](t, rec)
}

func (s *testServer) login(t *testing.T, email string) authBody {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[authBody](t, rec)
}
