// Package httpapi is the echo HTTP surface over the sessiongate engine.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/MrEthical07/sessiongate/middleware"
)

// Deps are the collaborators of the HTTP surface. Metrics may be nil.
// PasswordMaxBytes is the hasher's input limit (see password.MaxBytes);
// registration rejects longer passwords before hashing.
type Deps struct {
	Engine           Engine
	Database         Pinger
	Metrics          http.Handler
	Logger           *slog.Logger
	PasswordMaxBytes int
}

// New returns an echo instance with every route mounted.
func New(d Deps) *echo.Echo {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(requestLogger(logger))
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit("64K"))
	e.Use(correlate)

	Register(e, d)
	return e
}

// Register mounts the routes on e.
func Register(e *echo.Echo, d Deps) {
	auth := &authHandler{engine: d.Engine, passwordMaxBytes: d.PasswordMaxBytes}
	health := &healthHandler{engine: d.Engine, db: d.Database, started: time.Now()}
	guard := echo.WrapMiddleware(middleware.Guard(d.Engine, guardError))

	e.GET("/health", health.check)
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	g := e.Group("/auth")
	g.POST("/register", auth.register)
	g.POST("/login", auth.login)
	g.POST("/refresh", auth.refresh)

	g.POST("/logout", auth.logout, guard)
	g.POST("/logout-all", auth.logoutAll, guard)
	g.GET("/me", auth.me, guard)
	g.GET("/sessions", auth.sessions, guard)
	g.DELETE("/account", auth.deleteAccount, guard)
}
