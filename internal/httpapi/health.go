package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/MrEthical07/sessiongate/internal/logging"
)

// Pinger reports database reachability. *credentials.Store satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

const healthProbeTimeout = 2 * time.Second

type healthResponse struct {
	Status    string `json:"status"`
	Uptime    int64  `json:"uptime"`
	Database  string `json:"database"`
	Redis     string `json:"redis"`
	Timestamp string `json:"timestamp"`
}

type healthHandler struct {
	engine  Engine
	db      Pinger
	started time.Time
}

// check answers 200 while the database is reachable, even with the session
// store down: logins still work and requests fail closed. Without the
// database nothing works, so it answers 503.
func (h *healthHandler) check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthProbeTimeout)
	defer cancel()
	l := logging.FromContext(ctx)

	database := "disconnected"
	if h.db != nil {
		if err := h.db.Ping(ctx); err == nil {
			database = "connected"
		} else {
			l.Warn("database health check failed", "error", err)
		}
	}

	redis := "disconnected"
	if hs := h.engine.Health(ctx); hs.Healthy() {
		redis = "connected"
	} else {
		l.Warn("session store health check failed", "state", hs.SessionStore.String(), "error", hs.Err)
	}

	status := "down"
	switch {
	case database == "connected" && redis == "connected":
		status = "ok"
	case database == "connected" || redis == "connected":
		status = "degraded"
	}

	code := http.StatusOK
	if database != "connected" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, healthResponse{
		Status:    status,
		Uptime:    int64(time.Since(h.started) / time.Second),
		Database:  database,
		Redis:     redis,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
