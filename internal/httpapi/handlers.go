package httpapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/middleware"
)

// Engine is the part of *sessiongate.Engine the HTTP surface calls.
type Engine interface {
	Register(ctx context.Context, in sessiongate.RegisterInput) (*sessiongate.LoginResult, error)
	Login(ctx context.Context, email, password string) (*sessiongate.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*sessiongate.TokenPair, error)
	Logout(ctx context.Context, sc sessiongate.SessionContext) error
	LogoutAll(ctx context.Context, userID string) error
	Authenticate(ctx context.Context, accessToken string) (*sessiongate.SessionContext, error)
	ListSessions(ctx context.Context, userID string) ([]sessiongate.SessionRef, error)
	DeleteAccount(ctx context.Context, userID string) error
	Health(ctx context.Context) sessiongate.HealthStatus
}

type authHandler struct {
	engine           Engine
	passwordMaxBytes int
}

func (h *authHandler) register(c echo.Context) error {
	ctx := c.Request().Context()

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := req.Validate(h.passwordMaxBytes); err != nil {
		return err
	}

	res, err := h.engine.Register(ctx, sessiongate.RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, authResponse{
		Message:      "User registered successfully",
		User:         res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	})
}

func (h *authHandler) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	res, err := h.engine.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, authResponse{
		Message:      "Login successful",
		User:         res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	})
}

func (h *authHandler) refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	pair, err := h.engine.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, tokensResponse{
		Message:      "Tokens refreshed successfully",
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *authHandler) logout(c echo.Context) error {
	sc, err := session(c)
	if err != nil {
		return err
	}
	if err := h.engine.Logout(c.Request().Context(), *sc); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Logout successful"})
}

func (h *authHandler) logoutAll(c echo.Context) error {
	sc, err := session(c)
	if err != nil {
		return err
	}
	if err := h.engine.LogoutAll(c.Request().Context(), sc.UserID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "All sessions revoked"})
}

func (h *authHandler) me(c echo.Context) error {
	sc, err := session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sc)
}

func (h *authHandler) sessions(c echo.Context) error {
	sc, err := session(c)
	if err != nil {
		return err
	}
	refs, err := h.engine.ListSessions(c.Request().Context(), sc.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionsResponse{Sessions: refs})
}

func (h *authHandler) deleteAccount(c echo.Context) error {
	sc, err := session(c)
	if err != nil {
		return err
	}
	if err := h.engine.DeleteAccount(c.Request().Context(), sc.UserID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Account deleted"})
}

// session reads the identity stored by the guard. A route mounted without
// the guard is a wiring bug, reported as internal.
func session(c echo.Context) (*sessiongate.SessionContext, error) {
	sc, ok := middleware.SessionFromContext(c.Request().Context())
	if !ok {
		return nil, sessiongate.ErrEngineNotReady
	}
	return sc, nil
}
