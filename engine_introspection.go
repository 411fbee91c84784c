package sessiongate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/sessiongate/session"
)

// ListSessions returns the jti recorded for userID and which of their
// allowlist keys still exist. Entries with neither key live are stale set
// members left behind by natural expiry. An unavailable store yields an
// empty list.
func (e *Engine) ListSessions(ctx context.Context, userID string) ([]SessionRef, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, invalidInput("user id is required")
	}

	refs := e.flow.ListSessions(ctx, userID)
	out := make([]SessionRef, 0, len(refs))
	for _, r := range refs {
		out = append(out, SessionRef{TokenID: r.TokenID, AccessLive: r.AccessLive, RefreshLive: r.RefreshLive})
	}
	return out, nil
}

// Health pings the session store now, bypassing its recovery interval, and
// reports the resulting state.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.store == nil {
		return HealthStatus{Err: ErrEngineNotReady}
	}
	start := time.Now()
	err := e.store.Ping(ctx)
	return HealthStatus{
		SessionStore: e.store.State(),
		Latency:      time.Since(start),
		Err:          err,
	}
}

// SessionStoreState reports the session store's last known state without
// contacting it.
func (e *Engine) SessionStoreState() session.State {
	if e == nil || e.store == nil {
		return session.StateUnknown
	}
	return e.store.State()
}

// DeleteAccount removes the user row and then revokes every session the
// user holds.
func (e *Engine) DeleteAccount(ctx context.Context, userID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if userID == "" {
		return invalidInput("user id is required")
	}

	if err := e.users.DeleteByID(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrAccountGone
		}
		e.log(ctx).Error("credential store failed during account deletion", "user_id", userID, "error", err)
		return fmt.Errorf("%w: %v", ErrCredentialStore, err)
	}
	n := e.flow.LogoutAll(ctx, userID)

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventAccountDeleted, true, userID, "", nil, nil)
	e.log(ctx).Info("account deleted", "user_id", userID, "sessions", n)
	return nil
}
