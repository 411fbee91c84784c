package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MrEthical07/sessiongate"
)

// Authenticator is satisfied by *sessiongate.Engine.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*sessiongate.SessionContext, error)
}

// ErrorWriter renders a rejected request. err always matches
// sessiongate.ErrUnauthorized or sessiongate.ErrInternal.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

type sessionContextKey struct{}

// SessionFromContext returns the caller identity set by Guard.
func SessionFromContext(ctx context.Context) (*sessiongate.SessionContext, bool) {
	sc, ok := ctx.Value(sessionContextKey{}).(*sessiongate.SessionContext)
	return sc, ok && sc != nil
}

// WithSession stores sc the way Guard does. Useful for handlers under test.
func WithSession(ctx context.Context, sc *sessiongate.SessionContext) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sc)
}

// Guard rejects requests without a live access token and puts the
// resulting SessionContext into the request context. onError may be nil.
func Guard(auth Authenticator, onError ErrorWriter) func(http.Handler) http.Handler {
	if onError == nil {
		onError = writeError
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				onError(w, r, sessiongate.ErrEngineNotReady)
				return
			}

			sc, err := auth.Authenticate(r.Context(), BearerToken(r.Header.Get("Authorization")))
			if err != nil {
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sc)))
		})
	}
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively; anything else yields "".
func BearerToken(value string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeError(w http.ResponseWriter, _ *http.Request, err error) {
	status := http.StatusUnauthorized
	if sessiongate.KindOf(err) == sessiongate.KindInternal {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"statusCode": status,
		"kind":       sessiongate.KindOf(err),
		"message":    sessiongate.Message(err),
	})
}
