package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/internal/logging"
)

// errorBody is the shape of every failed response.
type errorBody struct {
	StatusCode int              `json:"statusCode"`
	Kind       sessiongate.Kind `json:"kind"`
	Message    string           `json:"message"`
	Timestamp  string           `json:"timestamp"`
	Path       string           `json:"path"`
	RequestID  string           `json:"requestId,omitempty"`
}

var kindStatus = map[sessiongate.Kind]int{
	sessiongate.KindValidation:   http.StatusBadRequest,
	sessiongate.KindUnauthorized: http.StatusUnauthorized,
	// A vanished account must not be confirmed to a stale bearer.
	sessiongate.KindNotFound: http.StatusUnauthorized,
	sessiongate.KindConflict: http.StatusConflict,
	sessiongate.KindInternal: http.StatusInternalServerError,
}

// classify maps any handler error to status, kind and a client-safe message.
func classify(err error) (int, sessiongate.Kind, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		return he.Code, kindForStatus(he.Code), msg
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest, sessiongate.KindValidation, verrs.Error()
	}

	kind := sessiongate.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	return status, kind, sessiongate.Message(err)
}

func kindForStatus(status int) sessiongate.Kind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return sessiongate.KindUnauthorized
	case status == http.StatusNotFound:
		return sessiongate.KindNotFound
	case status == http.StatusConflict:
		return sessiongate.KindConflict
	case status >= 500:
		return sessiongate.KindInternal
	default:
		return sessiongate.KindValidation
	}
}

func newErrorBody(status int, kind sessiongate.Kind, msg string, r *http.Request, requestID string) errorBody {
	if status >= 500 {
		msg = "Internal server error"
	}
	return errorBody{
		StatusCode: status,
		Kind:       kind,
		Message:    msg,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Path:       r.URL.Path,
		RequestID:  requestID,
	}
}

// errorHandler is installed as echo's HTTPErrorHandler.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, kind, msg := classify(err)
	if status >= 500 {
		logging.FromContext(c.Request().Context()).Error("request failed", "error", fmt.Sprint(err))
	}

	body := newErrorBody(status, kind, msg, c.Request(), c.Response().Header().Get(echo.HeaderXRequestID))
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		logging.FromContext(c.Request().Context()).Error("write error response", "error", err)
	}
}

// guardError renders a rejection from middleware.Guard in the same shape.
// w is echo's response writer, so the request id header is already set.
func guardError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind, msg := classify(err)
	body := newErrorBody(status, kind, msg, r, w.Header().Get(echo.HeaderXRequestID))

	w.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
