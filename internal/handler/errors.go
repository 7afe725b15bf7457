package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cfp-accounts/internal/reporting"
	"github.com/iliyamo/cfp-accounts/internal/service"
)

// requestTimeout bounds the store and mail work of one request.
const requestTimeout = 10 * time.Second

// errorStatus maps workflow errors to HTTP statuses.  Credential failures
// share one message so callers cannot tell which check failed.
var errorStatus = []struct {
	err    error
	status int
}{
	{service.ErrInvalidInput, http.StatusBadRequest},
	{service.ErrDuplicateEmail, http.StatusBadRequest},
	{service.ErrAlreadyValidated, http.StatusBadRequest},
	{service.ErrNotTrainer, http.StatusBadRequest},
	{service.ErrNoAccessCode, http.StatusBadRequest},
	{service.ErrNoPendingVerification, http.StatusBadRequest},
	{service.ErrAlreadyVerified, http.StatusBadRequest},
	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{service.ErrInvalidCode, http.StatusUnauthorized},
	{service.ErrInvalidChallenge, http.StatusUnauthorized},
	{service.ErrVerificationExpired, http.StatusUnauthorized},
	{service.ErrIncorrectCode, http.StatusUnauthorized},
	{service.ErrAccountNotValidated, http.StatusForbidden},
	{service.ErrNotFound, http.StatusNotFound},
}

// Errors writes error responses.  Unmapped errors become 500s, are logged
// and reported, and carry a detail field outside production.
type Errors struct {
	Prod     bool
	Logger   *slog.Logger
	Reporter *reporting.Reporter
}

// Respond writes the JSON error body for err.
func (e *Errors) Respond(c echo.Context, err error) error {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":  "invalid input",
			"field":  ve.Field,
			"reason": ve.Reason,
		})
	}
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			return c.JSON(m.status, echo.Map{"error": m.err.Error()})
		}
	}

	msg := "internal error"
	if errors.Is(err, service.ErrRegistrationFailed) {
		msg = service.ErrRegistrationFailed.Error()
	}
	e.logger().Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	e.Reporter.Capture(err, map[string]string{"component": "http", "route": c.Path()})
	body := echo.Map{"error": msg}
	if !e.Prod {
		body["detail"] = err.Error()
	}
	return c.JSON(http.StatusInternalServerError, body)
}

func (e *Errors) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// pathID parses the :id route parameter.
func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}
