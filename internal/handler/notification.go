package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cfp-accounts/internal/middleware"
	"github.com/iliyamo/cfp-accounts/internal/model"
	"github.com/iliyamo/cfp-accounts/internal/repository"
)

// NotificationStore is the read side of the notification sink.
type NotificationStore interface {
	ListFor(ctx context.Context, accountID uint64, withBroadcast bool, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, id, accountID uint64, withBroadcast bool) error
}

// NotificationHandler lists and acknowledges in-app notifications.  Admins
// also see the broadcasts created on registration.
type NotificationHandler struct {
	Store  NotificationStore
	Errors *Errors
}

func NewNotificationHandler(store NotificationStore, errs *Errors) *NotificationHandler {
	return &NotificationHandler{Store: store, Errors: errs}
}

func (h *NotificationHandler) List(c echo.Context) error {
	id, ok := middleware.AccountID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Store.ListFor(ctx, id, middleware.Role(c) == string(model.RoleAdmin), limit)
	if err != nil {
		return h.Errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": out})
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return badID(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	err := h.Store.MarkRead(ctx, id, accountID, middleware.Role(c) == string(model.RoleAdmin))
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "notification not found"})
	}
	if err != nil {
		return h.Errors.Respond(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
