package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cfp-accounts/internal/service"
)

// AdminHandler serves the admin review workflow.  Routes are mounted behind
// JWTAuth and RequireRole(admin).
type AdminHandler struct {
	Accounts *service.AccountService
	Errors   *Errors
}

func NewAdminHandler(accounts *service.AccountService, errs *Errors) *AdminHandler {
	return &AdminHandler{Accounts: accounts, Errors: errs}
}

type adminMessageReq struct {
	Message string `json:"message"`
}

type roleReq struct {
	Role string `json:"role"`
}

// bindOptional binds a body that may be absent.  An empty body leaves dst
// untouched; a body that is present must decode.
func bindOptional(c echo.Context, dst interface{}) error {
	err := c.Bind(dst)
	if errors.Is(err, io.EOF) {
		// chunked request with no payload
		return nil
	}
	return err
}

func badID(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
}

// Validate moves an account to validated; trainers get their access code.
func (h *AdminHandler) Validate(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badID(c)
	}
	var req adminMessageReq
	if err := bindOptional(c, &req); err != nil {
		return badBody(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Accounts.Validate(ctx, id, req.Message)
	if err != nil {
		return h.Errors.Respond(c, err)
	}
	body := echo.Map{"user": res.Account, "email_sent": res.EmailSent}
	if res.AccessCode != "" {
		body["access_code"] = res.AccessCode
	}
	return c.JSON(http.StatusOK, body)
}

// ResendCode re-sends the trainer's existing access code by email.
func (h *AdminHandler) ResendCode(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badID(c)
	}
	var req adminMessageReq
	if err := bindOptional(c, &req); err != nil {
		return badBody(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Accounts.ResendAccessCode(ctx, id, req.Message)
	if err != nil {
		return h.Errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user":        res.Account,
		"access_code": res.AccessCode,
		"email_sent":  res.EmailSent,
	})
}

// Reject marks an account rejected.
func (h *AdminHandler) Reject(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badID(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	acct, err := h.Accounts.Reject(ctx, id)
	if err != nil {
		return h.Errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": acct})
}

// Pending puts an account back to pending review.
func (h *AdminHandler) Pending(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badID(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	acct, err := h.Accounts.SetPending(ctx, id)
	if err != nil {
		return h.Errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": acct})
}

// List returns accounts filtered by ?status= and ?role=.
func (h *AdminHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	ctx, cancel := reqCtx(c)
	defer cancel()

	accts, err := h.Accounts.ListAccounts(ctx, c.QueryParam("status"), c.QueryParam("role"), limit, offset)
	if err != nil {
		return h.Errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"accounts": accts})
}

// Create registers an account on someone's behalf.  No session is issued.
func (h *AdminHandler) Create(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	acct, err := h.Accounts.CreateAccount(ctx, req.input())
	if err != nil {
		return h.Errors.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"user": acct})
}

// SetRole changes an account's role.
func (h *AdminHandler) SetRole(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badID(c)
	}
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	acct, err := h.Accounts.SetRole(ctx, id, req.Role)
	if err != nil {
		return h.Errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": acct})
}
