package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cfp-accounts/internal/middleware"
	"github.com/iliyamo/cfp-accounts/internal/model"
	"github.com/iliyamo/cfp-accounts/internal/service"
	"github.com/iliyamo/cfp-accounts/internal/utils"
)

// Revoker records logged-out session ids.
type Revoker interface {
	Revoke(ctx context.Context, jti string, expires time.Time) error
}

// AuthHandler serves registration, login, email verification and the
// caller's own profile.
type AuthHandler struct {
	Accounts *service.AccountService
	Revoker  Revoker // nil when Redis is unavailable
	Errors   *Errors
}

func NewAuthHandler(accounts *service.AccountService, revoker Revoker, errs *Errors) *AuthHandler {
	return &AuthHandler{Accounts: accounts, Revoker: revoker, Errors: errs}
}

// ----- DTOs -----

type registerReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

func (r registerReq) input() service.RegisterInput {
	return service.RegisterInput{
		Email:     r.Email,
		Password:  r.Password,
		Role:      r.Role,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
	}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

type verifyEmailReq struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type trainerCodeReq struct {
	Challenge string `json:"challenge"`
	Code      string `json:"code"`
}

type emailReq struct {
	Email string `json:"email"`
}

type profileReq struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// identityPart is the partial identity returned with a code challenge.
type identityPart struct {
	ID    uint64     `json:"id"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

type sessionResp struct {
	User    model.Account      `json:"user"`
	Session *utils.SignedToken `json:"session"`
	Message string             `json:"message,omitempty"`
}

type challengeResp struct {
	CodeRequired bool               `json:"code_required"`
	User         identityPart       `json:"user"`
	Challenge    *utils.SignedToken `json:"challenge"`
}

// loginResponse renders a LoginResult.  A code-required result is not an
// error: the client prompts for the access code and posts the challenge.
func loginResponse(c echo.Context, res service.LoginResult) error {
	if res.Outcome == service.LoginCodeRequired {
		return c.JSON(http.StatusOK, challengeResp{
			CodeRequired: true,
			User:         identityPart{ID: res.Account.ID, Email: res.Account.Email, Role: res.Account.Role},
			Challenge:    res.Challenge,
		})
	}
	return c.JSON(http.StatusOK, sessionResp{User: res.Account, Session: res.Session})
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
}

// Register creates an account and returns it with a session token.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Accounts.Register(ctx, req.input())
	if err != nil {
		return h.Errors.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, sessionResp{User: res.Account, Session: &res.Session, Message: res.Message})
}

// Login checks email and password, and the access code for trainers.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	// trainers without a code get a challenge instead of a session
	res, err := h.Accounts.Login(ctx, req.Email, req.Password, req.Code)
	if err != nil {
		return h.Errors.Respond(c, err)
	}
	return loginResponse(c, res)
}

// VerifyTrainerCode exchanges a code challenge plus access code for a
// session.
func (h *AuthHandler) VerifyTrainerCode(c echo.Context) error {
	var req trainerCodeReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Accounts.VerifyTrainerCode(ctx, req.Challenge, req.Code)
	if err != nil {
		return h.Errors.Respond(c, err)
	}
	return loginResponse(c, res)
}

// VerifyEmail confirms the email address with the 6-digit code.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req verifyEmailReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	acct, err := h.Accounts.VerifyEmail(ctx, req.Email, req.Code)
	if err != nil {
		return h.Errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Adresse email vérifiée.", "user": acct})
}

// ResendVerification sends a fresh verification code.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	acct, err := h.Accounts.ResendVerification(ctx, req.Email)
	if err != nil {
		return h.Errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Un nouveau code de vérification a été envoyé.",
		"expires": acct.VerificationExpiresAt,
	})
}

// Logout revokes the presented session until it would have expired.
func (h *AuthHandler) Logout(c echo.Context) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if h.Revoker == nil {
		h.Errors.logger().Warn("logout without revocation store; token stays valid until expiry", "jti", claims.ID)
		return c.NoContent(http.StatusNoContent)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	// the denylist entry expires with the token itself
	if err := h.Revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return h.Errors.Respond(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's account.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.AccountID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	acct, err := h.Accounts.GetAccount(ctx, id)
	if err != nil {
		return h.Errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": acct})
}

// UpdateMe edits the caller's name and phone.
func (h *AuthHandler) UpdateMe(c echo.Context) error {
	id, ok := middleware.AccountID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	acct, err := h.Accounts.UpdateProfile(ctx, id, model.Profile{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		return h.Errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": acct})
}
