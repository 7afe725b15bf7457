package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cfp-accounts/internal/handler"
	"github.com/iliyamo/cfp-accounts/internal/middleware"
	"github.com/iliyamo/cfp-accounts/internal/model"
)

// Deps carries the handlers and shared middleware the routes are wired to.
// OAuth is nil when Google sign-in is not configured.
type Deps struct {
	Auth          *handler.AuthHandler
	Admin         *handler.AdminHandler
	Notifications *handler.NotificationHandler
	OAuth         *handler.OAuthHandler
	Health        echo.HandlerFunc

	JWT       echo.MiddlewareFunc
	RateLimit echo.MiddlewareFunc
}

// Register mounts every route on e.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", d.Health)
	registerAuth(e, d)
	registerAdmin(e, d)
}

// registerAuth mounts /v1/auth (public, rate limited) and the caller's own
// resources under /v1.
func registerAuth(e *echo.Echo, d Deps) {
	g := e.Group("/v1/auth")
	if d.RateLimit != nil {
		g.Use(d.RateLimit)
	}
	g.POST("/register", d.Auth.Register)
	g.POST("/login", d.Auth.Login)
	g.POST("/verify-email", d.Auth.VerifyEmail)
	g.POST("/verify-trainer-code", d.Auth.VerifyTrainerCode)
	g.POST("/resend-verification", d.Auth.ResendVerification)
	g.POST("/logout", d.Auth.Logout, d.JWT)
	if d.OAuth != nil {
		g.GET("/google", d.OAuth.Start)
		g.GET("/google/callback", d.OAuth.Callback)
	}

	me := e.Group("/v1", d.JWT)
	me.GET("/me", d.Auth.Me)
	me.PUT("/me", d.Auth.UpdateMe)
	me.GET("/notifications", d.Notifications.List)
	me.PUT("/notifications/:id/read", d.Notifications.MarkRead)
}

// registerAdmin mounts the review workflow, restricted to admins.
func registerAdmin(e *echo.Echo, d Deps) {
	g := e.Group("/v1/admin", d.JWT, middleware.RequireRole(model.RoleAdmin))
	g.PUT("/validate/:id", d.Admin.Validate)
	g.PUT("/reject/:id", d.Admin.Reject)
	g.PUT("/pending/:id", d.Admin.Pending)
	g.POST("/resend-code/:id", d.Admin.ResendCode)
	g.GET("/accounts", d.Admin.List)
	g.POST("/accounts", d.Admin.Create)
	g.PUT("/accounts/:id/role", d.Admin.SetRole)
}
