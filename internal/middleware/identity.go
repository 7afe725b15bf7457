package middleware

// Accessors for the identity JWTAuth stores in the Echo context.  Handlers
// behind JWTAuth can rely on them; elsewhere they report ok=false.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cfp-accounts/internal/utils"
)

// AccountID returns the authenticated account id.
func AccountID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(CtxAccountID).(uint64)
	return id, ok
}

// Role returns the role claim of the caller.
func Role(c echo.Context) string {
	r, _ := c.Get(CtxRole).(string)
	return r
}

// Claims returns the verified session claims.
func Claims(c echo.Context) (*utils.Claims, bool) {
	cl, ok := c.Get(CtxClaims).(*utils.Claims)
	return cl, ok
}

// userID is the rate-limit identity: the account id when authenticated,
// "guest" otherwise.
func userID(c echo.Context) string {
	if s, ok := c.Get(CtxUserID).(string); ok && s != "" {
		return s
	}
	return "guest"
}
