package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cfp-accounts/internal/utils"
)

// Context keys set by JWTAuth.
const (
	CtxAccountID = "account_id"
	CtxUserID    = "user_id"
	CtxRole      = "role"
	CtxEmail     = "email"
	CtxClaims    = "claims"
)

// RevocationChecker reports whether a session id has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// JWTAuth validates the Bearer session token and stores the caller's
// identity in the context.  Only tokens of type "session" are accepted;
// a code challenge token is rejected here.  revoked may be nil.
func JWTAuth(signer *utils.Signer, revoked RevocationChecker, logger *slog.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Expect: Authorization: Bearer <token>
			raw, ok := bearer(c.Request().Header.Get("Authorization"))
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}

			// signature, issuer, expiry and typ=session in one call
			claims, err := signer.Verify(raw, utils.TokenTypeSession)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, utils.ErrExpiredToken) {
					msg = "token expired"
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg})
			}
			id, err := claims.AccountID()
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			if revoked != nil {
				gone, err := revoked.IsRevoked(c.Request().Context(), claims.ID)
				if err != nil {
					// fail open: a Redis outage must not log everyone out
					logger.Warn("revocation lookup failed", "jti", claims.ID, "error", err)
				} else if gone {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token revoked"})
				}
			}

			// Expose identity to downstream handlers and the rate limiter
			c.Set(CtxAccountID, id)
			c.Set(CtxUserID, strconv.FormatUint(id, 10))
			c.Set(CtxRole, claims.Role)
			c.Set(CtxEmail, claims.Email)
			c.Set(CtxClaims, claims)
			return next(c)
		}
	}
}

func bearer(h string) (string, bool) {
	const prefix = "Bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	raw := strings.TrimSpace(h[len(prefix):])
	return raw, raw != ""
}
