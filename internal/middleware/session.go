package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/edubot/internal/auth"
	"github.com/iliyamo/edubot/internal/model"
)

// SessionResolver turns a bearer token into the logged-in user.
type SessionResolver interface {
	CurrentUser(ctx context.Context, token string) (model.User, auth.Session, error)
}

// RequireSession returns an Echo middleware that resolves the Bearer
// session token and stores the user and session in the request context
// under "user" and "session", with "user_id" and "role" for middlewares
// further down the chain.
func RequireSession(resolver SessionResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := BearerToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}

			u, sess, err := resolver.CurrentUser(c.Request().Context(), raw)
			switch {
			case err == nil:
			case errors.Is(err, auth.ErrInactiveAccount):
				return c.JSON(http.StatusForbidden, echo.Map{"error": "account is deactivated"})
			case errors.Is(err, auth.ErrInvalidSession):
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired session"})
			default:
				slog.Error("resolve session", "err", err)
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}

			c.Set(ctxUser, u)
			c.Set(ctxSession, &sess)
			c.Set(ctxUserID, u.ID)
			c.Set(ctxRole, u.Role)
			return next(c)
		}
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(c echo.Context) (string, bool) {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	raw := strings.TrimSpace(h[len(prefix):])
	return raw, raw != ""
}
