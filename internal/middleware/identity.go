package middleware

// identity.go holds the context keys set by RequireSession and accessors
// for handlers and the other middlewares.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/edubot/internal/auth"
	"github.com/iliyamo/edubot/internal/model"
)

const (
	ctxUser    = "user"
	ctxSession = "session"
	ctxUserID  = "user_id"
	ctxRole    = "role"
)

// UserFrom returns the authenticated user.
func UserFrom(c echo.Context) (model.User, bool) {
	u, ok := c.Get(ctxUser).(model.User)
	return u, ok
}

// SessionFrom returns the login session. Mutations (e.g. a newly bound
// chat session) are visible to later handlers in the same request.
func SessionFrom(c echo.Context) (*auth.Session, bool) {
	s, ok := c.Get(ctxSession).(*auth.Session)
	return s, ok && s != nil
}

// currentUserID returns the authenticated user id, or "anon" when the
// request has no session.
func currentUserID(c echo.Context) string {
	if s, ok := c.Get(ctxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
