package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/edubot/internal/handler"
	"github.com/iliyamo/edubot/internal/middleware"
	"github.com/iliyamo/edubot/internal/model"
)

// Deps carries everything the routes need. RateLimit and Cache may be nil,
// in which case the routes run without them.
type Deps struct {
	Health   handler.Pinger
	Sessions middleware.SessionResolver
	Auth     *handler.AuthHandler
	Chat     *handler.ChatHandler
	Faculty  *handler.FacultyHandler

	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// RegisterRoutes registers every endpoint on e.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.Health))

	// Unauthenticated operations live under /v1/auth. Logout reads the
	// bearer token itself so an expired session can still log out.
	a := e.Group("/v1/auth")
	a.POST("/register", d.Auth.Register)
	a.POST("/login", d.Auth.Login)
	a.POST("/logout", d.Auth.Logout)

	// Everything else requires a live session; both roles are accepted.
	v1 := e.Group("/v1", middleware.RequireSession(d.Sessions))
	v1.GET("/me", d.Auth.Me)
	v1.GET("/me/analytics", d.Chat.MyAnalytics)

	chat := v1.Group("/chat")
	chat.GET("/history", d.Chat.History)
	chat.GET("/session", d.Chat.CurrentSession)
	chat.GET("/sessions", d.Chat.ListSessions)
	chat.POST("/sessions", d.Chat.NewSession)
	chat.GET("/sessions/:id", d.Chat.SessionMessages)
	chat.GET("/suggestions", d.Chat.Suggestions)

	// Query routes call the model; they are rate limited per user.
	rl := optional(d.RateLimit)
	chat.POST("/text", d.Chat.AskText, rl)
	chat.POST("/image", d.Chat.AskImage, rl, echomw.BodyLimit("11M"))

	// Faculty only. The cache sits after the role check so only faculty
	// responses are ever stored or served.
	f := v1.Group("/faculty", middleware.RequireRole(model.RoleFaculty))
	f.GET("/analytics", d.Faculty.Dashboard, optional(d.Cache))
	f.PATCH("/users/:id/active", d.Faculty.SetActive)
}

func optional(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	if mw == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return mw
}
