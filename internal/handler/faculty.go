package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/edubot/internal/auth"
	"github.com/iliyamo/edubot/internal/middleware"
	"github.com/iliyamo/edubot/internal/service"
)

// FacultyHandler serves the faculty-only dashboard and account controls.
type FacultyHandler struct {
	Chat *service.ChatService
	Auth *auth.Manager
	// Purge drops cached dashboard responses; may be nil.
	Purge func(ctx context.Context) error
}

func NewFacultyHandler(s *service.ChatService, m *auth.Manager, purge func(context.Context) error) *FacultyHandler {
	return &FacultyHandler{Chat: s, Auth: m, Purge: purge}
}

// Dashboard returns platform totals, the most active users and every
// active user's counters.
func (h *FacultyHandler) Dashboard(c echo.Context) error {
	d, err := h.Chat.Dashboard(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toDashboardResp(d))
}

type setActiveReq struct {
	Active *bool `json:"active" validate:"required"`
}

// SetActive enables or disables the account in :id. Faculty cannot
// disable their own account.
func (h *FacultyHandler) SetActive(c echo.Context) error {
	id := c.Param("id")
	var req setActiveReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := validate.Struct(req); err != nil {
		return invalid(c, err)
	}
	if me, ok := middleware.UserFrom(c); ok && me.ID == id && !*req.Active {
		return badRequest(c, "cannot deactivate your own account")
	}

	ctx := c.Request().Context()
	if err := h.Auth.SetActive(ctx, id, *req.Active); err != nil {
		return writeError(c, err)
	}
	if h.Purge != nil {
		if err := h.Purge(ctx); err != nil {
			slog.Warn("purge dashboard cache failed", "err", err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "active": *req.Active})
}
