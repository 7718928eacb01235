package handler

import (
	"io"            // reading the uploaded file
	"net/http"      // status codes and content sniffing
	"path/filepath" // strip client directories from file names
	"strconv"       // ?limit= parsing
	"strings"       // input normalisation

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/edubot/internal/auth"
	"github.com/iliyamo/edubot/internal/gateway"
	"github.com/iliyamo/edubot/internal/middleware"
	"github.com/iliyamo/edubot/internal/repository"
	"github.com/iliyamo/edubot/internal/service"
)

const (
	// MaxImageBytes is the largest accepted upload.
	MaxImageBytes = 10 << 20
	maxQueryChars = 4000
	maxHistory    = 200
)

// allowedImageTypes are the sniffed content types accepted for analysis.
var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/webp": true,
}

// ChatHandler serves the query, history and analytics endpoints.
type ChatHandler struct {
	Chat *service.ChatService
}

func NewChatHandler(s *service.ChatService) *ChatHandler { return &ChatHandler{Chat: s} }

// ----- DTOs -----

type textQueryReq struct {
	Query string `json:"query" validate:"required,max=4000"`
}

type answerResp struct {
	Message           messageResp `json:"message"`
	ChatSessionID     string      `json:"chat_session_id"`
	AnalyticsRecorded bool        `json:"analytics_recorded"` // false: answer stored, counters or audit event missed
}

// ----- queries -----

// AskText answers a plain text question.
func (h *ChatHandler) AskText(c echo.Context) error {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		return writeError(c, auth.ErrInvalidSession)
	}
	var req textQueryReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Query = strings.TrimSpace(req.Query) // whitespace-only counts as empty
	if err := validate.Struct(req); err != nil {
		return invalid(c, err)
	}
	return h.answer(c, sess, gateway.Query{Text: req.Query})
}

// AskImage analyses an uploaded image (form field "image") with an
// optional question (form field "query").
func (h *ChatHandler) AskImage(c echo.Context) error {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		return writeError(c, auth.ErrInvalidSession)
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return badRequest(c, "image file is required")
	}
	// the router's BodyLimit stops huge bodies early; this is the exact cap
	if fh.Size > MaxImageBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "image must be at most 10 MiB"})
	}
	query := strings.TrimSpace(c.FormValue("query"))
	if len([]rune(query)) > maxQueryChars {
		return badRequest(c, "query must be at most 4000 characters")
	}

	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "cannot read image")
	}
	defer f.Close()
	// read one byte past the cap so an understated Size is still caught
	data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	if err != nil {
		return badRequest(c, "cannot read image")
	}
	if len(data) > MaxImageBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "image must be at most 10 MiB"})
	}
	// trust the bytes, not the client's Content-Type or file extension
	mime := http.DetectContentType(data)
	if !allowedImageTypes[mime] {
		return c.JSON(http.StatusUnsupportedMediaType, echo.Map{"error": "supported image types: png, jpeg, gif, bmp, webp"})
	}

	return h.answer(c, sess, gateway.Query{
		Text: query,
		Image: &gateway.Image{
			Name:     filepath.Base(fh.Filename), // only the name is stored, never the bytes
			MIMEType: mime,
			Data:     data,
		},
	})
}

func (h *ChatHandler) answer(c echo.Context, sess *auth.Session, q gateway.Query) error {
	a, err := h.Chat.Ask(c.Request().Context(), sess, q)
	if err != nil {
		return writeError(c, err) // 502 when the model failed; nothing was stored
	}
	return c.JSON(http.StatusOK, answerResp{
		Message:           toMessageResp(a.Message),
		ChatSessionID:     a.ChatSessionID,
		AnalyticsRecorded: a.AnalyticsRecorded,
	})
}

// ----- sessions and history -----

// NewSession starts a fresh chat session.
func (h *ChatHandler) NewSession(c echo.Context) error {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		return writeError(c, auth.ErrInvalidSession)
	}
	cs, err := h.Chat.NewChat(c.Request().Context(), sess)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toSessionResp(cs))
}

// ListSessions lists the caller's chat sessions, most recently active first.
func (h *ChatHandler) ListSessions(c echo.Context) error {
	u, ok := middleware.UserFrom(c)
	if !ok {
		return writeError(c, auth.ErrInvalidSession)
	}
	list, err := h.Chat.ChatSessions(c.Request().Context(), u.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": toSessionResps(list)})
}

// SessionMessages lists the messages of one of the caller's chat sessions
// in the order they were asked. Other users' sessions answer 404.
func (h *ChatHandler) SessionMessages(c echo.Context) error {
	u, ok := middleware.UserFrom(c)
	if !ok {
		return writeError(c, auth.ErrInvalidSession)
	}
	id := c.Param("id")
	msgs, err := h.Chat.ChatMessages(c.Request().Context(), u.ID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"chat_session_id": id,
		"messages":        toMessageResps(msgs),
	})
}

// CurrentSession lists the messages of the current chat session.
func (h *ChatHandler) CurrentSession(c echo.Context) error {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		return writeError(c, auth.ErrInvalidSession)
	}
	msgs, err := h.Chat.SessionMessages(c.Request().Context(), sess)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"chat_session_id": sess.ChatSessionID, // "" before the first query
		"messages":        toMessageResps(msgs),
	})
}

// History lists the user's latest messages across sessions, newest
// first. ?limit= defaults to 50.
func (h *ChatHandler) History(c echo.Context) error {
	u, ok := middleware.UserFrom(c)
	if !ok {
		return writeError(c, auth.ErrInvalidSession)
	}
	limit := repository.DefaultHistoryLimit
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return badRequest(c, "limit must be a positive integer")
		}
		limit = min(n, maxHistory) // silently capped, not rejected
	}
	msgs, err := h.Chat.History(c.Request().Context(), u.ID, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": toMessageResps(msgs)})
}

// ----- misc -----

// Suggestions returns starter prompts for the user's role.
func (h *ChatHandler) Suggestions(c echo.Context) error {
	u, ok := middleware.UserFrom(c)
	if !ok {
		return writeError(c, auth.ErrInvalidSession)
	}
	return c.JSON(http.StatusOK, echo.Map{"suggestions": gateway.Suggestions(u.Role)})
}

// MyAnalytics returns the caller's own counters.
func (h *ChatHandler) MyAnalytics(c echo.Context) error {
	u, ok := middleware.UserFrom(c)
	if !ok {
		return writeError(c, auth.ErrInvalidSession)
	}
	counter, err := h.Chat.Analytics(c.Request().Context(), u.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toCounterResp(counter))
}
