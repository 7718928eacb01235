package handler

import (
	"net/http" // HTTP status codes
	"strings"  // input normalisation
	"time"     // token expiry in the login response

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/edubot/internal/auth"       // registration, login and sessions
	"github.com/iliyamo/edubot/internal/middleware" // bearer token and identity accessors
	"github.com/iliyamo/edubot/internal/model"      // role enum
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth *auth.Manager
}

func NewAuthHandler(m *auth.Manager) *AuthHandler { return &AuthHandler{Auth: m} }

// ----- DTOs -----

type registerReq struct {
	Username        string `json:"username" validate:"required,min=3,max=50"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required,min=6,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"required,oneof=student faculty"` // student | faculty
	FullName        string `json:"full_name" validate:"required,max=100"`
	Department      string `json:"department" validate:"max=100"`
}

type loginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResp struct {
	Token     string    `json:"token"` // bearer token for the Authorization header
	ExpiresAt time.Time `json:"expires_at"`
	User      userResp  `json:"user"`
}

// ----- handlers -----

// Register creates a Student or Faculty account. It does not log the user in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	// normalise before validating so " Bob " and "bob" are the same name
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	req.Department = strings.TrimSpace(req.Department)
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	if err := validate.Struct(req); err != nil {
		return invalid(c, err)
	}
	role, _ := model.ParseRole(req.Role) // oneof above already rejected unknown roles

	u, err := h.Auth.Register(c.Request().Context(), auth.RegisterInput{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		Role:       role,
		FullName:   req.FullName,
		Department: req.Department,
	})
	if err != nil {
		return writeError(c, err) // 409 for a taken username or email
	}
	return c.JSON(http.StatusCreated, toUserResp(u))
}

// Login checks credentials and returns a bearer token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Username = strings.TrimSpace(req.Username) // the password is compared exactly as typed
	if err := validate.Struct(req); err != nil {
		return invalid(c, err)
	}

	// unknown user and wrong password both answer 401; an inactive
	// account answers 403 only after the password matched
	u, sess, err := h.Auth.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, loginResp{Token: sess.Token, ExpiresAt: sess.ExpiresAt, User: toUserResp(u)})
}

// Logout ends the session named by the bearer token. It always answers
// 204, also for missing or unknown tokens.
func (h *AuthHandler) Logout(c echo.Context) error {
	// no RequireSession here: an expired token must still be able to log out
	if raw, ok := middleware.BearerToken(c); ok {
		if err := h.Auth.Logout(c.Request().Context(), raw); err != nil {
			return writeError(c, err)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.UserFrom(c) // set by RequireSession
	if !ok {
		return writeError(c, auth.ErrInvalidSession)
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}
