package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/edubot/internal/auth"
	"github.com/iliyamo/edubot/internal/gateway"
	"github.com/iliyamo/edubot/internal/repository"
	"github.com/iliyamo/edubot/internal/service"
)

// validate is shared by all handlers; field names in messages follow the
// json tags.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validationErrors converts validator errors to a field -> message map.
func validationErrors(err error) map[string]string {
	out := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return out
	}
	for _, e := range verrs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s is required", field)
		case "email":
			out[field] = "invalid email format"
		case "min":
			out[field] = fmt.Sprintf("%s must be at least %s characters", field, e.Param())
		case "max":
			out[field] = fmt.Sprintf("%s must be at most %s characters", field, e.Param())
		case "eqfield":
			out[field] = "passwords do not match"
		case "oneof":
			out[field] = fmt.Sprintf("%s must be one of: %s", field, e.Param())
		default:
			out[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return out
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

func invalid(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": validationErrors(err)})
}

// writeError maps domain errors to HTTP responses. Anything unknown is
// logged and reported as a generic 500.
func writeError(c echo.Context, err error) error {
	var (
		gwErr *gateway.Error
		stErr *repository.StorageError
	)
	switch {
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, service.ErrEmptyQuery):
		return badRequest(c, err.Error())
	case errors.Is(err, auth.ErrDuplicateUser):
		return c.JSON(http.StatusConflict, echo.Map{"error": "username or email already exists"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid username or password"})
	case errors.Is(err, auth.ErrInactiveAccount):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account is deactivated"})
	case errors.Is(err, auth.ErrInvalidSession):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired session"})
	case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.As(err, &gwErr):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "the assistant is unavailable right now, please try again later"})
	case errors.As(err, &stErr):
		slog.Error("storage failure", "path", c.Path(), "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	slog.Error("unhandled error", "path", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
