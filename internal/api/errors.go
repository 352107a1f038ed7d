package api

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"worldtrip/pkg/domain"
)

var notFoundMessages = map[domain.EntityType]string{
	domain.EntityPackage:  "Package not found",
	domain.EntityOrder:    "Order not found",
	domain.EntityCustomer: "Customer not found",
}

// respondError maps service errors onto status codes. Anything unrecognized
// is a store failure and is returned as 500 with its message.
func (h *Handler) respondError(c echo.Context, err error) error {
	var nf domain.ErrNotFound
	var conflict domain.ErrConflict
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &nf):
		msg, ok := notFoundMessages[nf.Entity]
		if !ok {
			msg = err.Error()
		}
		return c.JSON(http.StatusNotFound, echo.Map{"error": msg})
	case errors.As(err, &conflict):
		if conflict.Entity == domain.EntityCustomer && conflict.Field == "email" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Customer with this email already exists"})
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.As(err, &verrs):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": fieldError(verrs[0]).Error()})
	case domain.IsValidation(err):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	default:
		h.log.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// fieldError converts a validator failure into the domain validation error.
func fieldError(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return domain.MissingField(fe.Field())
	case "gt":
		return domain.ErrValidation{Field: fe.Field(), Reason: "must be greater than " + fe.Param()}
	case "gte":
		return domain.ErrValidation{Field: fe.Field(), Reason: "must be at least " + fe.Param()}
	default:
		return domain.ErrValidation{Field: fe.Field(), Reason: "failed " + fe.Tag()}
	}
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}
