package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"worldtrip/pkg/domain"
)

// GET /customers
func (h *Handler) ListCustomers(c echo.Context) error {
	customers, err := h.svc.ListCustomers(c.Request().Context())
	if err != nil {
		return h.respondError(c, err)
	}
	if customers == nil {
		customers = []domain.Customer{}
	}
	return c.JSON(http.StatusOK, customers)
}

// POST /customers
func (h *Handler) RegisterCustomer(c echo.Context) error {
	var req customerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	if err := c.Validate(req); err != nil {
		return h.respondError(c, err)
	}
	customer, _, err := h.svc.RegisterCustomer(c.Request().Context(), domain.Customer{Name: req.Name, Email: req.Email})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, customer)
}
