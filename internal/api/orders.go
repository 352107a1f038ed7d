package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"worldtrip/pkg/domain"
)

// GET /orders
func (h *Handler) ListOrders(c echo.Context) error {
	orders, err := h.svc.ListOrders(c.Request().Context())
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, nonNilOrders(orders))
}

// GET /orders/user/:email
func (h *Handler) ListOrdersByEmail(c echo.Context) error {
	// echo has already decoded the path parameter.
	orders, err := h.svc.ListOrdersByEmail(c.Request().Context(), c.Param("email"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, nonNilOrders(orders))
}

// POST /orders
func (h *Handler) PlaceOrder(c echo.Context) error {
	var req orderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	if err := c.Validate(req); err != nil {
		return h.respondError(c, err)
	}
	order, _, err := h.svc.PlaceOrder(c.Request().Context(), req.toDomain())
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

// PUT /orders/:id/status (admin)
func (h *Handler) UpdateOrderStatus(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return h.respondError(c, domain.ErrNotFound{Entity: domain.EntityOrder, ID: c.Param("id")})
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	var status domain.OrderStatus
	if strings.TrimSpace(req.Status) != "" {
		parsed, err := domain.ParseOrderStatus(req.Status)
		if err != nil {
			return h.respondError(c, domain.ErrValidation{Field: "status", Reason: err.Error()})
		}
		status = parsed
	}
	order, _, err := h.svc.UpdateOrderStatus(c.Request().Context(), id, status)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

func nonNilOrders(orders []domain.Order) []domain.Order {
	if orders == nil {
		return []domain.Order{}
	}
	return orders
}
