package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"worldtrip/pkg/domain"
)

// GET /packages
func (h *Handler) ListPackages(c echo.Context) error {
	pkgs, err := h.svc.ListPackages(c.Request().Context())
	if err != nil {
		return h.respondError(c, err)
	}
	if pkgs == nil {
		pkgs = []domain.Package{}
	}
	return c.JSON(http.StatusOK, pkgs)
}

// GET /packages/:id
func (h *Handler) GetPackage(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return h.respondError(c, domain.ErrNotFound{Entity: domain.EntityPackage, ID: c.Param("id")})
	}
	pkg, err := h.svc.GetPackage(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, pkg)
}

// POST /packages (admin)
func (h *Handler) CreatePackage(c echo.Context) error {
	var req packageRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	if err := c.Validate(req); err != nil {
		return h.respondError(c, err)
	}
	pkg, _, err := h.svc.CreatePackage(c.Request().Context(), req.toDomain())
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, pkg)
}

// PUT /packages/:id (admin)
func (h *Handler) UpdatePackage(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return h.respondError(c, domain.ErrNotFound{Entity: domain.EntityPackage, ID: c.Param("id")})
	}
	var req packageRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	if err := c.Validate(req); err != nil {
		return h.respondError(c, err)
	}
	pkg, _, err := h.svc.UpdatePackage(c.Request().Context(), id, req.toDomain())
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, pkg)
}

// DELETE /packages/:id (admin)
func (h *Handler) DeletePackage(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return h.respondError(c, domain.ErrNotFound{Entity: domain.EntityPackage, ID: c.Param("id")})
	}
	if _, err := h.svc.DeletePackage(c.Request().Context(), id); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Package deleted successfully"})
}

// pathID parses the :id parameter. Non-numeric ids can never match a record.
func pathID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
