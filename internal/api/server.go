// Package api serves the booking REST API over echo.
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"worldtrip/pkg/domain"
)

// BookingService is the set of operations the handlers need. *core.Service
// satisfies it.
type BookingService interface {
	ListPackages(ctx context.Context) ([]domain.Package, error)
	GetPackage(ctx context.Context, id int64) (domain.Package, error)
	CreatePackage(ctx context.Context, pkg domain.Package) (domain.Package, domain.Result, error)
	UpdatePackage(ctx context.Context, id int64, pkg domain.Package) (domain.Package, domain.Result, error)
	DeletePackage(ctx context.Context, id int64) (domain.Result, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	RegisterCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, domain.Result, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	ListOrdersByEmail(ctx context.Context, email string) ([]domain.Order, error)
	PlaceOrder(ctx context.Context, order domain.Order) (domain.Order, domain.Result, error)
	UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (domain.Order, domain.Result, error)
}

// Config wires optional collaborators into the server.
type Config struct {
	Logger     *slog.Logger
	Authorizer Authorizer
	// Registry receives the HTTP collectors and backs /metrics. A fresh
	// registry is created when nil.
	Registry *prometheus.Registry
}

// Handler holds the dependencies shared by every route.
type Handler struct {
	svc  BookingService
	auth Authorizer
	log  *slog.Logger
}

// New builds an echo instance with middleware and every route mounted both
// at the root and under /api.
func New(svc BookingService, cfg Config) (*echo.Echo, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	auth := cfg.Authorizer
	if auth == nil {
		auth = AllowAll{}
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics, err := NewHTTPMetrics(reg)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	RegisterMiddlewares(e, logger, metrics)

	h := &Handler{svc: svc, auth: auth, log: logger}
	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	h.mount(e.Group(""))
	h.mount(e.Group("/api"))
	return e, nil
}

func (h *Handler) mount(g *echo.Group) {
	admin := RequireAdmin(h.auth)

	g.GET("/packages", h.ListPackages)
	g.GET("/packages/:id", h.GetPackage)
	g.POST("/packages", h.CreatePackage, admin)
	g.PUT("/packages/:id", h.UpdatePackage, admin)
	g.DELETE("/packages/:id", h.DeletePackage, admin)

	g.GET("/orders", h.ListOrders)
	g.GET("/orders/user/:email", h.ListOrdersByEmail)
	g.POST("/orders", h.PlaceOrder)
	g.PUT("/orders/:id/status", h.UpdateOrderStatus, admin)

	g.GET("/customers", h.ListCustomers)
	g.POST("/customers", h.RegisterCustomer)
}

// Health reports liveness.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)
	return &requestValidator{v: v}
}

func (r *requestValidator) Validate(i any) error {
	return r.v.Struct(i)
}
