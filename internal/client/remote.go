// Package client keeps an in-process mirror of the booking API that keeps
// working while the API is unreachable.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"worldtrip/pkg/domain"
)

// RemoteSource is the authoritative store behind the cache.
type RemoteSource interface {
	Packages(ctx context.Context) ([]domain.Package, error)
	Customers(ctx context.Context) ([]domain.Customer, error)
	Orders(ctx context.Context) ([]domain.Order, error)
	CreatePackage(ctx context.Context, pkg domain.Package) (domain.Package, error)
	UpdatePackage(ctx context.Context, id int64, pkg domain.Package) (domain.Package, error)
	DeletePackage(ctx context.Context, id int64) error
	RegisterCustomer(ctx context.Context, name, email string) (domain.Customer, error)
	PlaceOrder(ctx context.Context, order domain.Order) (domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (domain.Order, error)
}

const duplicateCustomerMessage = "Customer with this email already exists"

// RemoteError is a non-2xx answer from the API. It unwraps to the matching
// domain error where one applies.
type RemoteError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	cause      error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

func (e *RemoteError) Unwrap() error { return e.cause }

// Definitive reports whether err is a rejection the remote would repeat, such
// as a duplicate email or invalid input. Transport failures, 5xx answers and
// 404s are not definitive; callers fall back to the local overlay for those.
func Definitive(err error) bool {
	var re *RemoteError
	if !errors.As(err, &re) {
		return false
	}
	return re.StatusCode >= 400 && re.StatusCode < 500 && re.StatusCode != http.StatusNotFound
}

// HTTPRemote talks JSON to the booking API.
type HTTPRemote struct {
	base   *url.URL
	client *http.Client
	token  string
}

// HTTPOption configures an HTTPRemote.
type HTTPOption func(*HTTPRemote)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(r *HTTPRemote) {
		if c != nil {
			r.client = c
		}
	}
}

// WithBearerToken sends token on every request; admin routes need it when the
// server verifies JWTs.
func WithBearerToken(token string) HTTPOption {
	return func(r *HTTPRemote) { r.token = token }
}

func defaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// NewHTTPRemote returns a remote rooted at baseURL, e.g. http://localhost:5000/api.
func NewHTTPRemote(baseURL string, opts ...HTTPOption) (*HTTPRemote, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api url %q must be absolute", baseURL)
	}
	r := &HTTPRemote{base: u, client: defaultHTTPClient()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

var _ RemoteSource = (*HTTPRemote)(nil)

type packageBody struct {
	Name        string   `json:"name"`
	Destination string   `json:"destination"`
	Duration    string   `json:"duration"`
	Price       float64  `json:"price"`
	Image       string   `json:"image"`
	Description string   `json:"description"`
	Included    []string `json:"included"`
}

type orderBody struct {
	PackageID         *int64  `json:"packageId"`
	PackageName       string  `json:"packageName"`
	Destination       string  `json:"destination"`
	Price             float64 `json:"price"`
	CustomerName      string  `json:"customerName"`
	CustomerEmail     string  `json:"customerEmail"`
	CustomerPhone     string  `json:"customerPhone"`
	TravelDate        string  `json:"travelDate"`
	NumberOfTravelers int     `json:"numberOfTravelers"`
	SpecialRequests   string  `json:"specialRequests"`
	Address           string  `json:"address"`
	City              string  `json:"city"`
	Country           string  `json:"country"`
	PassportNumber    string  `json:"passportNumber"`
	TotalAmount       float64 `json:"totalAmount"`
}

func toPackageBody(p domain.Package) packageBody {
	return packageBody{Name: p.Name, Destination: p.Destination, Duration: p.Duration, Price: p.Price, Image: p.Image, Description: p.Description, Included: p.Included}
}

func toOrderBody(o domain.Order) orderBody {
	return orderBody{
		PackageID: o.PackageID, PackageName: o.PackageName, Destination: o.Destination, Price: o.Price,
		CustomerName: o.CustomerName, CustomerEmail: o.CustomerEmail, CustomerPhone: o.CustomerPhone,
		TravelDate: o.TravelDate, NumberOfTravelers: o.NumberOfTravelers, SpecialRequests: o.SpecialRequests,
		Address: o.Address, City: o.City, Country: o.Country, PassportNumber: o.PassportNumber,
		TotalAmount: o.TotalAmount,
	}
}

// Packages fetches the catalog with GET /packages.
func (r *HTTPRemote) Packages(ctx context.Context) ([]domain.Package, error) {
	var out []domain.Package
	err := r.do(ctx, http.MethodGet, "/packages", nil, &out)
	return out, err
}

// Customers fetches every registered customer.
func (r *HTTPRemote) Customers(ctx context.Context) ([]domain.Customer, error) {
	var out []domain.Customer
	err := r.do(ctx, http.MethodGet, "/customers", nil, &out)
	return out, err
}

// Orders fetches every order.
func (r *HTTPRemote) Orders(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	err := r.do(ctx, http.MethodGet, "/orders", nil, &out)
	return out, err
}

// CreatePackage posts pkg and returns the stored package with its id.
func (r *HTTPRemote) CreatePackage(ctx context.Context, pkg domain.Package) (domain.Package, error) {
	var out domain.Package
	err := r.do(ctx, http.MethodPost, "/packages", toPackageBody(pkg), &out)
	return out, err
}

// UpdatePackage replaces the package at id.
func (r *HTTPRemote) UpdatePackage(ctx context.Context, id int64, pkg domain.Package) (domain.Package, error) {
	var out domain.Package
	err := r.do(ctx, http.MethodPut, "/packages/"+strconv.FormatInt(id, 10), toPackageBody(pkg), &out)
	return out, err
}

// DeletePackage removes the package at id. Orders keep their snapshot.
func (r *HTTPRemote) DeletePackage(ctx context.Context, id int64) error {
	return r.do(ctx, http.MethodDelete, "/packages/"+strconv.FormatInt(id, 10), nil, nil)
}

// RegisterCustomer registers name and email. A duplicate email comes back
// as a definitive Conflict.
func (r *HTTPRemote) RegisterCustomer(ctx context.Context, name, email string) (domain.Customer, error) {
	var out domain.Customer
	body := map[string]string{"name": name, "email": email}
	err := r.do(ctx, http.MethodPost, "/customers", body, &out)
	return out, err
}

// PlaceOrder submits order; the server assigns status and date.
func (r *HTTPRemote) PlaceOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	var out domain.Order
	err := r.do(ctx, http.MethodPost, "/orders", toOrderBody(order), &out)
	return out, err
}

// UpdateOrderStatus sets the status of order id.
func (r *HTTPRemote) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (domain.Order, error) {
	var out domain.Order
	body := map[string]string{"status": string(status)}
	err := r.do(ctx, http.MethodPut, "/orders/"+strconv.FormatInt(id, 10)+"/status", body, &out)
	return out, err
}

func (r *HTTPRemote) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.base.String()+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return newRemoteError(method, path, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func newRemoteError(method, path string, resp *http.Response) *RemoteError {
	var payload struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := resp.Status
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	re := &RemoteError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: msg}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		re.cause = domain.ErrNotFound{Entity: entityForPath(path), ID: lastSegment(path)}
	case resp.StatusCode == http.StatusBadRequest && msg == duplicateCustomerMessage:
		re.cause = domain.ErrConflict{Entity: domain.EntityCustomer, Field: "email"}
	case resp.StatusCode == http.StatusBadRequest:
		re.cause = domain.ErrValidation{Field: "request", Reason: msg}
	}
	return re
}

func entityForPath(path string) domain.EntityType {
	switch {
	case strings.HasPrefix(path, "/orders"):
		return domain.EntityOrder
	case strings.HasPrefix(path, "/customers"):
		return domain.EntityCustomer
	default:
		return domain.EntityPackage
	}
}

func lastSegment(path string) string {
	path = strings.TrimSuffix(path, "/status")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
