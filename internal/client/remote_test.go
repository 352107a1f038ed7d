package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"worldtrip/internal/api"
	"worldtrip/internal/blob"
	"worldtrip/internal/core"
	"worldtrip/pkg/domain"
)

// flakyAPI serves the real booking API and answers 503 while down is set.
type flakyAPI struct {
	down atomic.Bool
	next http.Handler
}

func (f *flakyAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.down.Load() {
		http.Error(w, `{"error":"maintenance"}`, http.StatusServiceUnavailable)
		return
	}
	f.next.ServeHTTP(w, r)
}

func newAPIRemote(t *testing.T) (*HTTPRemote, *core.Service, *flakyAPI) {
	t.Helper()
	svc := core.NewInMemoryService(nil)
	e, err := api.New(svc, api.Config{})
	require.NoError(t, err)
	flaky := &flakyAPI{next: e}
	srv := httptest.NewServer(flaky)
	t.Cleanup(srv.Close)
	remote, err := NewHTTPRemote(srv.URL + "/api/")
	require.NoError(t, err)
	return remote, svc, flaky
}

func TestHTTPRemoteRoundTrip(t *testing.T) {
	ctx := context.Background()
	remote, _, _ := newAPIRemote(t)

	pkg, err := remote.CreatePackage(ctx, domain.Package{Name: "Paris Dream", Destination: "Paris, France", Duration: "7 Days", Price: 2500, Included: []string{"Hotel"}})
	require.NoError(t, err)
	require.NotZero(t, pkg.ID)

	pkg, err = remote.UpdatePackage(ctx, pkg.ID, domain.Package{Name: "Paris Deluxe", Destination: "Paris, France", Duration: "7 Days", Price: 2900})
	require.NoError(t, err)
	require.Equal(t, "Paris Deluxe", pkg.Name)

	customer, err := remote.RegisterCustomer(ctx, "Ana", "ana@example.com")
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", customer.Email)

	order, err := remote.PlaceOrder(ctx, domain.Order{
		PackageID: &pkg.ID, PackageName: pkg.Name, Destination: pkg.Destination, Price: pkg.Price,
		CustomerName: "Ana", CustomerEmail: "ana@example.com", NumberOfTravelers: 2, TotalAmount: 5800,
	})
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPending, order.Status)
	require.Equal(t, 5800.0, order.TotalAmount)

	order, err = remote.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusConfirmed)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusConfirmed, order.Status)

	require.NoError(t, remote.DeletePackage(ctx, pkg.ID))
	pkgs, err := remote.Packages(ctx)
	require.NoError(t, err)
	require.Empty(t, pkgs)
	orders, err := remote.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	customers, err := remote.Customers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 1)
}

func TestHTTPRemoteErrorMapping(t *testing.T) {
	ctx := context.Background()
	remote, _, flaky := newAPIRemote(t)

	_, err := remote.RegisterCustomer(ctx, "Ana", "ana@example.com")
	require.NoError(t, err)
	_, err = remote.RegisterCustomer(ctx, "Ana", "ANA@example.com")
	require.True(t, Definitive(err))
	require.True(t, domain.IsConflict(err))

	_, err = remote.CreatePackage(ctx, domain.Package{Destination: "Nowhere", Duration: "1 Day", Price: 1})
	require.True(t, Definitive(err))
	require.True(t, domain.IsValidation(err))

	err = remote.DeletePackage(ctx, 404)
	require.False(t, Definitive(err))
	require.True(t, domain.IsNotFound(err))
	var re *RemoteError
	require.True(t, errors.As(err, &re))
	require.Equal(t, http.StatusNotFound, re.StatusCode)
	require.Equal(t, "Package not found", re.Message)

	flaky.down.Store(true)
	_, err = remote.Packages(ctx)
	require.Error(t, err)
	require.False(t, Definitive(err))
}

func TestNewHTTPRemoteRejectsRelativeURL(t *testing.T) {
	_, err := NewHTTPRemote("/api")
	require.Error(t, err)
}

func TestMergingRepositoryOverHTTP(t *testing.T) {
	ctx := context.Background()
	remote, svc, flaky := newAPIRemote(t)
	_, err := svc.SeedDefaultPackages(ctx)
	require.NoError(t, err)

	repo := newTestRepository(t, remote, blob.NewMemory(), WithFallbackPackages(core.DefaultPackages()))
	pkgs, err := repo.Packages(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, pkgs)
	first := pkgs[0]

	flaky.down.Store(true)
	local, err := repo.PlaceOrder(ctx, domain.Order{
		PackageID: &first.ID, PackageName: first.Name, Destination: first.Destination, Price: first.Price,
		CustomerName: "Ana", CustomerEmail: "ana@example.com",
	})
	require.NoError(t, err)
	require.True(t, local.IsLocal)
	require.Equal(t, 1, local.NumberOfTravelers)
	require.Equal(t, first.Price, local.TotalAmount)

	flaky.down.Store(false)
	require.NoError(t, repo.Refresh(ctx))
	remoteOrders, err := svc.ListOrders(ctx)
	require.NoError(t, err)
	require.Empty(t, remoteOrders)
	mine, err := repo.OrdersFor(ctx, "ana@example.com")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	placed, err := repo.PlaceOrder(ctx, domain.Order{
		PackageID: &first.ID, PackageName: first.Name, Destination: first.Destination, Price: first.Price,
		CustomerName: "Ana", CustomerEmail: "ana@example.com", NumberOfTravelers: 3,
	})
	require.NoError(t, err)
	require.False(t, placed.IsLocal)
	require.Equal(t, first.Price*3, placed.TotalAmount)
	mine, err = repo.OrdersFor(ctx, "ana@example.com")
	require.NoError(t, err)
	require.Len(t, mine, 2)
}
