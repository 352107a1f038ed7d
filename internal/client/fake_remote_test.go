package client

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"worldtrip/pkg/domain"
)

var errUnreachable = errors.New("dial tcp: connection refused")

// fakeRemote is an in-memory RemoteSource that can be taken offline and can
// hold order fetches at a gate.
type fakeRemote struct {
	mu        sync.Mutex
	down      bool
	nextID    int64
	packages  []domain.Package
	customers []domain.Customer
	orders    []domain.Order
	calls     map[string]int

	ordersGate    chan struct{}
	ordersEntered chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{nextID: 100, calls: map[string]int{}}
}

func (f *fakeRemote) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeRemote) enter(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if f.down {
		return errUnreachable
	}
	return nil
}

// holdNextOrders makes the next Orders call snapshot the current orders,
// signal entered, then block until release is closed.
func (f *fakeRemote) holdNextOrders() (entered, release chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entered, release = make(chan struct{}), make(chan struct{})
	f.ordersGate, f.ordersEntered = release, entered
	return entered, release
}

func (f *fakeRemote) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) Packages(context.Context) ([]domain.Package, error) {
	if err := f.enter("packages"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Package{}, f.packages...), nil
}

func (f *fakeRemote) Customers(context.Context) ([]domain.Customer, error) {
	if err := f.enter("customers"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Customer{}, f.customers...), nil
}

func (f *fakeRemote) Orders(context.Context) ([]domain.Order, error) {
	if err := f.enter("orders"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	snapshot := append([]domain.Order{}, f.orders...)
	gate, entered := f.ordersGate, f.ordersEntered
	f.ordersGate, f.ordersEntered = nil, nil
	f.mu.Unlock()
	if gate != nil {
		close(entered)
		<-gate
	}
	return snapshot, nil
}

func (f *fakeRemote) CreatePackage(_ context.Context, pkg domain.Package) (domain.Package, error) {
	if err := f.enter("create_package"); err != nil {
		return domain.Package{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	pkg.ID = f.nextID
	if pkg.Included == nil {
		pkg.Included = []string{}
	}
	f.packages = append(f.packages, pkg)
	return pkg, nil
}

func (f *fakeRemote) UpdatePackage(_ context.Context, id int64, pkg domain.Package) (domain.Package, error) {
	if err := f.enter("update_package"); err != nil {
		return domain.Package{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.packages {
		if f.packages[i].ID == id {
			pkg.ID = id
			f.packages[i] = pkg
			return pkg, nil
		}
	}
	return domain.Package{}, notFound("/packages/" + strconv.FormatInt(id, 10))
}

func (f *fakeRemote) DeletePackage(_ context.Context, id int64) error {
	if err := f.enter("delete_package"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.packages {
		if f.packages[i].ID == id {
			f.packages = append(f.packages[:i], f.packages[i+1:]...)
			return nil
		}
	}
	return notFound("/packages/" + strconv.FormatInt(id, 10))
}

func (f *fakeRemote) RegisterCustomer(_ context.Context, name, email string) (domain.Customer, error) {
	if err := f.enter("register"); err != nil {
		return domain.Customer{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := findCustomer(f.customers, email); ok {
		return domain.Customer{}, &RemoteError{Method: "POST", Path: "/customers", StatusCode: 400, Message: duplicateCustomerMessage,
			cause: domain.ErrConflict{Entity: domain.EntityCustomer, Field: "email"}}
	}
	f.nextID++
	c := domain.Customer{ID: f.nextID, Name: name, Email: email, RegisteredAt: time.Now().UTC()}
	f.customers = append(f.customers, c)
	return c, nil
}

func (f *fakeRemote) PlaceOrder(_ context.Context, order domain.Order) (domain.Order, error) {
	if err := f.enter("place_order"); err != nil {
		return domain.Order{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	order.ID = f.nextID
	order.Status = domain.OrderStatusPending
	order.OrderDate = time.Now().UTC()
	order.IsLocal = false
	f.orders = append(f.orders, order)
	return order, nil
}

func (f *fakeRemote) UpdateOrderStatus(_ context.Context, id int64, status domain.OrderStatus) (domain.Order, error) {
	if err := f.enter("update_status"); err != nil {
		return domain.Order{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.orders {
		if f.orders[i].ID == id {
			f.orders[i].Status = status
			return f.orders[i], nil
		}
	}
	return domain.Order{}, notFound("/orders/" + strconv.FormatInt(id, 10) + "/status")
}

func notFound(path string) error {
	return &RemoteError{Method: "PUT", Path: path, StatusCode: 404, Message: "not found",
		cause: domain.ErrNotFound{Entity: entityForPath(path), ID: lastSegment(path)}}
}
