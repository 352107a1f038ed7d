package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"worldtrip/pkg/domain"
)

// ErrClosed is returned by every call after Close.
var ErrClosed = errors.New("client: repository closed")

// DefaultRefreshInterval is the background refresh period.
const DefaultRefreshInterval = 3 * time.Second

// Option configures a MergingRepository.
type Option func(*MergingRepository)

// WithLogger sets the logger; failures on passive paths are only logged.
func WithLogger(l *slog.Logger) Option {
	return func(r *MergingRepository) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock overrides time.Now for ids and local timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *MergingRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRefreshInterval sets the background refresh period.
func WithRefreshInterval(d time.Duration) Option {
	return func(r *MergingRepository) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithFallbackPackages supplies the catalog shown when the remote package
// list is unavailable or empty.
func WithFallbackPackages(pkgs []domain.Package) Option {
	return func(r *MergingRepository) { r.fallback = pkgs }
}

// state is owned by the reducer goroutine.
type state struct {
	visible Overlay
	overlay Overlay
	ids     idSource
}

type remoteSnapshot struct {
	packages  []domain.Package
	customers []domain.Customer
	orders    []domain.Order
}

// MergingRepository composes a RemoteSource and a LocalOverlay. Every
// mutation and refresh is applied by a single goroutine in the order it was
// queued, so a refresh fetched before a mutation but queued after it
// overwrites that mutation until the next refresh.
type MergingRepository struct {
	remote   RemoteSource
	overlay  *LocalOverlay
	log      *slog.Logger
	now      func() time.Time
	interval time.Duration
	fallback []domain.Package

	ops       chan func(*state)
	done      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once

	refreshMu   sync.Mutex
	stopRefresh context.CancelFunc
	refreshDone chan struct{}
}

// NewMergingRepository starts the reducer. Call Load before reading.
func NewMergingRepository(remote RemoteSource, overlay *LocalOverlay, opts ...Option) *MergingRepository {
	r := &MergingRepository{
		remote:   remote,
		overlay:  overlay,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		interval: DefaultRefreshInterval,
		ops:      make(chan func(*state)),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.loop(&state{ids: idSource{now: r.now}})
	return r
}

func (r *MergingRepository) loop(s *state) {
	defer close(r.loopDone)
	for {
		select {
		case op := <-r.ops:
			op(s)
		case <-r.done:
			return
		}
	}
}

// apply runs fn on the reducer and waits for its result.
func (r *MergingRepository) apply(ctx context.Context, fn func(*state) error) error {
	errc := make(chan error, 1)
	op := func(s *state) { errc <- fn(s) }
	select {
	case r.ops <- op:
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errc:
		return err
	case <-r.done:
		return ErrClosed
	}
}

// Load reads the persisted overlay and merges it with a fresh remote fetch.
// Neither failure is returned; both degrade to an empty set.
func (r *MergingRepository) Load(ctx context.Context) error {
	persisted, err := r.overlay.Load(ctx)
	if err != nil {
		r.log.Warn("load local overlay failed", "error", err)
		persisted = Overlay{}
	}
	if err := r.apply(ctx, func(s *state) error {
		s.overlay = persisted
		s.visible = cloneOverlay(persisted)
		return nil
	}); err != nil {
		return err
	}
	return r.Refresh(ctx)
}

// Refresh fetches the remote sets and re-merges them with the overlay. Remote
// failures are logged and treated as empty sets.
func (r *MergingRepository) Refresh(ctx context.Context) error {
	snap := r.fetch(ctx)
	return r.apply(ctx, func(s *state) error {
		s.visible = Overlay{
			Packages:  MergePackages(snap.packages, s.overlay.Packages),
			Customers: MergeCustomers(snap.customers, s.overlay.Customers),
			Orders:    MergeOrders(snap.orders, s.overlay.Orders),
		}
		r.persist(ctx, s)
		return nil
	})
}

func (r *MergingRepository) fetch(ctx context.Context) remoteSnapshot {
	var snap remoteSnapshot
	var g errgroup.Group
	g.Go(func() error {
		pkgs, err := r.remote.Packages(ctx)
		if err != nil {
			r.log.Warn("fetch packages failed", "error", err)
		}
		if err != nil || len(pkgs) == 0 {
			pkgs = clonePackages(r.fallback)
		}
		snap.packages = pkgs
		return nil
	})
	g.Go(func() error {
		customers, err := r.remote.Customers(ctx)
		if err != nil {
			r.log.Warn("fetch customers failed", "error", err)
			customers = nil
		}
		snap.customers = customers
		return nil
	})
	g.Go(func() error {
		orders, err := r.remote.Orders(ctx)
		if err != nil {
			r.log.Warn("fetch orders failed", "error", err)
			orders = nil
		}
		snap.orders = orders
		return nil
	})
	_ = g.Wait()
	return snap
}

// persist rewrites the overlay documents whose content changed after the
// visible set was mutated.
func (r *MergingRepository) persist(ctx context.Context, s *state) {
	next := PruneOverlay(s.visible)
	if !reflect.DeepEqual(next.Packages, s.overlay.Packages) {
		r.save(ctx, domain.EntityPackage, next.Packages)
	}
	if !reflect.DeepEqual(next.Customers, s.overlay.Customers) {
		r.save(ctx, domain.EntityCustomer, next.Customers)
	}
	if !reflect.DeepEqual(next.Orders, s.overlay.Orders) {
		r.save(ctx, domain.EntityOrder, next.Orders)
	}
	s.overlay = next
}

func (r *MergingRepository) save(ctx context.Context, entity domain.EntityType, records any) {
	if err := r.overlay.Save(ctx, entity, records); err != nil {
		r.log.Warn("persist local overlay failed", "entity", entity, "error", err)
	}
}

// Packages returns the visible catalog.
func (r *MergingRepository) Packages(ctx context.Context) ([]domain.Package, error) {
	var out []domain.Package
	err := r.apply(ctx, func(s *state) error {
		out = clonePackages(s.visible.Packages)
		return nil
	})
	return out, err
}

// Customers returns the visible customers.
func (r *MergingRepository) Customers(ctx context.Context) ([]domain.Customer, error) {
	var out []domain.Customer
	err := r.apply(ctx, func(s *state) error {
		out = append([]domain.Customer{}, s.visible.Customers...)
		return nil
	})
	return out, err
}

// Orders returns every visible order.
func (r *MergingRepository) Orders(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	err := r.apply(ctx, func(s *state) error {
		out = append([]domain.Order{}, s.visible.Orders...)
		return nil
	})
	return out, err
}

// OrdersFor returns the visible orders placed under email, matched exactly.
func (r *MergingRepository) OrdersFor(ctx context.Context, email string) ([]domain.Order, error) {
	var out []domain.Order
	err := r.apply(ctx, func(s *state) error {
		out = []domain.Order{}
		for _, o := range s.visible.Orders {
			if o.CustomerEmail == email {
				out = append(out, o)
			}
		}
		return nil
	})
	return out, err
}

// FindCustomer looks a customer up by email ignoring case, for sign-in.
func (r *MergingRepository) FindCustomer(ctx context.Context, email string) (domain.Customer, bool, error) {
	var found domain.Customer
	var ok bool
	err := r.apply(ctx, func(s *state) error {
		found, ok = findCustomer(s.visible.Customers, email)
		return nil
	})
	return found, ok, err
}

func findCustomer(customers []domain.Customer, email string) (domain.Customer, bool) {
	want := strings.ToLower(strings.TrimSpace(email))
	for _, c := range customers {
		if strings.ToLower(strings.TrimSpace(c.Email)) == want {
			return c, true
		}
	}
	return domain.Customer{}, false
}

// Register creates a customer. An email already visible in any case is
// rejected before the remote is called, and again when a local record would
// be added, so concurrent offline registrations cannot share an email.
func (r *MergingRepository) Register(ctx context.Context, name, email string) (domain.Customer, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" {
		return domain.Customer{}, domain.MissingField("name")
	}
	if email == "" {
		return domain.Customer{}, domain.MissingField("email")
	}
	var exists bool
	if err := r.apply(ctx, func(s *state) error {
		_, exists = findCustomer(s.visible.Customers, email)
		return nil
	}); err != nil {
		return domain.Customer{}, err
	}
	if exists {
		return domain.Customer{}, domain.ErrConflict{Entity: domain.EntityCustomer, Field: "email", Value: email}
	}

	created, err := r.remote.RegisterCustomer(ctx, name, email)
	if err != nil && Definitive(err) {
		return domain.Customer{}, err
	}
	var out domain.Customer
	applyErr := r.apply(ctx, func(s *state) error {
		if err != nil {
			if _, taken := findCustomer(s.visible.Customers, email); taken {
				return domain.ErrConflict{Entity: domain.EntityCustomer, Field: "email", Value: email}
			}
			r.log.Warn("remote register failed, registering locally", "email", email, "error", err)
			created = domain.Customer{ID: s.ids.next(), Name: name, Email: email, RegisteredAt: r.now().UTC(), IsLocal: true}
		}
		s.visible.Customers = append(s.visible.Customers, created)
		r.persist(ctx, s)
		out = created
		return nil
	})
	return out, applyErr
}

// AddPackage creates a catalog package.
func (r *MergingRepository) AddPackage(ctx context.Context, pkg domain.Package) (domain.Package, error) {
	created, err := r.remote.CreatePackage(ctx, pkg)
	if err != nil && Definitive(err) {
		return domain.Package{}, err
	}
	var out domain.Package
	applyErr := r.apply(ctx, func(s *state) error {
		if err != nil {
			r.log.Warn("remote add package failed, saving locally", "name", pkg.Name, "error", err)
			created = localPackage(pkg, s.ids.next(), r.now().UTC())
		}
		s.visible.Packages = append(s.visible.Packages, created)
		r.persist(ctx, s)
		out = created
		return nil
	})
	return out, applyErr
}

// UpdatePackage replaces package id.
func (r *MergingRepository) UpdatePackage(ctx context.Context, id int64, pkg domain.Package) (domain.Package, error) {
	updated, err := r.remote.UpdatePackage(ctx, id, pkg)
	if err != nil && Definitive(err) {
		return domain.Package{}, err
	}
	var out domain.Package
	applyErr := r.apply(ctx, func(s *state) error {
		idx := indexOf(s.visible.Packages, id, packageKey)
		if err != nil {
			if idx < 0 {
				return domain.ErrNotFound{Entity: domain.EntityPackage, ID: strconv.FormatInt(id, 10)}
			}
			r.log.Warn("remote update package failed, updating locally", "id", id, "error", err)
			updated = localPackage(pkg, id, r.now().UTC())
			updated.CreatedAt = s.visible.Packages[idx].CreatedAt
		}
		if idx < 0 {
			s.visible.Packages = append(s.visible.Packages, updated)
		} else {
			s.visible.Packages[idx] = updated
		}
		r.persist(ctx, s)
		out = updated
		return nil
	})
	return out, applyErr
}

// DeletePackage removes package id. When the remote is unreachable the
// package must at least be visible locally.
func (r *MergingRepository) DeletePackage(ctx context.Context, id int64) error {
	err := r.remote.DeletePackage(ctx, id)
	if err != nil && Definitive(err) {
		return err
	}
	return r.apply(ctx, func(s *state) error {
		idx := indexOf(s.visible.Packages, id, packageKey)
		if err != nil {
			if idx < 0 {
				return domain.ErrNotFound{Entity: domain.EntityPackage, ID: strconv.FormatInt(id, 10)}
			}
			r.log.Warn("remote delete package failed, deleting locally", "id", id, "error", err)
		}
		if idx >= 0 {
			s.visible.Packages = append(s.visible.Packages[:idx:idx], s.visible.Packages[idx+1:]...)
		}
		r.persist(ctx, s)
		return nil
	})
}

// PlaceOrder books an order. Travelers default to 1 and the total to
// price times travelers.
func (r *MergingRepository) PlaceOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	if order.NumberOfTravelers <= 0 {
		order.NumberOfTravelers = 1
	}
	if order.TotalAmount == 0 {
		order.TotalAmount = order.Price * float64(order.NumberOfTravelers)
	}
	created, err := r.remote.PlaceOrder(ctx, order)
	if err != nil && Definitive(err) {
		return domain.Order{}, err
	}
	var out domain.Order
	applyErr := r.apply(ctx, func(s *state) error {
		if err != nil {
			r.log.Warn("remote place order failed, creating local order", "email", order.CustomerEmail, "error", err)
			created = order
			created.ID = s.ids.next()
			created.Status = domain.OrderStatusPending
			created.OrderDate = r.now().UTC()
			created.IsLocal = true
		}
		s.visible.Orders = append(s.visible.Orders, created)
		r.persist(ctx, s)
		out = created
		return nil
	})
	return out, applyErr
}

// UpdateOrderStatus sets the status of order id.
func (r *MergingRepository) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, domain.ErrValidation{Field: "status", Reason: "unknown order status " + strconv.Quote(string(status))}
	}
	updated, err := r.remote.UpdateOrderStatus(ctx, id, status)
	if err != nil && Definitive(err) {
		return domain.Order{}, err
	}
	var out domain.Order
	applyErr := r.apply(ctx, func(s *state) error {
		idx := indexOf(s.visible.Orders, id, orderKey)
		if err != nil {
			if idx < 0 {
				return domain.ErrNotFound{Entity: domain.EntityOrder, ID: strconv.FormatInt(id, 10)}
			}
			r.log.Warn("remote status update failed, updating locally", "id", id, "error", err)
			updated = s.visible.Orders[idx]
			updated.Status = status
			updated.IsLocal = true
		}
		if idx < 0 {
			s.visible.Orders = append(s.visible.Orders, updated)
		} else {
			s.visible.Orders[idx] = updated
		}
		r.persist(ctx, s)
		out = updated
		return nil
	})
	return out, applyErr
}

// Start refreshes in the background every interval until Stop or Close.
func (r *MergingRepository) Start(ctx context.Context) {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()
	if r.stopRefresh != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.stopRefresh, r.refreshDone = cancel, done
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrClosed) {
					r.log.Warn("background refresh failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the background refresher and waits for it to exit.
func (r *MergingRepository) Stop() {
	r.refreshMu.Lock()
	cancel, done := r.stopRefresh, r.refreshDone
	r.stopRefresh, r.refreshDone = nil, nil
	r.refreshMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Close stops the refresher and the reducer.
func (r *MergingRepository) Close() {
	r.Stop()
	r.closeOnce.Do(func() { close(r.done) })
	<-r.loopDone
}

func localPackage(pkg domain.Package, id int64, now time.Time) domain.Package {
	pkg.ID = id
	if pkg.Included == nil {
		pkg.Included = []string{}
	}
	pkg.CreatedAt = now
	pkg.UpdatedAt = now
	pkg.IsLocal = true
	return pkg
}

func indexOf[T any](items []T, id int64, key func(T) int64) int {
	for i, it := range items {
		if key(it) == id {
			return i
		}
	}
	return -1
}

func clonePackages(in []domain.Package) []domain.Package {
	out := make([]domain.Package, len(in))
	for i, p := range in {
		if p.Included != nil {
			p.Included = append([]string{}, p.Included...)
		}
		out[i] = p
	}
	return out
}

func cloneOverlay(o Overlay) Overlay {
	return Overlay{
		Packages:  clonePackages(o.Packages),
		Customers: append([]domain.Customer{}, o.Customers...),
		Orders:    append([]domain.Order{}, o.Orders...),
	}
}
