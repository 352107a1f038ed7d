// Package memory provides an in-memory implementation of the booking
// persistence store used for tests, ephemeral environments, and as the
// working set of the SQL-backed stores.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"worldtrip/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Package aliases domain.Package for in-memory persistence operations.
	Package = domain.Package
	// Customer aliases domain.Customer.
	Customer = domain.Customer
	// Order aliases domain.Order.
	Order = domain.Order
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// PackageRow is the stored shape of a package. Included items are kept as
// serialized text and decoded on every read.
type PackageRow struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Destination string    `json:"destination"`
	Duration    string    `json:"duration"`
	Price       float64   `json:"price"`
	Image       string    `json:"image"`
	Description string    `json:"description"`
	Included    string    `json:"included"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Sequences holds the last id handed out per relation. Ids are never reused,
// even after deletes.
type Sequences struct {
	Packages  int64 `json:"packages"`
	Customers int64 `json:"customers"`
	Orders    int64 `json:"orders"`
}

type memoryState struct {
	packages  map[int64]PackageRow
	customers map[int64]Customer
	orders    map[int64]Order
	seq       Sequences
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Packages  map[int64]PackageRow `json:"packages"`
	Customers map[int64]Customer   `json:"customers"`
	Orders    map[int64]Order      `json:"orders"`
	Sequences Sequences            `json:"sequences"`
}

func newMemoryState() memoryState {
	return memoryState{
		packages:  make(map[int64]PackageRow),
		customers: make(map[int64]Customer),
		orders:    make(map[int64]Order),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Packages:  make(map[int64]PackageRow, len(state.packages)),
		Customers: make(map[int64]Customer, len(state.customers)),
		Orders:    make(map[int64]Order, len(state.orders)),
		Sequences: state.seq,
	}
	for k, v := range state.packages {
		s.Packages[k] = v
	}
	for k, v := range state.customers {
		s.Customers[k] = v
	}
	for k, v := range state.orders {
		s.Orders[k] = cloneOrder(v)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Packages {
		state.packages[k] = v
	}
	for k, v := range s.Customers {
		state.customers[k] = v
	}
	for k, v := range s.Orders {
		state.orders[k] = cloneOrder(v)
	}
	state.seq = s.Sequences
	return state
}

// migrateSnapshot normalizes snapshots written by older builds or imported
// from hand-edited files: missing maps, stale sequences, and order defaults.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Packages == nil {
		snapshot.Packages = map[int64]PackageRow{}
	}
	if snapshot.Customers == nil {
		snapshot.Customers = map[int64]Customer{}
	}
	if snapshot.Orders == nil {
		snapshot.Orders = map[int64]Order{}
	}

	for id, row := range snapshot.Packages {
		row.ID = id
		if row.Included == "" {
			row.Included = "[]"
		}
		snapshot.Packages[id] = row
		if id > snapshot.Sequences.Packages {
			snapshot.Sequences.Packages = id
		}
	}
	for id, customer := range snapshot.Customers {
		customer.ID = id
		customer.IsLocal = false
		snapshot.Customers[id] = customer
		if id > snapshot.Sequences.Customers {
			snapshot.Sequences.Customers = id
		}
	}
	for id, order := range snapshot.Orders {
		order.ID = id
		order.IsLocal = false
		if order.NumberOfTravelers < 1 {
			order.NumberOfTravelers = 1
		}
		if order.Status == "" {
			order.Status = domain.OrderStatusPending
		}
		snapshot.Orders[id] = order
		if id > snapshot.Sequences.Orders {
			snapshot.Sequences.Orders = id
		}
	}
	return snapshot
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.packages {
		cloned.packages[k] = v
	}
	for k, v := range s.customers {
		cloned.customers[k] = v
	}
	for k, v := range s.orders {
		cloned.orders[k] = cloneOrder(v)
	}
	cloned.seq = s.seq
	return cloned
}

func cloneOrder(o Order) Order {
	cp := o
	if o.PackageID != nil {
		id := *o.PackageID
		cp.PackageID = &id
	}
	return cp
}

func rowFromPackage(p Package) PackageRow {
	return PackageRow{
		ID:          p.ID,
		Name:        p.Name,
		Destination: p.Destination,
		Duration:    p.Duration,
		Price:       p.Price,
		Image:       p.Image,
		Description: p.Description,
		Included:    domain.EncodeIncluded(p.Included),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// PackageFromRow decodes a stored row into the domain shape.
func PackageFromRow(row PackageRow) Package {
	return Package{
		ID:          row.ID,
		Name:        row.Name,
		Destination: row.Destination,
		Duration:    row.Duration,
		Price:       row.Price,
		Image:       row.Image,
		Description: row.Description,
		Included:    domain.DecodeIncluded(row.Included),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

// Store provides an in-memory transactional store for the booking domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc replaces the time provider. A nil fn restores the UTC wall clock.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = func() time.Time { return time.Now().UTC() }
	}
	s.nowFn = fn
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListPackages returns packages in ascending id order.
func (v transactionView) ListPackages() []Package {
	out := make([]Package, 0, len(v.state.packages))
	for _, row := range v.state.packages {
		out = append(out, PackageFromRow(row))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListCustomers returns customers, most recently registered first.
func (v transactionView) ListCustomers() []Customer {
	out := make([]Customer, 0, len(v.state.customers))
	for _, c := range v.state.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].RegisteredAt.After(out[j].RegisteredAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// ListOrders returns orders, newest first.
func (v transactionView) ListOrders() []Order {
	return v.filterOrders(func(Order) bool { return true })
}

// ListOrdersByCustomerEmail returns orders whose customer email matches
// exactly, newest first.
func (v transactionView) ListOrdersByCustomerEmail(email string) []Order {
	return v.filterOrders(func(o Order) bool { return o.CustomerEmail == email })
}

func (v transactionView) filterOrders(keep func(Order) bool) []Order {
	out := make([]Order, 0, len(v.state.orders))
	for _, o := range v.state.orders {
		if keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	sortOrders(out)
	return out
}

func sortOrders(orders []Order) {
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].OrderDate.Equal(orders[j].OrderDate) {
			return orders[i].OrderDate.After(orders[j].OrderDate)
		}
		return orders[i].ID > orders[j].ID
	})
}

// FindPackage retrieves a package by id.
func (v transactionView) FindPackage(id int64) (Package, bool) {
	row, ok := v.state.packages[id]
	if !ok {
		return Package{}, false
	}
	return PackageFromRow(row), true
}

// FindCustomer retrieves a customer by id.
func (v transactionView) FindCustomer(id int64) (Customer, bool) {
	c, ok := v.state.customers[id]
	return c, ok
}

// FindCustomerByEmail retrieves a customer by email, ignoring case.
func (v transactionView) FindCustomerByEmail(email string) (Customer, bool) {
	return findCustomerByEmail(v.state, email)
}

// FindOrder retrieves an order by id.
func (v transactionView) FindOrder(id int64) (Order, bool) {
	o, ok := v.state.orders[id]
	if !ok {
		return Order{}, false
	}
	return cloneOrder(o), true
}

func findCustomerByEmail(state *memoryState, email string) (Customer, bool) {
	needle := strings.TrimSpace(email)
	for _, c := range state.customers {
		if strings.EqualFold(c.Email, needle) {
			return c, true
		}
	}
	return Customer{}, false
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindPackage exposes package lookup within the transaction scope.
func (tx *transaction) FindPackage(id int64) (Package, bool) {
	return tx.Snapshot().FindPackage(id)
}

// FindCustomerByEmail exposes case-insensitive customer lookup within the transaction scope.
func (tx *transaction) FindCustomerByEmail(email string) (Customer, bool) {
	return findCustomerByEmail(&tx.state, email)
}

// FindOrder exposes order lookup within the transaction scope.
func (tx *transaction) FindOrder(id int64) (Order, bool) {
	return tx.Snapshot().FindOrder(id)
}

// CreatePackage stores a new package. A positive caller id is kept, which is
// how seeds and imports preserve their numbering.
func (tx *transaction) CreatePackage(p Package) (Package, error) {
	if p.ID <= 0 {
		p.ID = tx.state.seq.Packages + 1
	}
	if _, exists := tx.state.packages[p.ID]; exists {
		return Package{}, fmt.Errorf("package %d already exists", p.ID)
	}
	if p.ID > tx.state.seq.Packages {
		tx.state.seq.Packages = p.ID
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	p.IsLocal = false
	row := rowFromPackage(p)
	tx.state.packages[p.ID] = row
	created := PackageFromRow(row)
	tx.recordChange(Change{Entity: domain.EntityPackage, Action: domain.ActionCreate, After: created})
	return created, nil
}

// UpdatePackage mutates a package using the provided mutator function.
func (tx *transaction) UpdatePackage(id int64, mutator func(*Package) error) (Package, error) {
	row, ok := tx.state.packages[id]
	if !ok {
		return Package{}, domain.ErrNotFound{Entity: domain.EntityPackage, ID: formatID(id)}
	}
	before := PackageFromRow(row)
	current := PackageFromRow(row)
	if err := mutator(&current); err != nil {
		return Package{}, err
	}
	current.ID = id
	current.CreatedAt = row.CreatedAt
	current.UpdatedAt = tx.now
	current.IsLocal = false
	updatedRow := rowFromPackage(current)
	tx.state.packages[id] = updatedRow
	updated := PackageFromRow(updatedRow)
	tx.recordChange(Change{Entity: domain.EntityPackage, Action: domain.ActionUpdate, Before: before, After: updated})
	return updated, nil
}

// DeletePackage removes a package. Orders keep their snapshot and dangling
// package id.
func (tx *transaction) DeletePackage(id int64) error {
	row, ok := tx.state.packages[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityPackage, ID: formatID(id)}
	}
	delete(tx.state.packages, id)
	tx.recordChange(Change{Entity: domain.EntityPackage, Action: domain.ActionDelete, Before: PackageFromRow(row)})
	return nil
}

// CreateCustomer registers a customer. Emails are unique ignoring case.
func (tx *transaction) CreateCustomer(c Customer) (Customer, error) {
	c.Email = strings.TrimSpace(c.Email)
	if c.Email == "" {
		return Customer{}, domain.MissingField("email")
	}
	if _, exists := findCustomerByEmail(&tx.state, c.Email); exists {
		return Customer{}, domain.ErrConflict{Entity: domain.EntityCustomer, Field: "email", Value: c.Email}
	}
	if c.ID <= 0 {
		c.ID = tx.state.seq.Customers + 1
	}
	if _, exists := tx.state.customers[c.ID]; exists {
		return Customer{}, fmt.Errorf("customer %d already exists", c.ID)
	}
	if c.ID > tx.state.seq.Customers {
		tx.state.seq.Customers = c.ID
	}
	if c.RegisteredAt.IsZero() {
		c.RegisteredAt = tx.now
	}
	c.IsLocal = false
	tx.state.customers[c.ID] = c
	tx.recordChange(Change{Entity: domain.EntityCustomer, Action: domain.ActionCreate, After: c})
	return c, nil
}

// CreateOrder places a new order. The id, status, and order date are always
// assigned here regardless of input.
func (tx *transaction) CreateOrder(o Order) (Order, error) {
	o.ID = tx.state.seq.Orders + 1
	o.Status = domain.OrderStatusPending
	o.OrderDate = tx.now
	return tx.insertOrder(o)
}

// RestoreOrder inserts an order keeping its id, status, and order date.
func (tx *transaction) RestoreOrder(o Order) (Order, error) {
	if o.ID <= 0 {
		o.ID = tx.state.seq.Orders + 1
	}
	if _, exists := tx.state.orders[o.ID]; exists {
		return Order{}, fmt.Errorf("order %d already exists", o.ID)
	}
	if o.Status == "" {
		o.Status = domain.OrderStatusPending
	}
	if o.OrderDate.IsZero() {
		o.OrderDate = tx.now
	}
	return tx.insertOrder(o)
}

func (tx *transaction) insertOrder(o Order) (Order, error) {
	if o.NumberOfTravelers < 1 {
		o.NumberOfTravelers = 1
	}
	if o.TotalAmount == 0 {
		o.TotalAmount = o.Price
	}
	o.IsLocal = false
	if o.ID > tx.state.seq.Orders {
		tx.state.seq.Orders = o.ID
	}
	tx.state.orders[o.ID] = cloneOrder(o)
	tx.recordChange(Change{Entity: domain.EntityOrder, Action: domain.ActionCreate, After: cloneOrder(o)})
	return cloneOrder(o), nil
}

// UpdateOrder mutates an order using the provided mutator function.
func (tx *transaction) UpdateOrder(id int64, mutator func(*Order) error) (Order, error) {
	current, ok := tx.state.orders[id]
	if !ok {
		return Order{}, domain.ErrNotFound{Entity: domain.EntityOrder, ID: formatID(id)}
	}
	before := cloneOrder(current)
	if err := mutator(&current); err != nil {
		return Order{}, err
	}
	current.ID = id
	current.IsLocal = false
	tx.state.orders[id] = cloneOrder(current)
	tx.recordChange(Change{Entity: domain.EntityOrder, Action: domain.ActionUpdate, Before: before, After: cloneOrder(current)})
	return cloneOrder(current), nil
}

// Read helpers ---------------------------------------------------------------

// GetPackage retrieves a package by id from committed state.
func (s *Store) GetPackage(id int64) (Package, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).FindPackage(id)
}

// ListPackages returns all packages from committed state in id order.
func (s *Store) ListPackages() []Package {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListPackages()
}

// ListCustomers returns all customers, most recently registered first.
func (s *Store) ListCustomers() []Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListCustomers()
}

// ListOrders returns all orders, newest first.
func (s *Store) ListOrders() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListOrders()
}

// ListOrdersByCustomerEmail returns the orders booked under email, newest first.
func (s *Store) ListOrdersByCustomerEmail(email string) []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListOrdersByCustomerEmail(email)
}
