package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreatePackage(Package) (Package, error)
	UpdatePackage(id int64, mutator func(*Package) error) (Package, error)
	DeletePackage(id int64) error
	CreateCustomer(Customer) (Customer, error)
	CreateOrder(Order) (Order, error)
	// RestoreOrder inserts an order exactly as given, keeping its id, status
	// and order date. Used when importing existing bookings.
	RestoreOrder(Order) (Order, error)
	UpdateOrder(id int64, mutator func(*Order) error) (Order, error)
	FindPackage(id int64) (Package, bool)
	FindCustomerByEmail(email string) (Customer, bool)
	FindOrder(id int64) (Order, bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// queries.
type TransactionView interface {
	RuleView
	ListOrdersByCustomerEmail(email string) []Order
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetPackage(id int64) (Package, bool)
	ListPackages() []Package
	ListCustomers() []Customer
	ListOrders() []Order
	ListOrdersByCustomerEmail(email string) []Order
}
