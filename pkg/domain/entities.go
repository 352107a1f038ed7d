// Package domain defines the persistent booking entities, value types, and
// rule evaluation primitives used by worldtrip.
package domain

import "time"

// EntityType identifies the type of record stored in the booking domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityPackage identifies a catalog travel package.
	EntityPackage EntityType = "package"
	// EntityCustomer identifies a registered customer.
	EntityCustomer EntityType = "customer"
	// EntityOrder identifies a booking order.
	EntityOrder EntityType = "order"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Package is a purchasable travel offer in the catalog.
type Package struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Destination string    `json:"destination"`
	Duration    string    `json:"duration"`
	Price       float64   `json:"price"`
	Image       string    `json:"image"`
	Description string    `json:"description"`
	Included    []string  `json:"included"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	IsLocal     bool      `json:"is_local,omitempty"`
}

// Customer is a registered person identified by email.
type Customer struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
	IsLocal      bool      `json:"is_local,omitempty"`
}

// Order is a booking. Package fields are copied at booking time so later
// catalog edits or deletions never alter it.
type Order struct {
	ID                int64       `json:"id"`
	PackageID         *int64      `json:"package_id"`
	PackageName       string      `json:"package_name"`
	Destination       string      `json:"destination"`
	Price             float64     `json:"price"`
	CustomerName      string      `json:"customer_name"`
	CustomerEmail     string      `json:"customer_email"`
	CustomerPhone     string      `json:"customer_phone"`
	TravelDate        string      `json:"travel_date"`
	NumberOfTravelers int         `json:"number_of_travelers"`
	SpecialRequests   string      `json:"special_requests"`
	Address           string      `json:"address"`
	City              string      `json:"city"`
	Country           string      `json:"country"`
	PassportNumber    string      `json:"passport_number"`
	TotalAmount       float64     `json:"total_amount"`
	Status            OrderStatus `json:"status"`
	OrderDate         time.Time   `json:"order_date"`
	IsLocal           bool        `json:"is_local,omitempty"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock && v.Message != "" {
			return v.Message
		}
	}
	return "transaction blocked by rules"
}
