package domain

import (
	"fmt"
	"strings"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

// Order statuses. New orders always start Pending; admins may move an order
// to any status.
const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusConfirmed OrderStatus = "Confirmed"
	OrderStatusCompleted OrderStatus = "Completed"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// OrderStatuses lists every accepted status in display order.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusPending, OrderStatusConfirmed, OrderStatusCompleted, OrderStatusCancelled}
}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusCompleted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseOrderStatus resolves raw input to a status, ignoring case and
// surrounding whitespace.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	trimmed := strings.TrimSpace(raw)
	for _, s := range OrderStatuses() {
		if strings.EqualFold(string(s), trimmed) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", raw)
}

// TransitionPolicy decides whether an order may move between statuses.
type TransitionPolicy interface {
	Allow(from, to OrderStatus) error
}

// TransitionPolicyFunc adapts a function to TransitionPolicy.
type TransitionPolicyFunc func(from, to OrderStatus) error

// Allow calls f(from, to).
func (f TransitionPolicyFunc) Allow(from, to OrderStatus) error { return f(from, to) }

// AnyTransition permits every status change. It is the default policy.
var AnyTransition TransitionPolicy = TransitionPolicyFunc(func(OrderStatus, OrderStatus) error { return nil })
