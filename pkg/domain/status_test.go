package domain

import (
	"errors"
	"testing"
)

func TestParseOrderStatus(t *testing.T) {
	cases := map[string]OrderStatus{
		"Pending":     OrderStatusPending,
		"confirmed":   OrderStatusConfirmed,
		" COMPLETED ": OrderStatusCompleted,
		"Cancelled":   OrderStatusCancelled,
	}
	for raw, want := range cases {
		got, err := ParseOrderStatus(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: got %s want %s", raw, got, want)
		}
	}
	if _, err := ParseOrderStatus("Shipped"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestOrderStatusValid(t *testing.T) {
	for _, s := range OrderStatuses() {
		if !s.Valid() {
			t.Fatalf("expected %s to be valid", s)
		}
	}
	if OrderStatus("pending").Valid() {
		t.Fatalf("expected non-canonical casing to be invalid")
	}
}

func TestAnyTransitionAllowsEverything(t *testing.T) {
	for _, from := range OrderStatuses() {
		for _, to := range OrderStatuses() {
			if err := AnyTransition.Allow(from, to); err != nil {
				t.Fatalf("expected %s -> %s allowed: %v", from, to, err)
			}
		}
	}
}

func TestTransitionPolicyFunc(t *testing.T) {
	deny := TransitionPolicyFunc(func(from, to OrderStatus) error {
		if from == OrderStatusCancelled {
			return errors.New("cancelled orders are final")
		}
		return nil
	})
	if err := deny.Allow(OrderStatusCancelled, OrderStatusPending); err == nil {
		t.Fatalf("expected policy to deny")
	}
	if err := deny.Allow(OrderStatusPending, OrderStatusConfirmed); err != nil {
		t.Fatalf("unexpected deny: %v", err)
	}
}
