package core

import (
	"context"
	"strings"

	"worldtrip/pkg/domain"
)

// ListOrders returns every order, newest first.
func (s *Service) ListOrders(ctx context.Context) ([]Order, error) {
	var out []Order
	err := s.query(ctx, "list_orders", func(context.Context) error {
		out = s.store.ListOrders()
		return nil
	})
	return out, err
}

// ListOrdersByEmail returns the orders placed under email (exact match),
// newest first.
func (s *Service) ListOrdersByEmail(ctx context.Context, email string) ([]Order, error) {
	var out []Order
	err := s.query(ctx, "list_orders_by_email", func(context.Context) error {
		out = s.store.ListOrdersByCustomerEmail(email)
		return nil
	})
	return out, err
}

// PlaceOrder records a booking. Status is always Pending and the order date is
// assigned by the store. The package reference is not checked; the snapshot
// fields are stored as given.
func (s *Service) PlaceOrder(ctx context.Context, order Order) (Order, Result, error) {
	var created Order
	var res Result
	err := s.run(ctx, "place_order", func(ctx context.Context) (string, error) {
		if err := validateOrder(order); err != nil {
			return "", err
		}
		if order.NumberOfTravelers == 0 {
			order.NumberOfTravelers = 1
		}
		if order.TotalAmount == 0 {
			order.TotalAmount = order.Price
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateOrder(order)
			return err
		})
		return idString(created.ID), err
	})
	if err == nil {
		s.publish(ctx, OrderEvent{Type: EventOrderCreated, Order: created, OccurredAt: s.clock.Now()})
	}
	return created, res, err
}

// UpdateOrderStatus overwrites the status of order id. Setting the current
// status again succeeds without publishing an event.
func (s *Service) UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus) (Order, Result, error) {
	var updated Order
	var previous OrderStatus
	var res Result
	err := s.run(ctx, "update_order_status", func(ctx context.Context) (string, error) {
		if strings.TrimSpace(string(status)) == "" {
			return idString(id), domain.MissingField("status")
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateOrder(id, func(o *Order) error {
				previous = o.Status
				o.Status = status
				return nil
			})
			return err
		})
		return idString(id), err
	})
	if err == nil && previous != updated.Status {
		s.publish(ctx, OrderEvent{Type: EventOrderStatusChanged, Order: updated, PreviousStatus: previous, OccurredAt: s.clock.Now()})
	}
	return updated, res, err
}

func validateOrder(order Order) error {
	switch {
	case strings.TrimSpace(order.PackageName) == "":
		return domain.MissingField("packageName")
	case strings.TrimSpace(order.Destination) == "":
		return domain.MissingField("destination")
	case order.Price == 0:
		return domain.MissingField("price")
	case strings.TrimSpace(order.CustomerName) == "":
		return domain.MissingField("customerName")
	case strings.TrimSpace(order.CustomerEmail) == "":
		return domain.MissingField("customerEmail")
	case order.NumberOfTravelers < 0:
		return domain.ErrValidation{Field: "numberOfTravelers", Reason: "must be at least 1"}
	}
	return nil
}
