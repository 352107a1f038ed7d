package core

import (
	"context"
	"strings"
	"time"

	"worldtrip/pkg/domain"
)

// ListCustomers returns customers, most recently registered first.
func (s *Service) ListCustomers(ctx context.Context) ([]Customer, error) {
	var out []Customer
	err := s.query(ctx, "list_customers", func(context.Context) error {
		out = s.store.ListCustomers()
		return nil
	})
	return out, err
}

// RegisterCustomer creates a customer. An email already registered in any
// letter case yields ErrConflict and leaves the existing record untouched.
func (s *Service) RegisterCustomer(ctx context.Context, customer Customer) (Customer, Result, error) {
	var created Customer
	var res Result
	err := s.run(ctx, "register_customer", func(ctx context.Context) (string, error) {
		customer.Name = strings.TrimSpace(customer.Name)
		customer.Email = strings.TrimSpace(customer.Email)
		if customer.Name == "" {
			return "", domain.MissingField("name")
		}
		if customer.Email == "" {
			return "", domain.MissingField("email")
		}
		customer.ID = 0
		customer.RegisteredAt = time.Time{}
		customer.IsLocal = false
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateCustomer(customer)
			return err
		})
		return idString(created.ID), err
	})
	return created, res, err
}
