package core

import (
	"context"
	"strconv"
	"strings"

	"worldtrip/pkg/domain"
)

// ListPackages returns the catalog ordered by id.
func (s *Service) ListPackages(ctx context.Context) ([]Package, error) {
	var out []Package
	err := s.query(ctx, "list_packages", func(context.Context) error {
		out = s.store.ListPackages()
		return nil
	})
	return out, err
}

// GetPackage returns one package or ErrNotFound.
func (s *Service) GetPackage(ctx context.Context, id int64) (Package, error) {
	var out Package
	err := s.query(ctx, "get_package", func(context.Context) error {
		pkg, ok := s.store.GetPackage(id)
		if !ok {
			return domain.ErrNotFound{Entity: EntityPackage, ID: strconv.FormatInt(id, 10)}
		}
		out = pkg
		return nil
	})
	return out, err
}

// CreatePackage adds a package to the catalog. The id is always assigned by
// the store.
func (s *Service) CreatePackage(ctx context.Context, pkg Package) (Package, Result, error) {
	var created Package
	var res Result
	err := s.run(ctx, "create_package", func(ctx context.Context) (string, error) {
		if err := validatePackage(pkg); err != nil {
			return "", err
		}
		pkg.ID = 0
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreatePackage(normalizePackage(pkg))
			return err
		})
		return idString(created.ID), err
	})
	return created, res, err
}

// UpdatePackage replaces every mutable field of package id.
func (s *Service) UpdatePackage(ctx context.Context, id int64, pkg Package) (Package, Result, error) {
	var updated Package
	var res Result
	err := s.run(ctx, "update_package", func(ctx context.Context) (string, error) {
		if err := validatePackage(pkg); err != nil {
			return idString(id), err
		}
		next := normalizePackage(pkg)
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdatePackage(id, func(p *Package) error {
				p.Name = next.Name
				p.Destination = next.Destination
				p.Duration = next.Duration
				p.Price = next.Price
				p.Image = next.Image
				p.Description = next.Description
				p.Included = next.Included
				return nil
			})
			return err
		})
		return idString(id), err
	})
	return updated, res, err
}

// DeletePackage hard-deletes a package. Orders referencing it keep their
// snapshot fields untouched.
func (s *Service) DeletePackage(ctx context.Context, id int64) (Result, error) {
	var res Result
	err := s.run(ctx, "delete_package", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeletePackage(id)
		})
		return idString(id), err
	})
	return res, err
}

func validatePackage(pkg Package) error {
	switch {
	case strings.TrimSpace(pkg.Name) == "":
		return domain.MissingField("name")
	case strings.TrimSpace(pkg.Destination) == "":
		return domain.MissingField("destination")
	case strings.TrimSpace(pkg.Duration) == "":
		return domain.MissingField("duration")
	case pkg.Price == 0:
		return domain.MissingField("price")
	case pkg.Price < 0:
		return domain.ErrValidation{Field: "price", Reason: "must be positive"}
	}
	return nil
}

func normalizePackage(pkg Package) Package {
	if pkg.Included == nil {
		pkg.Included = []string{}
	}
	pkg.IsLocal = false
	return pkg
}

func idString(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
