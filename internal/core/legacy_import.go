package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"worldtrip/pkg/domain"
)

// legacyID accepts ids written either as JSON numbers or strings.
type legacyID int64

func (id *legacyID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = 0
		return nil
	}
	raw := strings.Trim(string(data), `"`)
	if raw == "" {
		*id = 0
		return nil
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*id = legacyID(v)
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("legacy id %s: %w", raw, err)
	}
	*id = legacyID(f)
	return nil
}

type legacyPackage struct {
	ID          legacyID `json:"id"`
	Name        string   `json:"name"`
	Destination string   `json:"destination"`
	Duration    string   `json:"duration"`
	Price       float64  `json:"price"`
	Image       string   `json:"image"`
	Description string   `json:"description"`
	Included    []string `json:"included"`
}

type legacyCustomer struct {
	ID           legacyID `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	RegisteredAt string   `json:"registeredAt"`
}

type legacyOrder struct {
	ID                legacyID `json:"id"`
	PackageID         legacyID `json:"packageId"`
	PackageName       string   `json:"packageName"`
	Destination       string   `json:"destination"`
	Price             float64  `json:"price"`
	CustomerName      string   `json:"customerName"`
	CustomerEmail     string   `json:"customerEmail"`
	CustomerPhone     string   `json:"customerPhone"`
	TravelDate        string   `json:"travelDate"`
	NumberOfTravelers int      `json:"numberOfTravelers"`
	SpecialRequests   string   `json:"specialRequests"`
	Address           string   `json:"address"`
	City              string   `json:"city"`
	Country           string   `json:"country"`
	PassportNumber    string   `json:"passportNumber"`
	TotalAmount       float64  `json:"totalAmount"`
	Status            string   `json:"status"`
	OrderDate         string   `json:"orderDate"`
}

type legacySnapshot struct {
	Packages  []legacyPackage  `json:"packages"`
	Customers []legacyCustomer `json:"customers"`
	Orders    []legacyOrder    `json:"orders"`
}

// ImportTally counts the outcome for one relation.
type ImportTally struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ImportFailure records a legacy record that was not imported.
type ImportFailure struct {
	Entity EntityType `json:"entity"`
	ID     int64      `json:"id"`
	Reason string     `json:"reason"`
}

// ImportReport summarises a legacy snapshot import.
type ImportReport struct {
	Packages  ImportTally     `json:"packages"`
	Customers ImportTally     `json:"customers"`
	Orders    ImportTally     `json:"orders"`
	Failures  []ImportFailure `json:"failures,omitempty"`
}

// ImportLegacySnapshot loads a flat-file snapshot with packages, customers,
// and orders arrays. Every record is written in its own transaction with its
// original id; a record that cannot be written is skipped and logged. Only a
// snapshot that cannot be decoded fails the import.
func (s *Service) ImportLegacySnapshot(ctx context.Context, r io.Reader) (ImportReport, error) {
	var report ImportReport
	err := s.run(ctx, "import_legacy_snapshot", func(ctx context.Context) (string, error) {
		var snapshot legacySnapshot
		if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
			return "", fmt.Errorf("decode legacy snapshot: %w", err)
		}
		for _, p := range snapshot.Packages {
			s.importPackage(ctx, p, &report)
		}
		for _, c := range snapshot.Customers {
			s.importCustomer(ctx, c, &report)
		}
		for _, o := range snapshot.Orders {
			s.importOrder(ctx, o, &report)
		}
		return "", nil
	})
	if err == nil {
		s.logger.Info("legacy snapshot imported",
			"packages", report.Packages.Imported,
			"customers", report.Customers.Imported,
			"orders", report.Orders.Imported,
			"skipped", len(report.Failures))
	}
	return report, err
}

func (s *Service) skip(report *ImportReport, tally *ImportTally, entity EntityType, id int64, reason error) {
	tally.Skipped++
	report.Failures = append(report.Failures, ImportFailure{Entity: entity, ID: id, Reason: reason.Error()})
	s.logger.Warn("skipping legacy record", "entity", entity, "id", id, "error", reason)
}

func (s *Service) importPackage(ctx context.Context, p legacyPackage, report *ImportReport) {
	pkg := Package{
		ID:          int64(p.ID),
		Name:        p.Name,
		Destination: p.Destination,
		Duration:    p.Duration,
		Price:       p.Price,
		Image:       p.Image,
		Description: p.Description,
		Included:    p.Included,
	}
	if err := validatePackage(pkg); err != nil {
		s.skip(report, &report.Packages, EntityPackage, pkg.ID, err)
		return
	}
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreatePackage(normalizePackage(pkg))
		return err
	})
	if err != nil {
		s.skip(report, &report.Packages, EntityPackage, pkg.ID, err)
		return
	}
	report.Packages.Imported++
}

func (s *Service) importCustomer(ctx context.Context, c legacyCustomer, report *ImportReport) {
	customer := Customer{
		ID:           int64(c.ID),
		Name:         strings.TrimSpace(c.Name),
		Email:        strings.TrimSpace(c.Email),
		RegisteredAt: parseLegacyTime(c.RegisteredAt, s.clock.Now()),
	}
	if customer.Name == "" {
		s.skip(report, &report.Customers, EntityCustomer, customer.ID, domain.MissingField("name"))
		return
	}
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateCustomer(customer)
		return err
	})
	if err != nil {
		s.skip(report, &report.Customers, EntityCustomer, customer.ID, err)
		return
	}
	report.Customers.Imported++
}

func (s *Service) importOrder(ctx context.Context, o legacyOrder, report *ImportReport) {
	order := Order{
		ID:                int64(o.ID),
		PackageName:       o.PackageName,
		Destination:       o.Destination,
		Price:             o.Price,
		CustomerName:      o.CustomerName,
		CustomerEmail:     o.CustomerEmail,
		CustomerPhone:     o.CustomerPhone,
		TravelDate:        o.TravelDate,
		NumberOfTravelers: o.NumberOfTravelers,
		SpecialRequests:   o.SpecialRequests,
		Address:           o.Address,
		City:              o.City,
		Country:           o.Country,
		PassportNumber:    o.PassportNumber,
		TotalAmount:       o.TotalAmount,
		Status:            OrderStatusPending,
		OrderDate:         parseLegacyTime(o.OrderDate, s.clock.Now()),
	}
	if o.PackageID != 0 {
		id := int64(o.PackageID)
		order.PackageID = &id
	}
	if strings.TrimSpace(o.Status) != "" {
		status, err := domain.ParseOrderStatus(o.Status)
		if err != nil {
			s.skip(report, &report.Orders, EntityOrder, order.ID, err)
			return
		}
		order.Status = status
	}
	if err := validateOrder(order); err != nil {
		s.skip(report, &report.Orders, EntityOrder, order.ID, err)
		return
	}
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.RestoreOrder(order)
		return err
	})
	if err != nil {
		s.skip(report, &report.Orders, EntityOrder, order.ID, err)
		return
	}
	report.Orders.Imported++
}

func parseLegacyTime(raw string, fallback time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return fallback
}
