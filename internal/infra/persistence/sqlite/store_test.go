package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"worldtrip/pkg/domain"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "worldtrip.db")
	store := openStore(t, path)
	ctx := context.Background()
	var pkg domain.Package
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		pkg, err = tx.CreatePackage(domain.Package{Name: "Bali Paradise", Destination: "Bali, Indonesia", Duration: "8 Days", Price: 1800, Included: []string{"Resort", "Spa Session"}})
		if err != nil {
			return err
		}
		if _, err := tx.CreateCustomer(domain.Customer{Name: "Ana", Email: "ana@example.com"}); err != nil {
			return err
		}
		id := pkg.ID
		_, err = tx.CreateOrder(domain.Order{PackageID: &id, PackageName: pkg.Name, Destination: pkg.Destination, Price: pkg.Price, CustomerName: "Ana", CustomerEmail: "ana@example.com"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded := openStore(t, path)
	got, ok := reloaded.GetPackage(pkg.ID)
	if !ok {
		t.Fatalf("expected package %d after reload", pkg.ID)
	}
	if len(got.Included) != 2 || got.Included[1] != "Spa Session" {
		t.Fatalf("unexpected included after reload: %v", got.Included)
	}
	orders := reloaded.ListOrders()
	if len(orders) != 1 || orders[0].Status != domain.OrderStatusPending || orders[0].TotalAmount != 1800 {
		t.Fatalf("unexpected orders after reload: %+v", orders)
	}
	if len(reloaded.ListCustomers()) != 1 {
		t.Fatalf("expected customer after reload")
	}
	if reloaded.Path() != path {
		t.Fatalf("unexpected path %s", reloaded.Path())
	}
}

func TestSQLiteStoreNeverReusesDeletedIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worldtrip.db")
	store := openStore(t, path)
	ctx := context.Background()
	var first domain.Package
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		first, err = tx.CreatePackage(domain.Package{Name: "A", Destination: "X", Duration: "1 Day", Price: 1})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeletePackage(first.ID)
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_ = store.Close()

	reloaded := openStore(t, path)
	var second domain.Package
	if _, err := reloaded.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		second, err = tx.CreatePackage(domain.Package{Name: "B", Destination: "Y", Duration: "2 Days", Price: 2})
		return err
	}); err != nil {
		t.Fatalf("create after reload: %v", err)
	}
	if second.ID <= first.ID {
		t.Fatalf("expected id greater than %d, got %d", first.ID, second.ID)
	}
}

func TestSQLiteStoreAppliesSchema(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "worldtrip.db"))
	for _, table := range []string{"packages", "customers", "orders", "sequences"} {
		var name string
		if err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name); err != nil {
			t.Fatalf("lookup %s table: %v", table, err)
		}
	}
}

func TestSQLiteStoreRejectedTransactionIsNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worldtrip.db")
	store := openStore(t, path)
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateCustomer(domain.Customer{Name: "Ana", Email: "ana@example.com"})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateCustomer(domain.Customer{Name: "Other", Email: "ANA@example.com"})
		return err
	})
	if !domain.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	var count int
	if err := store.DB().QueryRow("SELECT COUNT(*) FROM customers").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 persisted customer, got %d", count)
	}
}

func TestSQLiteStoreFailedWriteRollsBackMemory(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "worldtrip.db"))
	ctx := context.Background()
	if err := store.DB().Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateCustomer(domain.Customer{Name: "Ana", Email: "ana@example.com"})
		return err
	})
	if err == nil {
		t.Fatalf("expected write to a closed database to fail")
	}
	if customers := store.ListCustomers(); len(customers) != 0 {
		t.Fatalf("expected customer to be rolled back, got %+v", customers)
	}
}
