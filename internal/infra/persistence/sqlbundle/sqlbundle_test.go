package sqlbundle

import (
	"context"
	"strings"
	"testing"
	"time"

	"worldtrip/internal/infra/persistence/memory"
	"worldtrip/internal/infra/persistence/postgres/testutil"
	"worldtrip/pkg/domain"
)

func TestSplitStatements(t *testing.T) {
	for _, ddl := range []string{SQLite(), Postgres()} {
		stmts := SplitStatements(ddl)
		if len(stmts) != 7 {
			t.Fatalf("expected 7 statements, got %d", len(stmts))
		}
		for _, stmt := range stmts {
			if strings.HasPrefix(strings.TrimSpace(stmt), "--") {
				t.Fatalf("statement unexpectedly starts with comment: %q", stmt)
			}
			if !strings.HasSuffix(strings.TrimSpace(stmt), ";") {
				t.Fatalf("statement missing semicolon terminator: %q", stmt)
			}
		}
	}
}

func TestSplitStatementsKeepsUnterminatedTail(t *testing.T) {
	stmts := SplitStatements("-- header\nCREATE TABLE a (id INT);\n\nSELECT 1")
	if len(stmts) != 2 || stmts[1] != "SELECT 1" {
		t.Fatalf("unexpected statements %q", stmts)
	}
}

func TestSchemaHasNoForeignKeyOnPackageID(t *testing.T) {
	for _, ddl := range []string{SQLite(), Postgres()} {
		if strings.Contains(strings.ToUpper(ddl), "REFERENCES") {
			t.Fatalf("orders.package_id must stay a weak reference")
		}
		for _, table := range []string{"packages", "customers", "orders"} {
			if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS "+table) {
				t.Fatalf("missing table %s", table)
			}
		}
	}
}

func TestInsertPlaceholders(t *testing.T) {
	got := PostgresDialect.insert("customers", customerColumns)
	if got != "INSERT INTO customers (id, name, email, registered_at) VALUES ($1, $2, $3, $4)" {
		t.Fatalf("unexpected postgres insert %q", got)
	}
	got = SQLiteDialect.insert("customers", customerColumns)
	if got != "INSERT INTO customers (id, name, email, registered_at) VALUES (?, ?, ?, ?)" {
		t.Fatalf("unexpected sqlite insert %q", got)
	}
}

func sampleSnapshot() memory.Snapshot {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	pkgID := int64(1)
	return memory.Snapshot{
		Packages: map[int64]memory.PackageRow{
			1: {ID: 1, Name: "Paris Dream", Destination: "Paris, France", Duration: "7 Days", Price: 2500, Included: `["Hotel"]`, CreatedAt: created, UpdatedAt: created},
		},
		Customers: map[int64]domain.Customer{
			1: {ID: 1, Name: "Ana", Email: "ana@example.com", RegisteredAt: created},
		},
		Orders: map[int64]domain.Order{
			1: {ID: 1, PackageID: &pkgID, PackageName: "Paris Dream", Destination: "Paris, France", Price: 2500, CustomerName: "Ana", CustomerEmail: "ana@example.com", NumberOfTravelers: 2, TotalAmount: 5000, Status: domain.OrderStatusConfirmed, OrderDate: created},
			2: {ID: 2, PackageName: "Gone", Destination: "Nowhere", Price: 10, CustomerName: "Bo", CustomerEmail: "bo@example.com", NumberOfTravelers: 1, TotalAmount: 10, Status: domain.OrderStatusPending, OrderDate: created},
		},
		Sequences: memory.Sequences{Packages: 3, Customers: 1, Orders: 2},
	}
}

func TestPostgresWriteThenLoadSnapshot(t *testing.T) {
	ctx := context.Background()
	db, conn := testutil.NewStubDB()
	if err := PostgresDialect.Apply(ctx, db); err != nil {
		t.Fatalf("apply ddl: %v", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := PostgresDialect.WriteSnapshot(ctx, tx, sampleSnapshot()); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(conn.Tables["orders"]) != 2 || len(conn.Tables["sequences"]) != 3 {
		t.Fatalf("unexpected stub tables %v", conn.Tables)
	}

	loaded, err := LoadSnapshot(ctx, db)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if loaded.Sequences.Packages != 3 || loaded.Sequences.Orders != 2 {
		t.Fatalf("unexpected sequences %+v", loaded.Sequences)
	}
	pkg := loaded.Packages[1]
	if pkg.Included != `["Hotel"]` || pkg.Name != "Paris Dream" {
		t.Fatalf("unexpected package row %+v", pkg)
	}
	first := loaded.Orders[1]
	if first.PackageID == nil || *first.PackageID != 1 || first.Status != domain.OrderStatusConfirmed || first.NumberOfTravelers != 2 {
		t.Fatalf("unexpected order %+v", first)
	}
	if loaded.Orders[2].PackageID != nil {
		t.Fatalf("expected nil package id to round trip")
	}
	if !loaded.Customers[1].RegisteredAt.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected registration time %v", loaded.Customers[1].RegisteredAt)
	}
}

func TestWriteSnapshotClearsBeforeInsert(t *testing.T) {
	ctx := context.Background()
	db, conn := testutil.NewStubDB()
	for i := 0; i < 2; i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		if err := PostgresDialect.WriteSnapshot(ctx, tx, sampleSnapshot()); err != nil {
			t.Fatalf("write snapshot: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}
	if n := len(conn.Tables["packages"]); n != 1 {
		t.Fatalf("expected rewrite to replace rows, got %d packages", n)
	}
}

func TestWriteSnapshotReportsInsertFailure(t *testing.T) {
	ctx := context.Background()
	db, conn := testutil.NewStubDB()
	conn.FailTables = map[string]bool{"orders": true}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := PostgresDialect.WriteSnapshot(ctx, tx, sampleSnapshot()); err == nil || !strings.Contains(err.Error(), "insert order") {
		t.Fatalf("expected order insert failure, got %v", err)
	}
}

func TestLoadSnapshotReportsQueryFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailTables = map[string]bool{"customers": true}
	if _, err := LoadSnapshot(context.Background(), db); err == nil || !strings.Contains(err.Error(), "select customers") {
		t.Fatalf("expected customers query failure, got %v", err)
	}
}

func TestTimeColumnScan(t *testing.T) {
	var got time.Time
	col := timeColumn{&got}
	cases := []any{
		"2024-01-02 03:04:05",
		"2024-01-02T03:04:05Z",
		[]byte("2024-01-02T03:04:05.000000001Z"),
		time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	for _, c := range cases {
		if err := col.Scan(c); err != nil {
			t.Fatalf("scan %v: %v", c, err)
		}
		if got.Year() != 2024 || got.Hour() != 3 {
			t.Fatalf("scan %v produced %v", c, got)
		}
	}
	if err := col.Scan(nil); err != nil || !got.IsZero() {
		t.Fatalf("expected nil to scan as zero time")
	}
	if err := col.Scan("yesterday"); err == nil {
		t.Fatalf("expected parse error")
	}
	if err := col.Scan(42); err == nil {
		t.Fatalf("expected unsupported type error")
	}
}

func TestApplyStopsOnFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailExec = true
	if err := SQLiteDialect.Apply(context.Background(), db); err == nil {
		t.Fatalf("expected ddl failure")
	}
	if len(conn.Execs) != 1 {
		t.Fatalf("expected apply to stop after first failure, got %d execs", len(conn.Execs))
	}
}
