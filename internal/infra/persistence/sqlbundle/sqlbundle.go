// Package sqlbundle holds the relational schema for the booking store and
// the row codecs shared by the SQL-backed persistence adapters.
package sqlbundle

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "embed"

	"worldtrip/internal/infra/persistence/memory"
	"worldtrip/pkg/domain"
)

//go:embed sqlite.sql
var sqliteDDL string

//go:embed postgres.sql
var postgresDDL string

// SQLite returns the SQLite DDL.
func SQLite() string { return sqliteDDL }

// Postgres returns the Postgres DDL.
func Postgres() string { return postgresDDL }

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Queryer is satisfied by *sql.DB and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Dialect captures the per-database differences in placeholders, time
// encoding, and bulk clearing.
type Dialect struct {
	Name        string
	ddl         string
	clear       []string
	placeholder func(n int) string
	timeArg     func(time.Time) any
}

// SQLiteDialect stores timestamps as RFC 3339 text.
var SQLiteDialect = Dialect{
	Name: "sqlite",
	ddl:  sqliteDDL,
	clear: []string{
		"DELETE FROM packages",
		"DELETE FROM customers",
		"DELETE FROM orders",
		"DELETE FROM sequences",
	},
	placeholder: func(int) string { return "?" },
	timeArg:     func(t time.Time) any { return t.UTC().Format(time.RFC3339Nano) },
}

// PostgresDialect stores timestamps as TIMESTAMPTZ.
var PostgresDialect = Dialect{
	Name:        "postgres",
	ddl:         postgresDDL,
	clear:       []string{"TRUNCATE TABLE packages, customers, orders, sequences"},
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	timeArg:     func(t time.Time) any { return t.UTC() },
}

var (
	packageColumns  = []string{"id", "name", "destination", "duration", "price", "image", "description", "included", "created_at", "updated_at"}
	customerColumns = []string{"id", "name", "email", "registered_at"}
	orderColumns    = []string{
		"id", "package_id", "package_name", "destination", "price",
		"customer_name", "customer_email", "customer_phone", "travel_date",
		"number_of_travelers", "special_requests", "address", "city", "country",
		"passport_number", "total_amount", "status", "order_date",
	}
	sequenceColumns = []string{"name", "value"}
)

// Statements returns the dialect DDL split into executable statements.
func (d Dialect) Statements() []string {
	return SplitStatements(d.ddl)
}

// Apply executes the dialect DDL.
func (d Dialect) Apply(ctx context.Context, db Execer) error {
	for _, stmt := range d.Statements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// Hydrate applies the schema to db and returns a memory store holding the
// rows already present.
func (d Dialect) Hydrate(ctx context.Context, db *sql.DB, engine *domain.RulesEngine) (*memory.Store, error) {
	if err := d.Apply(ctx, db); err != nil {
		return nil, err
	}
	snapshot, err := LoadSnapshot(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snapshot)
	return mem, nil
}

// Persist rewrites every relation from snapshot in one transaction.
func (d Dialect) Persist(ctx context.Context, db *sql.DB, snapshot memory.Snapshot) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s begin tx: %w", d.Name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = d.WriteSnapshot(ctx, tx, snapshot); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s commit: %w", d.Name, err)
	}
	return nil
}

func (d Dialect) insert(table string, cols []string) string {
	marks := make([]string, len(cols))
	for i := range cols {
		marks[i] = d.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(marks, ", "))
}

// WriteSnapshot replaces the contents of every relation with snapshot.
// Callers run it inside a transaction.
func (d Dialect) WriteSnapshot(ctx context.Context, tx Execer, snapshot memory.Snapshot) error {
	for _, stmt := range d.clear {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear tables: %w", err)
		}
	}

	insertPackage := d.insert("packages", packageColumns)
	for _, row := range snapshot.Packages {
		if _, err := tx.ExecContext(ctx, insertPackage,
			row.ID, row.Name, row.Destination, row.Duration, row.Price,
			row.Image, row.Description, row.Included,
			d.timeArg(row.CreatedAt), d.timeArg(row.UpdatedAt),
		); err != nil {
			return fmt.Errorf("insert package %d: %w", row.ID, err)
		}
	}

	insertCustomer := d.insert("customers", customerColumns)
	for _, c := range snapshot.Customers {
		if _, err := tx.ExecContext(ctx, insertCustomer, c.ID, c.Name, c.Email, d.timeArg(c.RegisteredAt)); err != nil {
			return fmt.Errorf("insert customer %d: %w", c.ID, err)
		}
	}

	insertOrder := d.insert("orders", orderColumns)
	for _, o := range snapshot.Orders {
		var packageID any
		if o.PackageID != nil {
			packageID = *o.PackageID
		}
		if _, err := tx.ExecContext(ctx, insertOrder,
			o.ID, packageID, o.PackageName, o.Destination, o.Price,
			o.CustomerName, o.CustomerEmail, o.CustomerPhone, o.TravelDate,
			int64(o.NumberOfTravelers), o.SpecialRequests, o.Address, o.City, o.Country,
			o.PassportNumber, o.TotalAmount, string(o.Status), d.timeArg(o.OrderDate),
		); err != nil {
			return fmt.Errorf("insert order %d: %w", o.ID, err)
		}
	}

	insertSequence := d.insert("sequences", sequenceColumns)
	for name, value := range map[string]int64{
		"packages":  snapshot.Sequences.Packages,
		"customers": snapshot.Sequences.Customers,
		"orders":    snapshot.Sequences.Orders,
	} {
		if _, err := tx.ExecContext(ctx, insertSequence, name, value); err != nil {
			return fmt.Errorf("insert sequence %s: %w", name, err)
		}
	}
	return nil
}

// LoadSnapshot reads every relation into a snapshot suitable for
// memory.Store.ImportState.
func LoadSnapshot(ctx context.Context, db Queryer) (memory.Snapshot, error) {
	snapshot := memory.Snapshot{
		Packages:  map[int64]memory.PackageRow{},
		Customers: map[int64]domain.Customer{},
		Orders:    map[int64]domain.Order{},
	}
	if err := loadPackages(ctx, db, &snapshot); err != nil {
		return memory.Snapshot{}, err
	}
	if err := loadCustomers(ctx, db, &snapshot); err != nil {
		return memory.Snapshot{}, err
	}
	if err := loadOrders(ctx, db, &snapshot); err != nil {
		return memory.Snapshot{}, err
	}
	if err := loadSequences(ctx, db, &snapshot); err != nil {
		return memory.Snapshot{}, err
	}
	return snapshot, nil
}

func selectAll(table string, cols []string) string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), table)
}

func loadPackages(ctx context.Context, db Queryer, snapshot *memory.Snapshot) error {
	rows, err := db.QueryContext(ctx, selectAll("packages", packageColumns))
	if err != nil {
		return fmt.Errorf("select packages: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var row memory.PackageRow
		var image, description, included sql.NullString
		if err := rows.Scan(&row.ID, &row.Name, &row.Destination, &row.Duration, &row.Price,
			&image, &description, &included,
			timeColumn{&row.CreatedAt}, timeColumn{&row.UpdatedAt}); err != nil {
			return fmt.Errorf("scan package: %w", err)
		}
		row.Image = image.String
		row.Description = description.String
		row.Included = included.String
		snapshot.Packages[row.ID] = row
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate packages: %w", err)
	}
	return nil
}

func loadCustomers(ctx context.Context, db Queryer, snapshot *memory.Snapshot) error {
	rows, err := db.QueryContext(ctx, selectAll("customers", customerColumns))
	if err != nil {
		return fmt.Errorf("select customers: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, timeColumn{&c.RegisteredAt}); err != nil {
			return fmt.Errorf("scan customer: %w", err)
		}
		snapshot.Customers[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate customers: %w", err)
	}
	return nil
}

func loadOrders(ctx context.Context, db Queryer, snapshot *memory.Snapshot) error {
	rows, err := db.QueryContext(ctx, selectAll("orders", orderColumns))
	if err != nil {
		return fmt.Errorf("select orders: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var o domain.Order
		var packageID sql.NullInt64
		var travelers sql.NullInt64
		var status string
		var phone, travelDate, requests, address, city, country, passport sql.NullString
		if err := rows.Scan(&o.ID, &packageID, &o.PackageName, &o.Destination, &o.Price,
			&o.CustomerName, &o.CustomerEmail, &phone, &travelDate,
			&travelers, &requests, &address, &city, &country,
			&passport, &o.TotalAmount, &status, timeColumn{&o.OrderDate}); err != nil {
			return fmt.Errorf("scan order: %w", err)
		}
		if packageID.Valid {
			id := packageID.Int64
			o.PackageID = &id
		}
		o.NumberOfTravelers = int(travelers.Int64)
		o.Status = domain.OrderStatus(status)
		o.CustomerPhone = phone.String
		o.TravelDate = travelDate.String
		o.SpecialRequests = requests.String
		o.Address = address.String
		o.City = city.String
		o.Country = country.String
		o.PassportNumber = passport.String
		snapshot.Orders[o.ID] = o
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate orders: %w", err)
	}
	return nil
}

func loadSequences(ctx context.Context, db Queryer, snapshot *memory.Snapshot) error {
	rows, err := db.QueryContext(ctx, selectAll("sequences", sequenceColumns))
	if err != nil {
		return fmt.Errorf("select sequences: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var name string
		var value int64
		if err := rows.Scan(&name, &value); err != nil {
			return fmt.Errorf("scan sequence: %w", err)
		}
		switch name {
		case "packages":
			snapshot.Sequences.Packages = value
		case "customers":
			snapshot.Sequences.Customers = value
		case "orders":
			snapshot.Sequences.Orders = value
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate sequences: %w", err)
	}
	return nil
}

// timeColumn scans TIMESTAMPTZ values as well as the text forms SQLite
// hands back, including the bare "YYYY-MM-DD HH:MM:SS" of CURRENT_TIMESTAMP.
type timeColumn struct{ dst *time.Time }

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (c timeColumn) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c.dst = time.Time{}
		return nil
	case time.Time:
		*c.dst = v.UTC()
		return nil
	case string:
		return c.parse(v)
	case []byte:
		return c.parse(string(v))
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
}

func (c timeColumn) parse(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*c.dst = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			*c.dst = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("parse time %q", raw)
}

// SplitStatements splits a semicolon-terminated DDL script into executable statements.
// It drops blank lines and single-line comments that start with "--".
func SplitStatements(ddl string) []string {
	scanner := bufio.NewScanner(strings.NewReader(ddl))
	var stmts []string
	var current strings.Builder

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
		current.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}

	if tail := strings.TrimSpace(current.String()); tail != "" {
		stmts = append(stmts, tail)
	}

	return stmts
}
