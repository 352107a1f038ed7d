// Package testutil provides a table-recording stub database for postgres store tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
)

var driverSeq atomic.Int64

// StubConn understands the handful of statement shapes the SQL stores emit:
// INSERT (optionally ON CONFLICT), DELETE FROM with or without a single
// equality predicate, TRUNCATE TABLE over a list, and SELECT cols FROM table.
// Anything else is recorded and accepted.
type StubConn struct {
	Execs      []string
	Tables     map[string][]map[string]any
	FailExec   bool
	FailBegin  bool
	FailCommit bool
	RowsErr    error
	FailTables map[string]bool
}

// NewStubDB registers a fresh driver and returns a sql.DB bound to it.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: map[string][]map[string]any{}}
	name := fmt.Sprintf("worldtrip-stubpg-%d", driverSeq.Add(1))
	sql.Register(name, stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct{ conn *StubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn; every statement goes through ExecContext or
// QueryContext instead.
func (c *StubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("stub: prepared statements unsupported")
}

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger and fails when FailExec is set.
func (c *StubConn) Ping(context.Context) error {
	if c.FailExec {
		return errors.New("stub: ping failed")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, errors.New("stub: begin failed")
	}
	return stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, errors.New("stub: exec failed")
	}
	if c.Tables == nil {
		c.Tables = map[string][]map[string]any{}
	}
	words := strings.Fields(query)
	if len(words) == 0 {
		return driver.RowsAffected(0), nil
	}
	switch strings.ToUpper(words[0]) {
	case "INSERT":
		return c.insert(query, args)
	case "DELETE":
		return c.delete(query, args)
	case "TRUNCATE":
		for _, table := range truncateTargets(query) {
			delete(c.Tables, table)
		}
		return driver.RowsAffected(0), nil
	default:
		return driver.RowsAffected(0), nil
	}
}

func (c *StubConn) insert(query string, args []driver.NamedValue) (driver.Result, error) {
	table, cols, err := parseInsert(query)
	if err != nil {
		return nil, err
	}
	if c.FailTables[table] {
		return nil, fmt.Errorf("stub: insert into %s failed", table)
	}
	if len(cols) != len(args) {
		return nil, fmt.Errorf("stub: %s has %d columns but %d args", table, len(cols), len(args))
	}
	row := make(map[string]any, len(cols))
	for i, col := range cols {
		row[col] = args[i].Value
	}
	if strings.Contains(strings.ToUpper(query), "ON CONFLICT") {
		c.Tables[table] = without(c.Tables[table], cols[0], row[cols[0]])
	}
	c.Tables[table] = append(c.Tables[table], row)
	return driver.RowsAffected(1), nil
}

func (c *StubConn) delete(query string, args []driver.NamedValue) (driver.Result, error) {
	table, col, err := parseDelete(query)
	if err != nil {
		return nil, err
	}
	before := len(c.Tables[table])
	if col == "" {
		delete(c.Tables, table)
		return driver.RowsAffected(before), nil
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("stub: delete from %s needs an argument", table)
	}
	c.Tables[table] = without(c.Tables[table], col, args[0].Value)
	return driver.RowsAffected(before - len(c.Tables[table])), nil
}

// QueryContext implements driver.QueryerContext. Rows come back in insertion
// order; ORDER BY and WHERE clauses are ignored.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	table, cols, err := parseSelect(query)
	if err != nil {
		return nil, err
	}
	if c.FailTables[table] {
		return nil, fmt.Errorf("stub: select from %s failed", table)
	}
	out := &stubRows{cols: cols, err: c.RowsErr}
	for _, row := range c.Tables[table] {
		vals := make([]driver.Value, len(cols))
		for i, col := range cols {
			vals[i] = row[col]
		}
		out.rows = append(out.rows, vals)
	}
	return out, nil
}

type stubTx struct{ conn *StubConn }

func (t stubTx) Commit() error {
	if t.conn.FailCommit {
		return errors.New("stub: commit failed")
	}
	return nil
}

func (stubTx) Rollback() error { return nil }

type stubRows struct {
	cols []string
	rows [][]driver.Value
	next int
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.next >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.next])
	r.next++
	return nil
}

func without(rows []map[string]any, col string, value any) []map[string]any {
	var kept []map[string]any
	for _, row := range rows {
		if row[col] != value {
			kept = append(kept, row)
		}
	}
	return kept
}

// parseInsert reads "INSERT INTO table (a, b) VALUES ...".
func parseInsert(query string) (string, []string, error) {
	_, rest, ok := cutFold(query, "into ")
	if !ok {
		return "", nil, fmt.Errorf("stub: cannot parse insert %q", query)
	}
	table, rest, ok := strings.Cut(rest, "(")
	if !ok {
		return "", nil, fmt.Errorf("stub: cannot parse insert %q", query)
	}
	cols, _, ok := strings.Cut(rest, ")")
	if !ok {
		return "", nil, fmt.Errorf("stub: cannot parse insert %q", query)
	}
	return normalize(table), splitColumns(cols), nil
}

// parseDelete reads "DELETE FROM table [WHERE col = $1]". The column is empty
// when there is no predicate.
func parseDelete(query string) (string, string, error) {
	_, rest, ok := cutFold(query, "from ")
	if !ok {
		return "", "", fmt.Errorf("stub: cannot parse delete %q", query)
	}
	table, where, hasWhere := cutFold(rest, " where ")
	if !hasWhere {
		return normalize(table), "", nil
	}
	col, _, ok := strings.Cut(where, "=")
	if !ok {
		return "", "", fmt.Errorf("stub: cannot parse delete predicate %q", query)
	}
	return normalize(table), normalize(col), nil
}

// parseSelect reads "SELECT a, b FROM table ...".
func parseSelect(query string) (string, []string, error) {
	trimmed := strings.TrimSpace(query)
	if len(trimmed) < 7 || !strings.EqualFold(trimmed[:7], "select ") {
		return "", nil, fmt.Errorf("stub: cannot parse select %q", query)
	}
	cols, rest, ok := cutFold(trimmed[7:], " from ")
	if !ok || strings.TrimSpace(rest) == "" {
		return "", nil, fmt.Errorf("stub: cannot parse select %q", query)
	}
	return normalize(strings.Fields(rest)[0]), splitColumns(cols), nil
}

func truncateTargets(query string) []string {
	_, rest, ok := cutFold(query, "table ")
	if !ok {
		return nil
	}
	return splitColumns(strings.TrimSuffix(strings.TrimSpace(rest), ";"))
}

// cutFold is strings.Cut with a case-insensitive separator.
func cutFold(s, sep string) (before, after string, found bool) {
	i := strings.Index(strings.ToLower(s), strings.ToLower(sep))
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func splitColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, normalize(part))
	}
	return out
}
