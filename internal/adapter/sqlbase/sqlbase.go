// Package sqlbase factors out the database/sql plumbing shared by every
// adapter backed by a standard driver (all engines but BigQuery, which
// speaks its own client API). Each engine embeds *Conn and supplies only
// its dialect-specific SQL fragments.
package sqlbase

import (
	"context"
	"database/sql"

	"datadiff/internal/adapter"
	"datadiff/internal/core"
	"datadiff/internal/errs"
)

// Conn wraps a *sql.DB and implements the Connect/Close/QueryScalar/
// QueryRow/QueryRows quarter of the Adapter interface generically over
// database/sql. Engine packages embed it and add the dialect-specific
// methods (Quote, NormalizeFuncs, QueryTableSchema, ...).
type Conn struct {
	DriverName string
	DSN        string
	Dialect    core.Dialect

	db *sql.DB
}

// NewConn returns a Conn ready to Connect.
func NewConn(driverName, dsn string, dialect core.Dialect) *Conn {
	return &Conn{DriverName: driverName, DSN: dsn, Dialect: dialect}
}

func (c *Conn) Connect(ctx context.Context) error {
	db, err := sql.Open(c.DriverName, c.DSN)
	if err != nil {
		return errs.Connect(string(c.Dialect), err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return errs.Connect(string(c.Dialect), err)
	}
	c.db = db
	return nil
}

func (c *Conn) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// DB exposes the underlying *sql.DB for engine packages that need to
// issue driver-specific calls Conn doesn't cover (e.g. setting session
// variables on connect).
func (c *Conn) DB() *sql.DB { return c.db }

func (c *Conn) QueryScalar(ctx context.Context, query string) (any, error) {
	var v any
	row := c.db.QueryRowContext(ctx, query)
	if err := row.Scan(&v); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func (c *Conn) QueryRow(ctx context.Context, query string) (adapter.Row, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		return nil, rows.Err()
	}
	row, err := scanRow(rows, len(cols))
	if err != nil {
		return nil, err
	}
	return row, rows.Err()
}

func (c *Conn) QueryRows(ctx context.Context, query string) ([]adapter.Row, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []adapter.Row
	for rows.Next() {
		row, err := scanRow(rows, len(cols))
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// scanRow scans the current row into an adapter.Row of n columns,
// using *any targets so any driver-reported type is accepted, then
// dereferences the scan destinations (database/sql scans into *any as
// one of a fixed set of concrete types: nil, []byte, int64, float64,
// bool, time.Time, or string).
func scanRow(rows *sql.Rows, n int) (adapter.Row, error) {
	dest := make([]any, n)
	ptrs := make([]any, n)
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	row := make(adapter.Row, n)
	for i, v := range dest {
		if b, ok := v.([]byte); ok {
			row[i] = string(b)
		} else {
			row[i] = v
		}
	}
	return row, nil
}
