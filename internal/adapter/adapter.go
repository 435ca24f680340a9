// Package adapter defines the minimal interface the bisection engine
// requires of each backend: connection lifecycle, query execution
// returning typed rows, schema introspection, identifier quoting,
// pagination, and type-specific normalization SQL. Concrete engines
// register themselves via an init() in each dialect's package calling
// Register.
package adapter

import (
	"context"
	"fmt"
	"sync"

	"datadiff/internal/core"
	"datadiff/internal/normalize"
)

// Row is an ordered tuple of column values from a projection or
// download query.
type Row []any

// Adapter is the contract every backend must satisfy.
type Adapter interface {
	// Connect establishes the underlying connection(s). Close releases
	// them. Implementations must be safe for concurrent use by
	// multiple goroutines; database/sql and the BigQuery client both
	// satisfy this by pooling connections internally.
	Connect(ctx context.Context) error
	Close() error

	// Query executes sql and returns results shaped per shape. On a
	// non-SELECT statement nothing is returned. QueryScalar returns a
	// single value, QueryRow a single Row, and QueryRows a slice.
	QueryScalar(ctx context.Context, sql string) (any, error)
	QueryRow(ctx context.Context, sql string) (Row, error)
	QueryRows(ctx context.Context, sql string) ([]Row, error)

	// Quote renders identifier using the engine's native quoting rules.
	Quote(identifier string) string

	// ParseTableName splits a dotted string into a TablePath.
	ParseTableName(s string) (core.TablePath, error)

	// NormalizeTablePath resolves path against the adapter's default
	// schema and rejects paths with more than 2 components.
	NormalizeTablePath(path core.TablePath) (schema, table string, err error)

	// QueryTableSchema reads information_schema (or the engine's
	// equivalent), instantiating ColType for every column, optionally
	// restricted to filterCols. Text columns get UUID-sampled by the
	// caller (internal/segment), not here: this method returns
	// raw-before-sampling types.
	QueryTableSchema(ctx context.Context, path core.TablePath, filterCols []string) (core.Schema, error)

	// SampleTextColumn returns up to core.SampleSize() values for a
	// text column, used to detect UUID columns.
	SampleTextColumn(ctx context.Context, path core.TablePath, column string) ([]string, error)

	// NormalizeFuncs returns the engine-specific SQL snippets the value
	// normalizer composes into checksum/download expressions.
	NormalizeFuncs() normalize.Funcs

	// OffsetLimit renders an engine-specific pagination clause.
	// Adapters that don't support OFFSET (or don't support OFFSET > 0)
	// return errs.NotImplementedError for offset > 0 rather than
	// silently ignoring it.
	OffsetLimit(offset, limit *int) (string, error)

	// HashConcat concatenates the normalized projection columns and
	// returns the engine's native SQL expression producing an MD5 hex
	// digest of the concatenation. Engines differ in both their concat
	// syntax (MySQL's variadic CONCAT vs. Oracle's 2-arg CONCAT vs. the
	// "||" operator) and whether MD5 is a builtin returning hex text
	// (MySQL, Postgres, Redshift, Snowflake) or something else entirely
	// (Oracle's STANDARD_HASH, BigQuery/Presto's MD5-returns-bytes).
	HashConcat(parts []string) string

	// MD5ToIntSQL returns the SQL expression that reduces hexExpr (the
	// expression HashConcat produced) to a 60-bit signed integer.
	MD5ToIntSQL(hexExpr string) string

	// Dialect identifies which engine this adapter drives.
	Dialect() core.Dialect
}

// Constructor builds an Adapter from a connection string. Registered
// per dialect by each engine's package init().
type Constructor func(dsn string) (Adapter, error)

var (
	mu       sync.RWMutex
	registry = make(map[core.Dialect]Constructor)
)

// Register associates a dialect with a constructor. Called from each
// engine subpackage's init().
func Register(d core.Dialect, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	registry[d] = ctor
}

// New constructs the adapter registered for dialect d.
func New(d core.Dialect, dsn string) (Adapter, error) {
	mu.RLock()
	ctor, ok := registry[d]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("adapter: no adapter registered for dialect %q", d)
	}
	return ctor(dsn)
}
