// Package postgres implements the adapter.Adapter contract for
// PostgreSQL, driving database/sql through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"datadiff/internal/adapter"
	"datadiff/internal/adapter/sqlbase"
	"datadiff/internal/core"
	"datadiff/internal/errs"
	"datadiff/internal/normalize"

	_ "github.com/lib/pq"
)

func init() {
	adapter.Register(core.DialectPostgreSQL, func(dsn string) (adapter.Adapter, error) {
		return New(dsn, core.DialectPostgreSQL, "public"), nil
	})
}

// Adapter drives PostgreSQL (and, embedded, Redshift) over lib/pq.
// Redshift forked Postgres's wire protocol and catalog shape early on,
// so internal/adapter/redshift embeds this type and overrides only the
// handful of methods where Redshift actually diverges.
type Adapter struct {
	*sqlbase.Conn
	DefaultSchema string
	dialect       core.Dialect
}

// New constructs a Postgres-family adapter. dialect lets the Redshift
// wrapper report its own Dialect() while reusing everything else.
func New(dsn string, dialect core.Dialect, defaultSchema string) *Adapter {
	return &Adapter{
		Conn:          sqlbase.NewConn("postgres", dsn, dialect),
		DefaultSchema: defaultSchema,
		dialect:       dialect,
	}
}

func (a *Adapter) Dialect() core.Dialect { return a.dialect }

func (a *Adapter) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (a *Adapter) ParseTableName(s string) (core.TablePath, error) {
	return core.ParseTablePath(s)
}

func (a *Adapter) NormalizeTablePath(path core.TablePath) (schema, table string, err error) {
	return path.Normalize(a.DefaultSchema)
}

// QueryTableSchema reads information_schema.columns for the resolved
// schema and table, including the numeric and datetime precision
// metadata the type mapping needs.
func (a *Adapter) QueryTableSchema(ctx context.Context, path core.TablePath, filterCols []string) (core.Schema, error) {
	schemaName, table, err := a.NormalizeTablePath(path)
	if err != nil {
		return core.Schema{}, err
	}

	query := `
SELECT column_name, data_type, udt_name, numeric_precision, numeric_scale, datetime_precision
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

	rows, err := a.Conn.DB().QueryContext(ctx, query, schemaName, table)
	if err != nil {
		return core.Schema{}, errs.Query(query, "", err)
	}
	defer rows.Close()

	wanted := toSet(filterCols)
	var schema core.Schema
	for rows.Next() {
		var (
			name, dataType, udtName string
			numPrecision, numScale  sql.NullInt64
			datetimePrecision       sql.NullInt64
		)
		if err := rows.Scan(&name, &dataType, &udtName, &numPrecision, &numScale, &datetimePrecision); err != nil {
			return core.Schema{}, err
		}
		if wanted != nil && !wanted[name] {
			continue
		}
		schema.Columns = append(schema.Columns, core.Column{
			Name: name,
			Type: mapColType(dataType, udtName, numScale, datetimePrecision),
		})
	}
	return schema, rows.Err()
}

func mapColType(dataType, udtName string, numScale, datetimePrecision sql.NullInt64) core.ColType {
	switch dataType {
	case "smallint", "integer", "bigint":
		return core.Integer()
	case "numeric", "decimal":
		scale := 0
		if numScale.Valid {
			scale = int(numScale.Int64)
		}
		return core.Decimal(scale)
	case "real":
		return core.Float(24)
	case "double precision":
		return core.Float(53)
	case "timestamp without time zone", "timestamp with time zone":
		prec := 6
		if datetimePrecision.Valid {
			prec = int(datetimePrecision.Int64)
		}
		return core.Temporal(prec, true)
	case "character", "character varying", "text":
		return core.Text()
	case "uuid":
		return core.UUID()
	}
	return core.Unknown(udtName)
}

func (a *Adapter) SampleTextColumn(ctx context.Context, path core.TablePath, column string) ([]string, error) {
	_, table, err := a.NormalizeTablePath(path)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL LIMIT %d",
		a.Quote(column), a.Quote(table), a.Quote(column), core.SampleSize())

	rows, err := a.Conn.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, errs.Query(query, "", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v.Valid {
			out = append(out, v.String)
		}
	}
	return out, rows.Err()
}

// NormalizeFuncs returns Postgres's TRIM/TO_CHAR/TO_CHAR(timestamp)
// snippets.
func (a *Adapter) NormalizeFuncs() normalize.Funcs {
	return normalize.Funcs{
		Trim: func(expr string) string { return fmt.Sprintf("TRIM(%s)", expr) },
		ToChar: func(expr string, scale int) string {
			pattern := "FM999999999999999990"
			if scale > 0 {
				pattern += "." + strings.Repeat("0", scale)
			}
			return fmt.Sprintf("TO_CHAR(%s, '%s')", expr, pattern)
		},
		FormatTimestamp: func(expr string, nativePrecision int, roundsOnPrecisionLoss bool) string {
			// Postgres timestamps cap at microsecond precision, so
			// nativePrecision never exceeds 6 and no loss can occur.
			return fmt.Sprintf("TO_CHAR(%s, 'YYYY-MM-DD HH24:MI:SS.US')", expr)
		},
	}
}

// OffsetLimit renders Postgres's "LIMIT limit OFFSET offset" clause.
func (a *Adapter) OffsetLimit(offset, limit *int) (string, error) {
	var sb strings.Builder
	if limit != nil {
		fmt.Fprintf(&sb, "LIMIT %d", *limit)
	} else {
		sb.WriteString("LIMIT ALL")
	}
	if offset != nil {
		fmt.Fprintf(&sb, " OFFSET %d", *offset)
	}
	return sb.String(), nil
}

// HashConcat renders Postgres's MD5(x || y || z) form: Postgres's
// built-in concat() accepts variadic args too, but the "||" operator is
// the idiomatic form here.
func (a *Adapter) HashConcat(parts []string) string {
	return "MD5(" + strings.Join(parts, " || ") + ")"
}

// MD5ToIntSQL reduces the hex digest to a 60-bit integer via the same
// substring-and-base-convert shape as MySQL, expressed with Postgres's
// bit string cast since Postgres has no CONV().
func (a *Adapter) MD5ToIntSQL(hexExpr string) string {
	return fmt.Sprintf("('x' || lpad(substring(%s, 1, 15), 16, '0'))::bit(64)::bigint", hexExpr)
}

func toSet(cols []string) map[string]bool {
	if len(cols) == 0 {
		return nil
	}
	m := make(map[string]bool, len(cols))
	for _, c := range cols {
		m[c] = true
	}
	return m
}
