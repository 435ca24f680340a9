// Package presto implements the adapter.Adapter contract for
// Presto/Trino, driving database/sql through trinodb/trino-go-client.
// The adapter follows the same database/sql shape as the others,
// adapted to Trino's catalog.schema.table three-part naming and its
// information_schema implementation.
package presto

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

	_ "github.com/trinodb/trino-go-client/trino"
)

func init() {
	adapter.Register(core.DialectPresto, func(dsn string) (adapter.Adapter, error) {
		return &Adapter{Conn: sqlbase.NewConn("trino", dsn, core.DialectPresto)}, nil
	})
}

// Adapter drives Presto/Trino over trino-go-client, which registers
// itself as database/sql driver "trino".
type Adapter struct {
	*sqlbase.Conn
	DefaultSchema string
}

func (a *Adapter) Dialect() core.Dialect { return core.DialectPresto }

func (a *Adapter) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (a *Adapter) ParseTableName(s string) (core.TablePath, error) {
	return core.ParseTablePath(s)
}

func (a *Adapter) NormalizeTablePath(path core.TablePath) (schema, table string, err error) {
	return path.Normalize(a.DefaultSchema)
}

func (a *Adapter) QueryTableSchema(ctx context.Context, path core.TablePath, filterCols []string) (core.Schema, error) {
	schemaName, table, err := a.NormalizeTablePath(path)
	if err != nil {
		return core.Schema{}, err
	}

	query := fmt.Sprintf(`
SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = '%s' AND table_name = '%s'
ORDER BY ordinal_position`, escapeLiteral(schemaName), escapeLiteral(table))

	rows, err := a.Conn.DB().QueryContext(ctx, query)
	if err != nil {
		return core.Schema{}, errs.Query(query, "", err)
	}
	defer rows.Close()

	wanted := toSet(filterCols)
	var schema core.Schema
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return core.Schema{}, err
		}
		if wanted != nil && !wanted[name] {
			continue
		}
		schema.Columns = append(schema.Columns, core.Column{
			Name: name,
			Type: mapColType(dataType),
		})
	}
	return schema, rows.Err()
}

// mapColType parses Trino's type-descriptor strings, e.g.
// "decimal(10,2)", "timestamp(6)", "varchar(255)".
func mapColType(dataType string) core.ColType {
	base := dataType
	var args string
	if i := strings.IndexByte(dataType, '('); i >= 0 {
		base = dataType[:i]
		args = strings.TrimSuffix(dataType[i+1:], ")")
	}
	switch base {
	case "tinyint", "smallint", "integer", "bigint":
		return core.Integer()
	case "decimal":
		scale := 0
		if parts := strings.Split(args, ","); len(parts) == 2 {
			fmt.Sscanf(strings.TrimSpace(parts[1]), "%d", &scale)
		}
		return core.Decimal(scale)
	case "real":
		return core.Float(24)
	case "double":
		return core.Float(53)
	case "timestamp":
		prec := 3
		if args != "" {
			fmt.Sscanf(args, "%d", &prec)
		}
		// format_datetime truncates past microseconds and Trino's
		// interval literals stop at milliseconds, so a round cannot be
		// expressed; precision loss truncates.
		return core.Temporal(prec, false)
	case "varchar", "char":
		return core.Text()
	case "uuid":
		return core.UUID()
	}
	return core.Unknown(dataType)
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

func (a *Adapter) NormalizeFuncs() normalize.Funcs {
	return normalize.Funcs{
		Trim: func(expr string) string { return fmt.Sprintf("TRIM(%s)", expr) },
		ToChar: func(expr string, scale int) string {
			return fmt.Sprintf("CAST(ROUND(%s, %d) AS VARCHAR)", expr, scale)
		},
		FormatTimestamp: func(expr string, nativePrecision int, roundsOnPrecisionLoss bool) string {
			return fmt.Sprintf("format_datetime(%s, 'yyyy-MM-dd HH:mm:ss.SSSSSS')", expr)
		},
	}
}

// OffsetLimit renders Trino's "OFFSET offset LIMIT limit" clause.
func (a *Adapter) OffsetLimit(offset, limit *int) (string, error) {
	var sb strings.Builder
	if offset != nil {
		fmt.Fprintf(&sb, "OFFSET %d ", *offset)
	}
	if limit != nil {
		fmt.Fprintf(&sb, "LIMIT %d", *limit)
	}
	return strings.TrimSpace(sb.String()), nil
}

// HashConcat renders Trino's variadic concat() plus to_hex(md5(...)):
// Trino's md5() operates on varbinary and returns varbinary, so the
// digest needs an explicit to_hex to become comparable hex text.
func (a *Adapter) HashConcat(parts []string) string {
	casted := make([]string, len(parts))
	for i, p := range parts {
		casted[i] = fmt.Sprintf("CAST(%s AS VARBINARY)", p)
	}
	return fmt.Sprintf("to_hex(md5(concat(%s)))", strings.Join(casted, ", "))
}

// MD5ToIntSQL reduces the hex digest to a 60-bit integer via
// from_base(substr(...), 16), Trino's base-convert function.
func (a *Adapter) MD5ToIntSQL(hexExpr string) string {
	return fmt.Sprintf("from_base(substr(%s, 1, 15), 16)", hexExpr)
}

func escapeLiteral(s string) string { return strings.ReplaceAll(s, "'", "''") }

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
