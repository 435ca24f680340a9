// Package snowflake implements the adapter.Adapter contract for
// Snowflake, driving database/sql through snowflakedb/gosnowflake. It
// follows the same information_schema + database/sql shape as the
// other engines, adapted to Snowflake's catalog views and SQL
// functions.
package snowflake

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

	_ "github.com/snowflakedb/gosnowflake"
)

func init() {
	adapter.Register(core.DialectSnowflake, func(dsn string) (adapter.Adapter, error) {
		return &Adapter{Conn: sqlbase.NewConn("snowflake", dsn, core.DialectSnowflake)}, nil
	})
}

// Adapter drives Snowflake over gosnowflake, which registers itself as
// database/sql driver "snowflake".
type Adapter struct {
	*sqlbase.Conn
	DefaultSchema string
}

func (a *Adapter) Dialect() core.Dialect { return core.DialectSnowflake }

// Quote renders identifier double-quoted; Snowflake, like Postgres,
// folds unquoted identifiers to uppercase, so every identifier this
// engine touches is quoted to keep case exactly as given.
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

	query := `
SELECT column_name, data_type, numeric_precision, numeric_scale
FROM information_schema.columns
WHERE table_schema = ? AND table_name = ?
ORDER BY ordinal_position`

	rows, err := a.Conn.DB().QueryContext(ctx, query, strings.ToUpper(schemaName), strings.ToUpper(table))
	if err != nil {
		return core.Schema{}, errs.Query(query, "", err)
	}
	defer rows.Close()

	wanted := toSet(filterCols)
	var schema core.Schema
	for rows.Next() {
		var (
			name, dataType         string
			numPrecision, numScale sql.NullInt64
		)
		if err := rows.Scan(&name, &dataType, &numPrecision, &numScale); err != nil {
			return core.Schema{}, err
		}
		if wanted != nil && !wanted[name] {
			continue
		}
		schema.Columns = append(schema.Columns, core.Column{
			Name: name,
			Type: mapColType(dataType, numPrecision, numScale),
		})
	}
	return schema, rows.Err()
}

func mapColType(dataType string, numPrecision, numScale sql.NullInt64) core.ColType {
	switch strings.ToUpper(dataType) {
	case "NUMBER", "DECIMAL", "NUMERIC":
		scale := 0
		if numScale.Valid {
			scale = int(numScale.Int64)
		}
		if scale == 0 {
			return core.Integer()
		}
		return core.Decimal(scale)
	case "FLOAT", "DOUBLE", "REAL":
		return core.Float(53)
	case "TIMESTAMP_NTZ", "TIMESTAMP_LTZ", "TIMESTAMP_TZ", "TIMESTAMP", "DATETIME":
		return core.Temporal(9, true)
	case "TEXT", "VARCHAR", "CHAR", "STRING":
		return core.Text()
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
			return fmt.Sprintf("TO_CHAR(%s, 'FM999999999999999990.%s')", expr, strings.Repeat("0", max(scale, 1)))
		},
		FormatTimestamp: func(expr string, nativePrecision int, roundsOnPrecisionLoss bool) string {
			if nativePrecision > 6 && roundsOnPrecisionLoss {
				// FF6 truncates; adding half a microsecond first turns
				// the truncation into a round.
				expr = fmt.Sprintf("DATEADD(nanosecond, 500, %s)", expr)
			}
			return fmt.Sprintf("TO_CHAR(%s, 'YYYY-MM-DD HH24:MI:SS.FF6')", expr)
		},
	}
}

// OffsetLimit renders Snowflake's "LIMIT limit OFFSET offset" clause.
func (a *Adapter) OffsetLimit(offset, limit *int) (string, error) {
	var sb strings.Builder
	if limit != nil {
		fmt.Fprintf(&sb, "LIMIT %d", *limit)
	} else {
		sb.WriteString("LIMIT NULL")
	}
	if offset != nil {
		fmt.Fprintf(&sb, " OFFSET %d", *offset)
	}
	return sb.String(), nil
}

// HashConcat renders Snowflake's variadic MD5(CONCAT(...)) form, which
// Snowflake supports directly and returns as lowercase hex text.
func (a *Adapter) HashConcat(parts []string) string {
	return "MD5(CONCAT(" + strings.Join(parts, ", ") + "))"
}

// MD5ToIntSQL converts the leading 15 hex digits of the digest to a
// signed integer using Snowflake's TO_NUMBER with a hex format model.
func (a *Adapter) MD5ToIntSQL(hexExpr string) string {
	return fmt.Sprintf("TO_NUMBER(SUBSTRING(%s, 1, 15), 'XXXXXXXXXXXXXXX')", hexExpr)
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

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
