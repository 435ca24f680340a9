// Package mysql implements the adapter.Adapter contract for MySQL,
// driving database/sql through go-sql-driver/mysql. It is the most
// fully fleshed out of the seven engines: the other database/sql-backed
// adapters are thin variations on this one's shape.
package mysql

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

	_ "github.com/go-sql-driver/mysql"
)

func init() {
	adapter.Register(core.DialectMySQL, func(dsn string) (adapter.Adapter, error) {
		return &Adapter{Conn: sqlbase.NewConn("mysql", dsn, core.DialectMySQL)}, nil
	})
}

// Adapter drives MySQL 5.7+ / 8.0+ over go-sql-driver/mysql.
type Adapter struct {
	*sqlbase.Conn
}

func (a *Adapter) Dialect() core.Dialect { return core.DialectMySQL }

// Quote renders identifier backtick-quoted, doubling any embedded
// backtick.
func (a *Adapter) Quote(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

func (a *Adapter) ParseTableName(s string) (core.TablePath, error) {
	return core.ParseTablePath(s)
}

func (a *Adapter) NormalizeTablePath(path core.TablePath) (schema, table string, err error) {
	return path.Normalize("")
}

// QueryTableSchema reads information_schema.columns, mapping MySQL's
// DATA_TYPE/NUMERIC_SCALE/DATETIME_PRECISION columns onto
// core.ColType.
func (a *Adapter) QueryTableSchema(ctx context.Context, path core.TablePath, filterCols []string) (core.Schema, error) {
	schemaName, table, err := path.Normalize("")
	if err != nil {
		return core.Schema{}, err
	}
	if schemaName == "" {
		schemaName = "DATABASE()"
	} else {
		schemaName = "'" + strings.ReplaceAll(schemaName, "'", "''") + "'"
	}

	query := fmt.Sprintf(`
SELECT COLUMN_NAME, DATA_TYPE, NUMERIC_PRECISION, NUMERIC_SCALE, DATETIME_PRECISION, COLUMN_TYPE
FROM information_schema.columns
WHERE TABLE_SCHEMA = %s AND TABLE_NAME = '%s'
ORDER BY ORDINAL_POSITION`, schemaName, escapeLiteral(table))

	rows, err := a.Conn.DB().QueryContext(ctx, query)
	if err != nil {
		return core.Schema{}, errs.Query(query, "", err)
	}
	defer rows.Close()

	wanted := toSet(filterCols)
	var schema core.Schema
	for rows.Next() {
		var (
			name, dataType, columnType string
			numPrecision, numScale     sql.NullInt64
			datetimePrecision          sql.NullInt64
		)
		if err := rows.Scan(&name, &dataType, &numPrecision, &numScale, &datetimePrecision, &columnType); err != nil {
			return core.Schema{}, err
		}
		if wanted != nil && !wanted[name] {
			continue
		}
		schema.Columns = append(schema.Columns, core.Column{
			Name: name,
			Type: mapColType(dataType, columnType, numPrecision, numScale, datetimePrecision),
		})
	}
	if err := rows.Err(); err != nil {
		return core.Schema{}, err
	}
	return schema, nil
}

func mapColType(dataType, columnType string, numPrecision, numScale, datetimePrecision sql.NullInt64) core.ColType {
	switch dataType {
	case "tinyint", "smallint", "mediumint", "int", "bigint":
		return core.Integer()
	case "decimal", "numeric":
		scale := 0
		if numScale.Valid {
			scale = int(numScale.Int64)
		}
		return core.Decimal(scale)
	case "float":
		return core.Float(24)
	case "double":
		return core.Float(53)
	case "datetime", "timestamp":
		prec := 0
		if datetimePrecision.Valid {
			prec = int(datetimePrecision.Int64)
		}
		return core.Temporal(prec, true)
	case "char", "varchar", "text", "tinytext", "mediumtext", "longtext":
		return core.Text()
	}
	return core.Unknown(dataType)
}

func (a *Adapter) SampleTextColumn(ctx context.Context, path core.TablePath, column string) ([]string, error) {
	_, table, err := path.Normalize("")
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

// NormalizeFuncs returns MySQL's TRIM/CAST.../DATE_FORMAT snippets.
func (a *Adapter) NormalizeFuncs() normalize.Funcs {
	return normalize.Funcs{
		Trim: func(expr string) string { return fmt.Sprintf("TRIM(%s)", expr) },
		ToChar: func(expr string, scale int) string {
			return fmt.Sprintf("CAST(%s AS CHAR)", fmt.Sprintf("ROUND(%s, %d)", expr, scale))
		},
		FormatTimestamp: func(expr string, nativePrecision int, roundsOnPrecisionLoss bool) string {
			// MySQL caps fsp at 6, so nativePrecision never exceeds 6
			// and no precision loss can occur here.
			return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d %%H:%%i:%%s.%%f')", expr)
		},
	}
}

// OffsetLimit renders MySQL's "LIMIT limit OFFSET offset" clause, which
// MySQL supports unconditionally.
func (a *Adapter) OffsetLimit(offset, limit *int) (string, error) {
	var sb strings.Builder
	if limit != nil {
		fmt.Fprintf(&sb, "LIMIT %d", *limit)
	} else {
		sb.WriteString("LIMIT 18446744073709551615")
	}
	if offset != nil {
		fmt.Fprintf(&sb, " OFFSET %d", *offset)
	}
	return sb.String(), nil
}

// HashConcat renders MySQL's variadic MD5(CONCAT(...)) form.
func (a *Adapter) HashConcat(parts []string) string {
	return "MD5(CONCAT(" + strings.Join(parts, ", ") + "))"
}

// MD5ToIntSQL reduces the hex digest hexExpr to a 60-bit integer by
// converting its leading 15 hex digits (60 bits) to an unsigned decimal
// via CONV. CONV returns a VARCHAR, and SUM over a VARCHAR coerces
// through DOUBLE, whose 53-bit mantissa cannot hold a 60-bit checksum;
// the DECIMAL(38) cast keeps the sum in exact integer arithmetic.
func (a *Adapter) MD5ToIntSQL(hexExpr string) string {
	return fmt.Sprintf("CAST(CONV(SUBSTRING(%s, 1, 15), 16, 10) AS DECIMAL(38))", hexExpr)
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
