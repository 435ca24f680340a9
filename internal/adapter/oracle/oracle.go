// Package oracle implements the adapter.Adapter contract for Oracle,
// driving database/sql through sijms/go-ora. go-ora was chosen over
// CGO-based drivers (goracle, odpi) because every other adapter in
// this module is pure Go and a CGO dependency would be the outlier.
package oracle

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

	_ "github.com/sijms/go-ora/v2"
)

func init() {
	adapter.Register(core.DialectOracle, func(dsn string) (adapter.Adapter, error) {
		return &Adapter{Conn: sqlbase.NewConn("oracle", dsn, core.DialectOracle)}, nil
	})
}

// Adapter drives Oracle over go-ora, which registers itself as
// database/sql driver "oracle".
type Adapter struct {
	*sqlbase.Conn
	DefaultSchema string
}

func (a *Adapter) Dialect() core.Dialect { return core.DialectOracle }

// Quote renders identifier double-quoted. Oracle folds unquoted
// identifiers to uppercase, so (as with Snowflake) every identifier is
// quoted to preserve case exactly.
func (a *Adapter) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (a *Adapter) ParseTableName(s string) (core.TablePath, error) {
	return core.ParseTablePath(s)
}

func (a *Adapter) NormalizeTablePath(path core.TablePath) (schema, table string, err error) {
	return path.Normalize(a.DefaultSchema)
}

// QueryTableSchema reads ALL_TAB_COLUMNS, Oracle's equivalent of
// information_schema.columns (Oracle predates the standard view and
// never adopted it).
func (a *Adapter) QueryTableSchema(ctx context.Context, path core.TablePath, filterCols []string) (core.Schema, error) {
	owner, table, err := a.NormalizeTablePath(path)
	if err != nil {
		return core.Schema{}, err
	}

	query := `
SELECT column_name, data_type, data_precision, data_scale
FROM all_tab_columns
WHERE owner = :1 AND table_name = :2
ORDER BY column_id`

	rows, err := a.Conn.DB().QueryContext(ctx, query, strings.ToUpper(owner), strings.ToUpper(table))
	if err != nil {
		return core.Schema{}, errs.Query(query, "", err)
	}
	defer rows.Close()

	wanted := toSet(filterCols)
	var schema core.Schema
	for rows.Next() {
		var (
			name, dataType           string
			dataPrecision, dataScale sql.NullInt64
		)
		if err := rows.Scan(&name, &dataType, &dataPrecision, &dataScale); err != nil {
			return core.Schema{}, err
		}
		if wanted != nil && !wanted[name] {
			continue
		}
		schema.Columns = append(schema.Columns, core.Column{
			Name: name,
			Type: mapColType(dataType, dataPrecision, dataScale),
		})
	}
	return schema, rows.Err()
}

func mapColType(dataType string, dataPrecision, dataScale sql.NullInt64) core.ColType {
	switch {
	case dataType == "NUMBER":
		scale := 0
		if dataScale.Valid {
			scale = int(dataScale.Int64)
		}
		if scale == 0 {
			return core.Integer()
		}
		return core.Decimal(scale)
	case dataType == "FLOAT" || dataType == "BINARY_FLOAT":
		return core.Float(24)
	case dataType == "BINARY_DOUBLE":
		return core.Float(53)
	case dataType == "DATE":
		return core.Temporal(0, true)
	case strings.HasPrefix(dataType, "TIMESTAMP"):
		// all_tab_columns reports a timestamp's fractional-second
		// precision (0..9) in data_scale.
		prec := 6
		if dataScale.Valid {
			prec = int(dataScale.Int64)
		}
		return core.Temporal(prec, true)
	case dataType == "CHAR" || dataType == "VARCHAR2" || dataType == "NVARCHAR2" || dataType == "CLOB":
		return core.Text()
	}
	return core.Unknown(dataType)
}

func (a *Adapter) SampleTextColumn(ctx context.Context, path core.TablePath, column string) ([]string, error) {
	_, table, err := a.NormalizeTablePath(path)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL AND ROWNUM <= %d",
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

// NormalizeFuncs returns Oracle's TRIM/TO_CHAR snippets. Oracle's
// TO_CHAR rounds half-away-from-zero, not half-to-even, so the SQL text
// here is a best-effort normalization; callers relying on exact
// half-to-even behavior at the boundary fall back to
// download-and-compare.
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
			if nativePrecision == 0 {
				// DATE has no fractional seconds; FF formats raise
				// ORA-01821 against it.
				return fmt.Sprintf("TO_CHAR(%s, 'YYYY-MM-DD HH24:MI:SS') || '.000000'", expr)
			}
			if nativePrecision > 6 && roundsOnPrecisionLoss {
				// FF6 truncates; adding half a microsecond first turns
				// the truncation into a round.
				expr = fmt.Sprintf("(%s + INTERVAL '0.0000005' SECOND)", expr)
			}
			return fmt.Sprintf("TO_CHAR(%s, 'YYYY-MM-DD HH24:MI:SS.FF6')", expr)
		},
	}
}

// OffsetLimit renders Oracle 12c+'s FETCH FIRST/OFFSET clause. Earlier
// Oracle versions need a ROWNUM subquery instead; this engine targets
// 12c+ only.
func (a *Adapter) OffsetLimit(offset, limit *int) (string, error) {
	var sb strings.Builder
	off := 0
	if offset != nil {
		off = *offset
	}
	fmt.Fprintf(&sb, "OFFSET %d ROWS", off)
	if limit != nil {
		fmt.Fprintf(&sb, " FETCH NEXT %d ROWS ONLY", *limit)
	}
	return sb.String(), nil
}

// HashConcat renders Oracle's hash expression. Oracle's CONCAT takes
// exactly two arguments and has no native MD5, so parts are joined with
// "||" and hashed with STANDARD_HASH (12c+), which returns uppercase
// hex RAW-as-text.
func (a *Adapter) HashConcat(parts []string) string {
	return fmt.Sprintf("STANDARD_HASH(%s, 'MD5')", strings.Join(parts, " || "))
}

// MD5ToIntSQL reduces the hex digest to a 60-bit integer via
// TO_NUMBER(..., 'XXXXXXXXXXXXXXX') (hex format model), Oracle's
// equivalent of MySQL's CONV.
func (a *Adapter) MD5ToIntSQL(hexExpr string) string {
	return fmt.Sprintf("TO_NUMBER(SUBSTR(%s, 1, 15), 'XXXXXXXXXXXXXXX')", hexExpr)
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
