// Package bigquery implements the adapter.Adapter contract for Google
// BigQuery. Unlike every other engine in this module, BigQuery has no
// database/sql driver; it is driven directly through
// cloud.google.com/go/bigquery's Client/Query/RowIterator API.
package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"datadiff/internal/adapter"
	"datadiff/internal/core"
	"datadiff/internal/errs"
	"datadiff/internal/normalize"
)

func init() {
	adapter.Register(core.DialectBigQuery, func(dsn string) (adapter.Adapter, error) {
		projectID, defaultDataset, err := parseDSN(dsn)
		if err != nil {
			return nil, err
		}
		return &Adapter{ProjectID: projectID, DefaultSchema: defaultDataset}, nil
	})
}

// Adapter drives BigQuery. dsn is "project" or "project/dataset"; the
// dataset component, if given, becomes the default schema for
// unqualified table references.
type Adapter struct {
	ProjectID     string
	DefaultSchema string

	client *bigquery.Client
}

// parseDSN splits "project" or "project/dataset" into its parts.
// BigQuery clients authenticate via ADC, not a DSN, so the shape here
// is this module's own convention.
func parseDSN(dsn string) (project, dataset string, err error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", "", errs.Value("bigquery: empty DSN; expected \"project\" or \"project/dataset\"")
	}
	parts := strings.SplitN(dsn, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1], nil
	}
	return parts[0], "", nil
}

func (a *Adapter) Connect(ctx context.Context) error {
	client, err := bigquery.NewClient(ctx, a.ProjectID)
	if err != nil {
		return errs.Connect(string(core.DialectBigQuery), err)
	}
	a.client = client
	return nil
}

func (a *Adapter) Close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}

func (a *Adapter) Dialect() core.Dialect { return core.DialectBigQuery }

// Quote renders identifier backtick-quoted, BigQuery's standard SQL
// quoting for identifiers that collide with keywords or contain
// special characters.
func (a *Adapter) Quote(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "\\`") + "`"
}

func (a *Adapter) ParseTableName(s string) (core.TablePath, error) {
	return core.ParseTablePath(s)
}

func (a *Adapter) NormalizeTablePath(path core.TablePath) (schema, table string, err error) {
	return path.Normalize(a.DefaultSchema)
}

func (a *Adapter) runQuery(ctx context.Context, sqlText string) (*bigquery.RowIterator, error) {
	q := a.client.Query(sqlText)
	it, err := q.Read(ctx)
	if err != nil {
		return nil, errs.Query(sqlText, "", err)
	}
	return it, nil
}

func (a *Adapter) QueryScalar(ctx context.Context, sqlText string) (any, error) {
	it, err := a.runQuery(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	var row []bigquery.Value
	if err := it.Next(&row); err != nil {
		if err == iterator.Done {
			return nil, nil
		}
		return nil, err
	}
	if len(row) == 0 {
		return nil, nil
	}
	return row[0], nil
}

func (a *Adapter) QueryRow(ctx context.Context, sqlText string) (adapter.Row, error) {
	it, err := a.runQuery(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	var row []bigquery.Value
	if err := it.Next(&row); err != nil {
		if err == iterator.Done {
			return nil, nil
		}
		return nil, err
	}
	return bqRowToRow(row), nil
}

func (a *Adapter) QueryRows(ctx context.Context, sqlText string) ([]adapter.Row, error) {
	it, err := a.runQuery(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	var out []adapter.Row
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, bqRowToRow(row))
	}
	return out, nil
}

func bqRowToRow(row []bigquery.Value) adapter.Row {
	out := make(adapter.Row, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

// QueryTableSchema reads INTERNALLY-dataset-scoped
// INFORMATION_SCHEMA.COLUMNS, BigQuery's analog of the standard view.
func (a *Adapter) QueryTableSchema(ctx context.Context, path core.TablePath, filterCols []string) (core.Schema, error) {
	dataset, table, err := a.NormalizeTablePath(path)
	if err != nil {
		return core.Schema{}, err
	}

	sqlText := fmt.Sprintf(
		"SELECT column_name, data_type FROM `%s`.`%s`.INFORMATION_SCHEMA.COLUMNS WHERE table_name = '%s' ORDER BY ordinal_position",
		a.ProjectID, dataset, escapeLiteral(table),
	)

	it, err := a.runQuery(ctx, sqlText)
	if err != nil {
		return core.Schema{}, err
	}

	wanted := toSet(filterCols)
	var schema core.Schema
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return core.Schema{}, err
		}
		name, _ := row[0].(string)
		dataType, _ := row[1].(string)
		if wanted != nil && !wanted[name] {
			continue
		}
		schema.Columns = append(schema.Columns, core.Column{Name: name, Type: mapColType(dataType)})
	}
	return schema, nil
}

func mapColType(dataType string) core.ColType {
	base := dataType
	var args string
	if i := strings.IndexByte(dataType, '('); i >= 0 {
		base = dataType[:i]
		args = strings.TrimSuffix(dataType[i+1:], ")")
	}
	switch base {
	case "INT64", "INTEGER":
		return core.Integer()
	case "NUMERIC", "BIGNUMERIC", "DECIMAL", "BIGDECIMAL":
		scale := 9
		if parts := strings.Split(args, ","); len(parts) == 2 {
			fmt.Sscanf(strings.TrimSpace(parts[1]), "%d", &scale)
		}
		return core.Decimal(scale)
	case "FLOAT64", "FLOAT":
		return core.Float(53)
	case "TIMESTAMP", "DATETIME":
		return core.Temporal(6, true)
	case "STRING":
		return core.Text()
	}
	return core.Unknown(dataType)
}

func (a *Adapter) SampleTextColumn(ctx context.Context, path core.TablePath, column string) ([]string, error) {
	dataset, table, err := a.NormalizeTablePath(path)
	if err != nil {
		return nil, err
	}
	sqlText := fmt.Sprintf(
		"SELECT %s FROM `%s`.`%s`.`%s` WHERE %s IS NOT NULL LIMIT %d",
		a.Quote(column), a.ProjectID, dataset, table, a.Quote(column), core.SampleSize(),
	)

	it, err := a.runQuery(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	var out []string
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		if s, ok := row[0].(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// NormalizeFuncs returns BigQuery standard-SQL snippets.
func (a *Adapter) NormalizeFuncs() normalize.Funcs {
	return normalize.Funcs{
		Trim: func(expr string) string { return fmt.Sprintf("TRIM(%s)", expr) },
		ToChar: func(expr string, scale int) string {
			return fmt.Sprintf("FORMAT('%%.%df', ROUND(%s, %d))", scale, expr, scale)
		},
		FormatTimestamp: func(expr string, nativePrecision int, roundsOnPrecisionLoss bool) string {
			// BigQuery TIMESTAMP/DATETIME store microseconds, so
			// nativePrecision never exceeds 6 and no loss can occur.
			return fmt.Sprintf("FORMAT_TIMESTAMP('%%Y-%%m-%%d %%H:%%M:%%E6S', %s)", expr)
		},
	}
}

// OffsetLimit renders BigQuery's "LIMIT limit OFFSET offset" clause.
// BigQuery requires LIMIT whenever OFFSET is used.
func (a *Adapter) OffsetLimit(offset, limit *int) (string, error) {
	if offset != nil && limit == nil {
		return "", errs.NotImplemented("bigquery: OFFSET requires an explicit LIMIT")
	}
	var sb strings.Builder
	if limit != nil {
		fmt.Fprintf(&sb, "LIMIT %d", *limit)
	}
	if offset != nil {
		fmt.Fprintf(&sb, " OFFSET %d", *offset)
	}
	return sb.String(), nil
}

// HashConcat renders BigQuery's hash expression: MD5() returns BYTES,
// so the digest is hex-encoded with TO_HEX before the rest of the
// pipeline treats it as hex text.
func (a *Adapter) HashConcat(parts []string) string {
	return "TO_HEX(MD5(CONCAT(" + strings.Join(parts, ", ") + ")))"
}

// MD5ToIntSQL reduces the hex digest to a 60-bit integer by parsing its
// leading 15 hex digits as a base-16 integer.
func (a *Adapter) MD5ToIntSQL(hexExpr string) string {
	return fmt.Sprintf("CAST(CONCAT('0x', SUBSTR(%s, 1, 15)) AS INT64)", hexExpr)
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
