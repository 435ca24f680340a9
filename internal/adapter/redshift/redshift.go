// Package redshift implements the adapter.Adapter contract for Amazon
// Redshift. Redshift forked PostgreSQL 8.0's wire protocol and system
// catalogs, so this adapter embeds internal/adapter/postgres's and
// overrides only timestamp formatting, because Redshift's TO_CHAR
// format codes stop at milliseconds. Redshift has no native UUID type,
// so the inherited type mapping's uuid case never matches there.
package redshift

import (
	"context"
	"fmt"

	"datadiff/internal/adapter"
	"datadiff/internal/adapter/postgres"
	"datadiff/internal/core"
	"datadiff/internal/normalize"

	_ "github.com/lib/pq"
)

func init() {
	adapter.Register(core.DialectRedshift, func(dsn string) (adapter.Adapter, error) {
		return &Adapter{Adapter: postgres.New(dsn, core.DialectRedshift, "public")}, nil
	})
}

// Adapter reuses postgres.Adapter's connection handling, quoting, and
// schema introspection wholesale (Redshift's information_schema is
// Postgres's), overriding only timestamp formatting.
type Adapter struct {
	*postgres.Adapter
}

func (a *Adapter) Dialect() core.Dialect { return core.DialectRedshift }

// NormalizeFuncs matches postgres.Adapter's, except FormatTimestamp:
// Redshift's TO_CHAR doesn't support the 'US' (microsecond) pattern
// Postgres added later, so this pads milliseconds out to 6 digits in
// SQL text instead of relying on a format code Redshift lacks.
func (a *Adapter) NormalizeFuncs() normalize.Funcs {
	funcs := a.Adapter.NormalizeFuncs()
	funcs.FormatTimestamp = func(expr string, nativePrecision int, roundsOnPrecisionLoss bool) string {
		// Redshift timestamps cap at microsecond precision, so
		// nativePrecision never exceeds 6 and no loss can occur.
		return fmt.Sprintf("TO_CHAR(%s, 'YYYY-MM-DD HH24:MI:SS.MS') || '000'", expr)
	}
	return funcs
}

// SampleTextColumn delegates to Postgres's. Redshift has no UUID
// column type at all, so UUID keys only appear as text columns, which
// internal/segment samples for UUID-by-content detection.
func (a *Adapter) SampleTextColumn(ctx context.Context, path core.TablePath, column string) ([]string, error) {
	return a.Adapter.SampleTextColumn(ctx, path, column)
}
