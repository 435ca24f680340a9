// Package normalize implements the value-normalization contract:
// per-type rules that render a SQL expression producing
// a textual representation of a column value such that equal logical
// values from any two supported engines yield byte-identical strings.
//
// Normalize never touches an actual value; it emits SQL. internal/segment
// composes the emitted expressions into checksum and download queries.
package normalize

import (
	"fmt"

	"datadiff/internal/core"
	"datadiff/internal/errs"
)

// TimestampPrecisionPos is the character position where a normalized
// timestamp's fractional digits begin: the fixed column length is
// TimestampPrecisionPos + 6 fractional digits = 26.
const TimestampPrecisionPos = 20

// FixedTimestampWidth is the fixed width of a normalized temporal value.
const FixedTimestampWidth = TimestampPrecisionPos + 6

// Funcs is the set of engine-specific SQL snippets the normalizer needs
// in order to stay engine-agnostic. Each adapter supplies its own Funcs
// (see internal/adapter).
type Funcs struct {
	// Trim wraps expr with the engine's TRIM/whitespace-strip function.
	Trim func(expr string) string
	// ToChar renders a numeric expr as text with exactly the given
	// number of fractional digits, zero-padded on the right. Excess
	// scale is rounded by the engine's own SQL rounding, which is not
	// round-half-to-even on every engine (Oracle's and Postgres's
	// TO_CHAR round half away from zero).
	ToChar func(expr string, scale int) string
	// FormatTimestamp renders a temporal expr as
	// "YYYY-MM-DD HH:MM:SS.ffffff" with exactly 6 fractional digits.
	// When nativePrecision exceeds 6, the excess digits are rounded to
	// microseconds if roundsOnPrecisionLoss, else truncated. An engine
	// that cannot express the rounding arithmetically must report
	// RoundsOnPrecisionLoss=false from its schema mapping so the two
	// stay consistent.
	FormatTimestamp func(expr string, nativePrecision int, roundsOnPrecisionLoss bool) string
}

// Expr returns the SQL expression that normalizes colRef (a quoted
// column reference) according to t, using engine-specific funcs for the
// pieces that can't be spelled portably. It returns an error for the
// Unknown kind: the normalizer refuses to participate, and the engine
// must fall back to download-and-compare.
func Expr(colRef string, t core.ColType, funcs Funcs) (string, error) {
	switch t.Kind {
	case core.KindInteger:
		return colRef, nil

	case core.KindDecimal:
		return funcs.ToChar(colRef, t.Precision), nil

	case core.KindFloat:
		return funcs.ToChar(colRef, t.Precision), nil

	case core.KindTemporal:
		return funcs.FormatTimestamp(colRef, t.Precision, t.RoundsOnPrecisionLoss), nil

	case core.KindText:
		return colRef, nil

	case core.KindUUID:
		return funcs.Trim(colRef), nil

	case core.KindUnknown:
		return "", errs.Type("column has unknown type %q; checksums unavailable, falling back to download-and-compare", t.RawRepr)

	default:
		return "", errs.Type("unrecognized column kind %q", t.Kind)
	}
}

// roundHalfEven rounds v to scale fractional digits using
// round-half-to-even, the rounding rule Decimal normalization
// specifies. Adapters that can't
// express half-to-even natively in SQL (most engines default to
// half-away-from-zero) should still call this from Go-side test
// fixtures and reference data so expectations match the SQL the
// generated expression is expected to produce.
func roundHalfEven(v float64, scale int) float64 {
	mul := pow10(scale)
	scaled := v * mul
	floor := fastFloor(scaled)
	diff := scaled - floor
	switch {
	case diff < 0.5:
		return floor / mul
	case diff > 0.5:
		return (floor + 1) / mul
	default:
		// Exactly halfway: round to even.
		if int64(floor)%2 == 0 {
			return floor / mul
		}
		return (floor + 1) / mul
	}
}

func pow10(n int) float64 {
	r := 1.0
	for i := 0; i < n; i++ {
		r *= 10
	}
	return r
}

func fastFloor(v float64) float64 {
	i := int64(v)
	if v < 0 && float64(i) != v {
		i--
	}
	return float64(i)
}

// FormatDecimalText renders v in Go, to the same fixed-point shape the
// SQL expressions above must produce, for use in tests and in-memory
// comparisons (e.g. download-and-compare after rows have been scanned).
func FormatDecimalText(v float64, scale int) string {
	rounded := roundHalfEven(v, scale)
	return fmt.Sprintf("%.*f", scale, rounded)
}
