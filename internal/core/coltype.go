package core

import "math"

// ColKind is the closed tag of the ColType variant: a single tagged
// struct dispatched on Kind rather than an open type hierarchy.
type ColKind string

const (
	KindInteger  ColKind = "integer"
	KindDecimal  ColKind = "decimal"
	KindFloat    ColKind = "float"
	KindTemporal ColKind = "temporal"
	KindText     ColKind = "text"
	KindUUID     ColKind = "uuid"
	KindUnknown  ColKind = "unknown"
)

// ColType is the tagged variant for a column's logical type, as seen by
// the normalizer and the bisection engine. Only the fields relevant to
// Kind are meaningful; the rest are zero.
type ColType struct {
	Kind ColKind

	// Decimal: fractional digit count (scale).
	// Temporal: fractional-second digit count.
	Precision int

	// Temporal only: whether a value with more than 6 fractional digits
	// is rounded (true) or truncated (false) to 6 on normalization.
	RoundsOnPrecisionLoss bool

	// Unknown only: the raw, unparsed type name from information_schema
	// (or equivalent), kept for diagnostics.
	RawRepr string
}

// Integer returns the Integer variant.
func Integer() ColType { return ColType{Kind: KindInteger} }

// Decimal returns the Decimal(scale) variant.
func Decimal(scale int) ColType { return ColType{Kind: KindDecimal, Precision: scale} }

// Float returns the Float variant, deriving the decimal-digit count from
// the engine-reported binary precision p via floor(log10(2^p)).
func Float(binaryPrecision int) ColType {
	digits := int(math.Floor(float64(binaryPrecision) * math.Log10(2)))
	if digits < 0 {
		digits = 0
	}
	return ColType{Kind: KindFloat, Precision: digits}
}

// Temporal returns the Temporal(precision, roundsOnPrecisionLoss) variant.
func Temporal(precision int, roundsOnPrecisionLoss bool) ColType {
	return ColType{Kind: KindTemporal, Precision: precision, RoundsOnPrecisionLoss: roundsOnPrecisionLoss}
}

// Text returns the Text variant.
func Text() ColType { return ColType{Kind: KindText} }

// UUID returns the UUID variant.
func UUID() ColType { return ColType{Kind: KindUUID} }

// Unknown returns the Unknown(rawRepr) variant. The normalizer refuses
// to participate for Unknown columns; see internal/normalize.
func Unknown(rawRepr string) ColType { return ColType{Kind: KindUnknown, RawRepr: rawRepr} }

// IsNumericKey reports whether the type can serve as a bisectable
// integer-valued key column.
func (c ColType) IsNumericKey() bool {
	return c.Kind == KindInteger
}

// Comparable reports whether a and b are close enough in kind to be
// diffed against each other. Engines may differ in exact representation
// (e.g. Postgres NUMERIC vs. MySQL DECIMAL) as long as the tag and, for
// Decimal/Temporal, a precision-insensitive shape match.
func Comparable(a, b ColType) bool {
	return a.Kind == b.Kind
}
