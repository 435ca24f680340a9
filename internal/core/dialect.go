// Package core contains the single source of truth for how the
// differencing engine represents tables, columns, and dialects. It is
// deliberately thin: the real per-engine behavior lives behind the
// adapter contract, not here.
package core

import "strings"

// Dialect identifies a supported database engine.
type Dialect string

const (
	DialectPostgreSQL Dialect = "postgresql"
	DialectMySQL      Dialect = "mysql"
	DialectSnowflake  Dialect = "snowflake"
	DialectBigQuery   Dialect = "bigquery"
	DialectRedshift   Dialect = "redshift"
	DialectOracle     Dialect = "oracle"
	DialectPresto     Dialect = "presto"
)

// SupportedDialects returns every dialect the engine recognizes.
func SupportedDialects() []Dialect {
	return []Dialect{
		DialectPostgreSQL,
		DialectMySQL,
		DialectSnowflake,
		DialectBigQuery,
		DialectRedshift,
		DialectOracle,
		DialectPresto,
	}
}

// ValidDialect reports whether d names a recognized dialect.
func ValidDialect(d string) bool {
	for _, supported := range SupportedDialects() {
		if strings.EqualFold(string(supported), d) {
			return true
		}
	}
	return false
}
