package core

import (
	"strings"

	"datadiff/internal/errs"
)

// TablePath is an ordered sequence of 1 or 2 identifiers: an optional
// schema followed by a table name. Paths of length 1 are resolved
// against a connection's default schema by the adapter; length > 2 is
// rejected at parse time.
type TablePath []string

// ParseTablePath splits a dotted table reference such as "schema.table"
// or "table" into a TablePath. It is intentionally a plain split, not a
// SQL parser: the engine never parses DDL, only table references.
func ParseTablePath(s string) (TablePath, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errs.Value("empty table path")
	}
	parts := strings.Split(s, ".")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
		if parts[i] == "" {
			return nil, errs.Value("table path %q has an empty component", s)
		}
	}
	if len(parts) > 2 {
		return nil, errs.Value("table path %q has more than 2 components", s)
	}
	return TablePath(parts), nil
}

// Schema returns the schema component, or "" if the path has no schema.
func (p TablePath) Schema() string {
	if len(p) == 2 {
		return p[0]
	}
	return ""
}

// Table returns the table-name component.
func (p TablePath) Table() string {
	return p[len(p)-1]
}

// String renders the path dotted, for error messages and logs.
func (p TablePath) String() string {
	return strings.Join(p, ".")
}

// Normalize resolves a possibly-unqualified path against defaultSchema,
// returning the explicit (schema, table) pair the adapter contract's
// NormalizeTablePath operation produces.
func (p TablePath) Normalize(defaultSchema string) (schema, table string, err error) {
	switch len(p) {
	case 1:
		return defaultSchema, p[0], nil
	case 2:
		return p[0], p[1], nil
	default:
		return "", "", errs.Value("table path %q has %d components; expected 1 or 2", p.String(), len(p))
	}
}
