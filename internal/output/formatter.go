// Package output provides a set of formatters for the differ's output:
// the (sign, row) stream and the run's Stats. It is extendable, and for
// now provides three formats: human, JSON, and summary.
package output

import (
	"fmt"
	"strings"

	"datadiff/internal/differ"
)

// Format is an enum type representing the available output formats.
type Format string

const (
	FormatHuman   Format = "human"
	FormatJSON    Format = "json"
	FormatSummary Format = "summary"
)

// Formatter formats a completed diff run (its records, in the order
// produced, plus final stats).
type Formatter interface {
	Format(records []differ.DiffRecord, stats differ.Stats) (string, error)
}

// NewFormatter creates a new Formatter instance based on the given
// name. If no format is specified, defaults to human format.
func NewFormatter(name string) (Formatter, error) {
	format := Format(strings.ToLower(strings.TrimSpace(name)))
	switch format {
	case "", FormatHuman:
		return humanFormatter{}, nil
	case FormatJSON:
		return jsonFormatter{}, nil
	case FormatSummary:
		return summaryFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s; use 'human', 'json', or 'summary'", name)
	}
}

func rowText(row []any) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
