package output

import (
	"fmt"
	"strings"

	"datadiff/internal/differ"
)

type humanFormatter struct{}

// Format renders each record as a unified-diff-style "+"/"-" line,
// followed by a short stats footer.
func (humanFormatter) Format(records []differ.DiffRecord, stats differ.Stats) (string, error) {
	var sb strings.Builder

	if len(records) == 0 {
		sb.WriteString("No differences found.\n")
	}
	for _, rec := range records {
		fmt.Fprintf(&sb, "%s %s\n", rec.Sign, rowText(rec.Row))
	}

	fmt.Fprintf(&sb, "\n%d rows downloaded, %d segments checksummed, %d segments downloaded\n",
		stats.RowsDownloaded, stats.SegmentsChecksummed, stats.SegmentsDownloaded)
	fmt.Fprintf(&sb, "source rows: %d, target rows: %d\n", stats.Table1Count, stats.Table2Count)

	return sb.String(), nil
}
