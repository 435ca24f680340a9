package output

import (
	"fmt"
	"strings"

	"datadiff/internal/differ"
)

type summaryFormatter struct{}

// Format renders a compact summary, counting additions/removals without
// listing every row. Example output:
//
//	Diff Summary
//	============
//
//	Rows:     -12, +3
//	Source:   10042 rows
//	Target:   10033 rows
//	Segments: 58 checksummed, 6 downloaded
func (summaryFormatter) Format(records []differ.DiffRecord, stats differ.Stats) (string, error) {
	var removed, added int
	for _, rec := range records {
		if rec.Sign == differ.SignRemove {
			removed++
		} else {
			added++
		}
	}

	var sb strings.Builder
	sb.WriteString("Diff Summary\n")
	sb.WriteString("============\n\n")
	fmt.Fprintf(&sb, "Rows:     -%d, +%d\n", removed, added)
	fmt.Fprintf(&sb, "Source:   %d rows\n", stats.Table1Count)
	fmt.Fprintf(&sb, "Target:   %d rows\n", stats.Table2Count)
	fmt.Fprintf(&sb, "Segments: %d checksummed, %d downloaded\n", stats.SegmentsChecksummed, stats.SegmentsDownloaded)

	return sb.String(), nil
}
