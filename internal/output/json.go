package output

import (
	"encoding/json"

	"datadiff/internal/differ"
)

type jsonFormatter struct{}

type recordPayload struct {
	Sign string `json:"sign"`
	Row  []any  `json:"row"`
}

type statsPayload struct {
	Table1Count         int64 `json:"table1Count"`
	Table2Count         int64 `json:"table2Count"`
	RowsDownloaded      int64 `json:"rowsDownloaded"`
	SegmentsChecksummed int64 `json:"segmentsChecksummed"`
	SegmentsDownloaded  int64 `json:"segmentsDownloaded"`
}

type diffPayload struct {
	Records []recordPayload `json:"records"`
	Stats   statsPayload    `json:"stats"`
}

// Format renders the diff as a single JSON document: the record list in
// produced order, plus a stats object.
func (jsonFormatter) Format(records []differ.DiffRecord, stats differ.Stats) (string, error) {
	payload := diffPayload{
		Records: make([]recordPayload, len(records)),
		Stats: statsPayload{
			Table1Count:         stats.Table1Count,
			Table2Count:         stats.Table2Count,
			RowsDownloaded:      stats.RowsDownloaded,
			SegmentsChecksummed: stats.SegmentsChecksummed,
			SegmentsDownloaded:  stats.SegmentsDownloaded,
		},
	}
	for i, rec := range records {
		payload.Records[i] = recordPayload{Sign: string(rec.Sign), Row: rec.Row}
	}

	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out) + "\n", nil
}
