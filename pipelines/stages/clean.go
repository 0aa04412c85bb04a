// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package stages

import (
	"time"

	"github.com/mdhender/regsnap/model"
)

// Column names in the registry's payload and the derived columns the
// cleaner appends.
const (
	ColIncorporationDate = "IncorporationDate"
	ColCompanyName       = "CompanyName"
	ColDate              = "date"
	ColSource            = "source"
)

// CleanOptions configures a clean pass. Today is injected rather than
// read from the system clock so the stage is deterministic under test.
type CleanOptions struct {
	MaxNameLen int
	MinDate    time.Time
	Today      time.Time
	Source     string // provenance tag stamped on every surviving record
}

// Clean applies the validation criteria to a table and returns a new
// table of the surviving rows with two derived columns appended: "date"
// (the incorporation date in ISO form, empty when unknown) and "source"
// (the feed's provenance tag). The input table is not mutated and row
// order is preserved.
//
// Each criterion applies only when its column is present in the table;
// a payload without an IncorporationDate or CompanyName column skips
// that criterion entirely rather than dropping everything. Column
// presence is checked once per table, never per row.
func Clean(t *model.Table, opts CleanOptions) (*model.Table, model.CleanStats) {
	stats := model.CleanStats{InputRows: t.Len()}

	if opts.Today.IsZero() {
		opts.Today = time.Now().UTC()
	}

	columns := make([]string, 0, len(t.Columns)+2)
	columns = append(columns, t.Columns...)
	columns = append(columns, ColDate, ColSource)
	out := model.NewTable(columns)

	dateIdx := t.ColumnIndex(ColIncorporationDate)
	nameIdx := t.ColumnIndex(ColCompanyName)

	for _, row := range t.Rows {
		normalized := ""
		if dateIdx >= 0 {
			d, ok := parseDate(row[dateIdx])
			if !ok || d.Before(opts.MinDate) || d.After(opts.Today) {
				stats.DroppedDate++
				continue
			}
			normalized = d.Format("2006-01-02")
		}
		if nameIdx >= 0 {
			if n := len(row[nameIdx]); n < 1 || n > opts.MaxNameLen {
				stats.DroppedName++
				continue
			}
		}

		clean := make([]string, 0, len(columns))
		clean = append(clean, row...)
		clean = append(clean, normalized, opts.Source)
		out.Rows = append(out.Rows, clean)
	}

	stats.OutputRows = out.Len()
	return out, stats
}

// dateFormats are the forms the registry has published incorporation
// dates in: ISO, and the native day-first form used by the CSV payloads.
var dateFormats = []string{"2006-01-02", "02/01/2006"}

func parseDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateFormats {
		if d, err := time.Parse(layout, value); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}
