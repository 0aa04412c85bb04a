// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package stages

import (
	"fmt"
	"io"

	"github.com/mdhender/regsnap/model"
)

// ColumnSummary counts populated values in one column.
type ColumnSummary struct {
	Name     string
	NonEmpty int
}

// TableSummary holds quick exploratory statistics for a table.
type TableSummary struct {
	Rows        int
	Columns     []ColumnSummary
	MinDate     string // earliest parsable incorporation date, if any
	MaxDate     string
	MinNameLen  int
	MaxNameLen  int
	MeanNameLen float64
}

// Summarize computes basic statistics over a table: per-column fill
// counts, the incorporation date range, and the company name length
// distribution bounds. Columns that are absent simply contribute nothing.
func Summarize(t *model.Table) TableSummary {
	summary := TableSummary{Rows: t.Len()}

	counts := make([]int, len(t.Columns))
	for _, row := range t.Rows {
		for i := range t.Columns {
			if i < len(row) && row[i] != "" {
				counts[i]++
			}
		}
	}
	for i, col := range t.Columns {
		summary.Columns = append(summary.Columns, ColumnSummary{Name: col, NonEmpty: counts[i]})
	}

	if dateIdx := t.ColumnIndex(ColIncorporationDate); dateIdx >= 0 {
		for _, row := range t.Rows {
			d, ok := parseDate(row[dateIdx])
			if !ok {
				continue
			}
			iso := d.Format("2006-01-02")
			if summary.MinDate == "" || iso < summary.MinDate {
				summary.MinDate = iso
			}
			if iso > summary.MaxDate {
				summary.MaxDate = iso
			}
		}
	}

	if nameIdx := t.ColumnIndex(ColCompanyName); nameIdx >= 0 && t.Len() > 0 {
		total := 0
		for i, row := range t.Rows {
			n := len(row[nameIdx])
			if i == 0 || n < summary.MinNameLen {
				summary.MinNameLen = n
			}
			if n > summary.MaxNameLen {
				summary.MaxNameLen = n
			}
			total += n
		}
		summary.MeanNameLen = float64(total) / float64(t.Len())
	}

	return summary
}

// Print writes the summary in the operator-facing format used by the
// inspect command.
func (s TableSummary) Print(w io.Writer) {
	fmt.Fprintf(w, "total records: %d\n", s.Rows)
	if s.MinDate != "" {
		fmt.Fprintf(w, "incorporation date range: %s to %s\n", s.MinDate, s.MaxDate)
	}
	if s.MaxNameLen > 0 {
		fmt.Fprintf(w, "company name length: min %d, max %d, mean %.1f\n", s.MinNameLen, s.MaxNameLen, s.MeanNameLen)
	}
	for _, col := range s.Columns {
		fmt.Fprintf(w, "  %-24s %d non-empty\n", col.Name, col.NonEmpty)
	}
}
