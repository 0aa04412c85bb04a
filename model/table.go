// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package model

// Table is the unified in-memory form of the decoded tabular payloads.
// Every value is raw text; the loader never infers types, so identifiers
// with leading zeros survive intact. Column absence is tracked at the
// table level, not per row: a missing optional column (say, no
// IncorporationDate at all) is visible through HasColumn and downstream
// stages check it once per table.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NewTable creates an empty table with the given column set.
func NewTable(columns []string) *Table {
	return &Table{Columns: columns}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return len(t.Rows) == 0
}

// ColumnIndex returns the index of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the named column is declared.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Append adds a row, padding or truncating it to the declared column count.
func (t *Table) Append(row []string) {
	switch {
	case len(row) < len(t.Columns):
		padded := make([]string, len(t.Columns))
		copy(padded, row)
		row = padded
	case len(row) > len(t.Columns):
		row = row[:len(t.Columns)]
	}
	t.Rows = append(t.Rows, row)
}

// Slice returns a view of rows [start, end) sharing the underlying data.
// Callers must not mutate the result.
func (t *Table) Slice(start, end int) *Table {
	return &Table{Columns: t.Columns, Rows: t.Rows[start:end]}
}
