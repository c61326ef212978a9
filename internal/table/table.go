// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package table holds the coordinate tables extractions read and extend.
// Cells are kept as strings so input columns round-trip unchanged; values
// appended by an extraction are rendered from float64. Each cell also
// remembers whether it holds a number, so XLSX output only writes numeric
// cells for appended values and cells that were numeric on input.
package table

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

var (
	ErrEmptyTable    = errors.New("table has no header row")
	ErrUnknownFormat = errors.New("unsupported table format")
)

// Table is an ordered set of named columns over string cells.
type Table struct {
	columns []string
	rows    [][]string

	// numeric parallels rows.
	numeric [][]bool
}

// New builds a table. Rows shorter than the header are padded with empty
// cells; longer rows are an error.
func New(columns []string, rows [][]string) (*Table, error) {
	if len(columns) == 0 {
		return nil, ErrEmptyTable
	}
	t := &Table{
		columns: slices.Clone(columns),
		rows:    make([][]string, len(rows)),
		numeric: make([][]bool, len(rows)),
	}
	for i, r := range rows {
		if len(r) > len(columns) {
			return nil, fmt.Errorf("row %d has %d cells for %d columns", i+1, len(r), len(columns))
		}
		row := make([]string, len(columns))
		copy(row, r)
		t.rows[i] = row
		t.numeric[i] = make([]bool, len(columns))
	}
	return t, nil
}

// Numeric reports whether the cell at (row, col) holds a number rather
// than text that happens to parse as one.
func (t *Table) Numeric(row, col int) bool { return t.numeric[row][col] }

// markNumeric flags a cell as numeric when its text parses as a float.
func (t *Table) markNumeric(row, col int) {
	_, err := strconv.ParseFloat(strings.TrimSpace(t.rows[row][col]), 64)
	t.numeric[row][col] = err == nil
}

// markCanonical flags every cell whose text is exactly what FormatFloat
// would write for its value. "0123", "1e5" and "NaN" stay text.
func (t *Table) markCanonical() {
	for i, r := range t.rows {
		for j, cell := range r {
			v, err := strconv.ParseFloat(cell, 64)
			t.numeric[i][j] = err == nil && !math.IsInf(v, 0) && FormatFloat(v) == cell
		}
	}
}

// Columns returns the column names in order.
func (t *Table) Columns() []string { return slices.Clone(t.columns) }

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Column returns the index of the named column.
func (t *Table) Column(name string) (int, bool) {
	i := slices.Index(t.columns, name)
	return i, i >= 0
}

// Cell returns the raw cell at (row, col).
func (t *Table) Cell(row, col int) string { return t.rows[row][col] }

// Row returns a copy of one data row.
func (t *Table) Row(i int) []string { return slices.Clone(t.rows[i]) }

// Float parses the cell at (row, col) as a number.
func (t *Table) Float(row, col int) (float64, error) {
	s := strings.TrimSpace(t.rows[row][col])
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("row %d column %q: %q is not a number", row+1, t.columns[col], s)
	}
	return v, nil
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	c := &Table{
		columns: slices.Clone(t.columns),
		rows:    make([][]string, len(t.rows)),
		numeric: make([][]bool, len(t.rows)),
	}
	for i, r := range t.rows {
		c.rows[i] = slices.Clone(r)
		c.numeric[i] = slices.Clone(t.numeric[i])
	}
	return c
}

// Column is a named float column to append.
type Column struct {
	Name   string
	Values []float64
}

// WithColumns returns a copy of t with cols appended in order. A column
// whose name already exists replaces it in place. NaN values become empty
// cells. Appended cells are numeric. t itself is left untouched.
func (t *Table) WithColumns(cols ...Column) (*Table, error) {
	out := t.Clone()
	for _, c := range cols {
		if len(c.Values) != len(out.rows) {
			return nil, fmt.Errorf("column %q has %d values for %d rows", c.Name, len(c.Values), len(out.rows))
		}
		idx, ok := out.Column(c.Name)
		if !ok {
			out.columns = append(out.columns, c.Name)
			idx = len(out.columns) - 1
			for i := range out.rows {
				out.rows[i] = append(out.rows[i], "")
				out.numeric[i] = append(out.numeric[i], false)
			}
		}
		for i, v := range c.Values {
			out.rows[i][idx] = FormatFloat(v)
			out.numeric[i][idx] = !math.IsNaN(v)
		}
	}
	return out, nil
}

// FormatFloat renders v the way output cells are written; NaN is empty.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
