// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

// Package processing expands campaign, ad and keyword templates into rows
// for every new route and validates the generated rows against the ad
// platform limits. Sheets travel as a header row followed by data rows.
package processing

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Frame is a table with named columns. Cells hold strings, numbers, bools
// or nil, as they arrive from a spreadsheet.
type Frame struct {
	Columns []string
	Rows    [][]any
}

// FromValues builds a frame from a header row and data rows. Short rows are
// padded with nil.
func FromValues(values [][]any) (Frame, error) {
	if len(values) == 0 {
		return Frame{}, nil
	}
	f := Frame{Columns: make([]string, len(values[0]))}
	for i, h := range values[0] {
		f.Columns[i] = cellString(h)
	}
	for i, raw := range values[1:] {
		if len(raw) > len(f.Columns) {
			return Frame{}, &InputError{Msg: fmt.Sprintf("Row %d has %d cells but the header has only %d columns.", i+2, len(raw), len(f.Columns))}
		}
		row := make([]any, len(f.Columns))
		copy(row, raw)
		f.Rows = append(f.Rows, row)
	}
	return f, nil
}

// Values returns the header followed by the rows.
func (f Frame) Values() [][]any {
	out := make([][]any, 0, len(f.Rows)+1)
	header := make([]any, len(f.Columns))
	for i, c := range f.Columns {
		header[i] = c
	}
	out = append(out, header)
	for _, r := range f.Rows {
		out = append(out, append([]any(nil), r...))
	}
	return out
}

// Index returns the position of col or -1.
func (f Frame) Index(col string) int {
	for i, c := range f.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// Has reports whether col exists.
func (f Frame) Has(col string) bool { return f.Index(col) >= 0 }

// Len is the number of data rows.
func (f Frame) Len() int { return len(f.Rows) }

// Get returns the cell of row i in col, or nil when col does not exist.
func (f Frame) Get(i int, col string) any {
	if j := f.Index(col); j >= 0 {
		return f.Rows[i][j]
	}
	return nil
}

// Column returns every cell of col.
func (f Frame) Column(col string) []any {
	j := f.Index(col)
	out := make([]any, len(f.Rows))
	if j < 0 {
		return out
	}
	for i, r := range f.Rows {
		out[i] = r[j]
	}
	return out
}

// record returns row i as a map. Duplicate column names keep the first value.
func (f Frame) record(i int) record {
	r := make(record, len(f.Columns))
	for j, c := range f.Columns {
		if _, seen := r[c]; !seen {
			r[c] = f.Rows[i][j]
		}
	}
	return r
}

// appendRecord adds r in column order; missing cells are nil.
func (f *Frame) appendRecord(r record) {
	row := make([]any, len(f.Columns))
	for j, c := range f.Columns {
		row[j] = r[c]
	}
	f.Rows = append(f.Rows, row)
}

// Drop removes the named columns that exist.
func (f *Frame) Drop(cols ...string) {
	drop := map[string]bool{}
	for _, c := range cols {
		drop[c] = true
	}
	var keep []int
	var names []string
	for j, c := range f.Columns {
		if !drop[c] {
			keep = append(keep, j)
			names = append(names, c)
		}
	}
	for i, r := range f.Rows {
		nr := make([]any, len(keep))
		for k, j := range keep {
			nr[k] = r[j]
		}
		f.Rows[i] = nr
	}
	f.Columns = names
}

// InsertColumn inserts col at position pos filled with fill.
func (f *Frame) InsertColumn(pos int, col string, fill any) {
	f.Columns = append(f.Columns[:pos], append([]string{col}, f.Columns[pos:]...)...)
	for i, r := range f.Rows {
		f.Rows[i] = append(r[:pos], append([]any{fill}, r[pos:]...)...)
	}
}

// DropDuplicates keeps the first occurrence of every distinct row.
func (f *Frame) DropDuplicates() {
	seen := map[string]bool{}
	out := f.Rows[:0]
	for _, r := range f.Rows {
		k := rowKey(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	f.Rows = out
}

// SortBy stable-sorts rows by the given columns. nil sorts last.
func (f *Frame) SortBy(cols ...string) {
	idx := make([]int, 0, len(cols))
	for _, c := range cols {
		if j := f.Index(c); j >= 0 {
			idx = append(idx, j)
		}
	}
	sort.SliceStable(f.Rows, func(a, b int) bool {
		for _, j := range idx {
			va, vb := f.Rows[a][j], f.Rows[b][j]
			if va == nil || vb == nil {
				if va == nil && vb == nil {
					continue
				}
				return vb == nil
			}
			sa, sb := cellString(va), cellString(vb)
			if sa != sb {
				return sa < sb
			}
		}
		return false
	})
}

type record map[string]any

func (r record) copy() record {
	out := make(record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// str returns the cell as a string; nil and missing are "".
func (r record) str(col string) string { return cellString(r[col]) }

func rowKey(r []any) string {
	var b strings.Builder
	for _, v := range r {
		fmt.Fprintf(&b, "%T=%v\x1f", v, v)
	}
	return b.String()
}

// cellString renders a cell the way a spreadsheet shows it.
func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(t)
	}
}

// pyList renders names as ['a', 'b'], the format used in user-facing
// messages.
func pyList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
