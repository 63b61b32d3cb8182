// Package frame provides the typed tabular container passed between sources
// and destinations. A Frame pairs a rectangular cell matrix with an explicit
// column-to-type mapping; it is built once by whichever side produced the
// data and consumed by exactly one save call.
package frame

import (
	"github.com/dunesync/dunesync/pkg/errors"
	"github.com/dunesync/dunesync/pkg/schema"
)

// Frame is an ordered set of named, typed columns holding row-major cells.
type Frame struct {
	columns []string
	types   map[string]schema.ColumnType
	rows    [][]interface{}
}

// New builds a Frame, enforcing rectangularity and column-name uniqueness.
// Zero rows is valid; the type map is still carried for downstream table
// creation.
func New(columns []string, types map[string]schema.ColumnType, rows [][]interface{}) (*Frame, error) {
	seen := make(map[string]struct{}, len(columns))
	for _, name := range columns {
		if _, dup := seen[name]; dup {
			return nil, errors.Newf(errors.ErrorTypeData, "duplicate column name %q", name)
		}
		seen[name] = struct{}{}
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, errors.Newf(errors.ErrorTypeData,
				"row %d has %d cells, expected %d", i, len(row), len(columns))
		}
	}
	if types == nil {
		types = make(map[string]schema.ColumnType)
	}
	return &Frame{columns: columns, types: types, rows: rows}, nil
}

// Columns returns the ordered column names.
func (f *Frame) Columns() []string {
	return f.columns
}

// Type returns the column type for name.
func (f *Frame) Type(name string) (schema.ColumnType, bool) {
	t, ok := f.types[name]
	return t, ok
}

// Types returns the column-to-type mapping.
func (f *Frame) Types() map[string]schema.ColumnType {
	return f.types
}

// Rows returns the row-major cell matrix.
func (f *Frame) Rows() [][]interface{} {
	return f.rows
}

// RowCount returns the number of rows.
func (f *Frame) RowCount() int {
	return len(f.rows)
}

// IsEmpty reports whether the frame holds no rows.
func (f *Frame) IsEmpty() bool {
	return len(f.rows) == 0
}

// Column returns the cells of a single column in row order.
func (f *Frame) Column(name string) []interface{} {
	idx := -1
	for i, c := range f.columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]interface{}, len(f.rows))
	for i, row := range f.rows {
		out[i] = row[idx]
	}
	return out
}
