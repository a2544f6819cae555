package dataframe

import (
	"github.com/pkg/errors"
)

// Table is an ordered collection of equal-height columns.
type Table struct {
	cols   []*Column
	byName map[string]int
}

// NewTable builds a table from columns, which must all have the same height.
func NewTable(cols ...*Column) (*Table, error) {
	t := &Table{byName: make(map[string]int, len(cols))}
	for _, c := range cols {
		if err := t.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Height returns the number of rows.
func (t *Table) Height() int {
	if len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

// Width returns the number of columns.
func (t *Table) Width() int {
	return len(t.cols)
}

// Columns returns the columns in order.
func (t *Table) Columns() []*Column {
	return t.cols
}

// Column returns the named column, or nil if absent.
func (t *Table) Column(name string) *Column {
	i, ok := t.byName[name]
	if !ok {
		return nil
	}
	return t.cols[i]
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// AddColumn appends a column. Its height must match the table's and its name
// must be unused.
func (t *Table) AddColumn(c *Column) error {
	if _, exists := t.byName[c.Name]; exists {
		return errors.Errorf("duplicate column %q", c.Name)
	}
	if len(t.cols) > 0 && c.Len() != t.Height() {
		return errors.Errorf("column %q has %d rows, table has %d", c.Name, c.Len(), t.Height())
	}
	t.byName[c.Name] = len(t.cols)
	t.cols = append(t.cols, c)
	return nil
}

// ReplaceColumn swaps the named column for c, keeping its position.
func (t *Table) ReplaceColumn(c *Column) error {
	i, ok := t.byName[c.Name]
	if !ok {
		return errors.Errorf("no column %q to replace", c.Name)
	}
	if c.Len() != t.Height() {
		return errors.Errorf("column %q has %d rows, table has %d", c.Name, c.Len(), t.Height())
	}
	t.cols[i] = c
	return nil
}

// Slice returns a read-only view of rows [offset, offset+length).
func (t *Table) Slice(offset, length int) *Table {
	out := &Table{byName: make(map[string]int, len(t.cols))}
	for _, c := range t.cols {
		out.byName[c.Name] = len(out.cols)
		out.cols = append(out.cols, c.slice(offset, length))
	}
	return out
}

// EmptyLike returns a zero-height table with the same schema as t.
func (t *Table) EmptyLike() *Table {
	out := &Table{byName: make(map[string]int, len(t.cols))}
	for _, c := range t.cols {
		out.byName[c.Name] = len(out.cols)
		out.cols = append(out.cols, NewColumn(c.Name, c.Type))
	}
	return out
}

// Concat vertically concatenates tables with identical schemas, preserving
// order. An empty input yields an error since there is no schema to adopt.
func Concat(tables []*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, errors.New("cannot concat zero tables")
	}
	if len(tables) == 1 {
		return tables[0], nil
	}
	first := tables[0]
	out := first.EmptyLike()
	for n, t := range tables {
		if t.Width() != first.Width() {
			return nil, errors.Errorf("table %d has %d columns, expected %d", n, t.Width(), first.Width())
		}
		for _, dst := range out.cols {
			src := t.Column(dst.Name)
			if src == nil || src.Type != dst.Type {
				return nil, errors.Errorf("table %d is missing column %q or has the wrong type", n, dst.Name)
			}
			for i := 0; i < src.Len(); i++ {
				dst.AppendFrom(src, i)
			}
		}
	}
	return out, nil
}
