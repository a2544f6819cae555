// Package dataframe provides the minimal in-memory columnar table the decode
// pipeline runs over: named, typed, nullable columns with slice/concat and
// parquet/csv persistence. It is a storage substrate, not a query engine.
package dataframe

import "fmt"

// ColumnType enumerates the physical column types used by the pipeline.
type ColumnType int

const (
	TypeBinary ColumnType = iota
	TypeString
	TypeBool
	TypeInt64
)

func (t ColumnType) String() string {
	switch t {
	case TypeBinary:
		return "binary"
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	case TypeInt64:
		return "int64"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// Column is a single named column. Only the slice matching Type is
// populated; valid tracks nulls.
type Column struct {
	Name string
	Type ColumnType

	bin   [][]byte
	str   []string
	boolv []bool
	intv  []int64
	valid []bool
}

// NewColumn creates an empty column of the given type.
func NewColumn(name string, t ColumnType) *Column {
	return &Column{Name: name, Type: t}
}

// NewBinaryColumn builds a binary column; nil elements become nulls.
func NewBinaryColumn(name string, values [][]byte) *Column {
	c := NewColumn(name, TypeBinary)
	for _, v := range values {
		if v == nil {
			c.AppendNull()
		} else {
			c.AppendBinary(v)
		}
	}
	return c
}

// NewStringColumn builds a non-nullable string column.
func NewStringColumn(name string, values []string) *Column {
	c := NewColumn(name, TypeString)
	for _, v := range values {
		c.AppendString(v)
	}
	return c
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	return len(c.valid)
}

// IsNull reports whether row i is null.
func (c *Column) IsNull(i int) bool {
	return !c.valid[i]
}

func (c *Column) AppendNull() {
	c.valid = append(c.valid, false)
	switch c.Type {
	case TypeBinary:
		c.bin = append(c.bin, nil)
	case TypeString:
		c.str = append(c.str, "")
	case TypeBool:
		c.boolv = append(c.boolv, false)
	case TypeInt64:
		c.intv = append(c.intv, 0)
	}
}

func (c *Column) AppendBinary(v []byte) {
	c.mustBe(TypeBinary)
	c.bin = append(c.bin, v)
	c.valid = append(c.valid, true)
}

func (c *Column) AppendString(v string) {
	c.mustBe(TypeString)
	c.str = append(c.str, v)
	c.valid = append(c.valid, true)
}

func (c *Column) AppendBool(v bool) {
	c.mustBe(TypeBool)
	c.boolv = append(c.boolv, v)
	c.valid = append(c.valid, true)
}

func (c *Column) AppendInt64(v int64) {
	c.mustBe(TypeInt64)
	c.intv = append(c.intv, v)
	c.valid = append(c.valid, true)
}

func (c *Column) mustBe(t ColumnType) {
	if c.Type != t {
		panic(fmt.Sprintf("column %s is %s, not %s", c.Name, c.Type, t))
	}
}

// Binary returns the value at row i and whether it is non-null.
func (c *Column) Binary(i int) ([]byte, bool) {
	c.mustBe(TypeBinary)
	return c.bin[i], c.valid[i]
}

// Str returns the value at row i and whether it is non-null.
func (c *Column) Str(i int) (string, bool) {
	c.mustBe(TypeString)
	return c.str[i], c.valid[i]
}

// BoolAt returns the value at row i and whether it is non-null.
func (c *Column) BoolAt(i int) (bool, bool) {
	c.mustBe(TypeBool)
	return c.boolv[i], c.valid[i]
}

// Int64At returns the value at row i and whether it is non-null.
func (c *Column) Int64At(i int) (int64, bool) {
	c.mustBe(TypeInt64)
	return c.intv[i], c.valid[i]
}

// AppendFrom appends row i of src (which must have the same type) to c.
func (c *Column) AppendFrom(src *Column, i int) {
	if src.Type != c.Type {
		panic(fmt.Sprintf("column %s is %s, source %s is %s", c.Name, c.Type, src.Name, src.Type))
	}
	if !src.valid[i] {
		c.AppendNull()
		return
	}
	switch c.Type {
	case TypeBinary:
		c.AppendBinary(src.bin[i])
	case TypeString:
		c.AppendString(src.str[i])
	case TypeBool:
		c.AppendBool(src.boolv[i])
	case TypeInt64:
		c.AppendInt64(src.intv[i])
	}
}

// slice returns a view of rows [offset, offset+length) sharing backing
// arrays. Callers must treat the result as read-only.
func (c *Column) slice(offset, length int) *Column {
	out := &Column{Name: c.Name, Type: c.Type, valid: c.valid[offset : offset+length]}
	switch c.Type {
	case TypeBinary:
		out.bin = c.bin[offset : offset+length]
	case TypeString:
		out.str = c.str[offset : offset+length]
	case TypeBool:
		out.boolv = c.boolv[offset : offset+length]
	case TypeInt64:
		out.intv = c.intv[offset : offset+length]
	}
	return out
}
