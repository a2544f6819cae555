package dataframe

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// BinaryColumnsToHexString returns a table where every binary column is
// re-encoded as a 0x-prefixed lowercase hex string column. Nulls stay null.
func BinaryColumnsToHexString(t *Table) *Table {
	out := &Table{byName: make(map[string]int, len(t.cols))}
	for _, c := range t.cols {
		if c.Type != TypeBinary {
			out.byName[c.Name] = len(out.cols)
			out.cols = append(out.cols, c)
			continue
		}
		hexCol := NewColumn(c.Name, TypeString)
		for i := 0; i < c.Len(); i++ {
			v, ok := c.Binary(i)
			if !ok {
				hexCol.AppendNull()
				continue
			}
			hexCol.AppendString("0x" + hex.EncodeToString(v))
		}
		out.byName[c.Name] = len(out.cols)
		out.cols = append(out.cols, hexCol)
	}
	return out
}

// HexStringColumnsToBinary converts the named columns from 0x-prefixed hex
// strings to binary in place of the string column. Columns not present in
// the table are ignored; columns already binary are left untouched.
func HexStringColumnsToBinary(t *Table, names []string) (*Table, error) {
	out := &Table{byName: make(map[string]int, len(t.cols))}
	toConvert := make(map[string]bool, len(names))
	for _, n := range names {
		toConvert[n] = true
	}
	for _, c := range t.cols {
		if !toConvert[c.Name] || c.Type != TypeString {
			out.byName[c.Name] = len(out.cols)
			out.cols = append(out.cols, c)
			continue
		}
		binCol := NewColumn(c.Name, TypeBinary)
		for i := 0; i < c.Len(); i++ {
			s, ok := c.Str(i)
			if !ok || s == "" {
				binCol.AppendNull()
				continue
			}
			raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
			if err != nil {
				return nil, errors.Wrapf(err, "column %s row %d: invalid hex %q", c.Name, i, s)
			}
			binCol.AppendBinary(raw)
		}
		out.byName[c.Name] = len(out.cols)
		out.cols = append(out.cols, binCol)
	}
	return out, nil
}
