package dataframe

import (
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
)

// ReadFile reads a parquet or csv file into a table, selected by extension.
// For csv, schema declares the non-string column types by name (csv carries
// no type information); unlisted columns read as strings. Parquet is
// self-describing and ignores schema.
func ReadFile(path string, schema map[string]ColumnType) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return readParquet(path)
	case ".csv":
		return readCsv(path, schema)
	default:
		return nil, errors.Errorf("file %s must have a .parquet or .csv extension", path)
	}
}

// WriteFile writes a table as parquet or csv, selected by extension.
func WriteFile(t *Table, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return writeParquet(t, path)
	case ".csv":
		return writeCsv(t, path)
	default:
		return errors.Errorf("file %s must have a .parquet or .csv extension", path)
	}
}

// WriteFileAtomic writes to a temp file in the destination directory and
// renames it into place, so a cancelled or failed run leaves no partial
// output file.
func WriteFileAtomic(t *Table, path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "creating temp file in %s", dir)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		return err
	}
	// keep the real extension so format selection works on the temp path
	tmpPath2 := tmpPath + filepath.Ext(path)
	if err := os.Rename(tmpPath, tmpPath2); err != nil {
		return err
	}
	if err := WriteFile(t, tmpPath2); err != nil {
		_ = os.Remove(tmpPath2)
		return err
	}
	if err := os.Rename(tmpPath2, path); err != nil {
		_ = os.Remove(tmpPath2)
		return err
	}
	return nil
}

func parquetSchema(t *Table) *parquet.Schema {
	group := parquet.Group{}
	for _, c := range t.cols {
		var node parquet.Node
		switch c.Type {
		case TypeBinary:
			node = parquet.Leaf(parquet.ByteArrayType)
		case TypeString:
			node = parquet.String()
		case TypeBool:
			node = parquet.Leaf(parquet.BooleanType)
		case TypeInt64:
			node = parquet.Int(64)
		}
		group[c.Name] = parquet.Optional(node)
	}
	return parquet.NewSchema("table", group)
}

func writeParquet(t *Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()

	w := parquet.NewGenericWriter[map[string]interface{}](f, parquetSchema(t))
	const batch = 4096
	rows := make([]map[string]interface{}, 0, batch)
	for i := 0; i < t.Height(); i++ {
		row := make(map[string]interface{}, len(t.cols))
		for _, c := range t.cols {
			row[c.Name] = cellValue(c, i)
		}
		rows = append(rows, row)
		if len(rows) == batch {
			if _, err := w.Write(rows); err != nil {
				return errors.Wrapf(err, "writing %s", path)
			}
			rows = rows[:0]
		}
	}
	if len(rows) > 0 {
		if _, err := w.Write(rows); err != nil {
			return errors.Wrapf(err, "writing %s", path)
		}
	}
	if err := w.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", path)
	}
	return f.Close()
}

func cellValue(c *Column, i int) interface{} {
	if c.IsNull(i) {
		return nil
	}
	switch c.Type {
	case TypeBinary:
		v, _ := c.Binary(i)
		return v
	case TypeString:
		v, _ := c.Str(i)
		return v
	case TypeBool:
		v, _ := c.BoolAt(i)
		return v
	case TypeInt64:
		v, _ := c.Int64At(i)
		return v
	}
	return nil
}

func readParquet(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	r := parquet.NewGenericReader[map[string]interface{}](f)
	defer r.Close()

	table := &Table{byName: make(map[string]int)}
	for _, field := range r.Schema().Fields() {
		if !field.Leaf() {
			return nil, errors.Errorf("parquet file %s has nested column %q, only flat tables are supported", path, field.Name())
		}
		var ct ColumnType
		switch field.Type().Kind() {
		case parquet.Boolean:
			ct = TypeBool
		case parquet.Int32, parquet.Int64:
			ct = TypeInt64
		case parquet.ByteArray, parquet.FixedLenByteArray:
			if lt := field.Type().LogicalType(); lt != nil && lt.UTF8 != nil {
				ct = TypeString
			} else {
				ct = TypeBinary
			}
		default:
			return nil, errors.Errorf("parquet file %s column %q has unsupported type %s", path, field.Name(), field.Type())
		}
		if err := table.AddColumn(NewColumn(field.Name(), ct)); err != nil {
			return nil, err
		}
	}

	rows := make([]map[string]interface{}, 1024)
	for {
		for i := range rows {
			rows[i] = make(map[string]interface{})
		}
		n, err := r.Read(rows)
		for i := 0; i < n; i++ {
			if apErr := appendRow(table, rows[i]); apErr != nil {
				return nil, errors.Wrapf(apErr, "reading %s", path)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}
	}
	return table, nil
}

func appendRow(t *Table, row map[string]interface{}) error {
	for _, c := range t.cols {
		v, ok := row[c.Name]
		if !ok || v == nil {
			c.AppendNull()
			continue
		}
		switch c.Type {
		case TypeBinary:
			switch b := v.(type) {
			case []byte:
				c.AppendBinary(append([]byte(nil), b...))
			case string:
				c.AppendBinary([]byte(b))
			default:
				return fmt.Errorf("column %s: unexpected value type %T", c.Name, v)
			}
		case TypeString:
			switch s := v.(type) {
			case string:
				c.AppendString(s)
			case []byte:
				c.AppendString(string(s))
			default:
				return fmt.Errorf("column %s: unexpected value type %T", c.Name, v)
			}
		case TypeBool:
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("column %s: unexpected value type %T", c.Name, v)
			}
			c.AppendBool(b)
		case TypeInt64:
			switch n := v.(type) {
			case int64:
				c.AppendInt64(n)
			case int32:
				c.AppendInt64(int64(n))
			case int:
				c.AppendInt64(int64(n))
			default:
				return fmt.Errorf("column %s: unexpected value type %T", c.Name, v)
			}
		}
	}
	return nil
}

func writeCsv(t *Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := make([]string, 0, len(t.cols))
	for _, c := range t.cols {
		header = append(header, c.Name)
	}
	if err := w.Write(header); err != nil {
		return err
	}
	record := make([]string, len(t.cols))
	for i := 0; i < t.Height(); i++ {
		for n, c := range t.cols {
			record[n] = cellString(c, i)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func cellString(c *Column, i int) string {
	if c.IsNull(i) {
		return ""
	}
	switch c.Type {
	case TypeBinary:
		v, _ := c.Binary(i)
		return "0x" + hex.EncodeToString(v)
	case TypeString:
		v, _ := c.Str(i)
		return v
	case TypeBool:
		v, _ := c.BoolAt(i)
		return strconv.FormatBool(v)
	case TypeInt64:
		v, _ := c.Int64At(i)
		return strconv.FormatInt(v, 10)
	}
	return ""
}

func readCsv(path string, schema map[string]ColumnType) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, errors.Wrapf(err, "reading csv header of %s", path)
	}
	table := &Table{byName: make(map[string]int)}
	for _, name := range header {
		ct, ok := schema[name]
		if !ok {
			ct = TypeString
		}
		if err := table.AddColumn(NewColumn(name, ct)); err != nil {
			return nil, err
		}
	}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}
		for n, c := range table.cols {
			if err := appendCsvCell(c, record[n]); err != nil {
				return nil, errors.Wrapf(err, "file %s column %s", path, c.Name)
			}
		}
	}
	return table, nil
}

func appendCsvCell(c *Column, s string) error {
	if s == "" {
		c.AppendNull()
		return nil
	}
	switch c.Type {
	case TypeBinary:
		raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
		if err != nil {
			return errors.Wrapf(err, "invalid hex %q", s)
		}
		c.AppendBinary(raw)
	case TypeString:
		c.AppendString(s)
	case TypeBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return errors.Wrapf(err, "invalid bool %q", s)
		}
		c.AppendBool(b)
	case TypeInt64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid integer %q", s)
		}
		c.AppendInt64(n)
	}
	return nil
}
