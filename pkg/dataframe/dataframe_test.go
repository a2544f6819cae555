package dataframe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable(t *testing.T) *Table {
	t.Helper()
	bin := NewColumn("payload", TypeBinary)
	bin.AppendBinary([]byte{0xde, 0xad})
	bin.AppendNull()
	bin.AppendBinary([]byte{})

	str := NewColumn("label", TypeString)
	str.AppendString("one")
	str.AppendString("two")
	str.AppendNull()

	flag := NewColumn("flag", TypeBool)
	flag.AppendBool(true)
	flag.AppendNull()
	flag.AppendBool(false)

	count := NewColumn("count", TypeInt64)
	count.AppendInt64(1)
	count.AppendInt64(-2)
	count.AppendNull()

	table, err := NewTable(bin, str, flag, count)
	require.NoError(t, err)
	return table
}

func Test_TableBasics(t *testing.T) {
	table := sampleTable(t)
	assert.Equal(t, 3, table.Height())
	assert.Equal(t, 4, table.Width())
	assert.True(t, table.HasColumn("payload"))
	assert.Nil(t, table.Column("missing"))

	v, ok := table.Column("payload").Binary(0)
	require.True(t, ok)
	assert.Equal(t, []byte{0xde, 0xad}, v)
	assert.True(t, table.Column("payload").IsNull(1))
}

func Test_TableRejectsMismatchedColumns(t *testing.T) {
	short := NewColumn("short", TypeString)
	short.AppendString("only one")

	table := sampleTable(t)
	err := table.AddColumn(short)
	require.Error(t, err)

	dupe := NewColumn("label", TypeString)
	for i := 0; i < 3; i++ {
		dupe.AppendString("x")
	}
	err = table.AddColumn(dupe)
	require.Error(t, err)
}

func Test_SliceAndConcat(t *testing.T) {
	table := sampleTable(t)

	head := table.Slice(0, 1)
	tail := table.Slice(1, 2)
	assert.Equal(t, 1, head.Height())
	assert.Equal(t, 2, tail.Height())

	recombined, err := Concat([]*Table{head, tail})
	require.NoError(t, err)
	require.Equal(t, 3, recombined.Height())

	for i := 0; i < 3; i++ {
		want, wantOk := table.Column("label").Str(i)
		got, gotOk := recombined.Column("label").Str(i)
		assert.Equal(t, wantOk, gotOk)
		assert.Equal(t, want, got)
	}
}

func Test_ConcatRejectsSchemaMismatch(t *testing.T) {
	table := sampleTable(t)
	other, err := NewTable(NewColumn("unrelated", TypeString))
	require.NoError(t, err)

	_, err = Concat([]*Table{table, other})
	require.Error(t, err)
}

func Test_BinaryColumnsToHexString(t *testing.T) {
	table := sampleTable(t)
	hexed := BinaryColumnsToHexString(table)

	v, ok := hexed.Column("payload").Str(0)
	require.True(t, ok)
	assert.Equal(t, "0xdead", v)
	assert.True(t, hexed.Column("payload").IsNull(1))
	empty, ok := hexed.Column("payload").Str(2)
	require.True(t, ok)
	assert.Equal(t, "0x", empty)

	// non-binary columns pass through untouched
	label, ok := hexed.Column("label").Str(0)
	require.True(t, ok)
	assert.Equal(t, "one", label)
}

func Test_HexStringColumnsToBinary(t *testing.T) {
	col := NewColumn("topic0", TypeString)
	col.AppendString("0xdeadbeef")
	col.AppendNull()
	table, err := NewTable(col)
	require.NoError(t, err)

	converted, err := HexStringColumnsToBinary(table, []string{"topic0", "absent"})
	require.NoError(t, err)
	v, ok := converted.Column("topic0").Binary(0)
	require.True(t, ok)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, v)
	assert.True(t, converted.Column("topic0").IsNull(1))

	bad := NewColumn("topic0", TypeString)
	bad.AppendString("0xzz")
	badTable, err := NewTable(bad)
	require.NoError(t, err)
	_, err = HexStringColumnsToBinary(badTable, []string{"topic0"})
	require.Error(t, err)
}

func Test_CsvRoundTrip(t *testing.T) {
	table := sampleTable(t)
	path := filepath.Join(t.TempDir(), "table.csv")
	require.NoError(t, WriteFile(table, path))

	schema := map[string]ColumnType{
		"payload": TypeBinary,
		"flag":    TypeBool,
		"count":   TypeInt64,
	}
	back, err := ReadFile(path, schema)
	require.NoError(t, err)
	require.Equal(t, table.Height(), back.Height())

	v, ok := back.Column("payload").Binary(0)
	require.True(t, ok)
	assert.Equal(t, []byte{0xde, 0xad}, v)
	assert.True(t, back.Column("payload").IsNull(1))

	flag, ok := back.Column("flag").BoolAt(0)
	require.True(t, ok)
	assert.True(t, flag)
	assert.True(t, back.Column("flag").IsNull(1))

	count, ok := back.Column("count").Int64At(1)
	require.True(t, ok)
	assert.Equal(t, int64(-2), count)
}

func Test_ParquetRoundTrip(t *testing.T) {
	table := sampleTable(t)
	path := filepath.Join(t.TempDir(), "table.parquet")
	require.NoError(t, WriteFile(table, path))

	back, err := ReadFile(path, nil)
	require.NoError(t, err)
	require.Equal(t, table.Height(), back.Height())

	v, ok := back.Column("payload").Binary(0)
	require.True(t, ok)
	assert.Equal(t, []byte{0xde, 0xad}, v)
	assert.True(t, back.Column("payload").IsNull(1))

	label, ok := back.Column("label").Str(1)
	require.True(t, ok)
	assert.Equal(t, "two", label)

	count, ok := back.Column("count").Int64At(1)
	require.True(t, ok)
	assert.Equal(t, int64(-2), count)
}

func Test_WriteFileAtomic(t *testing.T) {
	table := sampleTable(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	require.NoError(t, WriteFileAtomic(table, path))

	_, err := os.Stat(path)
	require.NoError(t, err)

	// no temp files are left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func Test_ReadFileRejectsUnknownExtension(t *testing.T) {
	_, err := ReadFile("table.xlsx", nil)
	require.Error(t, err)
	err = WriteFile(sampleTable(t), "table.xlsx")
	require.Error(t, err)
}
