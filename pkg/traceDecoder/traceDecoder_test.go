package traceDecoder

import (
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yulesa/glaciers/internal/config"
	"github.com/yulesa/glaciers/pkg/abiDecoder"
	"github.com/yulesa/glaciers/pkg/dataframe"
)

const transferSignature = "function transfer(address to, uint256 amount) returns (bool)"

func hexBytes(s string) []byte {
	raw, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return raw
}

func word(payload string) []byte {
	return common.LeftPadBytes(hexBytes(payload), 32)
}

// transferInput is selector 0xa9059cbb plus a 32-byte address and amount 100.
func transferInput() []byte {
	input := hexBytes("a9059cbb")
	input = append(input, word("7a250d5630b4cf539739df2c5dacb4c659f2488d")...)
	input = append(input, word("64")...)
	return input
}

func Test_DecodeRow_Transfer(t *testing.T) {
	d := NewTraceDecoder(nil)

	decoded, err := d.DecodeRow(transferSignature, transferInput(), word("01"))
	require.NoError(t, err)

	assert.Equal(t, []string{"to", "amount"}, decoded.InputKeys)
	assert.Equal(t, []string{
		"Address(0x7a250d5630b4cf539739df2c5dacb4c659f2488d)",
		"Uint(100,256)",
	}, decoded.InputValues)
	assert.Equal(t, []string{"Bool(True)"}, decoded.OutputValues)

	var params []abiDecoder.StructuredParam
	require.NoError(t, json.Unmarshal([]byte(decoded.InputJSON), &params))
	require.Len(t, params, 2)
	assert.Equal(t, "to", params[0].Name)
	assert.Equal(t, "address", params[0].ValueType)
	assert.Equal(t, "amount", params[1].Name)
	assert.Equal(t, "100", params[1].Value)
}

func Test_DecodeRow_InputTooShortForSelector(t *testing.T) {
	d := NewTraceDecoder(nil)
	_, err := d.DecodeRow(transferSignature, hexBytes("a9"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, abiDecoder.ErrUnexpectedEndOfBuffer)
}

func Test_DecodeRow_RejectsEvents(t *testing.T) {
	d := NewTraceDecoder(nil)
	_, err := d.DecodeRow("event Transfer(address indexed from, address indexed to, uint256 value)", transferInput(), nil)
	require.Error(t, err)
}

func Test_DecodeTable(t *testing.T) {
	config.Reset()
	schema := config.Get().TraceDecoder.TraceSchema
	d := NewTraceDecoder(nil)

	selector := dataframe.NewColumn(schema.TraceAlias.Selector, dataframe.TypeBinary)
	input := dataframe.NewColumn(schema.TraceAlias.ActionInput, dataframe.TypeBinary)
	output := dataframe.NewColumn(schema.TraceAlias.ResultOutput, dataframe.TypeBinary)
	to := dataframe.NewColumn(schema.TraceAlias.ActionTo, dataframe.TypeBinary)
	sig := dataframe.NewColumn("full_signature", dataframe.TypeString)

	// matched row
	selector.AppendBinary(hexBytes("a9059cbb"))
	input.AppendBinary(transferInput())
	output.AppendBinary(word("01"))
	to.AppendBinary(hexBytes("a0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"))
	sig.AppendString(transferSignature)

	// unmatched row
	selector.AppendBinary(hexBytes("deadbeef"))
	input.AppendBinary(hexBytes("deadbeef"))
	output.AppendNull()
	to.AppendNull()
	sig.AppendNull()

	// matched row with truncated input
	selector.AppendBinary(hexBytes("a9059cbb"))
	input.AppendBinary(hexBytes("a9059cbb"))
	output.AppendBinary(word("01"))
	to.AppendNull()
	sig.AppendString(transferSignature)

	table, err := dataframe.NewTable(selector, input, output, to, sig)
	require.NoError(t, err)

	decoded, err := d.DecodeTable(table, schema)
	require.NoError(t, err)
	require.Equal(t, 3, decoded.Height())

	inputKeys, ok := decoded.Column(ColInputKeys).Str(0)
	require.True(t, ok)
	assert.Equal(t, `["to","amount"]`, inputKeys)
	outputValues, _ := decoded.Column(ColOutputValues).Str(0)
	assert.Equal(t, `["Bool(True)"]`, outputValues)

	assert.True(t, decoded.Column(ColInputValues).IsNull(1))
	assert.True(t, decoded.Column(ColInputJSON).IsNull(1))

	assert.True(t, decoded.Column(ColInputValues).IsNull(2))
	errJSON, ok := decoded.Column(ColInputJSON).Str(2)
	require.True(t, ok)
	assert.JSONEq(t, `{"error":"UnexpectedEndOfBuffer"}`, errJSON)
}
