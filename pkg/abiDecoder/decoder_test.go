package abiDecoder

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yulesa/glaciers/pkg/typeParser"
)

// word left-pads a hex payload to a 32-byte word.
func word(hexValue string) []byte {
	raw, err := hex.DecodeString(hexValue)
	if err != nil {
		panic(err)
	}
	return common.LeftPadBytes(raw, 32)
}

// rightPadded right-pads a hex payload to a 32-byte boundary.
func rightPadded(hexValue string) []byte {
	raw, err := hex.DecodeString(hexValue)
	if err != nil {
		panic(err)
	}
	return common.RightPadBytes(raw, (len(raw)+31)/32*32)
}

func buf(words ...[]byte) []byte {
	var out []byte
	for _, w := range words {
		out = append(out, w...)
	}
	return out
}

func types(strs ...string) []*typeParser.SolType {
	out := make([]*typeParser.SolType, len(strs))
	for i, s := range strs {
		out[i] = typeParser.MustParse(s)
	}
	return out
}

func Test_DecodeUint(t *testing.T) {
	d := NewDecoder(nil)
	values, err := d.DecodeParameters(types("uint256"), word("64"))
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "Uint(100,256)", values[0].Render())
	assert.Equal(t, "100", values[0].JSONValue())
}

func Test_DecodeUintOverflow(t *testing.T) {
	d := NewDecoder(nil)
	_, err := d.DecodeParameters(types("uint8"), word("0100"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIntegerOverflow)
	assert.Equal(t, "IntegerOverflow", ErrorName(err))
}

func Test_DecodeInt(t *testing.T) {
	d := NewDecoder(nil)

	// -1 is all ones in two's complement
	minusOne := make([]byte, 32)
	for i := range minusOne {
		minusOne[i] = 0xff
	}
	values, err := d.DecodeParameters(types("int256"), minusOne)
	require.NoError(t, err)
	assert.Equal(t, "Int(-1,256)", values[0].Render())

	values, err = d.DecodeParameters(types("int128"), minusOne)
	require.NoError(t, err)
	assert.Equal(t, "Int(-1,128)", values[0].Render())

	// 256 does not fit int8
	_, err = d.DecodeParameters(types("int8"), word("0100"))
	assert.ErrorIs(t, err, ErrIntegerOverflow)
}

func Test_DecodeAddress(t *testing.T) {
	d := NewDecoder(nil)
	values, err := d.DecodeParameters(types("address"), word("a0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"))
	require.NoError(t, err)
	assert.Equal(t, "Address(0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48)", values[0].Render())
	assert.Equal(t, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", values[0].JSONValue())
}

func Test_DecodeAddressDirtyUpperBytes(t *testing.T) {
	// non-zero upper bytes are warn-only, the low 20 bytes still decode
	d := NewDecoder(nil)
	dirty := word("a0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	dirty[0] = 0xff
	values, err := d.DecodeParameters(types("address"), dirty)
	require.NoError(t, err)
	assert.Equal(t, "Address(0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48)", values[0].Render())
}

func Test_DecodeBool(t *testing.T) {
	d := NewDecoder(nil)
	values, err := d.DecodeParameters(types("bool"), word("01"))
	require.NoError(t, err)
	assert.Equal(t, "Bool(True)", values[0].Render())

	values, err = d.DecodeParameters(types("bool"), word("00"))
	require.NoError(t, err)
	assert.Equal(t, "Bool(False)", values[0].Render())

	// any non-zero value decodes as true
	values, err = d.DecodeParameters(types("bool"), word("02"))
	require.NoError(t, err)
	assert.Equal(t, "Bool(True)", values[0].Render())
}

func Test_DecodeFixedBytes(t *testing.T) {
	d := NewDecoder(nil)
	data := rightPadded("deadbeef")
	values, err := d.DecodeParameters(types("bytes4"), data)
	require.NoError(t, err)
	assert.Equal(t, "Bytes(0xdeadbeef)", values[0].Render())
}

func Test_DecodeDynamicBytes(t *testing.T) {
	// offset(0x20) + length(5) + "hello" right-padded
	data := buf(word("20"), word("05"), rightPadded("68656c6c6f"))
	d := NewDecoder(nil)
	values, err := d.DecodeParameters(types("bytes"), data)
	require.NoError(t, err)
	assert.Equal(t, "Bytes(0x68656c6c6f)", values[0].Render())
	assert.Equal(t, "0x68656c6c6f", values[0].JSONValue())
}

func Test_DecodeString(t *testing.T) {
	data := buf(word("20"), word("05"), rightPadded("68656c6c6f"))
	d := NewDecoder(nil)
	values, err := d.DecodeParameters(types("string"), data)
	require.NoError(t, err)
	assert.Equal(t, `String("hello")`, values[0].Render())
	assert.Equal(t, "hello", values[0].JSONValue())
}

func Test_DecodeStringInvalidUtf8(t *testing.T) {
	// 0xff 0xfe is not valid UTF-8; the raw hex is surfaced instead
	data := buf(word("20"), word("02"), rightPadded("fffe"))
	d := NewDecoder(nil)
	values, err := d.DecodeParameters(types("string"), data)
	require.NoError(t, err)
	assert.Equal(t, "String(0xfffe)", values[0].Render())
	assert.Equal(t, "0xfffe", values[0].JSONValue())
}

func Test_DecodeDynamicArray(t *testing.T) {
	// uint256[] = [1, 2]
	data := buf(word("20"), word("02"), word("01"), word("02"))
	d := NewDecoder(nil)
	values, err := d.DecodeParameters(types("uint256[]"), data)
	require.NoError(t, err)
	assert.Equal(t, "Array([Uint(1,256), Uint(2,256)])", values[0].Render())
	assert.Equal(t, []interface{}{"1", "2"}, values[0].JSONValue())
}

func Test_DecodeEmptyDynamicArray(t *testing.T) {
	data := buf(word("20"), word("00"))
	d := NewDecoder(nil)
	values, err := d.DecodeParameters(types("uint256[]"), data)
	require.NoError(t, err)
	assert.Equal(t, "Array([])", values[0].Render())
}

func Test_DecodeFixedArray(t *testing.T) {
	// uint256[2] is encoded inline with no length prefix
	data := buf(word("0a"), word("0b"))
	d := NewDecoder(nil)
	values, err := d.DecodeParameters(types("uint256[2]"), data)
	require.NoError(t, err)
	assert.Equal(t, "Array([Uint(10,256), Uint(11,256)])", values[0].Render())
}

func Test_DecodeDynamicArrayOfStrings(t *testing.T) {
	// string[] = ["a", "bc"]
	data := buf(
		word("20"),                    // offset of the array
		word("02"),                    // length
		word("40"),                    // offset of element 0, relative to the element region
		word("80"),                    // offset of element 1
		word("01"), rightPadded("61"), // "a"
		word("02"), rightPadded("6263"), // "bc"
	)
	d := NewDecoder(nil)
	values, err := d.DecodeParameters(types("string[]"), data)
	require.NoError(t, err)
	assert.Equal(t, `Array([String("a"), String("bc")])`, values[0].Render())
}

func Test_DecodeStaticTuple(t *testing.T) {
	data := buf(word("a0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"), word("64"))
	d := NewDecoder(nil)
	values, err := d.DecodeParameters(types("(address,uint256)"), data)
	require.NoError(t, err)
	assert.Equal(t, "Tuple((Address(0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48), Uint(100,256)))", values[0].Render())
}

func Test_DecodeDynamicTuple(t *testing.T) {
	// (uint256,bytes) = (7, 0xdead)
	data := buf(
		word("20"), // offset of the tuple
		word("07"), // member 0
		word("40"), // offset of member 1, relative to the tuple region
		word("02"), // bytes length
		rightPadded("dead"),
	)
	d := NewDecoder(nil)
	values, err := d.DecodeParameters(types("(uint256,bytes)"), data)
	require.NoError(t, err)
	assert.Equal(t, "Tuple((Uint(7,256), Bytes(0xdead)))", values[0].Render())
}

func Test_DecodeMultipleParameters(t *testing.T) {
	// (address, uint256, bytes): two static slots, one offset + tail
	data := buf(
		word("a0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"),
		word("64"),
		word("60"), // offset of bytes, past the 3-word head
		word("03"),
		rightPadded("010203"),
	)
	d := NewDecoder(nil)
	values, err := d.DecodeParameters(types("address", "uint256", "bytes"), data)
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.Equal(t, "Address(0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48)", values[0].Render())
	assert.Equal(t, "Uint(100,256)", values[1].Render())
	assert.Equal(t, "Bytes(0x010203)", values[2].Render())
}

func Test_DecodeTruncatedBuffer(t *testing.T) {
	d := NewDecoder(nil)
	_, err := d.DecodeParameters(types("uint256"), make([]byte, 16))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedEndOfBuffer)
	assert.Equal(t, "UnexpectedEndOfBuffer", ErrorName(err))
}

func Test_DecodeInvalidOffset(t *testing.T) {
	d := NewDecoder(nil)

	// offset beyond the buffer
	_, err := d.DecodeParameters(types("bytes"), word("0100"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidOffset)

	// offset pointing inside the head
	data := buf(word("00"), word("00"))
	_, err = d.DecodeParameters(types("uint256", "bytes"), data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidOffset)
}

func Test_DecodeTruncatedDynamicPayload(t *testing.T) {
	// declared length 64 but only one padded payload word present
	data := buf(word("20"), word("40"), rightPadded("dead"))
	d := NewDecoder(nil)
	_, err := d.DecodeParameters(types("bytes"), data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedEndOfBuffer)
}

func Test_DecodeSingleWord(t *testing.T) {
	d := NewDecoder(nil)

	v, err := d.DecodeSingleWord(typeParser.MustParse("address"), word("a0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"))
	require.NoError(t, err)
	assert.Equal(t, "Address(0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48)", v.Render())

	_, err = d.DecodeSingleWord(typeParser.MustParse("bytes"), word("00"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = d.DecodeSingleWord(typeParser.MustParse("uint256[2]"), word("00"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func Test_ValueRendering(t *testing.T) {
	big100 := big.NewInt(100)
	assert.Equal(t, "Uint(100,256)", UintValue{X: big100, Bits: 256}.Render())
	assert.Equal(t, "Int(-5,128)", IntValue{X: big.NewInt(-5), Bits: 128}.Render())
	assert.Equal(t, "Bool(True)", BoolValue(true).Render())
	assert.Equal(t, "Bytes(0xdead)", BytesValue{0xde, 0xad}.Render())
	assert.Equal(t, `String("hi")`, StringValue{S: "hi", Valid: true}.Render())
	assert.Equal(t,
		"Array([Uint(100,256), Bool(False)])",
		ArrayValue{UintValue{X: big100, Bits: 256}, BoolValue(false)}.Render(),
	)

	hash := IndexedHashValue(common.HexToHash("0x01"))
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000001", hash.Render())
}

// decode(encode(v)) round-trips for a sweep of supported types with
// hand-encoded payloads.
func Test_DecodeRoundTripValues(t *testing.T) {
	d := NewDecoder(nil)
	tests := []struct {
		typ      string
		data     []byte
		rendered string
	}{
		{"uint8", word("ff"), "Uint(255,8)"},
		{"uint256", word("0de0b6b3a7640000"), "Uint(1000000000000000000,256)"},
		{"bytes32", word("deadbeef00000000000000000000000000000000000000000000000000000000"), "Bytes(0xdeadbeef00000000000000000000000000000000000000000000000000000000)"},
		{"bool[2]", buf(word("01"), word("00")), "Array([Bool(True), Bool(False)])"},
		{"address[]", buf(word("20"), word("01"), word("a0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")), "Array([Address(0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48)])"},
	}
	for _, tc := range tests {
		t.Run(tc.typ, func(t *testing.T) {
			values, err := d.DecodeParameters(types(tc.typ), tc.data)
			require.NoError(t, err)
			assert.Equal(t, tc.rendered, values[0].Render())
		})
	}
}
