package signatures

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yulesa/glaciers/pkg/typeParser"
)

func transferEvent() *Item {
	return &Item{
		Kind: KindEvent,
		Name: "Transfer",
		Inputs: []Param{
			{Name: "from", Type: typeParser.MustParse("address"), Indexed: true},
			{Name: "to", Type: typeParser.MustParse("address"), Indexed: true},
			{Name: "value", Type: typeParser.MustParse("uint256")},
		},
		Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
	}
}

func transferFunction() *Item {
	return &Item{
		Kind: KindFunction,
		Name: "transfer",
		Inputs: []Param{
			{Name: "to", Type: typeParser.MustParse("address")},
			{Name: "amount", Type: typeParser.MustParse("uint256")},
		},
		Outputs:         []Param{{Type: typeParser.MustParse("bool")}},
		StateMutability: "nonpayable",
	}
}

func Test_CanonicalSignature(t *testing.T) {
	assert.Equal(t, "Transfer(address,address,uint256)", transferEvent().CanonicalSignature())
	assert.Equal(t, "transfer(address,uint256)", transferFunction().CanonicalSignature())
}

func Test_HashStability(t *testing.T) {
	// keccak256("Transfer(address,address,uint256)") is the well-known
	// ERC-20 Transfer topic0
	topic0 := transferEvent().Hash()
	assert.Equal(t,
		"ddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
		hex.EncodeToString(topic0),
	)

	// function selectors keep only the first 4 bytes
	selector := transferFunction().Hash()
	assert.Equal(t, "a9059cbb", hex.EncodeToString(selector))
	assert.Len(t, selector, 4)
}

func Test_NumIndexedArgs(t *testing.T) {
	assert.Equal(t, 2, transferEvent().NumIndexedArgs())
	assert.Equal(t, 0, transferFunction().NumIndexedArgs())
}

func Test_FullSignature(t *testing.T) {
	assert.Equal(t,
		"event Transfer(address indexed from, address indexed to, uint256 value)",
		transferEvent().FullSignature(),
	)
	assert.Equal(t,
		"function transfer(address to, uint256 amount) returns (bool)",
		transferFunction().FullSignature(),
	)
}

func Test_ParseFullSignature_Event(t *testing.T) {
	item, err := ParseFullSignature("event Transfer(address indexed from, address indexed to, uint256 value)")
	require.NoError(t, err)
	assert.Equal(t, KindEvent, item.Kind)
	assert.Equal(t, "Transfer", item.Name)
	require.Len(t, item.Inputs, 3)
	assert.True(t, item.Inputs[0].Indexed)
	assert.Equal(t, "from", item.Inputs[0].Name)
	assert.True(t, item.Inputs[1].Indexed)
	assert.False(t, item.Inputs[2].Indexed)
	assert.Equal(t, "value", item.Inputs[2].Name)
	assert.Equal(t, "Transfer(address,address,uint256)", item.CanonicalSignature())
}

func Test_ParseFullSignature_Function(t *testing.T) {
	item, err := ParseFullSignature("function transfer(address to, uint256 amount) returns (bool)")
	require.NoError(t, err)
	assert.Equal(t, KindFunction, item.Kind)
	require.Len(t, item.Inputs, 2)
	assert.Equal(t, "to", item.Inputs[0].Name)
	assert.Equal(t, "amount", item.Inputs[1].Name)
	require.Len(t, item.Outputs, 1)
	assert.Equal(t, typeParser.KindBool, item.Outputs[0].Type.Kind)
}

func Test_ParseFullSignature_RoundTrip(t *testing.T) {
	signatures := []string{
		"event Transfer(address indexed from, address indexed to, uint256 value)",
		"event Data(bytes data)",
		"event Anonymous(uint256)",
		"function transfer(address to, uint256 amount) returns (bool)",
		"function swap((address,uint256)[] orders, bytes32 salt)",
		"function noop()",
	}
	for _, sig := range signatures {
		t.Run(sig, func(t *testing.T) {
			item, err := ParseFullSignature(sig)
			require.NoError(t, err)
			assert.Equal(t, sig, item.FullSignature())
		})
	}
}

func Test_ParseFullSignature_Errors(t *testing.T) {
	inputs := []string{
		"",
		"Transfer(address,address,uint256)",
		"event Transfer",
		"event (address)",
		"function transfer(address to uint256 amount)",
		"function transfer(address to) trailing",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := ParseFullSignature(input)
			require.Error(t, err)
		})
	}
}

func Test_RowID(t *testing.T) {
	item := transferEvent()
	full := []string{"hash", "full_signature", "address"}

	id := item.RowID(full)
	assert.Contains(t, id, "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	assert.Contains(t, id, item.FullSignature())
	assert.Contains(t, id, item.Address.Hex())

	hashOnly := item.RowID([]string{"hash"})
	assert.Equal(t, "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", hashOnly)

	// ids are stable across calls
	assert.Equal(t, id, item.RowID(full))
}
