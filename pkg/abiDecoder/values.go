package abiDecoder

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Value is one decoded parameter value. Render produces the typed string
// used in the *_values columns; JSONValue produces the JSON-natural form
// used in the *_json columns (decimal strings for big integers, hex strings
// for byte content).
type Value interface {
	Render() string
	JSONValue() interface{}
}

// AddressValue is a decoded 20-byte address.
type AddressValue struct {
	Addr common.Address
}

func (v AddressValue) Render() string {
	return fmt.Sprintf("Address(0x%s)", hex.EncodeToString(v.Addr[:]))
}

func (v AddressValue) JSONValue() interface{} {
	return "0x" + hex.EncodeToString(v.Addr[:])
}

// UintValue is a decoded unsigned integer of a declared bit width.
type UintValue struct {
	X    *big.Int
	Bits int
}

func (v UintValue) Render() string {
	return fmt.Sprintf("Uint(%s,%d)", v.X.String(), v.Bits)
}

func (v UintValue) JSONValue() interface{} {
	return v.X.String()
}

// IntValue is a decoded signed integer of a declared bit width.
type IntValue struct {
	X    *big.Int
	Bits int
}

func (v IntValue) Render() string {
	return fmt.Sprintf("Int(%s,%d)", v.X.String(), v.Bits)
}

func (v IntValue) JSONValue() interface{} {
	return v.X.String()
}

// BoolValue is a decoded boolean.
type BoolValue bool

func (v BoolValue) Render() string {
	if v {
		return "Bool(True)"
	}
	return "Bool(False)"
}

func (v BoolValue) JSONValue() interface{} {
	return bool(v)
}

// BytesValue is decoded byte content, either dynamic bytes or bytesN.
type BytesValue []byte

func (v BytesValue) Render() string {
	return fmt.Sprintf("Bytes(0x%s)", hex.EncodeToString(v))
}

func (v BytesValue) JSONValue() interface{} {
	return "0x" + hex.EncodeToString(v)
}

// StringValue is a decoded UTF-8 string. When the payload is not valid
// UTF-8, Valid is false and the raw bytes are surfaced as hex instead.
type StringValue struct {
	S     string
	Raw   []byte
	Valid bool
}

func (v StringValue) Render() string {
	if !v.Valid {
		return fmt.Sprintf("String(0x%s)", hex.EncodeToString(v.Raw))
	}
	return fmt.Sprintf("String(%q)", v.S)
}

func (v StringValue) JSONValue() interface{} {
	if !v.Valid {
		return "0x" + hex.EncodeToString(v.Raw)
	}
	return v.S
}

// ArrayValue is a decoded fixed or dynamic array.
type ArrayValue []Value

func (v ArrayValue) Render() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Render()
	}
	return fmt.Sprintf("Array([%s])", strings.Join(parts, ", "))
}

func (v ArrayValue) JSONValue() interface{} {
	out := make([]interface{}, len(v))
	for i, e := range v {
		out[i] = e.JSONValue()
	}
	return out
}

// TupleValue is a decoded tuple.
type TupleValue []Value

func (v TupleValue) Render() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Render()
	}
	return fmt.Sprintf("Tuple((%s))", strings.Join(parts, ", "))
}

func (v TupleValue) JSONValue() interface{} {
	out := make([]interface{}, len(v))
	for i, e := range v {
		out[i] = e.JSONValue()
	}
	return out
}

// IndexedHashValue is the topic word of an indexed dynamic event parameter.
// Topics store the Keccak hash of such values, not the values themselves;
// the hash is surfaced verbatim.
type IndexedHashValue common.Hash

func (v IndexedHashValue) Render() string {
	return "0x" + hex.EncodeToString(v[:])
}

func (v IndexedHashValue) JSONValue() interface{} {
	return "0x" + hex.EncodeToString(v[:])
}
