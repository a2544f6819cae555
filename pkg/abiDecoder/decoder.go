// Package abiDecoder decodes ABI-encoded byte payloads given an ordered list
// of parameter types. It implements the Solidity ABI encoding rules: 32-byte
// head slots, offset-addressed tails for dynamic types, nested tuples and
// arrays, two's-complement integers.
//
// Decoding is a pure depth-first walk of the type tree; it never suspends
// and holds no shared state, so any batch runner can call it row-wise.
package abiDecoder

import (
	"math/big"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/yulesa/glaciers/pkg/typeParser"
)

// Sentinel decode errors. Wrapped errors carry byte-position context; use
// ErrorName to recover the bare taxonomy name for error tags.
var (
	ErrUnexpectedEndOfBuffer = errors.New("UnexpectedEndOfBuffer")
	ErrInvalidOffset         = errors.New("InvalidOffset")
	ErrIntegerOverflow       = errors.New("IntegerOverflow")
	ErrInvalidUtf8           = errors.New("InvalidUtf8")
	ErrTypeMismatch          = errors.New("TypeMismatch")
)

// ErrorName returns the taxonomy name of a decode error, or "DecodeError"
// when err is not one of the sentinels.
func ErrorName(err error) string {
	for _, sentinel := range []error{
		ErrUnexpectedEndOfBuffer,
		ErrInvalidOffset,
		ErrIntegerOverflow,
		ErrInvalidUtf8,
		ErrTypeMismatch,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "DecodeError"
}

// Decoder decodes ABI-encoded payloads. The logger is used for warn-only
// conditions (dirty address words); decoding itself stays pure.
type Decoder struct {
	logger *zap.Logger
}

// NewDecoder creates a Decoder. A nil logger disables warnings.
func NewDecoder(l *zap.Logger) *Decoder {
	if l == nil {
		l = zap.NewNop()
	}
	return &Decoder{logger: l}
}

// DecodeParameters decodes data as the encoding of the given top-level
// parameter list and returns one value per parameter, aligned with params.
func (d *Decoder) DecodeParameters(params []*typeParser.SolType, data []byte) ([]Value, error) {
	return d.decodeRegion(params, data)
}

// DecodeSingleWord decodes one 32-byte word (an event topic) as a static
// type. Dynamic types cannot appear in a topic word as values; callers
// surface those as IndexedHashValue instead.
func (d *Decoder) DecodeSingleWord(t *typeParser.SolType, word []byte) (Value, error) {
	if t.IsDynamic() {
		return nil, errors.Wrapf(ErrTypeMismatch, "dynamic type %s cannot be decoded from a topic word", t)
	}
	if t.HeadSize() != 32 {
		return nil, errors.Wrapf(ErrTypeMismatch, "type %s does not fit a single topic word", t)
	}
	return d.decodeStatic(t, word, 0)
}

// decodeRegion decodes a parameter list whose head begins at region[0].
// Offsets of dynamic members are relative to the region start.
func (d *Decoder) decodeRegion(params []*typeParser.SolType, region []byte) ([]Value, error) {
	headSize := 0
	for _, t := range params {
		headSize += t.HeadSize()
	}

	values := make([]Value, len(params))
	pos := 0
	for i, t := range params {
		if t.IsDynamic() {
			offset, err := d.readOffset(region, pos, headSize)
			if err != nil {
				return nil, errors.Wrapf(err, "parameter %d (%s)", i, t)
			}
			v, err := d.decodeDynamic(t, region, offset)
			if err != nil {
				return nil, errors.Wrapf(err, "parameter %d (%s)", i, t)
			}
			values[i] = v
			pos += 32
		} else {
			v, err := d.decodeStatic(t, region, pos)
			if err != nil {
				return nil, errors.Wrapf(err, "parameter %d (%s)", i, t)
			}
			values[i] = v
			pos += t.HeadSize()
		}
	}
	return values, nil
}

// readOffset reads the 32-byte unsigned offset word at pos and validates it
// against the region bounds and the head size.
func (d *Decoder) readOffset(region []byte, pos, headSize int) (int, error) {
	word, err := d.word(region, pos)
	if err != nil {
		return 0, err
	}
	offset, err := wordToInt(word)
	if err != nil {
		return 0, errors.Wrap(ErrInvalidOffset, err.Error())
	}
	if offset >= len(region) {
		return 0, errors.Wrapf(ErrInvalidOffset, "offset %d beyond region of %d bytes", offset, len(region))
	}
	if offset < headSize {
		return 0, errors.Wrapf(ErrInvalidOffset, "offset %d points inside the %d-byte head", offset, headSize)
	}
	return offset, nil
}

func (d *Decoder) word(region []byte, pos int) ([]byte, error) {
	if pos+32 > len(region) {
		return nil, errors.Wrapf(ErrUnexpectedEndOfBuffer, "need 32 bytes at position %d, region has %d", pos, len(region))
	}
	return region[pos : pos+32], nil
}

// decodeStatic decodes a static type occupying t.HeadSize() bytes at pos.
func (d *Decoder) decodeStatic(t *typeParser.SolType, region []byte, pos int) (Value, error) {
	switch t.Kind {
	case typeParser.KindAddress:
		word, err := d.word(region, pos)
		if err != nil {
			return nil, err
		}
		for _, b := range word[:12] {
			if b != 0 {
				d.logger.Sugar().Warnw("address word has non-zero upper bytes",
					zap.String("word", common.Bytes2Hex(word)),
				)
				break
			}
		}
		return AddressValue{Addr: common.BytesToAddress(word[12:])}, nil

	case typeParser.KindBool:
		word, err := d.word(region, pos)
		if err != nil {
			return nil, err
		}
		for _, b := range word {
			if b != 0 {
				return BoolValue(true), nil
			}
		}
		return BoolValue(false), nil

	case typeParser.KindUint:
		word, err := d.word(region, pos)
		if err != nil {
			return nil, err
		}
		x := new(big.Int).SetBytes(word)
		if x.BitLen() > t.Bits {
			return nil, errors.Wrapf(ErrIntegerOverflow, "value needs %d bits, type is uint%d", x.BitLen(), t.Bits)
		}
		return UintValue{X: x, Bits: t.Bits}, nil

	case typeParser.KindInt:
		word, err := d.word(region, pos)
		if err != nil {
			return nil, err
		}
		x := twosComplement(word)
		if !fitsSigned(x, t.Bits) {
			return nil, errors.Wrapf(ErrIntegerOverflow, "value %s does not fit int%d", x, t.Bits)
		}
		return IntValue{X: x, Bits: t.Bits}, nil

	case typeParser.KindFixedBytes:
		word, err := d.word(region, pos)
		if err != nil {
			return nil, err
		}
		return BytesValue(append([]byte(nil), word[:t.Size]...)), nil

	case typeParser.KindFixedArray:
		elems := make([]Value, t.ArrayLen)
		elemSize := t.Elem.HeadSize()
		for i := 0; i < t.ArrayLen; i++ {
			v, err := d.decodeStatic(t.Elem, region, pos+i*elemSize)
			if err != nil {
				return nil, errors.Wrapf(err, "array element %d", i)
			}
			elems[i] = v
		}
		return ArrayValue(elems), nil

	case typeParser.KindTuple:
		elems := make([]Value, len(t.Components))
		p := pos
		for i, comp := range t.Components {
			v, err := d.decodeStatic(comp.Type, region, p)
			if err != nil {
				return nil, errors.Wrapf(err, "tuple member %d", i)
			}
			elems[i] = v
			p += comp.Type.HeadSize()
		}
		return TupleValue(elems), nil

	default:
		return nil, errors.Wrapf(ErrTypeMismatch, "type %s is not static", t)
	}
}

// decodeDynamic decodes a dynamic type whose encoding begins at
// region[offset].
func (d *Decoder) decodeDynamic(t *typeParser.SolType, region []byte, offset int) (Value, error) {
	switch t.Kind {
	case typeParser.KindBytes, typeParser.KindString:
		length, err := d.readLength(region, offset)
		if err != nil {
			return nil, err
		}
		start := offset + 32
		if start+length > len(region) {
			return nil, errors.Wrapf(ErrUnexpectedEndOfBuffer, "payload of %d bytes at %d exceeds region of %d", length, start, len(region))
		}
		payload := append([]byte(nil), region[start:start+length]...)
		if t.Kind == typeParser.KindBytes {
			return BytesValue(payload), nil
		}
		if !utf8.Valid(payload) {
			d.logger.Sugar().Warnw("string payload is not valid UTF-8, surfacing raw hex",
				zap.Int("length", length),
			)
			return StringValue{Raw: payload, Valid: false}, nil
		}
		return StringValue{S: string(payload), Raw: payload, Valid: true}, nil

	case typeParser.KindDynamicArray:
		length, err := d.readLength(region, offset)
		if err != nil {
			return nil, err
		}
		elemRegion := region[offset+32:]
		params := make([]*typeParser.SolType, length)
		for i := range params {
			params[i] = t.Elem
		}
		elems, err := d.decodeRegion(params, elemRegion)
		if err != nil {
			return nil, err
		}
		return ArrayValue(elems), nil

	case typeParser.KindFixedArray:
		// dynamic element type: the array body is its own head/tail region
		body := region[offset:]
		params := make([]*typeParser.SolType, t.ArrayLen)
		for i := range params {
			params[i] = t.Elem
		}
		elems, err := d.decodeRegion(params, body)
		if err != nil {
			return nil, err
		}
		return ArrayValue(elems), nil

	case typeParser.KindTuple:
		body := region[offset:]
		params := make([]*typeParser.SolType, len(t.Components))
		for i, comp := range t.Components {
			params[i] = comp.Type
		}
		elems, err := d.decodeRegion(params, body)
		if err != nil {
			return nil, err
		}
		return TupleValue(elems), nil

	default:
		return nil, errors.Wrapf(ErrTypeMismatch, "type %s is not dynamic", t)
	}
}

// readLength reads the 32-byte unsigned length word at pos.
func (d *Decoder) readLength(region []byte, pos int) (int, error) {
	word, err := d.word(region, pos)
	if err != nil {
		return 0, err
	}
	length, err := wordToInt(word)
	if err != nil {
		return 0, errors.Wrap(ErrUnexpectedEndOfBuffer, err.Error())
	}
	return length, nil
}

// wordToInt interprets a 32-byte big-endian word as a non-negative int,
// failing when the value does not fit.
func wordToInt(word []byte) (int, error) {
	for _, b := range word[:24] {
		if b != 0 {
			return 0, errors.Errorf("word value exceeds addressable range")
		}
	}
	x := new(big.Int).SetBytes(word[24:])
	if !x.IsInt64() || x.Int64() > int64(int(^uint(0)>>1)) {
		return 0, errors.Errorf("word value exceeds addressable range")
	}
	return int(x.Int64()), nil
}

// twosComplement interprets a 32-byte word as a signed 256-bit integer.
func twosComplement(word []byte) *big.Int {
	x := new(big.Int).SetBytes(word)
	if word[0]&0x80 != 0 {
		two256 := new(big.Int).Lsh(big.NewInt(1), 256)
		x.Sub(x, two256)
	}
	return x
}

// fitsSigned reports whether x fits in a signed integer of the given width.
func fitsSigned(x *big.Int, bits int) bool {
	limit := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	upper := new(big.Int).Sub(limit, big.NewInt(1))
	lower := new(big.Int).Neg(limit)
	return x.Cmp(lower) >= 0 && x.Cmp(upper) <= 0
}
