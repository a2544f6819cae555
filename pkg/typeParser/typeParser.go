// Package typeParser parses Solidity type strings into a structured type
// tree and prints them back in canonical form. The tree is a plain tagged
// variant; all decoding traversal is a depth-first walk over it.
package typeParser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Kind discriminates the variants of a SolType.
type Kind int

const (
	KindAddress Kind = iota
	KindBool
	KindString
	KindBytes
	KindFixedBytes
	KindUint
	KindInt
	KindFixedArray
	KindDynamicArray
	KindTuple
)

// MalformedTypeError reports a type string that could not be parsed.
type MalformedTypeError struct {
	Input  string
	Reason string
}

func (e *MalformedTypeError) Error() string {
	return fmt.Sprintf("malformed type %q: %s", e.Input, e.Reason)
}

func malformed(input, reason string) error {
	return &MalformedTypeError{Input: input, Reason: reason}
}

// Component is one member of a tuple type, with an optional name.
type Component struct {
	Name string
	Type *SolType
}

// SolType is a recursive representation of a Solidity type.
//
//   - KindUint / KindInt use Bits (8..256, multiple of 8)
//   - KindFixedBytes uses Size (1..32)
//   - KindFixedArray uses Elem and ArrayLen (> 0)
//   - KindDynamicArray uses Elem
//   - KindTuple uses Components
type SolType struct {
	Kind       Kind
	Bits       int
	Size       int
	ArrayLen   int
	Elem       *SolType
	Components []Component
}

// Parse parses a Solidity type string such as "uint256", "address[]",
// "uint256[3][]" or "(address,uint256)[2]" into a type tree.
func Parse(s string) (*SolType, error) {
	p := &parser{input: s, pos: 0}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.input) {
		return nil, malformed(s, fmt.Sprintf("unexpected trailing input at position %d", p.pos))
	}
	return t, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) parseType() (*SolType, error) {
	var base *SolType
	var err error
	if p.pos < len(p.input) && p.input[p.pos] == '(' {
		base, err = p.parseTuple()
	} else {
		base, err = p.parseAtom()
	}
	if err != nil {
		return nil, err
	}
	return p.parseArraySuffixes(base)
}

// parseAtom consumes an elementary type name up to the next '[', ',', '(' or ')'.
func (p *parser) parseAtom() (*SolType, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '[' || c == ',' || c == ')' || c == '(' {
			break
		}
		p.pos++
	}
	name := p.input[start:p.pos]
	if name == "" {
		return nil, malformed(p.input, "empty type name")
	}
	return atomFromName(p.input, name)
}

func atomFromName(input, name string) (*SolType, error) {
	switch name {
	case "address":
		return &SolType{Kind: KindAddress}, nil
	case "bool":
		return &SolType{Kind: KindBool}, nil
	case "string":
		return &SolType{Kind: KindString}, nil
	case "bytes":
		return &SolType{Kind: KindBytes}, nil
	case "uint":
		return &SolType{Kind: KindUint, Bits: 256}, nil
	case "int":
		return &SolType{Kind: KindInt, Bits: 256}, nil
	case "byte":
		return &SolType{Kind: KindFixedBytes, Size: 1}, nil
	case "function":
		// encoded as an address plus a selector packed in 24 bytes
		return &SolType{Kind: KindFixedBytes, Size: 24}, nil
	}
	if strings.HasPrefix(name, "fixed") || strings.HasPrefix(name, "ufixed") {
		return nil, malformed(input, "fixed-point types are not supported")
	}
	if rest, ok := strings.CutPrefix(name, "uint"); ok {
		bits, err := parseIntWidth(input, rest)
		if err != nil {
			return nil, err
		}
		return &SolType{Kind: KindUint, Bits: bits}, nil
	}
	if rest, ok := strings.CutPrefix(name, "int"); ok {
		bits, err := parseIntWidth(input, rest)
		if err != nil {
			return nil, err
		}
		return &SolType{Kind: KindInt, Bits: bits}, nil
	}
	if rest, ok := strings.CutPrefix(name, "bytes"); ok {
		size, err := strconv.Atoi(rest)
		if err != nil {
			return nil, malformed(input, fmt.Sprintf("invalid bytes width %q", rest))
		}
		if size < 1 || size > 32 {
			return nil, malformed(input, fmt.Sprintf("bytes width %d out of range [1,32]", size))
		}
		return &SolType{Kind: KindFixedBytes, Size: size}, nil
	}
	return nil, malformed(input, fmt.Sprintf("unknown type %q", name))
}

func parseIntWidth(input, s string) (int, error) {
	bits, err := strconv.Atoi(s)
	if err != nil {
		return 0, malformed(input, fmt.Sprintf("invalid integer width %q", s))
	}
	if bits < 8 || bits > 256 || bits%8 != 0 {
		return 0, malformed(input, fmt.Sprintf("integer width %d must be a multiple of 8 in [8,256]", bits))
	}
	return bits, nil
}

func (p *parser) parseTuple() (*SolType, error) {
	// consume '('
	p.pos++
	t := &SolType{Kind: KindTuple}
	if p.pos < len(p.input) && p.input[p.pos] == ')' {
		// empty tuple, the unit return type
		p.pos++
		return t, nil
	}
	for {
		member, err := p.parseType()
		if err != nil {
			return nil, err
		}
		t.Components = append(t.Components, Component{Type: member})
		if p.pos >= len(p.input) {
			return nil, malformed(p.input, "unterminated tuple")
		}
		switch p.input[p.pos] {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return t, nil
		default:
			return nil, malformed(p.input, fmt.Sprintf("unexpected character %q in tuple", p.input[p.pos]))
		}
	}
}

// parseArraySuffixes wraps base with each "[N]" / "[]" suffix in order, so the
// last suffix becomes the outermost type.
func (p *parser) parseArraySuffixes(base *SolType) (*SolType, error) {
	t := base
	for p.pos < len(p.input) && p.input[p.pos] == '[' {
		end := strings.IndexByte(p.input[p.pos:], ']')
		if end < 0 {
			return nil, malformed(p.input, "unterminated array suffix")
		}
		inner := p.input[p.pos+1 : p.pos+end]
		p.pos += end + 1
		if inner == "" {
			t = &SolType{Kind: KindDynamicArray, Elem: t}
			continue
		}
		n, err := strconv.Atoi(inner)
		if err != nil || n <= 0 {
			return nil, malformed(p.input, fmt.Sprintf("invalid array length %q", inner))
		}
		t = &SolType{Kind: KindFixedArray, Elem: t, ArrayLen: n}
	}
	return t, nil
}

// Canonical prints the type in the exact string form signature hashes are
// computed over: explicit widths, no names, no spaces.
func (t *SolType) Canonical() string {
	var sb strings.Builder
	t.writeCanonical(&sb)
	return sb.String()
}

func (t *SolType) writeCanonical(sb *strings.Builder) {
	switch t.Kind {
	case KindAddress:
		sb.WriteString("address")
	case KindBool:
		sb.WriteString("bool")
	case KindString:
		sb.WriteString("string")
	case KindBytes:
		sb.WriteString("bytes")
	case KindFixedBytes:
		fmt.Fprintf(sb, "bytes%d", t.Size)
	case KindUint:
		fmt.Fprintf(sb, "uint%d", t.Bits)
	case KindInt:
		fmt.Fprintf(sb, "int%d", t.Bits)
	case KindFixedArray:
		t.Elem.writeCanonical(sb)
		fmt.Fprintf(sb, "[%d]", t.ArrayLen)
	case KindDynamicArray:
		t.Elem.writeCanonical(sb)
		sb.WriteString("[]")
	case KindTuple:
		sb.WriteByte('(')
		for i, c := range t.Components {
			if i > 0 {
				sb.WriteByte(',')
			}
			c.Type.writeCanonical(sb)
		}
		sb.WriteByte(')')
	}
}

// String returns the canonical form.
func (t *SolType) String() string {
	return t.Canonical()
}

// IsDynamic reports whether the type uses the dynamic (offset-addressed)
// encoding: string, bytes, dynamic arrays, and any aggregate transitively
// containing a dynamic member.
func (t *SolType) IsDynamic() bool {
	switch t.Kind {
	case KindString, KindBytes, KindDynamicArray:
		return true
	case KindFixedArray:
		return t.Elem.IsDynamic()
	case KindTuple:
		for _, c := range t.Components {
			if c.Type.IsDynamic() {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// HeadSize returns the number of bytes the type occupies in its enclosing
// head region: 32 for dynamic types (the offset word) and for single-slot
// static types, and the inline size for static aggregates.
func (t *SolType) HeadSize() int {
	if t.IsDynamic() {
		return 32
	}
	switch t.Kind {
	case KindFixedArray:
		return t.ArrayLen * t.Elem.HeadSize()
	case KindTuple:
		size := 0
		for _, c := range t.Components {
			size += c.Type.HeadSize()
		}
		return size
	default:
		return 32
	}
}

// MustParse parses s and panics on error. For tests and static tables.
func MustParse(s string) *SolType {
	t, err := Parse(s)
	if err != nil {
		panic(errors.Wrap(err, "MustParse"))
	}
	return t
}
