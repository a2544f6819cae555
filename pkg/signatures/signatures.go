// Package signatures models ABI items (events and functions), produces their
// canonical signatures and Keccak-256 hashes, and renders/parses the
// human-readable full signature form that the signature index stores.
package signatures

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/yulesa/glaciers/pkg/typeParser"
)

// ItemKind is the kind of an ABI item.
type ItemKind string

const (
	KindEvent    ItemKind = "event"
	KindFunction ItemKind = "function"
)

// Param is one input or output parameter of an ABI item. Indexed is
// meaningful only for event inputs.
type Param struct {
	Name    string
	Type    *typeParser.SolType
	Indexed bool
}

// Item is one event or function read from a contract ABI.
type Item struct {
	Kind            ItemKind
	Name            string
	Inputs          []Param
	Outputs         []Param
	Anonymous       bool
	StateMutability string
	Address         common.Address
}

// CanonicalSignature returns `name(T1,T2,…)` with canonical type strings,
// no parameter names and no indexed markers. The on-chain hash is computed
// over exactly this string.
func (i *Item) CanonicalSignature() string {
	var sb strings.Builder
	sb.WriteString(i.Name)
	sb.WriteByte('(')
	for n, p := range i.Inputs {
		if n > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(p.Type.Canonical())
	}
	sb.WriteByte(')')
	return sb.String()
}

// Hash returns Keccak-256 of the canonical signature. Events keep the full
// 32 bytes (topic0); functions keep the first 4 (the selector).
func (i *Item) Hash() []byte {
	digest := crypto.Keccak256([]byte(i.CanonicalSignature()))
	if i.Kind == KindFunction {
		return digest[:4]
	}
	return digest
}

// Topic0 returns the full 32-byte digest regardless of kind. The row id is
// derived from it so that event and function ids share one format.
func (i *Item) Topic0() common.Hash {
	return common.BytesToHash(crypto.Keccak256([]byte(i.CanonicalSignature())))
}

// NumIndexedArgs counts the indexed input parameters of an event.
func (i *Item) NumIndexedArgs() int {
	n := 0
	for _, p := range i.Inputs {
		if p.Indexed {
			n++
		}
	}
	return n
}

// FullSignature renders the human-readable declared form, e.g.
//
//	event Transfer(address indexed from, address indexed to, uint256 value)
//	function transfer(address to, uint256 amount) returns (bool)
func (i *Item) FullSignature() string {
	var sb strings.Builder
	sb.WriteString(string(i.Kind))
	sb.WriteByte(' ')
	sb.WriteString(i.Name)
	sb.WriteByte('(')
	writeParams(&sb, i.Inputs, i.Kind == KindEvent)
	sb.WriteByte(')')
	if i.Kind == KindFunction && len(i.Outputs) > 0 {
		sb.WriteString(" returns (")
		writeParams(&sb, i.Outputs, false)
		sb.WriteByte(')')
	}
	return sb.String()
}

func writeParams(sb *strings.Builder, params []Param, withIndexed bool) {
	for n, p := range params {
		if n > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Type.Canonical())
		if withIndexed && p.Indexed {
			sb.WriteString(" indexed")
		}
		if p.Name != "" {
			sb.WriteByte(' ')
			sb.WriteString(p.Name)
		}
	}
}

// RowID builds the stable stringified id for a signature index row. The id
// always starts with the 0x-prefixed 32-byte signature digest; the full
// signature and contract address are appended when they are part of the
// configured unique key.
func (i *Item) RowID(uniqueKey []string) string {
	id := i.Topic0().Hex()
	for _, k := range uniqueKey {
		switch k {
		case "full_signature":
			id = id + " - " + i.FullSignature()
		case "address":
			id = id + " - " + i.Address.Hex()
		}
	}
	return id
}

// ParseFullSignature parses the declared form produced by FullSignature back
// into an Item. The contract address is not part of the string and is left
// zero.
func ParseFullSignature(s string) (*Item, error) {
	s = strings.TrimSpace(s)
	item := &Item{}
	switch {
	case strings.HasPrefix(s, "event "):
		item.Kind = KindEvent
		s = s[len("event "):]
	case strings.HasPrefix(s, "function "):
		item.Kind = KindFunction
		s = s[len("function "):]
	default:
		return nil, fmt.Errorf("signature %q must start with \"event\" or \"function\"", s)
	}

	open := strings.IndexByte(s, '(')
	if open < 0 {
		return nil, fmt.Errorf("signature %q has no parameter list", s)
	}
	item.Name = strings.TrimSpace(s[:open])
	if item.Name == "" {
		return nil, fmt.Errorf("signature %q has an empty name", s)
	}

	inputsEnd, err := matchParen(s, open)
	if err != nil {
		return nil, err
	}
	inputs, err := parseParamList(s[open+1:inputsEnd], item.Kind == KindEvent)
	if err != nil {
		return nil, err
	}
	item.Inputs = inputs

	rest := strings.TrimSpace(s[inputsEnd+1:])
	if rest == "" {
		return item, nil
	}
	if item.Kind != KindFunction || !strings.HasPrefix(rest, "returns") {
		return nil, fmt.Errorf("unexpected trailing text %q in signature", rest)
	}
	rest = strings.TrimSpace(rest[len("returns"):])
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return nil, fmt.Errorf("malformed returns clause %q", rest)
	}
	outputs, err := parseParamList(rest[1:len(rest)-1], false)
	if err != nil {
		return nil, err
	}
	item.Outputs = outputs
	return item, nil
}

// matchParen returns the index of the ')' closing the '(' at open.
func matchParen(s string, open int) (int, error) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unbalanced parentheses in %q", s)
}

func parseParamList(s string, allowIndexed bool) ([]Param, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts, err := splitTopLevel(s)
	if err != nil {
		return nil, err
	}
	params := make([]Param, 0, len(parts))
	for _, part := range parts {
		p, err := parseParam(part, allowIndexed)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

// splitTopLevel splits on commas that are not nested in parentheses or
// brackets.
func splitTopLevel(s string) ([]string, error) {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced brackets in %q", s)
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced brackets in %q", s)
	}
	parts = append(parts, s[start:])
	return parts, nil
}

// parseParam parses `type [indexed] [name]`. Canonical type strings contain
// no spaces, so the first space-separated token is always the type.
func parseParam(s string, allowIndexed bool) (Param, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Param{}, fmt.Errorf("empty parameter in list")
	}
	t, err := typeParser.Parse(fields[0])
	if err != nil {
		return Param{}, err
	}
	p := Param{Type: t}
	rest := fields[1:]
	if len(rest) > 0 && rest[0] == "indexed" {
		if !allowIndexed {
			return Param{}, fmt.Errorf("indexed is only valid on event inputs: %q", s)
		}
		p.Indexed = true
		rest = rest[1:]
	}
	if len(rest) > 1 {
		return Param{}, fmt.Errorf("unexpected tokens in parameter %q", s)
	}
	if len(rest) == 1 {
		p.Name = rest[0]
	}
	return p, nil
}
