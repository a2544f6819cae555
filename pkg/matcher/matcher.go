// Package matcher joins raw log/trace tables with the signature index.
//
// Two algorithms are supported: "hash" left-joins on the signature hash
// alone, resolving collisions with a precomputed majority vote over the
// index; "hash_address" left-joins on (hash, contract address). Unmatched
// rows pass through with null ABI columns, and output row order always
// equals input row order.
package matcher

import (
	"sort"

	"go.uber.org/zap"

	"github.com/yulesa/glaciers/internal/config"
	"github.com/yulesa/glaciers/pkg/abiReader"
	"github.com/yulesa/glaciers/pkg/dataframe"
	"github.com/yulesa/glaciers/pkg/signatures"

	"github.com/pkg/errors"
)

// Matcher joins raw record tables against a signature index.
type Matcher struct {
	logger *zap.Logger
}

// NewMatcher creates a Matcher.
func NewMatcher(l *zap.Logger) *Matcher {
	if l == nil {
		l = zap.NewNop()
	}
	return &Matcher{logger: l}
}

// MatchLogsByTopic0 joins logs with the index on topic0 alone, using the
// majority signature for colliding hashes.
func (m *Matcher) MatchLogsByTopic0(logs, index *dataframe.Table, alias config.LogAliasConfig) (*dataframe.Table, error) {
	return m.matchByHash(logs, index, alias.Topic0)
}

// MatchLogsByTopic0Address joins logs with the index on (topic0, address).
func (m *Matcher) MatchLogsByTopic0Address(logs, index *dataframe.Table, alias config.LogAliasConfig) (*dataframe.Table, error) {
	return m.matchByHashAddress(logs, index, alias.Topic0, alias.Address)
}

// MatchTracesBySelector joins traces with the index on the 4-byte selector
// alone, using the majority signature for colliding selectors.
func (m *Matcher) MatchTracesBySelector(traces, index *dataframe.Table, alias config.TraceAliasConfig) (*dataframe.Table, error) {
	return m.matchByHash(traces, index, alias.Selector)
}

// MatchTracesBySelectorAddress joins traces with the index on (selector,
// called address).
func (m *Matcher) MatchTracesBySelectorAddress(traces, index *dataframe.Table, alias config.TraceAliasConfig) (*dataframe.Table, error) {
	return m.matchByHashAddress(traces, index, alias.Selector, alias.ActionTo)
}

// abiColumns is the set of index columns carried onto matched rows.
var abiColumns = []string{
	abiReader.ColFullSignature,
	abiReader.ColName,
	abiReader.ColAnonymous,
	abiReader.ColNumIndexedArgs,
	abiReader.ColStateMutability,
	abiReader.ColID,
}

func (m *Matcher) matchByHash(raw, index *dataframe.Table, hashColName string) (*dataframe.Table, error) {
	hashCol := raw.Column(hashColName)
	if hashCol == nil {
		return nil, errors.Errorf("raw table has no %q column", hashColName)
	}
	lookup := m.majorityLookup(index)

	rowFor := func(i int) (int, bool) {
		key, ok := hashCol.Binary(i)
		if !ok {
			return 0, false
		}
		idx, ok := lookup[string(key)]
		return idx, ok
	}
	return appendAbiColumns(raw, index, rowFor)
}

func (m *Matcher) matchByHashAddress(raw, index *dataframe.Table, hashColName, addrColName string) (*dataframe.Table, error) {
	hashCol := raw.Column(hashColName)
	if hashCol == nil {
		return nil, errors.Errorf("raw table has no %q column", hashColName)
	}
	addrCol := raw.Column(addrColName)
	if addrCol == nil {
		return nil, errors.Errorf("raw table has no %q column", addrColName)
	}
	lookup := m.hashAddressLookup(index)

	rowFor := func(i int) (int, bool) {
		hash, ok := hashCol.Binary(i)
		if !ok {
			return 0, false
		}
		addr, ok := addrCol.Binary(i)
		if !ok {
			return 0, false
		}
		idx, ok := lookup[joinKey(hash, addr)]
		return idx, ok
	}
	return appendAbiColumns(raw, index, rowFor)
}

// majorityLookup precomputes, for each hash in the index, the row of its
// majority signature: the full signature appearing for the most distinct
// contracts, ties broken by lexicographic order of the canonical signature.
// Computed once per index, never per record.
func (m *Matcher) majorityLookup(index *dataframe.Table) map[string]int {
	hashCol := index.Column(abiReader.ColHash)
	sigCol := index.Column(abiReader.ColFullSignature)
	addrCol := index.Column(abiReader.ColAddress)
	anonCol := index.Column(abiReader.ColAnonymous)

	type candidate struct {
		firstRow  int
		addresses map[string]bool
	}
	byHash := make(map[string]map[string]*candidate)
	for i := 0; i < index.Height(); i++ {
		if isAnonymous(anonCol, i) {
			continue
		}
		hash, ok := hashCol.Binary(i)
		if !ok {
			continue
		}
		sig, _ := sigCol.Str(i)
		group, ok := byHash[string(hash)]
		if !ok {
			group = make(map[string]*candidate)
			byHash[string(hash)] = group
		}
		cand, ok := group[sig]
		if !ok {
			cand = &candidate{firstRow: i, addresses: make(map[string]bool)}
			group[sig] = cand
		}
		if addr, ok := addrCol.Binary(i); ok {
			cand.addresses[string(addr)] = true
		}
	}

	lookup := make(map[string]int, len(byHash))
	for hash, group := range byHash {
		sigs := make([]string, 0, len(group))
		for sig := range group {
			sigs = append(sigs, sig)
		}
		sort.Slice(sigs, func(a, b int) bool {
			return canonicalOf(sigs[a]) < canonicalOf(sigs[b])
		})
		best := sigs[0]
		for _, sig := range sigs[1:] {
			if len(group[sig].addresses) > len(group[best].addresses) {
				best = sig
			}
		}
		if len(group) > 1 {
			m.logger.Sugar().Debugw("hash collision resolved by majority vote",
				zap.Int("candidates", len(group)),
				zap.String("chosen", best),
				zap.Int("contracts", len(group[best].addresses)),
			)
		}
		lookup[hash] = group[best].firstRow
	}
	return lookup
}

// canonicalOf derives the canonical signature for tie-breaking; a full
// signature that fails to parse falls back to itself.
func canonicalOf(fullSignature string) string {
	item, err := signatures.ParseFullSignature(fullSignature)
	if err != nil {
		return fullSignature
	}
	return item.CanonicalSignature()
}

// hashAddressLookup precomputes the (hash, address) join key map. When the
// unique key admits several signatures for one (hash, address) pair, the
// lexicographically smallest full signature wins for determinism.
func (m *Matcher) hashAddressLookup(index *dataframe.Table) map[string]int {
	hashCol := index.Column(abiReader.ColHash)
	sigCol := index.Column(abiReader.ColFullSignature)
	addrCol := index.Column(abiReader.ColAddress)
	anonCol := index.Column(abiReader.ColAnonymous)

	lookup := make(map[string]int, index.Height())
	for i := 0; i < index.Height(); i++ {
		if isAnonymous(anonCol, i) {
			continue
		}
		hash, ok := hashCol.Binary(i)
		if !ok {
			continue
		}
		addr, ok := addrCol.Binary(i)
		if !ok {
			continue
		}
		key := joinKey(hash, addr)
		if prev, exists := lookup[key]; exists {
			prevSig, _ := sigCol.Str(prev)
			sig, _ := sigCol.Str(i)
			if sig >= prevSig {
				continue
			}
		}
		lookup[key] = i
	}
	return lookup
}

// isAnonymous reports whether the index row declares an anonymous event.
// Anonymous events have no topic0 on chain and are excluded from matching.
func isAnonymous(anonCol *dataframe.Column, i int) bool {
	if anonCol == nil {
		return false
	}
	v, ok := anonCol.BoolAt(i)
	return ok && v
}

func joinKey(hash, addr []byte) string {
	key := make([]byte, 0, len(hash)+len(addr))
	key = append(key, hash...)
	key = append(key, addr...)
	return string(key)
}

// appendAbiColumns builds the joined table: the raw columns untouched, plus
// the ABI columns of the matched index row (or nulls) for every raw row.
func appendAbiColumns(raw, index *dataframe.Table, rowFor func(int) (int, bool)) (*dataframe.Table, error) {
	out := raw.Slice(0, raw.Height())
	for _, name := range abiColumns {
		src := index.Column(name)
		if src == nil {
			return nil, errors.Errorf("signature index has no %q column", name)
		}
		dst := dataframe.NewColumn(name, src.Type)
		for i := 0; i < raw.Height(); i++ {
			if idx, ok := rowFor(i); ok {
				dst.AppendFrom(src, idx)
			} else {
				dst.AppendNull()
			}
		}
		if err := out.AddColumn(dst); err != nil {
			return nil, err
		}
	}
	return out, nil
}
