// Package logDecoder decodes matched event logs row-wise: topic words for
// indexed parameters, the data blob for the rest, producing the
// event_values / event_keys / event_json output columns.
package logDecoder

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/yulesa/glaciers/internal/config"
	"github.com/yulesa/glaciers/pkg/abiDecoder"
	"github.com/yulesa/glaciers/pkg/dataframe"
	"github.com/yulesa/glaciers/pkg/signatures"
	"github.com/yulesa/glaciers/pkg/typeParser"
)

// Output column names appended by the log decoder.
const (
	ColEventValues = "event_values"
	ColEventKeys   = "event_keys"
	ColEventJSON   = "event_json"
)

// DecodedEvent holds the three output column values for one decoded log.
type DecodedEvent struct {
	EventValues []string
	EventKeys   []string
	EventJSON   string
}

// LogDecoder decodes event logs using their matched full signatures.
type LogDecoder struct {
	logger *zap.Logger
	dec    *abiDecoder.Decoder
}

// NewLogDecoder creates a LogDecoder.
func NewLogDecoder(l *zap.Logger) *LogDecoder {
	if l == nil {
		l = zap.NewNop()
	}
	return &LogDecoder{logger: l, dec: abiDecoder.NewDecoder(l)}
}

// DecodeTable decodes one chunk of matched logs and returns the chunk with
// the three event output columns appended. A decode failure on a row is
// non-fatal: the row keeps null decoded values and event_json carries an
// error tag. Unmatched rows (null full_signature) pass through untouched.
func (d *LogDecoder) DecodeTable(chunk *dataframe.Table, schema config.LogSchemaConfig) (*dataframe.Table, error) {
	sigCol := chunk.Column("full_signature")
	if sigCol == nil {
		return nil, errors.New("chunk has no full_signature column, was it matched?")
	}
	topicCols := []*dataframe.Column{
		chunk.Column(schema.LogAlias.Topic0),
		chunk.Column(schema.LogAlias.Topic1),
		chunk.Column(schema.LogAlias.Topic2),
		chunk.Column(schema.LogAlias.Topic3),
	}
	dataCol := chunk.Column(schema.LogAlias.Data)
	if dataCol == nil {
		return nil, errors.Errorf("chunk has no %q column", schema.LogAlias.Data)
	}

	valuesCol := dataframe.NewColumn(ColEventValues, dataframe.TypeString)
	keysCol := dataframe.NewColumn(ColEventKeys, dataframe.TypeString)
	jsonCol := dataframe.NewColumn(ColEventJSON, dataframe.TypeString)

	for i := 0; i < chunk.Height(); i++ {
		sig, ok := sigCol.Str(i)
		if !ok || sig == "" {
			valuesCol.AppendNull()
			keysCol.AppendNull()
			jsonCol.AppendNull()
			continue
		}

		topics := make([][]byte, 0, 4)
		for _, tc := range topicCols {
			if tc == nil {
				topics = append(topics, nil)
				continue
			}
			v, ok := tc.Binary(i)
			if !ok {
				topics = append(topics, nil)
				continue
			}
			topics = append(topics, v)
		}
		data, ok := dataCol.Binary(i)
		if !ok {
			data = nil
		}

		decoded, err := d.DecodeRow(sig, topics, data)
		if err != nil {
			d.logger.Sugar().Debugw("failed to decode log row",
				zap.Int("row", i),
				zap.String("signature", sig),
				zap.Error(err),
			)
			valuesCol.AppendNull()
			keysCol.AppendNull()
			jsonCol.AppendString(errorJSON(err))
			continue
		}
		valuesCol.AppendString(renderStringList(decoded.EventValues))
		keysCol.AppendString(renderStringList(decoded.EventKeys))
		jsonCol.AppendString(decoded.EventJSON)
	}

	out := chunk.Slice(0, chunk.Height())
	for _, c := range []*dataframe.Column{valuesCol, keysCol, jsonCol} {
		if err := out.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DecodeRow decodes a single log given its matched full signature, its four
// topic slots (nil for absent topics) and its data blob.
//
// Indexed parameters come first in the output, in declaration order,
// followed by the non-indexed parameters decoded from data as a tuple.
// Indexed parameters of dynamic type surface the topic hash verbatim with
// value_type "indexed-hash".
func (d *LogDecoder) DecodeRow(fullSignature string, topics [][]byte, data []byte) (*DecodedEvent, error) {
	item, err := signatures.ParseFullSignature(fullSignature)
	if err != nil {
		return nil, err
	}
	if item.Kind != signatures.KindEvent {
		return nil, errors.Errorf("signature %q is not an event", fullSignature)
	}

	var indexedParams, dataParams []signatures.Param
	for _, p := range item.Inputs {
		if p.Indexed {
			indexedParams = append(indexedParams, p)
		} else {
			dataParams = append(dataParams, p)
		}
	}

	values := make([]abiDecoder.Value, 0, len(item.Inputs))
	for n, p := range indexedParams {
		// topic0 is the signature hash; value topics start at index 1
		slot := n + 1
		if slot >= len(topics) || topics[slot] == nil {
			return nil, errors.Wrapf(abiDecoder.ErrUnexpectedEndOfBuffer, "missing topic%d for indexed parameter %q", slot, p.Name)
		}
		if p.Type.IsDynamic() {
			values = append(values, abiDecoder.IndexedHashValue(common.BytesToHash(topics[slot])))
			continue
		}
		v, err := d.dec.DecodeSingleWord(p.Type, topics[slot])
		if err != nil {
			return nil, errors.Wrapf(err, "topic%d (%s)", slot, p.Name)
		}
		values = append(values, v)
	}

	dataTypes := make([]*typeParser.SolType, len(dataParams))
	for n, p := range dataParams {
		dataTypes[n] = p.Type
	}
	bodyValues, err := d.dec.DecodeParameters(dataTypes, data)
	if err != nil {
		return nil, errors.Wrap(err, "event data")
	}
	values = append(values, bodyValues...)

	ordered := append(append([]signatures.Param(nil), indexedParams...), dataParams...)
	structured := make([]abiDecoder.StructuredParam, len(ordered))
	keys := make([]string, len(ordered))
	rendered := make([]string, len(ordered))
	for n, p := range ordered {
		valueType := p.Type.Canonical()
		if p.Indexed && p.Type.IsDynamic() {
			valueType = "indexed-hash"
		}
		structured[n] = abiDecoder.StructuredParam{
			Name:      p.Name,
			Index:     uint32(n),
			ValueType: valueType,
			Value:     values[n].JSONValue(),
		}
		keys[n] = p.Name
		rendered[n] = values[n].Render()
	}

	eventJSON, err := json.Marshal(structured)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling event json")
	}

	return &DecodedEvent{
		EventValues: rendered,
		EventKeys:   keys,
		EventJSON:   string(eventJSON),
	}, nil
}

// errorJSON renders the per-row error tag stored in event_json.
func errorJSON(err error) string {
	return fmt.Sprintf(`{"error":%q}`, abiDecoder.ErrorName(err))
}

// renderStringList renders a list column cell as a JSON array of strings.
func renderStringList(items []string) string {
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}
