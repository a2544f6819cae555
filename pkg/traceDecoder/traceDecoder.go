// Package traceDecoder decodes matched call traces row-wise: the function
// input tuple (selector stripped) and the output tuple, producing the
// input_* and output_* column triples.
package traceDecoder

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/yulesa/glaciers/internal/config"
	"github.com/yulesa/glaciers/pkg/abiDecoder"
	"github.com/yulesa/glaciers/pkg/dataframe"
	"github.com/yulesa/glaciers/pkg/signatures"
	"github.com/yulesa/glaciers/pkg/typeParser"
)

// Output column names appended by the trace decoder.
const (
	ColInputValues  = "input_values"
	ColInputKeys    = "input_keys"
	ColInputJSON    = "input_json"
	ColOutputValues = "output_values"
	ColOutputKeys   = "output_keys"
	ColOutputJSON   = "output_json"
)

// selectorSize is the length of the function selector prefixed to call input.
const selectorSize = 4

// DecodedTrace holds the six output column values for one decoded trace.
type DecodedTrace struct {
	InputValues  []string
	InputKeys    []string
	InputJSON    string
	OutputValues []string
	OutputKeys   []string
	OutputJSON   string
}

// TraceDecoder decodes call traces using their matched full signatures.
type TraceDecoder struct {
	logger *zap.Logger
	dec    *abiDecoder.Decoder
}

// NewTraceDecoder creates a TraceDecoder.
func NewTraceDecoder(l *zap.Logger) *TraceDecoder {
	if l == nil {
		l = zap.NewNop()
	}
	return &TraceDecoder{logger: l, dec: abiDecoder.NewDecoder(l)}
}

// DecodeTable decodes one chunk of matched traces and returns the chunk with
// the six output columns appended. Decode failures are per-row: decoded
// value columns stay null and the json columns carry an error tag.
func (d *TraceDecoder) DecodeTable(chunk *dataframe.Table, schema config.TraceSchemaConfig) (*dataframe.Table, error) {
	sigCol := chunk.Column("full_signature")
	if sigCol == nil {
		return nil, errors.New("chunk has no full_signature column, was it matched?")
	}
	inputCol := chunk.Column(schema.TraceAlias.ActionInput)
	outputCol := chunk.Column(schema.TraceAlias.ResultOutput)
	if inputCol == nil || outputCol == nil {
		return nil, errors.Errorf("chunk is missing %q or %q column", schema.TraceAlias.ActionInput, schema.TraceAlias.ResultOutput)
	}

	cols := map[string]*dataframe.Column{}
	for _, name := range []string{ColInputValues, ColInputKeys, ColInputJSON, ColOutputValues, ColOutputKeys, ColOutputJSON} {
		cols[name] = dataframe.NewColumn(name, dataframe.TypeString)
	}

	for i := 0; i < chunk.Height(); i++ {
		sig, ok := sigCol.Str(i)
		if !ok || sig == "" {
			for _, c := range cols {
				c.AppendNull()
			}
			continue
		}
		input, ok := inputCol.Binary(i)
		if !ok {
			input = nil
		}
		output, ok := outputCol.Binary(i)
		if !ok {
			output = nil
		}

		decoded, err := d.DecodeRow(sig, input, output)
		if err != nil {
			d.logger.Sugar().Debugw("failed to decode trace row",
				zap.Int("row", i),
				zap.String("signature", sig),
				zap.Error(err),
			)
			tag := errorJSON(err)
			cols[ColInputValues].AppendNull()
			cols[ColInputKeys].AppendNull()
			cols[ColInputJSON].AppendString(tag)
			cols[ColOutputValues].AppendNull()
			cols[ColOutputKeys].AppendNull()
			cols[ColOutputJSON].AppendString(tag)
			continue
		}
		cols[ColInputValues].AppendString(renderStringList(decoded.InputValues))
		cols[ColInputKeys].AppendString(renderStringList(decoded.InputKeys))
		cols[ColInputJSON].AppendString(decoded.InputJSON)
		cols[ColOutputValues].AppendString(renderStringList(decoded.OutputValues))
		cols[ColOutputKeys].AppendString(renderStringList(decoded.OutputKeys))
		cols[ColOutputJSON].AppendString(decoded.OutputJSON)
	}

	out := chunk.Slice(0, chunk.Height())
	for _, name := range []string{ColInputValues, ColInputKeys, ColInputJSON, ColOutputValues, ColOutputKeys, ColOutputJSON} {
		if err := out.AddColumn(cols[name]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DecodeRow decodes a single trace given its matched full signature, the
// raw call input (selector included) and the call output.
func (d *TraceDecoder) DecodeRow(fullSignature string, input, output []byte) (*DecodedTrace, error) {
	item, err := signatures.ParseFullSignature(fullSignature)
	if err != nil {
		return nil, err
	}
	if item.Kind != signatures.KindFunction {
		return nil, errors.Errorf("signature %q is not a function", fullSignature)
	}

	if len(input) < selectorSize {
		return nil, errors.Wrapf(abiDecoder.ErrUnexpectedEndOfBuffer, "call input of %d bytes has no selector", len(input))
	}
	inputValues, inputKeys, inputJSON, err := d.decodeSide(item.Inputs, input[selectorSize:])
	if err != nil {
		return nil, errors.Wrap(err, "call input")
	}
	outputValues, outputKeys, outputJSON, err := d.decodeSide(item.Outputs, output)
	if err != nil {
		return nil, errors.Wrap(err, "call output")
	}

	return &DecodedTrace{
		InputValues:  inputValues,
		InputKeys:    inputKeys,
		InputJSON:    inputJSON,
		OutputValues: outputValues,
		OutputKeys:   outputKeys,
		OutputJSON:   outputJSON,
	}, nil
}

// decodeSide decodes one side (inputs or outputs) of a call as a parameter
// tuple.
func (d *TraceDecoder) decodeSide(params []signatures.Param, data []byte) ([]string, []string, string, error) {
	types := make([]*typeParser.SolType, len(params))
	for i, p := range params {
		types[i] = p.Type
	}
	values, err := d.dec.DecodeParameters(types, data)
	if err != nil {
		return nil, nil, "", err
	}

	structured := make([]abiDecoder.StructuredParam, len(params))
	keys := make([]string, len(params))
	rendered := make([]string, len(params))
	for i, p := range params {
		structured[i] = abiDecoder.StructuredParam{
			Name:      p.Name,
			Index:     uint32(i),
			ValueType: p.Type.Canonical(),
			Value:     values[i].JSONValue(),
		}
		keys[i] = p.Name
		rendered[i] = values[i].Render()
	}
	b, err := json.Marshal(structured)
	if err != nil {
		return nil, nil, "", errors.Wrap(err, "marshalling json")
	}
	return rendered, keys, string(b), nil
}

func errorJSON(err error) string {
	return fmt.Sprintf(`{"error":%q}`, abiDecoder.ErrorName(err))
}

func renderStringList(items []string) string {
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}
