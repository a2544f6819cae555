package abiDecoder

// StructuredParam is one decoded parameter as it appears in the *_json
// output columns.
type StructuredParam struct {
	Name      string      `json:"name"`
	Index     uint32      `json:"index"`
	ValueType string      `json:"value_type"`
	Value     interface{} `json:"value"`
}
