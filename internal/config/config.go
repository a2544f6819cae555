// Package config holds the process-wide glaciers configuration.
//
// The configuration is read-mostly: writers go through Set/LoadTOML and hold
// an exclusive lock, readers call Get and receive a snapshot copy. Top-level
// operations take one snapshot at entry and use it for their whole duration,
// so a concurrent config change never produces a torn read mid-operation.
package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// ColumnEncoding declares the physical encoding of a binary table column.
type ColumnEncoding string

const (
	EncodingBinary    ColumnEncoding = "binary"
	EncodingHexString ColumnEncoding = "hexstring"
)

// AbiReadMode filters which ABI item kinds the reader ingests.
type AbiReadMode string

const (
	AbiReadModeEvents    AbiReadMode = "events"
	AbiReadModeFunctions AbiReadMode = "functions"
	AbiReadModeBoth      AbiReadMode = "both"
)

// Algorithm selects the matching strategy.
type Algorithm string

const (
	AlgorithmHash        Algorithm = "hash"
	AlgorithmHashAddress Algorithm = "hash_address"
)

// OutputFileFormat is the on-disk format for decoded tables.
type OutputFileFormat string

const (
	OutputFormatParquet OutputFileFormat = "parquet"
	OutputFormatCsv     OutputFileFormat = "csv"
)

// Config is the root of all glaciers configuration sections.
type Config struct {
	Glaciers     GlaciersConfig
	Main         MainConfig
	AbiReader    AbiReaderConfig
	Decoder      DecoderConfig
	LogDecoder   LogDecoderConfig
	TraceDecoder TraceDecoderConfig
}

// GlaciersConfig holds global toggles.
type GlaciersConfig struct {
	UnnestingHexStringEncoding bool
}

// MainConfig holds the default paths used by the CLI.
type MainConfig struct {
	EventsAbiDbFilePath    string
	FunctionsAbiDbFilePath string
	AbiFolderPath          string
	RawLogsFolderPath      string
	RawTracesFolderPath    string
}

// AbiReaderConfig configures ABI ingestion.
type AbiReaderConfig struct {
	AbiReadMode             AbiReadMode
	UniqueKey               []string
	OutputHexStringEncoding bool
}

// DecoderConfig configures matching and the decode pipeline.
type DecoderConfig struct {
	Algorithm                  Algorithm
	OutputHexStringEncoding    bool
	OutputFileFormat           OutputFileFormat
	MaxConcurrentFilesDecoding int
	MaxChunkThreadsPerFile     int
	DecodedChunkSize           int
}

// ColumnSpec pairs a configured column name with its physical encoding.
type ColumnSpec struct {
	Name     string
	Encoding ColumnEncoding
}

// LogDecoderConfig configures the raw log schema.
type LogDecoderConfig struct {
	LogSchema LogSchemaConfig
}

// LogSchemaConfig remaps the raw log column names and declares their encodings.
type LogSchemaConfig struct {
	LogAlias    LogAliasConfig
	LogDatatype LogDatatypeConfig
}

type LogAliasConfig struct {
	Topic0  string
	Topic1  string
	Topic2  string
	Topic3  string
	Data    string
	Address string
}

type LogDatatypeConfig struct {
	Topic0  ColumnEncoding
	Topic1  ColumnEncoding
	Topic2  ColumnEncoding
	Topic3  ColumnEncoding
	Data    ColumnEncoding
	Address ColumnEncoding
}

// Columns returns the log binary columns with their configured encodings,
// including the address column (it participates in hash_address matching).
func (s LogSchemaConfig) Columns() []ColumnSpec {
	return []ColumnSpec{
		{s.LogAlias.Topic0, s.LogDatatype.Topic0},
		{s.LogAlias.Topic1, s.LogDatatype.Topic1},
		{s.LogAlias.Topic2, s.LogDatatype.Topic2},
		{s.LogAlias.Topic3, s.LogDatatype.Topic3},
		{s.LogAlias.Data, s.LogDatatype.Data},
		{s.LogAlias.Address, s.LogDatatype.Address},
	}
}

// TraceDecoderConfig configures the raw trace schema.
type TraceDecoderConfig struct {
	TraceSchema TraceSchemaConfig
}

type TraceSchemaConfig struct {
	TraceAlias    TraceAliasConfig
	TraceDatatype TraceDatatypeConfig
}

type TraceAliasConfig struct {
	Selector     string
	ActionInput  string
	ResultOutput string
	ActionTo     string
}

type TraceDatatypeConfig struct {
	Selector     ColumnEncoding
	ActionInput  ColumnEncoding
	ResultOutput ColumnEncoding
	ActionTo     ColumnEncoding
}

// Columns returns the trace binary columns with their configured encodings.
func (s TraceSchemaConfig) Columns() []ColumnSpec {
	return []ColumnSpec{
		{s.TraceAlias.Selector, s.TraceDatatype.Selector},
		{s.TraceAlias.ActionInput, s.TraceDatatype.ActionInput},
		{s.TraceAlias.ResultOutput, s.TraceDatatype.ResultOutput},
		{s.TraceAlias.ActionTo, s.TraceDatatype.ActionTo},
	}
}

var (
	mu      sync.RWMutex
	current = defaultConfig()
)

func defaultConfig() Config {
	return Config{
		Glaciers: GlaciersConfig{
			UnnestingHexStringEncoding: false,
		},
		Main: MainConfig{
			EventsAbiDbFilePath:    "ABIs/ethereum__events__abis.parquet",
			FunctionsAbiDbFilePath: "ABIs/ethereum__functions__abis.parquet",
			AbiFolderPath:          "ABIs/abi_database",
			RawLogsFolderPath:      "data/logs",
			RawTracesFolderPath:    "data/traces",
		},
		AbiReader: AbiReaderConfig{
			AbiReadMode:             AbiReadModeEvents,
			UniqueKey:               []string{"hash", "full_signature", "address"},
			OutputHexStringEncoding: false,
		},
		Decoder: DecoderConfig{
			Algorithm:                  AlgorithmHash,
			OutputHexStringEncoding:    false,
			OutputFileFormat:           OutputFormatParquet,
			MaxConcurrentFilesDecoding: 16,
			MaxChunkThreadsPerFile:     16,
			DecodedChunkSize:           500_000,
		},
		LogDecoder: LogDecoderConfig{
			LogSchema: LogSchemaConfig{
				LogAlias: LogAliasConfig{
					Topic0:  "topic0",
					Topic1:  "topic1",
					Topic2:  "topic2",
					Topic3:  "topic3",
					Data:    "data",
					Address: "address",
				},
				LogDatatype: LogDatatypeConfig{
					Topic0:  EncodingBinary,
					Topic1:  EncodingBinary,
					Topic2:  EncodingBinary,
					Topic3:  EncodingBinary,
					Data:    EncodingBinary,
					Address: EncodingBinary,
				},
			},
		},
		TraceDecoder: TraceDecoderConfig{
			TraceSchema: TraceSchemaConfig{
				TraceAlias: TraceAliasConfig{
					Selector:     "selector",
					ActionInput:  "action_input",
					ResultOutput: "result_output",
					ActionTo:     "action_to",
				},
				TraceDatatype: TraceDatatypeConfig{
					Selector:     EncodingBinary,
					ActionInput:  EncodingBinary,
					ResultOutput: EncodingBinary,
					ActionTo:     EncodingBinary,
				},
			},
		},
	}
}

// Get returns a snapshot copy of the current configuration.
func Get() Config {
	mu.RLock()
	defer mu.RUnlock()
	c := current
	c.AbiReader.UniqueKey = append([]string(nil), current.AbiReader.UniqueKey...)
	return c
}

// Reset restores the default configuration. Intended for tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	current = defaultConfig()
}

// Set updates a single configuration field addressed by its dotted TOML path,
// e.g. "decoder.algorithm" or "log_decoder.log_schema.log_alias.topic0".
// Invalid fields or values return an error and leave the config unchanged.
func Set(path string, value interface{}) error {
	mu.Lock()
	defer mu.Unlock()

	parts := strings.Split(path, ".")
	section := parts[0]
	rest := parts[1:]

	switch section {
	case "glaciers":
		return setGlaciers(&current.Glaciers, rest, value)
	case "main":
		return setMain(&current.Main, rest, value)
	case "abi_reader":
		return setAbiReader(&current.AbiReader, rest, value)
	case "decoder":
		return setDecoder(&current.Decoder, rest, value)
	case "log_decoder":
		return setLogDecoder(&current.LogDecoder, rest, value)
	case "trace_decoder":
		return setTraceDecoder(&current.TraceDecoder, rest, value)
	default:
		return fmt.Errorf("invalid config section %q", section)
	}
}

// LoadTOML reads a TOML config file and applies every leaf value through Set,
// so file-sourced values get the same validation as programmatic ones.
func LoadTOML(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	for _, key := range v.AllKeys() {
		if err := Set(key, v.Get(key)); err != nil {
			return err
		}
	}
	return nil
}

func setGlaciers(c *GlaciersConfig, path []string, value interface{}) error {
	if len(path) != 1 {
		return invalidField("glaciers", path)
	}
	switch path[0] {
	case "unnesting_hex_string_encoding":
		b, err := asBool(value)
		if err != nil {
			return err
		}
		c.UnnestingHexStringEncoding = b
	case "preferred_dataframe_type":
		// accepted for config file compatibility, there is a single engine
	default:
		return invalidField("glaciers", path)
	}
	return nil
}

func setMain(c *MainConfig, path []string, value interface{}) error {
	if len(path) != 1 {
		return invalidField("main", path)
	}
	s, err := asString(value)
	if err != nil {
		return err
	}
	switch path[0] {
	case "events_abi_db_file_path":
		c.EventsAbiDbFilePath = s
	case "functions_abi_db_file_path":
		c.FunctionsAbiDbFilePath = s
	case "abi_folder_path":
		c.AbiFolderPath = s
	case "raw_logs_folder_path":
		c.RawLogsFolderPath = s
	case "raw_traces_folder_path":
		c.RawTracesFolderPath = s
	default:
		return invalidField("main", path)
	}
	return nil
}

func setAbiReader(c *AbiReaderConfig, path []string, value interface{}) error {
	if len(path) != 1 {
		return invalidField("abi_reader", path)
	}
	switch path[0] {
	case "abi_read_mode":
		s, err := asString(value)
		if err != nil {
			return err
		}
		switch AbiReadMode(strings.ToLower(s)) {
		case AbiReadModeEvents, AbiReadModeFunctions, AbiReadModeBoth:
			c.AbiReadMode = AbiReadMode(strings.ToLower(s))
		default:
			return fmt.Errorf("abi_read_mode = %q, allowed values are: events, functions, both", s)
		}
	case "unique_key":
		keys, err := asStringList(value)
		if err != nil {
			return err
		}
		for i, k := range keys {
			keys[i] = strings.ToLower(k)
		}
		if err := validateUniqueKey(keys); err != nil {
			return err
		}
		c.UniqueKey = keys
	case "output_hex_string_encoding":
		b, err := asBool(value)
		if err != nil {
			return err
		}
		c.OutputHexStringEncoding = b
	default:
		return invalidField("abi_reader", path)
	}
	return nil
}

func setDecoder(c *DecoderConfig, path []string, value interface{}) error {
	if len(path) != 1 {
		return invalidField("decoder", path)
	}
	switch path[0] {
	case "algorithm":
		s, err := asString(value)
		if err != nil {
			return err
		}
		switch Algorithm(strings.ToLower(s)) {
		case AlgorithmHash, AlgorithmHashAddress:
			c.Algorithm = Algorithm(strings.ToLower(s))
		default:
			return fmt.Errorf("algorithm = %q, allowed values are: hash, hash_address", s)
		}
	case "output_hex_string_encoding":
		b, err := asBool(value)
		if err != nil {
			return err
		}
		c.OutputHexStringEncoding = b
	case "output_file_format":
		s, err := asString(value)
		if err != nil {
			return err
		}
		switch OutputFileFormat(strings.ToLower(s)) {
		case OutputFormatParquet, OutputFormatCsv:
			c.OutputFileFormat = OutputFileFormat(strings.ToLower(s))
		default:
			return fmt.Errorf("output_file_format = %q, allowed values are: parquet, csv", s)
		}
	case "max_concurrent_files_decoding":
		n, err := asPositiveInt(value)
		if err != nil {
			return err
		}
		c.MaxConcurrentFilesDecoding = n
	case "max_chunk_threads_per_file":
		n, err := asPositiveInt(value)
		if err != nil {
			return err
		}
		c.MaxChunkThreadsPerFile = n
	case "decoded_chunk_size":
		n, err := asPositiveInt(value)
		if err != nil {
			return err
		}
		c.DecodedChunkSize = n
	default:
		return invalidField("decoder", path)
	}
	return nil
}

func setLogDecoder(c *LogDecoderConfig, path []string, value interface{}) error {
	if len(path) != 3 || path[0] != "log_schema" {
		return invalidField("log_decoder", path)
	}
	switch path[1] {
	case "log_alias":
		s, err := asString(value)
		if err != nil {
			return err
		}
		switch path[2] {
		case "topic0":
			c.LogSchema.LogAlias.Topic0 = s
		case "topic1":
			c.LogSchema.LogAlias.Topic1 = s
		case "topic2":
			c.LogSchema.LogAlias.Topic2 = s
		case "topic3":
			c.LogSchema.LogAlias.Topic3 = s
		case "data":
			c.LogSchema.LogAlias.Data = s
		case "address":
			c.LogSchema.LogAlias.Address = s
		default:
			return invalidField("log_decoder", path)
		}
	case "log_datatype":
		enc, err := asEncoding(value)
		if err != nil {
			return err
		}
		switch path[2] {
		case "topic0":
			c.LogSchema.LogDatatype.Topic0 = enc
		case "topic1":
			c.LogSchema.LogDatatype.Topic1 = enc
		case "topic2":
			c.LogSchema.LogDatatype.Topic2 = enc
		case "topic3":
			c.LogSchema.LogDatatype.Topic3 = enc
		case "data":
			c.LogSchema.LogDatatype.Data = enc
		case "address":
			c.LogSchema.LogDatatype.Address = enc
		default:
			return invalidField("log_decoder", path)
		}
	default:
		return invalidField("log_decoder", path)
	}
	return nil
}

func setTraceDecoder(c *TraceDecoderConfig, path []string, value interface{}) error {
	if len(path) != 3 || path[0] != "trace_schema" {
		return invalidField("trace_decoder", path)
	}
	switch path[1] {
	case "trace_alias":
		s, err := asString(value)
		if err != nil {
			return err
		}
		switch path[2] {
		case "selector":
			c.TraceSchema.TraceAlias.Selector = s
		case "action_input":
			c.TraceSchema.TraceAlias.ActionInput = s
		case "result_output":
			c.TraceSchema.TraceAlias.ResultOutput = s
		case "action_to":
			c.TraceSchema.TraceAlias.ActionTo = s
		default:
			return invalidField("trace_decoder", path)
		}
	case "trace_datatype":
		enc, err := asEncoding(value)
		if err != nil {
			return err
		}
		switch path[2] {
		case "selector":
			c.TraceSchema.TraceDatatype.Selector = enc
		case "action_input":
			c.TraceSchema.TraceDatatype.ActionInput = enc
		case "result_output":
			c.TraceSchema.TraceDatatype.ResultOutput = enc
		case "action_to":
			c.TraceSchema.TraceDatatype.ActionTo = enc
		default:
			return invalidField("trace_decoder", path)
		}
	default:
		return invalidField("trace_decoder", path)
	}
	return nil
}

func invalidField(section string, path []string) error {
	return fmt.Errorf("invalid config field %q in section %q", strings.Join(path, "."), section)
}

func validateUniqueKey(keys []string) error {
	allowed := map[string]bool{"hash": true, "full_signature": true, "address": true}
	if len(keys) == 0 {
		return fmt.Errorf("unique_key must not be empty")
	}
	for _, k := range keys {
		if !allowed[k] {
			return fmt.Errorf("unique_key = %q, allowed values are: hash, full_signature, address", k)
		}
	}
	return nil
}

func asString(value interface{}) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("expected string value, got %T", value)
}

func asBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	case int64:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	}
	return false, fmt.Errorf("expected boolean value, got %v (%T)", value, value)
}

func asPositiveInt(value interface{}) (int, error) {
	var n int
	switch v := value.(type) {
	case int:
		n = v
	case int32:
		n = int(v)
	case int64:
		n = int(v)
	case float64:
		n = int(v)
	default:
		return 0, fmt.Errorf("expected integer value, got %T", value)
	}
	if n <= 0 {
		return 0, fmt.Errorf("expected positive integer, got %d", n)
	}
	return n, nil
}

func asEncoding(value interface{}) (ColumnEncoding, error) {
	s, err := asString(value)
	if err != nil {
		return "", err
	}
	switch ColumnEncoding(strings.ToLower(s)) {
	case EncodingBinary:
		return EncodingBinary, nil
	case EncodingHexString:
		return EncodingHexString, nil
	default:
		return "", fmt.Errorf("invalid datatype %q, allowed values are: binary, hexstring", s)
	}
}

func asStringList(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string list element, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return []string{v}, nil
	default:
		return nil, fmt.Errorf("expected string list, got %T", value)
	}
}
