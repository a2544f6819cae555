package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Defaults(t *testing.T) {
	Reset()
	cfg := Get()
	assert.Equal(t, AlgorithmHash, cfg.Decoder.Algorithm)
	assert.Equal(t, AbiReadModeEvents, cfg.AbiReader.AbiReadMode)
	assert.Equal(t, []string{"hash", "full_signature", "address"}, cfg.AbiReader.UniqueKey)
	assert.Equal(t, OutputFormatParquet, cfg.Decoder.OutputFileFormat)
	assert.Equal(t, 16, cfg.Decoder.MaxConcurrentFilesDecoding)
	assert.Equal(t, 500_000, cfg.Decoder.DecodedChunkSize)
	assert.Equal(t, "topic0", cfg.LogDecoder.LogSchema.LogAlias.Topic0)
	assert.Equal(t, EncodingBinary, cfg.LogDecoder.LogSchema.LogDatatype.Data)
}

func Test_SetValidValues(t *testing.T) {
	Reset()
	defer Reset()

	require.NoError(t, Set("decoder.algorithm", "hash_address"))
	require.NoError(t, Set("decoder.output_file_format", "CSV"))
	require.NoError(t, Set("decoder.max_chunk_threads_per_file", 4))
	require.NoError(t, Set("abi_reader.abi_read_mode", "both"))
	require.NoError(t, Set("abi_reader.unique_key", []string{"hash"}))
	require.NoError(t, Set("abi_reader.output_hex_string_encoding", 1))
	require.NoError(t, Set("log_decoder.log_schema.log_alias.topic0", "event_hash"))
	require.NoError(t, Set("log_decoder.log_schema.log_datatype.topic0", "hexstring"))
	require.NoError(t, Set("trace_decoder.trace_schema.trace_alias.selector", "sig"))

	cfg := Get()
	assert.Equal(t, AlgorithmHashAddress, cfg.Decoder.Algorithm)
	assert.Equal(t, OutputFormatCsv, cfg.Decoder.OutputFileFormat)
	assert.Equal(t, 4, cfg.Decoder.MaxChunkThreadsPerFile)
	assert.Equal(t, AbiReadModeBoth, cfg.AbiReader.AbiReadMode)
	assert.Equal(t, []string{"hash"}, cfg.AbiReader.UniqueKey)
	assert.True(t, cfg.AbiReader.OutputHexStringEncoding)
	assert.Equal(t, "event_hash", cfg.LogDecoder.LogSchema.LogAlias.Topic0)
	assert.Equal(t, EncodingHexString, cfg.LogDecoder.LogSchema.LogDatatype.Topic0)
	assert.Equal(t, "sig", cfg.TraceDecoder.TraceSchema.TraceAlias.Selector)
}

func Test_SetInvalidValues(t *testing.T) {
	Reset()
	defer Reset()

	assert.Error(t, Set("decoder.algorithm", "magic"))
	assert.Error(t, Set("decoder.output_file_format", "xlsx"))
	assert.Error(t, Set("decoder.decoded_chunk_size", -1))
	assert.Error(t, Set("decoder.decoded_chunk_size", "many"))
	assert.Error(t, Set("abi_reader.abi_read_mode", "nothing"))
	assert.Error(t, Set("abi_reader.unique_key", []string{"hash", "color"}))
	assert.Error(t, Set("log_decoder.log_schema.log_datatype.topic0", "base64"))
	assert.Error(t, Set("no_such_section.option", true))
	assert.Error(t, Set("decoder.no_such_field", true))

	// failed sets leave the config unchanged
	cfg := Get()
	assert.Equal(t, AlgorithmHash, cfg.Decoder.Algorithm)
	assert.Equal(t, 500_000, cfg.Decoder.DecodedChunkSize)
}

func Test_LoadTOML(t *testing.T) {
	Reset()
	defer Reset()

	content := `
[decoder]
algorithm = "hash_address"
output_file_format = "csv"
decoded_chunk_size = 1000

[abi_reader]
abi_read_mode = "both"
unique_key = ["hash", "address"]

[log_decoder.log_schema.log_alias]
topic0 = "t0"

[log_decoder.log_schema.log_datatype]
topic0 = "hexstring"
`
	path := filepath.Join(t.TempDir(), "glaciers.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, LoadTOML(path))

	cfg := Get()
	assert.Equal(t, AlgorithmHashAddress, cfg.Decoder.Algorithm)
	assert.Equal(t, OutputFormatCsv, cfg.Decoder.OutputFileFormat)
	assert.Equal(t, 1000, cfg.Decoder.DecodedChunkSize)
	assert.Equal(t, AbiReadModeBoth, cfg.AbiReader.AbiReadMode)
	assert.Equal(t, []string{"hash", "address"}, cfg.AbiReader.UniqueKey)
	assert.Equal(t, "t0", cfg.LogDecoder.LogSchema.LogAlias.Topic0)
	assert.Equal(t, EncodingHexString, cfg.LogDecoder.LogSchema.LogDatatype.Topic0)
}

func Test_LoadTOML_InvalidValue(t *testing.T) {
	Reset()
	defer Reset()

	content := `
[decoder]
algorithm = "magic"
`
	path := filepath.Join(t.TempDir(), "glaciers.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.Error(t, LoadTOML(path))
}

func Test_LoadTOML_MissingFile(t *testing.T) {
	require.Error(t, LoadTOML(filepath.Join(t.TempDir(), "absent.toml")))
}

func Test_SnapshotIsolation(t *testing.T) {
	Reset()
	defer Reset()

	snapshot := Get()
	require.NoError(t, Set("decoder.algorithm", "hash_address"))

	// the earlier snapshot does not observe the change
	assert.Equal(t, AlgorithmHash, snapshot.Decoder.Algorithm)
	assert.Equal(t, AlgorithmHashAddress, Get().Decoder.Algorithm)

	// mutating a snapshot's slice does not leak into the shared config
	snapshot2 := Get()
	snapshot2.AbiReader.UniqueKey[0] = "mutated"
	assert.Equal(t, "hash", Get().AbiReader.UniqueKey[0])
}

func Test_ConcurrentReadersAndWriters(t *testing.T) {
	Reset()
	defer Reset()

	wg := &sync.WaitGroup{}
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for n := 0; n < 100; n++ {
				_ = Get()
			}
		}()
		go func() {
			defer wg.Done()
			for n := 0; n < 100; n++ {
				_ = Set("decoder.max_chunk_threads_per_file", 8)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, Get().Decoder.MaxChunkThreadsPerFile)
}
