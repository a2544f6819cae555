// Package decoder orchestrates end-to-end decoding: folder enumeration,
// per-file pipelines (read, normalize, match, chunked parallel decode,
// ordered reassembly) and atomic output writes.
//
// Parallelism is two-level: up to max_concurrent_files_decoding files run at
// once, and within a file up to max_chunk_threads_per_file chunk workers.
// The signature index is read-only after loading and shared by reference.
package decoder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/yulesa/glaciers/internal/config"
	"github.com/yulesa/glaciers/pkg/abiReader"
	"github.com/yulesa/glaciers/pkg/dataframe"
	"github.com/yulesa/glaciers/pkg/logDecoder"
	"github.com/yulesa/glaciers/pkg/matcher"
	"github.com/yulesa/glaciers/pkg/metrics"
	"github.com/yulesa/glaciers/pkg/traceDecoder"
)

// DecoderType selects the kind of raw records being decoded.
type DecoderType int

const (
	DecoderTypeLog DecoderType = iota
	DecoderTypeTrace
)

func (t DecoderType) String() string {
	if t == DecoderTypeTrace {
		return "trace"
	}
	return "log"
}

// Decoder drives the decode pipeline.
type Decoder struct {
	logger   *zap.Logger
	matcher  *matcher.Matcher
	logDec   *logDecoder.LogDecoder
	traceDec *traceDecoder.TraceDecoder
}

// NewDecoder creates a Decoder.
func NewDecoder(l *zap.Logger) *Decoder {
	if l == nil {
		l = zap.NewNop()
	}
	return &Decoder{
		logger:   l,
		matcher:  matcher.NewMatcher(l),
		logDec:   logDecoder.NewLogDecoder(l),
		traceDec: traceDecoder.NewTraceDecoder(l),
	}
}

// fileOutcome is the per-file result collected by DecodeFolder.
type fileOutcome struct {
	path string
	err  error
}

// DecodeFolder decodes every file in folderPath against the signature index
// at abiDBPath. Files run in parallel, bounded by
// max_concurrent_files_decoding. A file that fails does not stop the others;
// the returned error summarizes the failures.
func (d *Decoder) DecodeFolder(ctx context.Context, folderPath, abiDBPath string, decoderType DecoderType) error {
	cfg := config.Get()

	entries, err := os.ReadDir(folderPath)
	if err != nil {
		return errors.Wrapf(err, "reading folder %s", folderPath)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, filepath.Join(folderPath, e.Name()))
	}

	index, err := abiReader.ReadIndexFile(abiDBPath)
	if err != nil {
		return errors.Wrapf(err, "loading signature index %s", abiDBPath)
	}

	queue := make(chan string, len(files))
	outcomes := make(chan fileOutcome, len(files))
	workers := cfg.Decoder.MaxConcurrentFilesDecoding
	if workers > len(files) && len(files) > 0 {
		workers = len(files)
	}

	wg := &sync.WaitGroup{}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for path := range queue {
				if ctx.Err() != nil {
					outcomes <- fileOutcome{path: path, err: ctx.Err()}
					continue
				}
				_, err := d.decodeFileWithIndex(ctx, path, index, decoderType, cfg)
				outcomes <- fileOutcome{path: path, err: err}
			}
		}()
	}
	for _, path := range files {
		queue <- path
	}
	close(queue)
	wg.Wait()
	close(outcomes)

	failed := 0
	for outcome := range outcomes {
		if outcome.err != nil {
			failed++
			metrics.FilesFailed.WithLabelValues(decoderType.String()).Inc()
			d.logger.Sugar().Errorw("failed to decode file",
				zap.String("path", outcome.path),
				zap.Error(outcome.err),
			)
		} else {
			metrics.FilesDecoded.WithLabelValues(decoderType.String()).Inc()
		}
	}
	if failed > 0 {
		return errors.Errorf("%d of %d files failed to decode", failed, len(files))
	}
	d.logger.Sugar().Infow("all files processed",
		zap.Int("count", len(files)),
		zap.String("folder", folderPath),
	)
	return nil
}

// DecodeFile decodes a single file against the signature index at abiDBPath,
// writes the decoded table next to the source (in a decoded/ sibling
// directory) and returns it.
func (d *Decoder) DecodeFile(ctx context.Context, filePath, abiDBPath string, decoderType DecoderType) (*dataframe.Table, error) {
	cfg := config.Get()
	index, err := abiReader.ReadIndexFile(abiDBPath)
	if err != nil {
		return nil, errors.Wrapf(err, "loading signature index %s", abiDBPath)
	}
	return d.decodeFileWithIndex(ctx, filePath, index, decoderType, cfg)
}

func (d *Decoder) decodeFileWithIndex(ctx context.Context, filePath string, index *dataframe.Table, decoderType DecoderType, cfg config.Config) (*dataframe.Table, error) {
	d.logger.Sugar().Infow("starting decoding file", zap.String("path", filePath))

	raw, err := dataframe.ReadFile(filePath, nil)
	if err != nil {
		return nil, err
	}
	raw, err = d.normalizeRawTable(raw, decoderType, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "normalizing %s", filePath)
	}

	decoded, err := d.DecodeTableWithIndex(ctx, raw, index, decoderType, cfg)
	if err != nil {
		return nil, err
	}

	savePath := SavePathFor(filePath, decoderType, cfg.Decoder.OutputFileFormat)
	if err := os.MkdirAll(filepath.Dir(savePath), 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating output directory for %s", savePath)
	}
	if err := dataframe.WriteFileAtomic(decoded, savePath); err != nil {
		return nil, errors.Wrapf(err, "writing %s", savePath)
	}
	d.logger.Sugar().Infow("finished decoding file",
		zap.String("path", filePath),
		zap.String("savedTo", savePath),
	)
	return decoded, nil
}

// SavePathFor derives the output path for a decoded input file: a decoded/
// directory next to the input's parent folder, the base name prefixed or
// rewritten with decoded_logs/decoded_traces, and the configured extension.
func SavePathFor(filePath string, decoderType DecoderType, format config.OutputFileFormat) string {
	fileName := filepath.Base(filePath)
	stem := strings.TrimSuffix(fileName, filepath.Ext(fileName))

	marker, replacement := "logs", "decoded_logs"
	if decoderType == DecoderTypeTrace {
		marker, replacement = "traces", "decoded_traces"
	}
	var outName string
	if strings.Contains(stem, marker) {
		outName = strings.Replace(stem, marker, replacement, 1)
	} else {
		outName = replacement + "_" + stem
	}

	parent := filepath.Dir(filepath.Dir(filePath))
	return filepath.Join(parent, "decoded", outName+"."+string(format))
}

// DecodeTable decodes an in-memory raw table against the signature index at
// abiDBPath.
func (d *Decoder) DecodeTable(ctx context.Context, raw *dataframe.Table, abiDBPath string, decoderType DecoderType) (*dataframe.Table, error) {
	cfg := config.Get()
	index, err := abiReader.ReadIndexFile(abiDBPath)
	if err != nil {
		return nil, errors.Wrapf(err, "loading signature index %s", abiDBPath)
	}
	raw, err = d.normalizeRawTable(raw, decoderType, cfg)
	if err != nil {
		return nil, err
	}
	return d.DecodeTableWithIndex(ctx, raw, index, decoderType, cfg)
}

// DecodeTableUsingSingleContract builds a one-contract signature index from
// an in-memory ABI JSON blob and decodes the raw table with it.
func (d *Decoder) DecodeTableUsingSingleContract(ctx context.Context, raw *dataframe.Table, abiJSON []byte, address common.Address, decoderType DecoderType) (*dataframe.Table, error) {
	cfg := config.Get()
	readerCfg := cfg.AbiReader
	if decoderType == DecoderTypeTrace {
		readerCfg.AbiReadMode = config.AbiReadModeFunctions
	} else {
		readerCfg.AbiReadMode = config.AbiReadModeEvents
	}
	rows, err := abiReader.NewAbiReader(d.logger).ReadJSON(abiJSON, address, readerCfg)
	if err != nil {
		return nil, err
	}
	index, err := abiReader.ToTable(rows)
	if err != nil {
		return nil, err
	}
	raw, err = d.normalizeRawTable(raw, decoderType, cfg)
	if err != nil {
		return nil, err
	}
	return d.DecodeTableWithIndex(ctx, raw, index, decoderType, cfg)
}

// normalizeRawTable converts the columns declared as hex strings in the
// schema config to binary, so matching and decoding always see raw bytes.
func (d *Decoder) normalizeRawTable(raw *dataframe.Table, decoderType DecoderType, cfg config.Config) (*dataframe.Table, error) {
	var specs []config.ColumnSpec
	if decoderType == DecoderTypeTrace {
		specs = cfg.TraceDecoder.TraceSchema.Columns()
	} else {
		specs = cfg.LogDecoder.LogSchema.Columns()
	}
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		if spec.Encoding == config.EncodingHexString {
			names = append(names, spec.Name)
		}
	}
	if len(names) == 0 {
		return raw, nil
	}
	return dataframe.HexStringColumnsToBinary(raw, names)
}

// DecodeTableWithIndex matches the raw table against a pre-loaded index and
// decodes it in parallel chunks. Within the table, output row order equals
// input row order; chunks are reassembled by their index before
// concatenation.
func (d *Decoder) DecodeTableWithIndex(ctx context.Context, raw, index *dataframe.Table, decoderType DecoderType, cfg config.Config) (*dataframe.Table, error) {
	matched, err := d.match(raw, index, decoderType, cfg)
	if err != nil {
		return nil, err
	}

	chunkSize := cfg.Decoder.DecodedChunkSize
	total := matched.Height()
	numChunks := (total + chunkSize - 1) / chunkSize
	if numChunks == 0 {
		numChunks = 1
	}

	type chunkJob struct {
		idx   int
		table *dataframe.Table
	}
	jobs := make(chan chunkJob, numChunks)
	results := make([]*dataframe.Table, numChunks)
	chunkErrs := make([]error, numChunks)

	workers := cfg.Decoder.MaxChunkThreadsPerFile
	if workers > numChunks {
		workers = numChunks
	}
	wg := &sync.WaitGroup{}
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					chunkErrs[job.idx] = ctx.Err()
					continue
				}
				results[job.idx], chunkErrs[job.idx] = d.decodeChunk(job.table, decoderType, cfg)
			}
		}()
	}

	for i := 0; i < numChunks; i++ {
		start := i * chunkSize
		length := chunkSize
		if start+length > total {
			length = total - start
		}
		if length < 0 {
			length = 0
		}
		jobs <- chunkJob{idx: i, table: matched.Slice(start, length)}
	}
	close(jobs)
	wg.Wait()

	for i, chunkErr := range chunkErrs {
		if chunkErr != nil {
			return nil, errors.Wrapf(chunkErr, "chunk %d", i)
		}
	}

	decoded, err := dataframe.Concat(results)
	if err != nil {
		return nil, err
	}
	metrics.RowsDecoded.WithLabelValues(decoderType.String()).Add(float64(decoded.Height()))

	if cfg.Decoder.OutputHexStringEncoding {
		decoded = dataframe.BinaryColumnsToHexString(decoded)
	}
	return decoded, nil
}

func (d *Decoder) match(raw, index *dataframe.Table, decoderType DecoderType, cfg config.Config) (*dataframe.Table, error) {
	switch decoderType {
	case DecoderTypeTrace:
		alias := cfg.TraceDecoder.TraceSchema.TraceAlias
		if cfg.Decoder.Algorithm == config.AlgorithmHashAddress {
			return d.matcher.MatchTracesBySelectorAddress(raw, index, alias)
		}
		return d.matcher.MatchTracesBySelector(raw, index, alias)
	default:
		alias := cfg.LogDecoder.LogSchema.LogAlias
		if cfg.Decoder.Algorithm == config.AlgorithmHashAddress {
			return d.matcher.MatchLogsByTopic0Address(raw, index, alias)
		}
		return d.matcher.MatchLogsByTopic0(raw, index, alias)
	}
}

// decodeChunk runs the row-wise decoder over one chunk. A panic inside the
// chunk is recovered and fails only this file.
func (d *Decoder) decodeChunk(chunk *dataframe.Table, decoderType DecoderType, cfg config.Config) (out *dataframe.Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in chunk decoder: %v", r)
		}
	}()
	if decoderType == DecoderTypeTrace {
		return d.traceDec.DecodeTable(chunk, cfg.TraceDecoder.TraceSchema)
	}
	return d.logDec.DecodeTable(chunk, cfg.LogDecoder.LogSchema)
}
