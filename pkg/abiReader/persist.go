package abiReader

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/yulesa/glaciers/internal/config"
	"github.com/yulesa/glaciers/pkg/dataframe"
)

// csvIndexRow is the gocsv-shaped record used for csv persistence of the
// signature index. Binary columns travel as 0x-prefixed hex.
type csvIndexRow struct {
	Address         string  `csv:"address"`
	Hash            string  `csv:"hash"`
	FullSignature   string  `csv:"full_signature"`
	Name            string  `csv:"name"`
	Anonymous       *bool   `csv:"anonymous"`
	NumIndexedArgs  *int64  `csv:"num_indexed_args"`
	StateMutability *string `csv:"state_mutability"`
	ID              string  `csv:"id"`
}

// WriteIndexFile persists the signature index table as parquet or csv,
// selected by the path extension. The write is atomic.
func WriteIndexFile(t *dataframe.Table, path string, cfg config.AbiReaderConfig) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		if cfg.OutputHexStringEncoding {
			t = dataframe.BinaryColumnsToHexString(t)
		}
		return dataframe.WriteFileAtomic(t, path)
	case ".csv":
		return writeIndexCsv(t, path)
	default:
		return errors.Errorf("index file %s must have a .parquet or .csv extension", path)
	}
}

func writeIndexCsv(t *dataframe.Table, path string) error {
	rows := make([]*csvIndexRow, 0, t.Height())
	hexed := dataframe.BinaryColumnsToHexString(t)
	for i := 0; i < hexed.Height(); i++ {
		row := &csvIndexRow{}
		row.Address, _ = hexed.Column(ColAddress).Str(i)
		row.Hash, _ = hexed.Column(ColHash).Str(i)
		row.FullSignature, _ = hexed.Column(ColFullSignature).Str(i)
		row.Name, _ = hexed.Column(ColName).Str(i)
		row.ID, _ = hexed.Column(ColID).Str(i)
		if v, ok := hexed.Column(ColAnonymous).BoolAt(i); ok {
			row.Anonymous = &v
		}
		if v, ok := hexed.Column(ColNumIndexedArgs).Int64At(i); ok {
			row.NumIndexedArgs = &v
		}
		if v, ok := hexed.Column(ColStateMutability).Str(i); ok {
			row.StateMutability = &v
		}
		rows = append(rows, row)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "creating temp file for %s", path)
	}
	tmpPath := tmp.Name()
	if err := gocsv.MarshalFile(&rows, tmp); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "writing %s", path)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// ReadIndexFile loads a persisted signature index and normalizes the hash
// and address columns to binary regardless of how the file encoded them.
func ReadIndexFile(path string) (*dataframe.Table, error) {
	var t *dataframe.Table
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		var err error
		t, err = dataframe.ReadFile(path, nil)
		if err != nil {
			return nil, err
		}
	case ".csv":
		rows, err := readIndexCsv(path)
		if err != nil {
			return nil, err
		}
		t, err = ToTable(rows)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.Errorf("index file %s must have a .parquet or .csv extension", path)
	}
	return dataframe.HexStringColumnsToBinary(t, []string{ColHash, ColAddress})
}

func readIndexCsv(path string) ([]*Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	var csvRows []*csvIndexRow
	if err := gocsv.UnmarshalFile(f, &csvRows); err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	rows := make([]*Row, 0, len(csvRows))
	for _, cr := range csvRows {
		row := &Row{
			Address:         common.HexToAddress(cr.Address),
			Hash:            common.FromHex(cr.Hash),
			FullSignature:   cr.FullSignature,
			Name:            cr.Name,
			Anonymous:       cr.Anonymous,
			NumIndexedArgs:  cr.NumIndexedArgs,
			StateMutability: cr.StateMutability,
			ID:              cr.ID,
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// UpdateIndexFile merges newly scanned ABI rows into an existing persisted
// index: rows whose id is already present are kept as-is, new ids are
// appended, and the combined index is written back. A missing index file
// starts from empty.
func (r *AbiReader) UpdateIndexFile(indexPath, abiFolderPath string, cfg config.AbiReaderConfig) (*dataframe.Table, error) {
	var existing *dataframe.Table
	if _, err := os.Stat(indexPath); err == nil {
		existing, err = ReadIndexFile(indexPath)
		if err != nil {
			return nil, err
		}
	} else {
		existing, err = ToTable(nil)
		if err != nil {
			return nil, err
		}
	}

	scanned, err := r.ReadFolder(abiFolderPath, cfg)
	if err != nil {
		return nil, err
	}

	existingIDs := make(map[string]bool, existing.Height())
	idCol := existing.Column(ColID)
	for i := 0; i < existing.Height(); i++ {
		id, _ := idCol.Str(i)
		existingIDs[id] = true
	}

	newRows := make([]*Row, 0, len(scanned))
	for _, row := range scanned {
		if !existingIDs[row.ID] {
			newRows = append(newRows, row)
		}
	}
	if len(newRows) == 0 {
		r.logger.Sugar().Infow("no new signatures found in the scanned files",
			zap.String("abiFolder", abiFolderPath),
		)
		return existing, nil
	}
	r.logger.Sugar().Infow("new signatures found",
		zap.Int("count", len(newRows)),
		zap.String("abiFolder", abiFolderPath),
	)

	newTable, err := ToTable(newRows)
	if err != nil {
		return nil, err
	}
	combined, err := dataframe.Concat([]*dataframe.Table{existing, newTable})
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating directory for %s", indexPath)
	}
	if err := WriteIndexFile(combined, indexPath, cfg); err != nil {
		return nil, err
	}
	return combined, nil
}
