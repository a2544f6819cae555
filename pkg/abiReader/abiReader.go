// Package abiReader ingests contract ABI JSON files and builds the
// signature index: one row per event/function with its canonical signature
// hash, full signature and source contract address.
//
// ABI files are named after the contract they belong to: the file stem must
// be a 0x-prefixed 20-byte hex address. Files that do not match are skipped
// with a warning, not an error, as are files that fail to parse.
package abiReader

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/yulesa/glaciers/internal/config"
	"github.com/yulesa/glaciers/pkg/signatures"
	"github.com/yulesa/glaciers/pkg/typeParser"
)

// AbiReader scans ABI sources and produces signature index rows.
type AbiReader struct {
	logger *zap.Logger
}

// NewAbiReader creates an AbiReader.
func NewAbiReader(l *zap.Logger) *AbiReader {
	if l == nil {
		l = zap.NewNop()
	}
	return &AbiReader{logger: l}
}

// jsonParam mirrors one entry of an ABI item's inputs/outputs arrays.
type jsonParam struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Indexed    bool        `json:"indexed"`
	Components []jsonParam `json:"components"`
}

// jsonItem mirrors one ABI item.
type jsonItem struct {
	Type            string      `json:"type"`
	Name            string      `json:"name"`
	Anonymous       bool        `json:"anonymous"`
	StateMutability string      `json:"stateMutability"`
	Inputs          []jsonParam `json:"inputs"`
	Outputs         []jsonParam `json:"outputs"`
}

// ReadFolder recursively scans a folder for ABI files and returns the rows
// of every file that ingests cleanly. A malformed file is reported and
// skipped; zero valid items is not an error.
func (r *AbiReader) ReadFolder(folderPath string, cfg config.AbiReaderConfig) ([]*Row, error) {
	info, err := os.Stat(folderPath)
	if err != nil {
		return nil, errors.Wrapf(err, "path does not exist: %s", folderPath)
	}
	if !info.IsDir() {
		return r.ReadFile(folderPath, cfg)
	}

	var rows []*Row
	walkErr := filepath.WalkDir(folderPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fileRows, err := r.ReadFile(path, cfg)
		if err != nil {
			r.logger.Sugar().Warnw("skipping ABI file",
				zap.String("path", path),
				zap.Error(err),
			)
			return nil
		}
		rows = append(rows, fileRows...)
		return nil
	})
	if walkErr != nil {
		return nil, errors.Wrapf(walkErr, "scanning %s", folderPath)
	}
	return dedupeRows(rows), nil
}

// ReadFile ingests a single ABI file. The file stem must parse as a
// contract address.
func (r *AbiReader) ReadFile(path string, cfg config.AbiReaderConfig) ([]*Row, error) {
	address, ok := addressFromPath(path)
	if !ok {
		return nil, errors.Errorf("file name %q is not a 0x-prefixed 20-byte hex address", filepath.Base(path))
	}
	r.logger.Sugar().Infow("reading ABI file", zap.String("path", path))

	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return r.ReadJSON(blob, address, cfg)
}

// ReadJSON ingests an in-memory ABI JSON blob for one contract. The blob is
// either a JSON array of ABI items or an object wrapping one under "abi".
func (r *AbiReader) ReadJSON(blob []byte, address common.Address, cfg config.AbiReaderConfig) ([]*Row, error) {
	var items []jsonItem
	if err := json.Unmarshal(blob, &items); err != nil {
		var wrapper struct {
			Abi []jsonItem `json:"abi"`
		}
		if err2 := json.Unmarshal(blob, &wrapper); err2 != nil || wrapper.Abi == nil {
			return nil, errors.Wrap(err, "ABI is neither a JSON array nor an object with an \"abi\" key")
		}
		items = wrapper.Abi
	}

	rows := make([]*Row, 0, len(items))
	for _, it := range items {
		var kind signatures.ItemKind
		switch it.Type {
		case "event":
			if cfg.AbiReadMode == config.AbiReadModeFunctions {
				continue
			}
			kind = signatures.KindEvent
		case "function":
			if cfg.AbiReadMode == config.AbiReadModeEvents {
				continue
			}
			kind = signatures.KindFunction
		default:
			// constructor, fallback, receive, error: not indexable
			continue
		}

		item, err := r.buildItem(kind, it, address)
		if err != nil {
			r.logger.Sugar().Warnw("skipping ABI item",
				zap.String("name", it.Name),
				zap.String("address", address.Hex()),
				zap.Error(err),
			)
			continue
		}
		rows = append(rows, newRow(item, cfg.UniqueKey))
	}
	return dedupeRows(rows), nil
}

func (r *AbiReader) buildItem(kind signatures.ItemKind, it jsonItem, address common.Address) (*signatures.Item, error) {
	item := &signatures.Item{
		Kind:    kind,
		Name:    it.Name,
		Address: address,
	}
	if kind == signatures.KindEvent {
		item.Anonymous = it.Anonymous
	} else {
		item.StateMutability = it.StateMutability
	}
	for _, p := range it.Inputs {
		t, err := paramType(p)
		if err != nil {
			return nil, err
		}
		item.Inputs = append(item.Inputs, signatures.Param{Name: p.Name, Type: t, Indexed: p.Indexed})
	}
	if kind == signatures.KindFunction {
		for _, p := range it.Outputs {
			t, err := paramType(p)
			if err != nil {
				return nil, err
			}
			item.Outputs = append(item.Outputs, signatures.Param{Name: p.Name, Type: t})
		}
	}
	return item, nil
}

// paramType resolves a JSON parameter to a type tree. Tuples arrive as the
// literal "tuple" (plus array suffixes) with the member types listed under
// components, so the tuple base is expanded before parsing.
func paramType(p jsonParam) (*typeParser.SolType, error) {
	s, err := typeString(p)
	if err != nil {
		return nil, err
	}
	return typeParser.Parse(s)
}

func typeString(p jsonParam) (string, error) {
	if !strings.HasPrefix(p.Type, "tuple") {
		return p.Type, nil
	}
	members := make([]string, 0, len(p.Components))
	for _, c := range p.Components {
		m, err := typeString(c)
		if err != nil {
			return "", err
		}
		members = append(members, m)
	}
	return "(" + strings.Join(members, ",") + ")" + p.Type[len("tuple"):], nil
}

// addressFromPath extracts the contract address from the file stem.
func addressFromPath(path string) (common.Address, bool) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if !common.IsHexAddress(stem) || !strings.HasPrefix(stem, "0x") {
		return common.Address{}, false
	}
	return common.HexToAddress(stem), true
}

// dedupeRows coalesces duplicate rows under the configured unique key; the
// last writer wins within a single ingestion run.
func dedupeRows(rows []*Row) []*Row {
	seen := make(map[string]int, len(rows))
	out := make([]*Row, 0, len(rows))
	for _, row := range rows {
		if i, ok := seen[row.ID]; ok {
			out[i] = row
			continue
		}
		seen[row.ID] = len(out)
		out = append(out, row)
	}
	return out
}
