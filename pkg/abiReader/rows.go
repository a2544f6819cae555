package abiReader

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/yulesa/glaciers/pkg/dataframe"
	"github.com/yulesa/glaciers/pkg/signatures"
)

// Signature index column names.
const (
	ColAddress         = "address"
	ColHash            = "hash"
	ColFullSignature   = "full_signature"
	ColName            = "name"
	ColAnonymous       = "anonymous"
	ColNumIndexedArgs  = "num_indexed_args"
	ColStateMutability = "state_mutability"
	ColID              = "id"
)

// Row is one signature index record. Anonymous and NumIndexedArgs are set
// only for events, StateMutability only for functions.
type Row struct {
	Address         common.Address
	Hash            []byte
	FullSignature   string
	Name            string
	Anonymous       *bool
	NumIndexedArgs  *int64
	StateMutability *string
	ID              string
}

func newRow(item *signatures.Item, uniqueKey []string) *Row {
	row := &Row{
		Address:       item.Address,
		Hash:          item.Hash(),
		FullSignature: item.FullSignature(),
		Name:          item.Name,
		ID:            item.RowID(uniqueKey),
	}
	if item.Kind == signatures.KindEvent {
		anonymous := item.Anonymous
		numIndexed := int64(item.NumIndexedArgs())
		row.Anonymous = &anonymous
		row.NumIndexedArgs = &numIndexed
	} else {
		mutability := item.StateMutability
		row.StateMutability = &mutability
	}
	return row
}

// ToTable converts rows into the signature index table.
func ToTable(rows []*Row) (*dataframe.Table, error) {
	address := dataframe.NewColumn(ColAddress, dataframe.TypeBinary)
	hash := dataframe.NewColumn(ColHash, dataframe.TypeBinary)
	fullSignature := dataframe.NewColumn(ColFullSignature, dataframe.TypeString)
	name := dataframe.NewColumn(ColName, dataframe.TypeString)
	anonymous := dataframe.NewColumn(ColAnonymous, dataframe.TypeBool)
	numIndexedArgs := dataframe.NewColumn(ColNumIndexedArgs, dataframe.TypeInt64)
	stateMutability := dataframe.NewColumn(ColStateMutability, dataframe.TypeString)
	id := dataframe.NewColumn(ColID, dataframe.TypeString)

	for _, row := range rows {
		address.AppendBinary(row.Address.Bytes())
		hash.AppendBinary(row.Hash)
		fullSignature.AppendString(row.FullSignature)
		name.AppendString(row.Name)
		if row.Anonymous != nil {
			anonymous.AppendBool(*row.Anonymous)
		} else {
			anonymous.AppendNull()
		}
		if row.NumIndexedArgs != nil {
			numIndexedArgs.AppendInt64(*row.NumIndexedArgs)
		} else {
			numIndexedArgs.AppendNull()
		}
		if row.StateMutability != nil {
			stateMutability.AppendString(*row.StateMutability)
		} else {
			stateMutability.AppendNull()
		}
		id.AppendString(row.ID)
	}

	return dataframe.NewTable(address, hash, fullSignature, name, anonymous, numIndexedArgs, stateMutability, id)
}

// IndexSchema declares the column types the signature index uses when read
// back from csv.
func IndexSchema() map[string]dataframe.ColumnType {
	return map[string]dataframe.ColumnType{
		ColAddress:         dataframe.TypeBinary,
		ColHash:            dataframe.TypeBinary,
		ColFullSignature:   dataframe.TypeString,
		ColName:            dataframe.TypeString,
		ColAnonymous:       dataframe.TypeBool,
		ColNumIndexedArgs:  dataframe.TypeInt64,
		ColStateMutability: dataframe.TypeString,
		ColID:              dataframe.TypeString,
	}
}
