// Package chain provides read-only access to an EVM JSON-RPC node.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Client defines the chain queries used for payment verification.
// Lookups return (nil, nil) when the node does not know the object.
type Client interface {
	// GetTransaction retrieves a transaction by hash.
	GetTransaction(ctx context.Context, hash common.Hash) (*Transaction, error)

	// GetReceipt retrieves the receipt of a mined transaction.
	GetReceipt(ctx context.Context, hash common.Hash) (*Receipt, error)

	// BlockNumber returns the latest block height.
	BlockNumber(ctx context.Context) (uint64, error)

	// ChainID returns the chain id reported by the node.
	ChainID(ctx context.Context) (*big.Int, error)

	// GetLogs returns logs matching the filter.
	GetLogs(ctx context.Context, filter LogFilter) ([]Log, error)
}

// ReceiptStatusSuccessful is the receipt status of a successful transaction.
const ReceiptStatusSuccessful uint64 = 1

// Transaction is the subset of an EVM transaction needed for verification.
type Transaction struct {
	Hash        common.Hash
	From        common.Address
	To          *common.Address // nil for contract creation
	Value       *big.Int
	BlockNumber *uint64 // nil while pending
}

// Receipt is the subset of a transaction receipt needed for verification.
type Receipt struct {
	TxHash      common.Hash
	Status      uint64
	BlockNumber uint64
	Logs        []Log
}

// Succeeded reports whether the receipt carries the success status.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == ReceiptStatusSuccessful
}

// Log is a contract event log.
type Log struct {
	Address     common.Address
	Topics      []common.Hash
	Data        []byte
	BlockNumber uint64
	TxHash      common.Hash
	Index       uint
	Removed     bool
}

// LogFilter selects logs for GetLogs.
// A nil entry in Topics matches any value at that position.
type LogFilter struct {
	FromBlock uint64
	ToBlock   uint64
	Addresses []common.Address
	Topics    [][]common.Hash
}
