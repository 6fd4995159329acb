// Package stub provides an in-memory chain.Client for tests.
package stub

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"pepu-name-service/internal/chain"
)

// Client implements chain.Client for testing.
type Client struct {
	mu           sync.RWMutex
	Transactions map[common.Hash]*chain.Transaction
	Receipts     map[common.Hash]*chain.Receipt
	Logs         []chain.Log
	Head         uint64
	ID           *big.Int

	// Err, when set, is returned by every call.
	Err error
}

// NewClient creates a new stub client.
func NewClient() *Client {
	return &Client{
		Transactions: make(map[common.Hash]*chain.Transaction),
		Receipts:     make(map[common.Hash]*chain.Receipt),
		ID:           big.NewInt(97741),
	}
}

var _ chain.Client = (*Client)(nil)

// GetTransaction returns the stored transaction or nil.
func (c *Client) GetTransaction(_ context.Context, hash common.Hash) (*chain.Transaction, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Err != nil {
		return nil, c.Err
	}
	return c.Transactions[hash], nil
}

// GetReceipt returns the stored receipt or nil.
func (c *Client) GetReceipt(_ context.Context, hash common.Hash) (*chain.Receipt, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Err != nil {
		return nil, c.Err
	}
	return c.Receipts[hash], nil
}

// BlockNumber returns Head.
func (c *Client) BlockNumber(_ context.Context) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Err != nil {
		return 0, c.Err
	}
	return c.Head, nil
}

// ChainID returns ID.
func (c *Client) ChainID(_ context.Context) (*big.Int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Err != nil {
		return nil, c.Err
	}
	return c.ID, nil
}

// GetLogs filters the stored logs by block range, address and topics.
func (c *Client) GetLogs(_ context.Context, filter chain.LogFilter) ([]chain.Log, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Err != nil {
		return nil, c.Err
	}

	var out []chain.Log
	for _, l := range c.Logs {
		if l.BlockNumber < filter.FromBlock || l.BlockNumber > filter.ToBlock {
			continue
		}
		if !matchAddress(l.Address, filter.Addresses) {
			continue
		}
		if !matchTopics(l.Topics, filter.Topics) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// AddTransaction stores a transaction together with its receipt.
// Receipt logs are also made visible to GetLogs.
func (c *Client) AddTransaction(tx *chain.Transaction, receipt *chain.Receipt) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Transactions[tx.Hash] = tx
	if receipt != nil {
		c.Receipts[tx.Hash] = receipt
		for _, l := range receipt.Logs {
			if l.TxHash == (common.Hash{}) {
				l.TxHash = tx.Hash
			}
			if l.BlockNumber == 0 {
				l.BlockNumber = receipt.BlockNumber
			}
			c.Logs = append(c.Logs, l)
		}
		if receipt.BlockNumber > c.Head {
			c.Head = receipt.BlockNumber
		}
	}
}

// SetHead sets the latest block height.
func (c *Client) SetHead(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Head = n
}

func matchAddress(addr common.Address, want []common.Address) bool {
	if len(want) == 0 {
		return true
	}
	for _, a := range want {
		if a == addr {
			return true
		}
	}
	return false
}

func matchTopics(topics []common.Hash, want [][]common.Hash) bool {
	if len(want) > len(topics) {
		return false
	}
	for i, alternatives := range want {
		if len(alternatives) == 0 {
			continue
		}
		found := false
		for _, t := range alternatives {
			if topics[i] == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
