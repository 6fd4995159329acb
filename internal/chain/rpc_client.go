package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"pepu-name-service/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxRetries  = 2
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0
)

// RPCClient implements Client over JSON-RPC using the go-ethereum rpc package.
type RPCClient struct {
	endpoint    string
	rpc         *rpc.Client
	httpClient  *http.Client
	timeout     time.Duration
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures RPCClient.
type ClientOption func(*RPCClient)

// WithTimeout bounds every individual call.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *RPCClient) {
		c.timeout = d
	}
}

// WithMaxRetries sets how many times rate-limited or 5xx responses are retried.
func WithMaxRetries(n int) ClientOption {
	return func(c *RPCClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *RPCClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *RPCClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *RPCClient) {
		c.httpClient = client
	}
}

// Dial creates a new RPC client for endpoint.
func Dial(ctx context.Context, endpoint string, opts ...ClientOption) (*RPCClient, error) {
	c := &RPCClient{
		endpoint:    endpoint,
		httpClient:  &http.Client{},
		timeout:     DefaultTimeout,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}

	client, err := rpc.DialOptions(ctx, endpoint, rpc.WithHTTPClient(c.httpClient))
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", endpoint, err)
	}
	c.rpc = client
	return c, nil
}

// Close releases the underlying connection.
func (c *RPCClient) Close() {
	c.rpc.Close()
}

// Endpoint returns the node URL.
func (c *RPCClient) Endpoint() string {
	return c.endpoint
}

var _ Client = (*RPCClient)(nil)

// call performs a JSON-RPC call, retrying transient HTTP failures with
// exponential backoff. JSON-RPC errors are returned immediately.
func (c *RPCClient) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	start := time.Now()
	defer func() {
		observability.RecordRPCLatency(method, time.Since(start).Seconds())
	}()

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := c.rpc.CallContext(callCtx, result, method, args...)
		cancel()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			observability.RecordRPCError(method)
			return fmt.Errorf("%s: %w", method, err)
		}
		lastErr = err
	}

	observability.RecordRPCError(method)
	return fmt.Errorf("%s: max retries exceeded: %w", method, lastErr)
}

// isRetryable reports whether err is a rate limit or server-side HTTP failure.
func isRetryable(err error) bool {
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	return false
}

// rpcTransaction is the eth_getTransactionByHash result.
type rpcTransaction struct {
	Hash        common.Hash     `json:"hash"`
	From        common.Address  `json:"from"`
	To          *common.Address `json:"to"`
	Value       *hexutil.Big    `json:"value"`
	BlockNumber *hexutil.Big    `json:"blockNumber"`
}

// rpcReceipt is the eth_getTransactionReceipt result.
type rpcReceipt struct {
	TransactionHash common.Hash     `json:"transactionHash"`
	Status          *hexutil.Uint64 `json:"status"`
	BlockNumber     hexutil.Uint64  `json:"blockNumber"`
	Logs            []rpcLog        `json:"logs"`
}

// rpcLog is a log entry in receipts and eth_getLogs results.
type rpcLog struct {
	Address         common.Address `json:"address"`
	Topics          []common.Hash  `json:"topics"`
	Data            hexutil.Bytes  `json:"data"`
	BlockNumber     hexutil.Uint64 `json:"blockNumber"`
	TransactionHash common.Hash    `json:"transactionHash"`
	LogIndex        hexutil.Uint   `json:"logIndex"`
	Removed         bool           `json:"removed"`
}

func (l rpcLog) toLog() Log {
	return Log{
		Address:     l.Address,
		Topics:      l.Topics,
		Data:        l.Data,
		BlockNumber: uint64(l.BlockNumber),
		TxHash:      l.TransactionHash,
		Index:       uint(l.LogIndex),
		Removed:     l.Removed,
	}
}

// GetTransaction retrieves a transaction by hash.
func (c *RPCClient) GetTransaction(ctx context.Context, hash common.Hash) (*Transaction, error) {
	var raw *rpcTransaction
	if err := c.call(ctx, &raw, "eth_getTransactionByHash", hash); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	tx := &Transaction{
		Hash:  raw.Hash,
		From:  raw.From,
		To:    raw.To,
		Value: new(big.Int),
	}
	if raw.Value != nil {
		tx.Value = raw.Value.ToInt()
	}
	if raw.BlockNumber != nil {
		n := raw.BlockNumber.ToInt().Uint64()
		tx.BlockNumber = &n
	}
	return tx, nil
}

// GetReceipt retrieves a transaction receipt. A pending transaction has no receipt.
func (c *RPCClient) GetReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	var raw *rpcReceipt
	if err := c.call(ctx, &raw, "eth_getTransactionReceipt", hash); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	r := &Receipt{
		TxHash:      raw.TransactionHash,
		BlockNumber: uint64(raw.BlockNumber),
		Logs:        make([]Log, 0, len(raw.Logs)),
	}
	// Receipts without a status field are treated as failed.
	if raw.Status != nil {
		r.Status = uint64(*raw.Status)
	}
	for _, l := range raw.Logs {
		r.Logs = append(r.Logs, l.toLog())
	}
	return r, nil
}

// BlockNumber returns the latest block height.
func (c *RPCClient) BlockNumber(ctx context.Context) (uint64, error) {
	var n hexutil.Uint64
	if err := c.call(ctx, &n, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// ChainID returns the chain id reported by the node.
func (c *RPCClient) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := c.call(ctx, &id, "eth_chainId"); err != nil {
		return nil, err
	}
	return id.ToInt(), nil
}

// GetLogs returns logs matching the filter.
func (c *RPCClient) GetLogs(ctx context.Context, filter LogFilter) ([]Log, error) {
	var raw []rpcLog
	if err := c.call(ctx, &raw, "eth_getLogs", toFilterArg(filter)); err != nil {
		return nil, err
	}

	logs := make([]Log, 0, len(raw))
	for _, l := range raw {
		logs = append(logs, l.toLog())
	}
	return logs, nil
}

func toFilterArg(f LogFilter) map[string]interface{} {
	arg := map[string]interface{}{
		"fromBlock": hexutil.EncodeUint64(f.FromBlock),
		"toBlock":   hexutil.EncodeUint64(f.ToBlock),
	}
	if len(f.Addresses) > 0 {
		arg["address"] = f.Addresses
	}
	if len(f.Topics) > 0 {
		topics := make([]interface{}, len(f.Topics))
		for i, t := range f.Topics {
			switch len(t) {
			case 0:
				topics[i] = nil
			case 1:
				topics[i] = t[0]
			default:
				topics[i] = t
			}
		}
		arg["topics"] = topics
	}
	return arg
}
