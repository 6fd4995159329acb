package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// rpcRequest is the JSON-RPC 2.0 request as seen by the test server.
type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

const (
	testTxHash   = "0x8f3c1d2e4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0"
	testSender   = "0x1111111111111111111111111111111111111111"
	testTreasury = "0x5359d161d3cdbcfa6c38a387b7f685ebe354368f"
	testToken    = "0xa0b86a33e6441b8435b662c0c5b90fdf0be3d55b"
)

func newRPCServer(t *testing.T, handle func(req rpcRequest) interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  handle(req),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func dialTest(t *testing.T, url string, opts ...ClientOption) *RPCClient {
	t.Helper()
	client, err := Dial(context.Background(), url, opts...)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestRPCClient_GetTransaction(t *testing.T) {
	server := newRPCServer(t, func(req rpcRequest) interface{} {
		if req.Method != "eth_getTransactionByHash" {
			t.Errorf("expected method eth_getTransactionByHash, got %s", req.Method)
		}
		return map[string]interface{}{
			"hash":        testTxHash,
			"from":        testSender,
			"to":          testTreasury,
			"value":       "0x4c4b40",
			"blockNumber": "0x10",
		}
	})
	defer server.Close()

	client := dialTest(t, server.URL)

	tx, err := client.GetTransaction(context.Background(), common.HexToHash(testTxHash))
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx == nil {
		t.Fatal("expected transaction, got nil")
	}
	if tx.From != common.HexToAddress(testSender) {
		t.Errorf("From = %s, want %s", tx.From.Hex(), testSender)
	}
	if tx.To == nil || *tx.To != common.HexToAddress(testTreasury) {
		t.Errorf("To = %v, want %s", tx.To, testTreasury)
	}
	if tx.Value.Int64() != 5000000 {
		t.Errorf("Value = %s, want 5000000", tx.Value)
	}
	if tx.BlockNumber == nil || *tx.BlockNumber != 16 {
		t.Errorf("BlockNumber = %v, want 16", tx.BlockNumber)
	}
}

func TestRPCClient_GetTransaction_NotFound(t *testing.T) {
	server := newRPCServer(t, func(req rpcRequest) interface{} {
		return nil
	})
	defer server.Close()

	client := dialTest(t, server.URL)

	tx, err := client.GetTransaction(context.Background(), common.HexToHash(testTxHash))
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx != nil {
		t.Errorf("expected nil for not found, got %+v", tx)
	}
}

func TestRPCClient_GetReceipt(t *testing.T) {
	transferTopic := "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

	server := newRPCServer(t, func(req rpcRequest) interface{} {
		if req.Method != "eth_getTransactionReceipt" {
			t.Errorf("expected method eth_getTransactionReceipt, got %s", req.Method)
		}
		return map[string]interface{}{
			"transactionHash": testTxHash,
			"status":          "0x1",
			"blockNumber":     "0x10",
			"logs": []map[string]interface{}{
				{
					"address": testToken,
					"topics": []string{
						transferTopic,
						common.BytesToHash(common.HexToAddress(testSender).Bytes()).Hex(),
						common.BytesToHash(common.HexToAddress(testTreasury).Bytes()).Hex(),
					},
					"data":            "0x00000000000000000000000000000000000000000000000000000000004c4b40",
					"blockNumber":     "0x10",
					"transactionHash": testTxHash,
					"logIndex":        "0x0",
					"removed":         false,
				},
			},
		}
	})
	defer server.Close()

	client := dialTest(t, server.URL)

	r, err := client.GetReceipt(context.Background(), common.HexToHash(testTxHash))
	if err != nil {
		t.Fatalf("GetReceipt: %v", err)
	}
	if !r.Succeeded() {
		t.Errorf("expected successful receipt, got status %d", r.Status)
	}
	if len(r.Logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(r.Logs))
	}
	if r.Logs[0].Address != common.HexToAddress(testToken) {
		t.Errorf("log address = %s, want %s", r.Logs[0].Address.Hex(), testToken)
	}
	if len(r.Logs[0].Data) != 32 {
		t.Errorf("expected 32 bytes of data, got %d", len(r.Logs[0].Data))
	}
}

func TestRPCClient_GetReceipt_MissingStatus(t *testing.T) {
	server := newRPCServer(t, func(req rpcRequest) interface{} {
		return map[string]interface{}{
			"transactionHash": testTxHash,
			"blockNumber":     "0x10",
			"logs":            []interface{}{},
		}
	})
	defer server.Close()

	client := dialTest(t, server.URL)

	r, err := client.GetReceipt(context.Background(), common.HexToHash(testTxHash))
	if err != nil {
		t.Fatalf("GetReceipt: %v", err)
	}
	if r.Succeeded() {
		t.Error("receipt without status must not count as successful")
	}
}

func TestRPCClient_BlockNumberAndChainID(t *testing.T) {
	server := newRPCServer(t, func(req rpcRequest) interface{} {
		switch req.Method {
		case "eth_blockNumber":
			return "0x3e8"
		case "eth_chainId":
			return "0x17dcd"
		}
		t.Errorf("unexpected method %s", req.Method)
		return nil
	})
	defer server.Close()

	client := dialTest(t, server.URL)
	ctx := context.Background()

	n, err := client.BlockNumber(ctx)
	if err != nil {
		t.Fatalf("BlockNumber: %v", err)
	}
	if n != 1000 {
		t.Errorf("BlockNumber = %d, want 1000", n)
	}

	id, err := client.ChainID(ctx)
	if err != nil {
		t.Fatalf("ChainID: %v", err)
	}
	if id.Int64() != 97741 {
		t.Errorf("ChainID = %s, want 97741", id)
	}
}

func TestRPCClient_GetLogs_FilterEncoding(t *testing.T) {
	topic := common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	recipient := common.BytesToHash(common.HexToAddress(testTreasury).Bytes())

	server := newRPCServer(t, func(req rpcRequest) interface{} {
		if req.Method != "eth_getLogs" {
			t.Errorf("expected method eth_getLogs, got %s", req.Method)
		}
		if len(req.Params) != 1 {
			t.Errorf("expected 1 param, got %d", len(req.Params))
			return nil
		}

		var filter struct {
			FromBlock string            `json:"fromBlock"`
			ToBlock   string            `json:"toBlock"`
			Address   []string          `json:"address"`
			Topics    []json.RawMessage `json:"topics"`
		}
		if err := json.Unmarshal(req.Params[0], &filter); err != nil {
			t.Errorf("decode filter: %v", err)
			return nil
		}
		if filter.FromBlock != "0x64" || filter.ToBlock != "0xc8" {
			t.Errorf("block range = %s..%s, want 0x64..0xc8", filter.FromBlock, filter.ToBlock)
		}
		if len(filter.Topics) != 3 {
			t.Errorf("expected 3 topics, got %d", len(filter.Topics))
		} else if string(filter.Topics[1]) != "null" {
			t.Errorf("expected wildcard topic, got %s", filter.Topics[1])
		}

		return []map[string]interface{}{
			{
				"address":         testToken,
				"topics":          []string{topic.Hex(), common.Hash{}.Hex(), recipient.Hex()},
				"data":            "0x",
				"blockNumber":     "0x65",
				"transactionHash": testTxHash,
				"logIndex":        "0x2",
			},
		}
	})
	defer server.Close()

	client := dialTest(t, server.URL)

	logs, err := client.GetLogs(context.Background(), LogFilter{
		FromBlock: 100,
		ToBlock:   200,
		Addresses: []common.Address{common.HexToAddress(testToken)},
		Topics:    [][]common.Hash{{topic}, nil, {recipient}},
	})
	if err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	if logs[0].BlockNumber != 101 || logs[0].Index != 2 {
		t.Errorf("unexpected log position: block %d index %d", logs[0].BlockNumber, logs[0].Index)
	}
}

func TestRPCClient_Retry(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  "0x1",
		})
	}))
	defer server.Close()

	client := dialTest(t, server.URL,
		WithRetryDelay(10*time.Millisecond),
		WithMaxRetries(3),
	)

	n, err := client.BlockNumber(context.Background())
	if err != nil {
		t.Fatalf("BlockNumber: %v", err)
	}
	if n != 1 {
		t.Errorf("BlockNumber = %d, want 1", n)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestRPCClient_MaxDelayCapsBackoff(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	// Uncapped, the four waits would add up to 300ms.
	client := dialTest(t, server.URL,
		WithRetryDelay(20*time.Millisecond),
		WithMaxDelay(20*time.Millisecond),
		WithMaxRetries(4),
	)

	start := time.Now()
	if _, err := client.BlockNumber(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Errorf("retries took %v, backoff not capped", elapsed)
	}
	if got := attempts.Load(); got != 5 {
		t.Errorf("expected 5 attempts, got %d", got)
	}
}

func TestRPCClient_RPCErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": -32602, "message": "invalid argument"},
		})
	}))
	defer server.Close()

	client := dialTest(t, server.URL, WithRetryDelay(10*time.Millisecond))

	_, err := client.GetTransaction(context.Background(), common.HexToHash(testTxHash))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "invalid argument") {
		t.Errorf("unexpected error: %v", err)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("expected 1 attempt, got %d", got)
	}
}
