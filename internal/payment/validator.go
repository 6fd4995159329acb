package payment

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"pepu-name-service/internal/chain"
	"pepu-name-service/internal/observability"
)

// Reason explains a verification outcome.
type Reason string

const (
	ReasonOK                 Reason = "ok"
	ReasonInvalidHash        Reason = "invalid_hash"
	ReasonInvalidSender      Reason = "invalid_sender"
	ReasonNotFound           Reason = "not_found"
	ReasonFailedStatus       Reason = "failed_status"
	ReasonWrongSender        Reason = "wrong_sender"
	ReasonWrongRecipient     Reason = "wrong_recipient"
	ReasonInsufficientAmount Reason = "insufficient_amount"
	ReasonNoTransferLog      Reason = "no_transfer_log"
	ReasonRPCError           Reason = "rpc_error"
)

// Result is the detailed outcome of a verification.
type Result struct {
	Valid  bool
	Reason Reason
	Amount *big.Int // set when Valid
	Err    error    // underlying RPC error, if any
}

// Validator checks that a transaction is a completed payment from an
// expected sender. It fails closed: any error yields an invalid result.
type Validator struct {
	client   chain.Client
	detector Detector
	chainID  *big.Int
	logger   *zap.Logger
}

// NewValidator creates a Validator for the given configuration.
func NewValidator(client chain.Client, cfg Config, logger *zap.Logger) (*Validator, error) {
	detector, err := cfg.NewDetector()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		client:   client,
		detector: detector,
		chainID:  cfg.ChainID,
		logger:   logger.Named("payment"),
	}, nil
}

// Detector returns the configured strategy.
func (v *Validator) Detector() Detector {
	return v.detector
}

// CheckChain verifies that the node serves the configured chain.
func (v *Validator) CheckChain(ctx context.Context) error {
	if v.chainID == nil || v.chainID.Sign() == 0 {
		return nil
	}
	id, err := v.client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("query chain id: %w", err)
	}
	if id.Cmp(v.chainID) != 0 {
		return fmt.Errorf("chain id mismatch: node reports %s, expected %s", id, v.chainID)
	}
	return nil
}

// Verify reports whether txHash is a valid payment sent by expectedSender.
func (v *Validator) Verify(ctx context.Context, txHash, expectedSender string) bool {
	return v.Check(ctx, txHash, expectedSender).Valid
}

// Check runs the verification and returns the reason alongside the verdict.
func (v *Validator) Check(ctx context.Context, txHash, expectedSender string) Result {
	res := v.check(ctx, txHash, expectedSender)
	observability.RecordVerification(v.detector.Name(), string(res.Reason))

	fields := []zap.Field{
		zap.String("tx_hash", txHash),
		zap.String("sender", expectedSender),
		zap.String("reason", string(res.Reason)),
	}
	switch {
	case res.Valid:
		v.logger.Info("payment verified", append(fields, zap.String("amount", res.Amount.String()))...)
	case res.Err != nil:
		v.logger.Warn("payment verification failed", append(fields, zap.Error(res.Err))...)
	default:
		v.logger.Info("payment rejected", fields...)
	}
	return res
}

func (v *Validator) check(ctx context.Context, txHash, expectedSender string) Result {
	hash, ok := ParseTxHash(txHash)
	if !ok {
		return Result{Reason: ReasonInvalidHash}
	}
	if !common.IsHexAddress(expectedSender) {
		return Result{Reason: ReasonInvalidSender}
	}

	tx, err := v.client.GetTransaction(ctx, hash)
	if err != nil {
		return Result{Reason: ReasonRPCError, Err: err}
	}
	receipt, err := v.client.GetReceipt(ctx, hash)
	if err != nil {
		return Result{Reason: ReasonRPCError, Err: err}
	}
	if tx == nil || receipt == nil {
		return Result{Reason: ReasonNotFound}
	}

	if !receipt.Succeeded() {
		return Result{Reason: ReasonFailedStatus}
	}
	if !strings.EqualFold(tx.From.Hex(), expectedSender) {
		return Result{Reason: ReasonWrongSender}
	}

	amount, reason := v.detector.Detect(tx, receipt)
	if reason != ReasonOK {
		return Result{Reason: reason}
	}
	return Result{Valid: true, Reason: ReasonOK, Amount: amount}
}

// ParseTxHash parses a 0x-prefixed 32-byte hex transaction hash.
func ParseTxHash(s string) (common.Hash, bool) {
	b, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, false
	}
	return common.BytesToHash(b), true
}
