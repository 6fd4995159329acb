package payment

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pepu-name-service/internal/observability"
)

// DefaultLookbackBlocks is how far back each poll scans.
const DefaultLookbackBlocks = 1000

var (
	// ErrPaymentNotFound is returned when no valid payment appears in time.
	ErrPaymentNotFound = errors.New("payment not found within time limit")

	// ErrPollingUnsupported is returned when the strategy cannot be discovered via logs.
	ErrPollingUnsupported = errors.New("payment polling requires the token strategy")
)

// Poller searches recent blocks for a payment from a wallet that has not
// supplied a transaction hash.
type Poller struct {
	validator *Validator
	policy    RetryPolicy
	lookback  uint64
	logger    *zap.Logger
}

// NewPoller creates a Poller. A zero lookback uses DefaultLookbackBlocks.
func NewPoller(validator *Validator, policy RetryPolicy, lookback uint64, logger *zap.Logger) *Poller {
	if lookback == 0 {
		lookback = DefaultLookbackBlocks
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		validator: validator,
		policy:    policy,
		lookback:  lookback,
		logger:    logger.Named("poller"),
	}
}

// FindPayment polls until a verified payment from sender is seen and
// returns its transaction hash. Newer transactions are tried first.
// RPC errors during a round are logged and the round is retried.
func (p *Poller) FindPayment(ctx context.Context, sender string) (string, error) {
	discoverer, ok := p.validator.detector.(Discoverer)
	if !ok {
		return "", ErrPollingUnsupported
	}
	if !common.IsHexAddress(sender) {
		return "", ErrPaymentNotFound
	}

	start := time.Now()
	var found string
	rounds := 0

	err := p.policy.Run(ctx, func(ctx context.Context) (bool, error) {
		rounds++
		hash, err := p.scan(ctx, discoverer, sender)
		if err != nil {
			p.logger.Warn("payment scan failed",
				zap.String("sender", sender),
				zap.Int("round", rounds),
				zap.Error(err))
			return false, nil
		}
		if hash == "" {
			return false, nil
		}
		found = hash
		return true, nil
	})

	elapsed := time.Since(start).Seconds()
	switch {
	case err == nil:
		observability.RecordPoll("found", elapsed)
		p.logger.Info("payment found by polling",
			zap.String("sender", sender),
			zap.String("tx_hash", found),
			zap.Int("rounds", rounds))
		return found, nil
	case errors.Is(err, ErrRetryExhausted):
		observability.RecordPoll("timeout", elapsed)
		return "", ErrPaymentNotFound
	default:
		observability.RecordPoll("canceled", elapsed)
		return "", err
	}
}

func (p *Poller) scan(ctx context.Context, d Discoverer, sender string) (string, error) {
	head, err := p.validator.client.BlockNumber(ctx)
	if err != nil {
		return "", err
	}
	var from uint64
	if head > p.lookback {
		from = head - p.lookback
	}

	logs, err := p.validator.client.GetLogs(ctx, d.DiscoveryFilter(common.HexToAddress(sender), from, head))
	if err != nil {
		return "", err
	}

	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber > logs[j].BlockNumber
		}
		return logs[i].Index > logs[j].Index
	})

	// A candidate that cannot be checked is skipped; the error is only
	// reported when no other candidate in the window verifies.
	var firstErr error
	seen := make(map[common.Hash]bool, len(logs))
	for _, l := range logs {
		if seen[l.TxHash] {
			continue
		}
		seen[l.TxHash] = true

		res := p.validator.check(ctx, l.TxHash.Hex(), sender)
		if res.Err != nil {
			p.logger.Debug("skipping unverifiable candidate",
				zap.String("tx_hash", l.TxHash.Hex()),
				zap.Error(res.Err))
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		if res.Valid {
			return l.TxHash.Hex(), nil
		}
	}
	return "", firstErr
}
