package payment

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"pepu-name-service/internal/chain"
)

// Detector decides whether a mined transaction pays the treasury enough.
// tx.From and receipt status are checked by the Validator before Detect runs.
type Detector interface {
	// Name identifies the strategy in logs and metrics.
	Name() string

	// Detect returns the amount paid, or a failure reason.
	Detect(tx *chain.Transaction, receipt *chain.Receipt) (*big.Int, Reason)
}

// Discoverer is implemented by detectors whose payments can be found
// with eth_getLogs, which is what payment polling needs.
type Discoverer interface {
	DiscoveryFilter(sender common.Address, fromBlock, toBlock uint64) chain.LogFilter
}

// NativeTransfer accepts a plain value transfer to the treasury.
type NativeTransfer struct {
	treasury common.Address
	required *big.Int
}

// NewNativeTransfer creates a native coin detector.
func NewNativeTransfer(treasury common.Address, required *big.Int) *NativeTransfer {
	return &NativeTransfer{treasury: treasury, required: new(big.Int).Set(required)}
}

// Name implements Detector.
func (d *NativeTransfer) Name() string { return string(StrategyNative) }

// Detect implements Detector.
func (d *NativeTransfer) Detect(tx *chain.Transaction, _ *chain.Receipt) (*big.Int, Reason) {
	if tx.To == nil || *tx.To != d.treasury {
		return nil, ReasonWrongRecipient
	}
	if tx.Value == nil || tx.Value.Cmp(d.required) < 0 {
		return nil, ReasonInsufficientAmount
	}
	return new(big.Int).Set(tx.Value), ReasonOK
}

const erc20TransferABI = `[{"anonymous":false,"inputs":[` +
	`{"indexed":true,"name":"from","type":"address"},` +
	`{"indexed":true,"name":"to","type":"address"},` +
	`{"indexed":false,"name":"value","type":"uint256"}],` +
	`"name":"Transfer","type":"event"}]`

// TokenLogTransfer accepts a transaction whose receipt contains an ERC-20
// Transfer log from the asset contract to the treasury.
type TokenLogTransfer struct {
	asset    common.Address
	treasury common.Address
	required *big.Int
	abi      abi.ABI
	topic    common.Hash
}

// NewTokenLogTransfer creates a token log detector.
func NewTokenLogTransfer(asset, treasury common.Address, required *big.Int) (*TokenLogTransfer, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		return nil, fmt.Errorf("parse transfer abi: %w", err)
	}
	return &TokenLogTransfer{
		asset:    asset,
		treasury: treasury,
		required: new(big.Int).Set(required),
		abi:      parsed,
		topic:    parsed.Events["Transfer"].ID,
	}, nil
}

// Name implements Detector.
func (d *TokenLogTransfer) Name() string { return string(StrategyToken) }

// Detect implements Detector. The first qualifying log wins; amounts
// from several logs are not summed.
func (d *TokenLogTransfer) Detect(_ *chain.Transaction, receipt *chain.Receipt) (*big.Int, Reason) {
	reason := ReasonNoTransferLog
	for _, l := range receipt.Logs {
		if l.Removed || l.Address != d.asset {
			continue
		}
		if len(l.Topics) != 3 || l.Topics[0] != d.topic {
			continue
		}
		if common.BytesToAddress(l.Topics[2].Bytes()) != d.treasury {
			reason = ReasonWrongRecipient
			continue
		}

		values, err := d.abi.Unpack("Transfer", l.Data)
		if err != nil || len(values) != 1 {
			continue
		}
		amount, ok := values[0].(*big.Int)
		if !ok {
			continue
		}
		if amount.Cmp(d.required) < 0 {
			reason = ReasonInsufficientAmount
			continue
		}
		return amount, ReasonOK
	}
	return nil, reason
}

// DiscoveryFilter implements Discoverer: Transfer logs of the asset from
// sender to the treasury.
func (d *TokenLogTransfer) DiscoveryFilter(sender common.Address, fromBlock, toBlock uint64) chain.LogFilter {
	return chain.LogFilter{
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		Addresses: []common.Address{d.asset},
		Topics: [][]common.Hash{
			{d.topic},
			{common.BytesToHash(sender.Bytes())},
			{common.BytesToHash(d.treasury.Bytes())},
		},
	}
}
