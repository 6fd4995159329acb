// Package payment verifies on-chain registration payments.
package payment

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Strategy selects how a payment is recognized inside a transaction.
type Strategy string

const (
	// StrategyNative expects the chain's native coin sent directly to the treasury.
	StrategyNative Strategy = "native"
	// StrategyToken expects an ERC-20 Transfer log to the treasury.
	StrategyToken Strategy = "token"
)

// Config holds the payment parameters. It is validated once at startup.
type Config struct {
	TreasuryAddress common.Address
	RequiredAmount  *big.Int       // smallest unit of the asset
	AssetContract   common.Address // token contract; unused for StrategyNative
	ChainID         *big.Int       // expected chain id; nil skips the check
	Strategy        Strategy
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.TreasuryAddress == (common.Address{}) {
		return errors.New("payment: treasury address is required")
	}
	if c.RequiredAmount == nil || c.RequiredAmount.Sign() <= 0 {
		return errors.New("payment: required amount must be positive")
	}
	switch c.Strategy {
	case StrategyNative:
	case StrategyToken:
		if c.AssetContract == (common.Address{}) {
			return errors.New("payment: asset contract is required for token strategy")
		}
	default:
		return fmt.Errorf("payment: unknown strategy %q", c.Strategy)
	}
	return nil
}

// NewDetector returns the Detector configured by c.Strategy.
func (c Config) NewDetector() (Detector, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch c.Strategy {
	case StrategyNative:
		return NewNativeTransfer(c.TreasuryAddress, c.RequiredAmount), nil
	default:
		return NewTokenLogTransfer(c.AssetContract, c.TreasuryAddress, c.RequiredAmount)
	}
}
