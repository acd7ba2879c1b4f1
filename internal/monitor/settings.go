// internal/monitor/settings.go
package monitor

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

// MinBuyAmountSOL is one lamport; smaller amounts cannot be swapped.
const MinBuyAmountSOL = 0.000000001

var (
	ErrInvalidThreshold = errors.New("market cap threshold must be > 0")
	ErrInvalidAmount    = errors.New("buy amount must be at least 0.000000001 SOL")
)

// RuntimeConfig holds the operator-tunable parameters.
type RuntimeConfig struct {
	MarketCapThresholdUSD int64
	BuyAmountSOL          float64
}

// Validate checks both fields.
func (c RuntimeConfig) Validate() error {
	if c.MarketCapThresholdUSD <= 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidThreshold, c.MarketCapThresholdUSD)
	}
	if !(c.BuyAmountSOL >= MinBuyAmountSOL) || math.IsInf(c.BuyAmountSOL, 0) {
		return fmt.Errorf("%w, got %v", ErrInvalidAmount, c.BuyAmountSOL)
	}
	return nil
}

// Settings stores RuntimeConfig as an immutable snapshot. Writers swap the
// pointer, so readers never see a half-applied update.
type Settings struct {
	v atomic.Pointer[RuntimeConfig]
}

// NewSettings creates Settings with validated defaults.
func NewSettings(defaults RuntimeConfig) (*Settings, error) {
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	s := &Settings{}
	s.v.Store(&defaults)
	return s, nil
}

// Snapshot returns the current configuration.
func (s *Settings) Snapshot() RuntimeConfig {
	return *s.v.Load()
}

// Threshold returns the market cap threshold in USD.
func (s *Settings) Threshold() int64 {
	return s.Snapshot().MarketCapThresholdUSD
}

// BuyAmount returns the buy amount in SOL.
func (s *Settings) BuyAmount() float64 {
	return s.Snapshot().BuyAmountSOL
}

// SetThreshold replaces the threshold. Invalid values leave Settings untouched.
func (s *Settings) SetThreshold(usd int64) error {
	return s.update(func(c *RuntimeConfig) { c.MarketCapThresholdUSD = usd })
}

// SetBuyAmount replaces the buy amount. Invalid values leave Settings untouched.
func (s *Settings) SetBuyAmount(sol float64) error {
	return s.update(func(c *RuntimeConfig) { c.BuyAmountSOL = sol })
}

func (s *Settings) update(apply func(*RuntimeConfig)) error {
	for {
		old := s.v.Load()
		next := *old
		apply(&next)
		if err := next.Validate(); err != nil {
			return err
		}
		if s.v.CompareAndSwap(old, &next) {
			return nil
		}
	}
}
