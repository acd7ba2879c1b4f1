// internal/monitor/detector.go
package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-dipbuyer/internal/logger"
	"github.com/rovshanmuradov/solana-dipbuyer/internal/marketdata"
)

// HoldingSource reports the most recent token holding of a wallet.
type HoldingSource interface {
	FetchLatestHolding(ctx context.Context, wallet string) (marketdata.Holding, bool, error)
}

// DetectionStatus is the result of one holdings check.
type DetectionStatus int

const (
	// NoHoldings: the wallet reported no tokens.
	NoHoldings DetectionStatus = iota
	// Unchanged: the latest holding is the one already seen.
	Unchanged
	// Started: a new holding was found and a watch has started.
	Started
)

func (s DetectionStatus) String() string {
	switch s {
	case NoHoldings:
		return "no_holdings"
	case Unchanged:
		return "unchanged"
	case Started:
		return "started"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Detection describes what Check found.
type Detection struct {
	Status DetectionStatus
	Token  WatchedToken
}

// DetectorConfig wires a Detector.
type DetectorConfig struct {
	Registry *Registry
	Holdings HoldingSource
	Wallet   string
	WatchTTL time.Duration
	Notifier Notifier
	History  Recorder
	Logger   *zap.Logger
}

// Detector turns a new wallet holding into a watch.
type Detector struct {
	registry *Registry
	holdings HoldingSource
	wallet   string
	ttl      time.Duration
	notifier Notifier
	history  Recorder
	logger   *zap.Logger
}

// NewDetector creates a Detector.
func NewDetector(cfg DetectorConfig) *Detector {
	ttl := cfg.WatchTTL
	if ttl <= 0 {
		ttl = DefaultWatchTTL
	}
	return &Detector{
		registry: cfg.Registry,
		holdings: cfg.Holdings,
		wallet:   cfg.Wallet,
		ttl:      ttl,
		notifier: cfg.Notifier,
		history:  cfg.History,
		logger:   cfg.Logger.Named("detector"),
	}
}

// Check fetches the wallet's latest holding once and starts a watch when it
// differs from the last one seen. A new watch replaces any existing one.
func (d *Detector) Check(ctx context.Context) (Detection, error) {
	log := logger.WithOperation(d.logger, "check")
	holding, ok, err := d.holdings.FetchLatestHolding(ctx, d.wallet)
	if err != nil {
		return Detection{}, fmt.Errorf("check wallet %s: %w", d.wallet, err)
	}
	if !ok {
		log.Debug("Wallet has no holdings", zap.String("wallet", d.wallet))
		return Detection{Status: NoHoldings}, nil
	}
	w, started := d.registry.StartIfNew(holding.Address, holding.Symbol, d.ttl)
	if !started {
		return Detection{Status: Unchanged}, nil
	}

	log.Info(fmt.Sprintf("👀 Watching %s", w.Symbol),
		zap.String("watch_id", w.ID),
		zap.String("token", w.Address),
		zap.Time("expires_at", w.ExpiresAt))

	if d.history != nil {
		if err := d.history.Record(ctx, fmt.Sprintf("Watching token %s (%s)", w.Symbol, w.Address)); err != nil {
			log.Warn("Failed to write history entry", zap.Error(err))
		}
	}
	return Detection{Status: Started, Token: w}, nil
}

// Run calls Check every interval until ctx is cancelled and notifies the
// operator about every new watch.
func (d *Detector) Run(ctx context.Context, interval time.Duration) error {
	d.logger.Info("🔍 Auto-check started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			det, err := d.Check(ctx)
			if err != nil {
				d.logger.Warn("Auto-check failed", zap.Error(err))
				continue
			}
			if det.Status == Started && d.notifier != nil {
				if err := d.notifier.Notify(ctx, NewTokenMessage(det.Token)); err != nil {
					d.logger.Warn("Failed to deliver notification", zap.Error(err))
				}
			}
		}
	}
}

// NewTokenMessage is the operator message for a freshly started watch.
func NewTokenMessage(w WatchedToken) string {
	return fmt.Sprintf("New token %s. Waiting for the market cap to drop...", w.Symbol)
}
