// internal/monitor/loop.go
package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rovshanmuradov/solana-dipbuyer/internal/logger"
)

// DefaultPollInterval is the pause between two watch cycles.
const DefaultPollInterval = time.Second

// Notifier delivers operator-facing messages.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Recorder appends entries to the history log.
type Recorder interface {
	Record(ctx context.Context, text string) error
}

// MarketCapSource reports the current market cap of a token in USD.
type MarketCapSource interface {
	FetchMarketCap(ctx context.Context, token string) (float64, error)
}

// Buyer swaps amountSOL into token and returns the transaction signature.
type Buyer interface {
	ExecuteBuy(ctx context.Context, token string, amountSOL float64) (string, error)
}

// Outcome describes what a single watch cycle did.
type Outcome int

const (
	OutcomeIdle Outcome = iota
	OutcomeTimeout
	OutcomeFetchFailed
	OutcomeWatching
	OutcomeBought
	OutcomeBuyFailed
	OutcomeSuperseded
	OutcomePanic
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeFetchFailed:
		return "fetch_failed"
	case OutcomeWatching:
		return "watching"
	case OutcomeBought:
		return "bought"
	case OutcomeBuyFailed:
		return "buy_failed"
	case OutcomeSuperseded:
		return "superseded"
	case OutcomePanic:
		return "panic"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// LoopConfig wires a Loop.
type LoopConfig struct {
	Registry     *Registry
	Settings     *Settings
	MarketData   MarketCapSource
	Buyer        Buyer
	Notifier     Notifier
	History      Recorder
	PollInterval time.Duration
	Now          func() time.Time
	Logger       *zap.Logger
}

// Loop is the single task driving the watch state machine.
type Loop struct {
	registry *Registry
	settings *Settings
	market   MarketCapSource
	buyer    Buyer
	notifier Notifier
	history  Recorder
	interval time.Duration
	now      func() time.Time
	printer  *message.Printer
	logger   *zap.Logger
}

// NewLoop creates a Loop.
func NewLoop(cfg LoopConfig) *Loop {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Loop{
		registry: cfg.Registry,
		settings: cfg.Settings,
		market:   cfg.MarketData,
		buyer:    cfg.Buyer,
		notifier: cfg.Notifier,
		history:  cfg.History,
		interval: interval,
		now:      now,
		printer:  message.NewPrinter(language.English),
		logger:   cfg.Logger.Named("watch-loop"),
	}
}

// Run executes cycles until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("🔄 Watch loop started", zap.Duration("interval", l.interval))

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Watch loop stopped")
			return ctx.Err()
		case <-ticker.C:
			l.Cycle(ctx)
		}
	}
}

// Cycle runs one evaluation of the current watch. It never panics and never
// returns an error: every failure is logged and reported in the outcome.
func (l *Loop) Cycle(ctx context.Context) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Watch cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
			outcome = OutcomePanic
		}
	}()

	w, ok := l.registry.CurrentWatch()
	if !ok {
		return OutcomeIdle
	}
	log := l.logger.With(
		zap.String("watch_id", w.ID),
		zap.String("token", w.Address),
		zap.String("symbol", w.Symbol))

	// Таймаут проверяется раньше market cap и завершает цикл
	if w.Expired(l.now()) {
		if !l.registry.Release(w.ID) {
			return OutcomeSuperseded
		}
		msg := fmt.Sprintf("Timeout: abandoning %s", w.Symbol)
		log.Info("⌛ Watch expired", zap.Time("expires_at", w.ExpiresAt))
		l.record(ctx, msg)
		l.notify(ctx, msg)
		return OutcomeTimeout
	}

	marketCap, err := l.market.FetchMarketCap(ctx, w.Address)
	if err != nil {
		log.Warn("Failed to fetch market cap", zap.Error(err))
		l.record(ctx, "Error: "+err.Error())
		return OutcomeFetchFailed
	}

	cfg := l.settings.Snapshot()
	if marketCap > float64(cfg.MarketCapThresholdUSD) {
		log.Debug("Market cap above threshold",
			zap.Float64("market_cap", marketCap),
			zap.Int64("threshold", cfg.MarketCapThresholdUSD))
		return OutcomeWatching
	}

	// Watch снимается до покупки: неудачная сделка тоже завершает наблюдение
	if !l.registry.Release(w.ID) {
		log.Info("Watch replaced while evaluating, skipping buy")
		return OutcomeSuperseded
	}
	log = logger.WithOperation(log, "buy-cycle")

	// Сумма берётся из того же snapshot, что и в уведомлении
	msg := l.printer.Sprintf("%s dropped to $%.0f - BUYING %v SOL!", w.Symbol, marketCap, cfg.BuyAmountSOL)
	log.Info("🎯 Buy condition met",
		zap.Float64("market_cap", marketCap),
		zap.Int64("threshold", cfg.MarketCapThresholdUSD),
		zap.Float64("amount_sol", cfg.BuyAmountSOL))
	l.record(ctx, msg)
	l.notify(ctx, msg)

	sig, err := l.buyer.ExecuteBuy(ctx, w.Address, cfg.BuyAmountSOL)
	if err != nil {
		l.notify(ctx, fmt.Sprintf("Buy of %s failed: %v", w.Symbol, err))
		l.record(ctx, "Error: "+err.Error())
		return OutcomeBuyFailed
	}

	l.notify(ctx, "Transaction hash: "+sig)
	l.record(ctx, "TX: "+sig)
	return OutcomeBought
}

func (l *Loop) notify(ctx context.Context, text string) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.Notify(ctx, text); err != nil {
		l.logger.Warn("Failed to deliver notification", zap.Error(err))
	}
}

func (l *Loop) record(ctx context.Context, text string) {
	if l.history == nil {
		return
	}
	if err := l.history.Record(ctx, text); err != nil {
		l.logger.Warn("Failed to write history entry", zap.Error(err))
	}
}
