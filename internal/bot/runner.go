// internal/bot/runner.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/solana-dipbuyer/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-dipbuyer/internal/config"
	"github.com/rovshanmuradov/solana-dipbuyer/internal/jupiter"
	"github.com/rovshanmuradov/solana-dipbuyer/internal/marketdata"
	"github.com/rovshanmuradov/solana-dipbuyer/internal/monitor"
	"github.com/rovshanmuradov/solana-dipbuyer/internal/storage"
	"github.com/rovshanmuradov/solana-dipbuyer/internal/storage/postgres"
	"github.com/rovshanmuradov/solana-dipbuyer/internal/telegram"
	"github.com/rovshanmuradov/solana-dipbuyer/internal/trade"
)

type Runner struct {
	logger   *zap.Logger
	config   *config.Config
	shutdown *ShutdownHandler
}

// NewRunner NewRunner: принимает cfg и logger
func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		logger:   logger,
		config:   cfg,
		shutdown: NewShutdownHandler(logger, 15*time.Second),
	}
}

// Run wires every component and blocks until ctx is cancelled or one of the
// long-running tasks fails. Resources are closed before it returns.
func (r *Runner) Run(ctx context.Context) error {
	defer func() {
		if err := r.shutdown.Shutdown(context.Background()); err != nil {
			r.logger.Warn("Shutdown finished with errors", zap.Error(err))
		}
	}()

	cfg := r.config
	w, err := cfg.Wallet()
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}

	history, archive, err := r.openHistory(ctx)
	if err != nil {
		return err
	}

	settings, err := monitor.NewSettings(monitor.RuntimeConfig{
		MarketCapThresholdUSD: cfg.DefaultThreshold,
		BuyAmountSOL:          cfg.BuyAmountSOL,
	})
	if err != nil {
		return fmt.Errorf("runtime settings: %w", err)
	}
	registry := monitor.NewRegistry(nil)

	birdeye := marketdata.NewService(marketdata.Config{
		BaseURL:                cfg.BirdeyeURL,
		APIKey:                 cfg.BirdeyeAPIKey,
		ZeroOnMissingMarketCap: cfg.ZeroMissingMarketCap,
	}, r.logger)

	executor := trade.NewExecutor(trade.Config{
		Wallet:      w,
		Swap:        jupiter.NewClient(cfg.JupiterURL, r.logger),
		Dial:        solbc.NewDialer(cfg.RPCURL, r.logger),
		SlippageBps: cfg.SlippageBps,
		Logger:      r.logger,
	})

	bus := NewCommandBus(r.logger)
	chat, err := telegram.New(telegram.Config{
		Token:      cfg.TelegramToken,
		Dispatcher: bus,
		Logger:     r.logger,
	})
	if err != nil {
		return err
	}

	detector := monitor.NewDetector(monitor.DetectorConfig{
		Registry: registry,
		Holdings: birdeye,
		Wallet:   cfg.MonitoredWallet,
		WatchTTL: cfg.WatchTTL,
		Notifier: chat,
		History:  history,
		Logger:   r.logger,
	})
	deps := OperatorDeps{
		Checker:  detector,
		Registry: registry,
		Settings: settings,
	}
	if archive != nil {
		deps.History = archive
	}
	if err := RegisterOperatorCommands(bus, deps); err != nil {
		return err
	}

	loop := monitor.NewLoop(monitor.LoopConfig{
		Registry:     registry,
		Settings:     settings,
		MarketData:   birdeye,
		Buyer:        executor,
		Notifier:     chat,
		History:      history,
		PollInterval: cfg.PollInterval,
		Logger:       r.logger,
	})
	keepalive := NewKeepaliveServer(cfg.KeepaliveAddr, r.logger)

	r.logger.Info("🚀 Dip buyer started",
		zap.String("operator", w.PublicKey.String()),
		zap.String("monitored_wallet", cfg.MonitoredWallet),
		zap.Int64("threshold_usd", cfg.DefaultThreshold),
		zap.Float64("buy_amount_sol", cfg.BuyAmountSOL))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return chat.Run(gctx, menuFor(bus)) })
	g.Go(func() error { return keepalive.Run(gctx) })
	if cfg.AutoCheckInterval > 0 {
		g.Go(func() error { return detector.Run(gctx, cfg.AutoCheckInterval) })
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		r.logger.Info("👋 Bot shutting down gracefully")
		return nil
	}
	return err
}

// openHistory opens history.log and, when configured, the Postgres mirror.
// The returned store is nil without POSTGRES_URL.
func (r *Runner) openHistory(ctx context.Context) (*storage.History, *postgres.HistoryStore, error) {
	file, err := storage.NewFileSink(r.config.HistoryFile, r.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open history: %w", err)
	}
	r.shutdown.Add("history-file", file)
	sinks := []storage.Sink{file}

	if r.config.PostgresURL == "" {
		return storage.NewHistory(sinks...), nil, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(connectCtx, r.config.PostgresURL, r.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open history database: %w", err)
	}
	r.shutdown.Add("postgres", pool)

	store := postgres.NewHistoryStore(pool)
	if err := store.EnsureSchema(connectCtx); err != nil {
		return nil, nil, err
	}
	sinks = append(sinks, store)
	return storage.NewHistory(sinks...), store, nil
}

func menuFor(bus *CommandBus) []telegram.CommandInfo {
	cmds := bus.Commands()
	out := make([]telegram.CommandInfo, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, telegram.CommandInfo{Name: cmd.Name, Description: cmd.Description})
	}
	return out
}
