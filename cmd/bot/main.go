// ====================================
// File: cmd/bot/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-dipbuyer/internal/bot"
	"github.com/rovshanmuradov/solana-dipbuyer/internal/config"
	"github.com/rovshanmuradov/solana-dipbuyer/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "optional config file (yaml, json, toml); environment variables take precedence")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 %v\n", err)
		os.Exit(1)
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting dip buyer")
	if err := bot.NewRunner(cfg, log.Logger).Run(ctx); err != nil {
		log.Error("Bot execution error", zap.Error(err))
		_ = log.Close()
		os.Exit(1)
	}
}
