// internal/bot/operator.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rovshanmuradov/solana-dipbuyer/internal/marketdata"
	"github.com/rovshanmuradov/solana-dipbuyer/internal/monitor"
	"github.com/rovshanmuradov/solana-dipbuyer/internal/storage"
)

// Checker starts a watch when the wallet holds a new token.
type Checker interface {
	Check(ctx context.Context) (monitor.Detection, error)
}

// HistoryReader returns the latest history entries, newest first.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]storage.HistoryEntry, error)
}

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 50
)

// OperatorDeps is what the operator commands read and mutate.
type OperatorDeps struct {
	Checker  Checker
	Registry *monitor.Registry
	Settings *monitor.Settings
	History  HistoryReader // nil when no history database is configured
	Now      func() time.Time
}

// operator holds the handlers of the operator commands.
type operator struct {
	deps    OperatorDeps
	printer *message.Printer
}

// RegisterOperatorCommands registers every command of the dip buyer on bus.
func RegisterOperatorCommands(bus *CommandBus, deps OperatorDeps) error {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	op := &operator{deps: deps, printer: message.NewPrinter(language.English)}

	commands := []Command{
		{Name: "start", Description: "Show available commands", Handler: op.start(bus)},
		{Name: "check", Description: "Check the wallet for a new token", Handler: op.check},
		{Name: "set_threshold", Description: "Set market cap threshold in USD", Usage: "/set_threshold 300000", Handler: op.setThreshold},
		{Name: "threshold", Description: "Show market cap threshold", Handler: op.threshold},
		{Name: "set_amount", Description: "Set buy amount in SOL", Usage: "/set_amount 0.05", Handler: op.setAmount},
		{Name: "amount", Description: "Show buy amount", Handler: op.amount},
		{Name: "status", Description: "Show the watched token", Handler: op.status},
		{Name: "history", Description: "Show recent history entries", Usage: "/history 10", Handler: op.history},
	}
	for _, cmd := range commands {
		if err := bus.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

func (op *operator) start(bus *CommandBus) HandlerFunc {
	return func(context.Context, []string) (string, error) {
		var sb strings.Builder
		sb.WriteString("Bot is active. Commands:")
		for _, cmd := range bus.Commands() {
			if cmd.Name == "start" {
				continue
			}
			usage := cmd.Usage
			if usage == "" {
				usage = "/" + cmd.Name
			}
			fmt.Fprintf(&sb, "\n%s - %s", usage, cmd.Description)
		}
		return sb.String(), nil
	}
}

func (op *operator) check(ctx context.Context, _ []string) (string, error) {
	det, err := op.deps.Checker.Check(ctx)
	if err != nil {
		if errors.Is(err, marketdata.ErrUpstreamUnavailable) {
			return "Birdeye is unavailable, try again later.", nil
		}
		return "", err
	}

	switch det.Status {
	case monitor.NoHoldings:
		return "No data from Birdeye.", nil
	case monitor.Unchanged:
		return "No new tokens.", nil
	default:
		return monitor.NewTokenMessage(det.Token), nil
	}
}

func (op *operator) setThreshold(_ context.Context, args []string) (string, error) {
	const usage = "/set_threshold 300000"
	if len(args) != 1 {
		return "", invalidArgs("set_threshold", usage, "expected one argument, got %d", len(args))
	}
	value, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return "", invalidArgs("set_threshold", usage, "%q is not an integer", args[0])
	}
	if err := op.deps.Settings.SetThreshold(value); err != nil {
		return "", invalidArgs("set_threshold", usage, "%v", err)
	}
	return op.printer.Sprintf("Market cap threshold set: %d USD", value), nil
}

func (op *operator) threshold(context.Context, []string) (string, error) {
	return op.printer.Sprintf("Current market cap threshold: %d USD", op.deps.Settings.Threshold()), nil
}

func (op *operator) setAmount(_ context.Context, args []string) (string, error) {
	const usage = "/set_amount 0.05"
	if len(args) != 1 {
		return "", invalidArgs("set_amount", usage, "expected one argument, got %d", len(args))
	}
	value, err := strconv.ParseFloat(args[0], 64)
	if err != nil || math.IsNaN(value) {
		return "", invalidArgs("set_amount", usage, "%q is not a number", args[0])
	}
	if err := op.deps.Settings.SetBuyAmount(value); err != nil {
		return "", invalidArgs("set_amount", usage, "%v", err)
	}
	return fmt.Sprintf("Buy amount set: %v SOL", value), nil
}

func (op *operator) amount(context.Context, []string) (string, error) {
	return fmt.Sprintf("Current buy amount: %v SOL", op.deps.Settings.BuyAmount()), nil
}

func (op *operator) status(context.Context, []string) (string, error) {
	w, ok := op.deps.Registry.CurrentWatch()
	if !ok {
		return "Not watching any token.", nil
	}
	left := w.ExpiresAt.Sub(op.deps.Now()).Truncate(time.Second)
	if left < 0 {
		left = 0
	}
	cfg := op.deps.Settings.Snapshot()
	return op.printer.Sprintf("Watching %s (%s)\nExpires in %s\nBuy at market cap <= %d USD for %v SOL",
		w.Symbol, w.Address, left, cfg.MarketCapThresholdUSD, cfg.BuyAmountSOL), nil
}

func (op *operator) history(ctx context.Context, args []string) (string, error) {
	const usage = "/history 10"
	limit := defaultHistoryLimit
	if len(args) > 1 {
		return "", invalidArgs("history", usage, "expected at most one argument, got %d", len(args))
	}
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 || n > maxHistoryLimit {
			return "", invalidArgs("history", usage, "limit must be an integer within 1..%d, got %q", maxHistoryLimit, args[0])
		}
		limit = n
	}

	if op.deps.History == nil {
		return "History database is not configured.", nil
	}
	entries, err := op.deps.History.Recent(ctx, limit)
	if err != nil {
		return "", fmt.Errorf("read history: %w", err)
	}
	if len(entries) == 0 {
		return "History is empty.", nil
	}

	// Старые записи сверху, как в history.log
	var sb strings.Builder
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Fprintf(&sb, "[%s] %s", e.RecordedAt.Format(storage.HistoryTimeLayout), e.Text)
		if i > 0 {
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}
