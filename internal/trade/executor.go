// internal/trade/executor.go
package trade

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-dipbuyer/internal/blockchain"
	"github.com/rovshanmuradov/solana-dipbuyer/internal/jupiter"
	"github.com/rovshanmuradov/solana-dipbuyer/internal/logger"
	"github.com/rovshanmuradov/solana-dipbuyer/internal/wallet"
)

const (
	// WrappedSOLMint is the mint the aggregator uses for native SOL.
	WrappedSOLMint = "So11111111111111111111111111111111111111112"

	DefaultSlippageBps = 100
	lamportsDecimals   = 9
)

// ErrTradeExecutionFailed matches every error returned by ExecuteBuy.
var ErrTradeExecutionFailed = errors.New("trade execution failed")

// Stage names the step of a buy that failed.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageQuote     Stage = "quote"
	StageSwap      Stage = "swap"
	StageDecode    Stage = "decode"
	StageConnect   Stage = "connect"
	StageBlockhash Stage = "blockhash"
	StageSign      Stage = "sign"
	StageSubmit    Stage = "submit"
)

// TradeError carries the upstream failure of one buy stage.
type TradeError struct {
	Stage Stage
	Err   error
}

func (e *TradeError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrTradeExecutionFailed, e.Stage, e.Err)
}

func (e *TradeError) Unwrap() error {
	return e.Err
}

func (e *TradeError) Is(target error) bool {
	return target == ErrTradeExecutionFailed
}

// SwapProvider is the part of the aggregator client the executor needs.
type SwapProvider interface {
	GetQuote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.Quote, error)
	GetSwapTransaction(ctx context.Context, req jupiter.SwapRequest) (*jupiter.SwapResponse, error)
}

// Config wires an Executor.
type Config struct {
	Wallet      *wallet.Wallet
	Swap        SwapProvider
	Dial        blockchain.Dialer
	SlippageBps int
	Logger      *zap.Logger
}

// Executor buys tokens with SOL through the swap aggregator.
type Executor struct {
	wallet      *wallet.Wallet
	swap        SwapProvider
	dial        blockchain.Dialer
	slippageBps int
	logger      *zap.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(cfg Config) *Executor {
	slippage := cfg.SlippageBps
	if slippage <= 0 {
		slippage = DefaultSlippageBps
	}
	return &Executor{
		wallet:      cfg.Wallet,
		swap:        cfg.Swap,
		dial:        cfg.Dial,
		slippageBps: slippage,
		logger:      cfg.Logger.Named("trade-executor"),
	}
}

// ToLamports converts a SOL amount into lamports, truncating sub-lamport dust.
func ToLamports(sol float64) (uint64, error) {
	d := decimal.NewFromFloat(sol).Shift(lamportsDecimals).Truncate(0)
	if !d.IsPositive() {
		return 0, fmt.Errorf("amount %v SOL is below one lamport", sol)
	}
	if !d.BigInt().IsUint64() {
		return 0, fmt.Errorf("amount %v SOL overflows lamports", sol)
	}
	return d.BigInt().Uint64(), nil
}

// ExecuteBuy swaps amountSOL into token and returns the transaction
// signature once the node has accepted it. There is no retry.
func (e *Executor) ExecuteBuy(ctx context.Context, token string, amountSOL float64) (string, error) {
	start := time.Now()
	log, done := logger.TrackPerformance(e.logger.With(zap.String("token", token)), "buy")
	defer done()

	sig, err := e.executeBuy(ctx, token, amountSOL, log)
	if err != nil {
		log.Error("❌ Buy failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return "", err
	}

	log.Info("✅ Buy submitted",
		zap.String("signature", sig),
		zap.Duration("elapsed", time.Since(start)))
	return sig, nil
}

func (e *Executor) executeBuy(ctx context.Context, token string, amountSOL float64, log *zap.Logger) (string, error) {
	if _, err := solana.PublicKeyFromBase58(token); err != nil {
		return "", &TradeError{Stage: StageValidate, Err: fmt.Errorf("invalid token mint %q: %w", token, err)}
	}
	lamports, err := ToLamports(amountSOL)
	if err != nil {
		return "", &TradeError{Stage: StageValidate, Err: err}
	}

	// 1. Котировка и готовая транзакция от агрегатора
	quote, err := e.swap.GetQuote(ctx, jupiter.QuoteRequest{
		InputMint:      WrappedSOLMint,
		OutputMint:     token,
		Amount:         lamports,
		SlippageBps:    e.slippageBps,
		PlatformFeeBps: 0,
	})
	if err != nil {
		return "", &TradeError{Stage: StageQuote, Err: err}
	}
	log.Info("Quote received",
		zap.Float64("amount_sol", amountSOL),
		zap.Uint64("lamports", lamports),
		zap.String("out_amount", quote.OutAmount))

	swap, err := e.swap.GetSwapTransaction(ctx, jupiter.SwapRequest{
		Quote:            quote,
		UserPublicKey:    e.wallet.PublicKey.String(),
		WrapAndUnwrapSol: true,
	})
	if err != nil {
		return "", &TradeError{Stage: StageSwap, Err: err}
	}

	// 2. Декодирование, свежий blockhash, подпись
	tx, err := DecodeTransaction(swap.SwapTransaction)
	if err != nil {
		return "", &TradeError{Stage: StageDecode, Err: err}
	}
	if err := ValidateSwap(tx, e.wallet.PublicKey); err != nil {
		return "", &TradeError{Stage: StageDecode, Err: err}
	}

	client, err := e.dial(ctx)
	if err != nil {
		return "", &TradeError{Stage: StageConnect, Err: err}
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			log.Debug("closing chain client", zap.Error(cerr))
		}
	}()

	blockhash, err := client.GetRecentBlockhash(ctx)
	if err != nil {
		return "", &TradeError{Stage: StageBlockhash, Err: err}
	}
	tx.Message.RecentBlockhash = blockhash

	if err := e.wallet.SignTransaction(tx); err != nil {
		return "", &TradeError{Stage: StageSign, Err: err}
	}
	if err := ValidateSigned(tx); err != nil {
		return "", &TradeError{Stage: StageSign, Err: err}
	}

	// 3. Отправка без ожидания подтверждения
	sig, err := client.SendTransaction(ctx, tx)
	if err != nil {
		return "", &TradeError{Stage: StageSubmit, Err: err}
	}
	return sig.String(), nil
}

// DecodeTransaction parses a base64 serialized transaction.
func DecodeTransaction(payload string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("deserialize transaction: %w", err)
	}
	return tx, nil
}
