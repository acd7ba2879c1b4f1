// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-dipbuyer/internal/blockchain"
)

// Client – тонкий адаптер для взаимодействия с блокчейном Solana через solana-go.
type Client struct {
	rpc    *rpc.Client
	opts   blockchain.TransactionOptions
	logger *zap.Logger
}

// DefaultTransactionOptions keeps preflight simulation on so that obviously
// broken swaps are rejected by the node before they land.
var DefaultTransactionOptions = blockchain.TransactionOptions{
	SkipPreflight:       false,
	PreflightCommitment: rpc.CommitmentConfirmed,
}

// NewClient создаёт новый клиент, принимая RPC URL и логгер через dependency injection.
func NewClient(rpcURL string, logger *zap.Logger) *Client {
	return &Client{
		rpc:    rpc.New(rpcURL),
		opts:   DefaultTransactionOptions,
		logger: logger.Named("solbc-client"),
	}
}

// NewDialer returns a blockchain.Dialer that opens a new client per call.
func NewDialer(rpcURL string, logger *zap.Logger) blockchain.Dialer {
	return func(ctx context.Context) (blockchain.Client, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewClient(rpcURL, logger), nil
	}
}

// GetRecentBlockhash получает последний blockhash с использованием стандартного метода solana-go.
func (c *Client) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	result, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		c.logger.Error("GetRecentBlockhash error", zap.Error(err))
		return solana.Hash{}, err
	}
	if result == nil || result.Value == nil {
		return solana.Hash{}, fmt.Errorf("empty blockhash response")
	}
	return result.Value.Blockhash, nil
}

// SendTransaction отправляет транзакцию. Returns as soon as the node accepts
// it; confirmation is not awaited.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       c.opts.SkipPreflight,
		PreflightCommitment: c.opts.PreflightCommitment,
	})
	if err != nil {
		err = AnalyzeSendError(err)
		c.logger.Error("SendTransaction error", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

// Close закрывает соединение с RPC узлом.
func (c *Client) Close() error {
	return c.rpc.Close()
}

// Гарантируем, что Client реализует интерфейс blockchain.Client.
var _ blockchain.Client = (*Client)(nil)
