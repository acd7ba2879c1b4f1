// internal/blockchain/types.go
package blockchain

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// TransactionOptions определяет опции для отправки транзакций.
type TransactionOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
}

// Client определяет интерфейс, который использует исполнитель сделок.
type Client interface {
	// Получить последний blockhash.
	GetRecentBlockhash(ctx context.Context) (solana.Hash, error)
	// Отправить транзакцию и дождаться подтверждения приёма узлом.
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	// Закрыть соединение с узлом.
	Close() error
}

// Dialer opens a fresh chain client. The trade executor dials once per buy.
type Dialer func(ctx context.Context) (Client, error)
