// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ErrInvalidKey is returned when the operator key material cannot be decoded.
var ErrInvalidKey = errors.New("invalid private key")

// Wallet представляет кошелёк оператора Solana.
type Wallet struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey
}

// NewWallet создаёт новый кошелёк из base58-encoded приватного ключа.
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode base58: %v", ErrInvalidKey, err)
	}
	return fromBytes(privateKeyBytes)
}

// NewWalletFromSecret accepts either the solana-keygen JSON byte array
// ("[12,34,...]") or a base58 string.
func NewWalletFromSecret(secret string) (*Wallet, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("%w: empty secret", ErrInvalidKey)
	}
	if !strings.HasPrefix(secret, "[") {
		return NewWallet(secret)
	}

	var raw []int
	if err := json.Unmarshal([]byte(secret), &raw); err != nil {
		return nil, fmt.Errorf("%w: must be a JSON array: %v", ErrInvalidKey, err)
	}
	keyBytes := make([]byte, len(raw))
	for i, v := range raw {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: byte %d out of range: %d", ErrInvalidKey, i, v)
		}
		keyBytes[i] = byte(v)
	}
	return fromBytes(keyBytes)
}

func fromBytes(keyBytes []byte) (*Wallet, error) {
	if len(keyBytes) != 64 {
		return nil, fmt.Errorf("%w: expected 64 bytes, got %d", ErrInvalidKey, len(keyBytes))
	}
	privateKey := solana.PrivateKey(keyBytes)
	return &Wallet{
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
	}, nil
}

// SignTransaction подписывает транзакцию приватным ключом кошелька.
// Existing signature slots (for example zero placeholders from a swap API)
// are discarded before signing, solana-go appends signatures otherwise.
func (w *Wallet) SignTransaction(tx *solana.Transaction) error {
	tx.Signatures = nil
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.PublicKey) {
			return &w.PrivateKey
		}
		return nil
	})
	return err
}

// String возвращает строковое представление кошелька (его публичный ключ).
func (w *Wallet) String() string {
	return w.PublicKey.String()
}
