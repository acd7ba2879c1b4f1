// internal/trade/validator.go
package trade

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrInvalidSignature   = errors.New("invalid transaction signature")
	ErrInvalidBlockhash   = errors.New("invalid blockhash")
	ErrInvalidInstruction = errors.New("invalid instruction")
	ErrForeignFeePayer    = errors.New("fee payer is not the operator wallet")
)

// ValidateSwap checks the aggregator transaction before it is signed: it must
// contain instructions and be paid by payer.
func ValidateSwap(tx *solana.Transaction, payer solana.PublicKey) error {
	if len(tx.Message.Instructions) == 0 {
		return ErrInvalidInstruction
	}
	if len(tx.Message.AccountKeys) == 0 || tx.Message.Header.NumRequiredSignatures == 0 {
		return fmt.Errorf("%w: no signer accounts", ErrInvalidInstruction)
	}
	if !tx.Message.AccountKeys[0].Equals(payer) {
		return fmt.Errorf("%w: got %s", ErrForeignFeePayer, tx.Message.AccountKeys[0])
	}
	return nil
}

// ValidateSigned checks the transaction right before submission.
func ValidateSigned(tx *solana.Transaction) error {
	if tx.Message.RecentBlockhash == (solana.Hash{}) {
		return ErrInvalidBlockhash
	}
	if len(tx.Signatures) != int(tx.Message.Header.NumRequiredSignatures) {
		return fmt.Errorf("%w: have %d signatures, need %d",
			ErrInvalidSignature, len(tx.Signatures), tx.Message.Header.NumRequiredSignatures)
	}
	for _, sig := range tx.Signatures {
		if sig == (solana.Signature{}) {
			return ErrInvalidSignature
		}
	}
	return nil
}
