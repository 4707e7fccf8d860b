package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
)

// Repository applies each balance change and its ledger entry atomically.
type Repository interface {
	// Credit creates the wallet when it does not exist yet.
	Credit(ctx context.Context, tx Transaction) (*Wallet, error)
	// Debit only succeeds while balance >= tx.Amount.
	Debit(ctx context.Context, tx Transaction) (*Wallet, error)

	EnsureWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error)
}
