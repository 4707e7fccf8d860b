package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-slot-booking/internal/db"
)

// RecentTransactions is how many ledger entries Get returns.
const RecentTransactions = 50

type Ledger struct {
	repo Repository
	log  *zap.Logger
}

func NewLedger(repo Repository, log *zap.Logger) *Ledger {
	return &Ledger{
		repo: repo,
		log:  log,
	}
}

// Credit adds amount to the user's wallet, creating the wallet on first use.
func (l *Ledger) Credit(ctx context.Context, userID uuid.UUID, amount int64, description string, bookingRef *uuid.UUID) (*Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	w, err := l.repo.Credit(ctx, entry(userID, amount, TypeCredit, description, bookingRef))
	if err != nil {
		return nil, fmt.Errorf("credit wallet: %w", err)
	}

	l.log.Info("wallet credited",
		zap.String("user_id", userID.String()),
		zap.Int64("amount", amount),
		zap.Int64("balance", w.Balance),
		bookingField(bookingRef),
	)
	return w, nil
}

// Debit takes amount from the user's wallet. The balance never goes negative:
// a debit larger than the balance fails with ErrInsufficientBalance and
// changes nothing.
func (l *Ledger) Debit(ctx context.Context, userID uuid.UUID, amount int64, description string, bookingRef *uuid.UUID) (*Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	w, err := l.repo.Debit(ctx, entry(userID, amount, TypeDebit, description, bookingRef))
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) || errors.Is(err, ErrInsufficientBalance) {
			return nil, err
		}
		return nil, fmt.Errorf("debit wallet: %w", err)
	}

	l.log.Info("wallet debited",
		zap.String("user_id", userID.String()),
		zap.Int64("amount", amount),
		zap.Int64("balance", w.Balance),
		bookingField(bookingRef),
	)
	return w, nil
}

// Get returns the wallet with its most recent transactions, newest first.
func (l *Ledger) Get(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	w, err := db.RetryRead(ctx, db.DefaultReadAttempts, func(ctx context.Context) (*Wallet, error) {
		return l.repo.EnsureWallet(ctx, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}

	txs, err := db.RetryRead(ctx, db.DefaultReadAttempts, func(ctx context.Context) ([]Transaction, error) {
		return l.repo.ListTransactions(ctx, userID, RecentTransactions)
	})
	if err != nil {
		return nil, fmt.Errorf("list wallet transactions: %w", err)
	}

	w.Transactions = txs
	return w, nil
}

func entry(userID uuid.UUID, amount int64, typ TransactionType, description string, bookingRef *uuid.UUID) Transaction {
	if description == "" {
		description = string(typ)
	}
	return Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      amount,
		Type:        typ,
		Description: description,
		BookingRef:  bookingRef,
	}
}

func bookingField(ref *uuid.UUID) zap.Field {
	if ref == nil {
		return zap.Skip()
	}
	return zap.String("booking_ref", ref.String())
}
