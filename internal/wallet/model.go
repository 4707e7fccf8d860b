package wallet

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TypeCredit TransactionType = "credit"
	TypeDebit  TransactionType = "debit"
)

// Transaction is one immutable ledger entry. Amount is always positive, the
// sign comes from Type.
type Transaction struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Amount      int64
	Type        TransactionType
	Description string
	BookingRef  *uuid.UUID
	CreatedAt   time.Time
}

func (t Transaction) Signed() int64 {
	if t.Type == TypeDebit {
		return -t.Amount
	}
	return t.Amount
}

// Wallet balances are in minor currency units.
type Wallet struct {
	UserID       uuid.UUID
	Balance      int64
	Transactions []Transaction
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
