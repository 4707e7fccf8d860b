package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memRepository struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*Wallet
	txs     map[uuid.UUID][]Transaction
	failOn  error
}

func newMemRepository() *memRepository {
	return &memRepository{
		wallets: make(map[uuid.UUID]*Wallet),
		txs:     make(map[uuid.UUID][]Transaction),
	}
}

func (r *memRepository) Credit(ctx context.Context, t Transaction) (*Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != nil {
		return nil, r.failOn
	}
	w, ok := r.wallets[t.UserID]
	if !ok {
		w = &Wallet{UserID: t.UserID, CreatedAt: time.Now()}
		r.wallets[t.UserID] = w
	}
	w.Balance += t.Amount
	w.UpdatedAt = time.Now()
	r.append(t)
	out := *w
	return &out, nil
}

func (r *memRepository) Debit(ctx context.Context, t Transaction) (*Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != nil {
		return nil, r.failOn
	}
	w, ok := r.wallets[t.UserID]
	if !ok {
		return nil, ErrWalletNotFound
	}
	if w.Balance < t.Amount {
		return nil, ErrInsufficientBalance
	}
	w.Balance -= t.Amount
	w.UpdatedAt = time.Now()
	r.append(t)
	out := *w
	return &out, nil
}

func (r *memRepository) append(t Transaction) {
	t.CreatedAt = time.Now()
	r.txs[t.UserID] = append(r.txs[t.UserID], t)
}

func (r *memRepository) EnsureWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[userID]
	if !ok {
		w = &Wallet{UserID: userID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		r.wallets[userID] = w
	}
	out := *w
	return &out, nil
}

func (r *memRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txs := append([]Transaction(nil), r.txs[userID]...)
	// newest first
	for i, j := 0, len(txs)-1; i < j; i, j = i+1, j-1 {
		txs[i], txs[j] = txs[j], txs[i]
	}
	if len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}
