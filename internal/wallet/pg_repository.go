package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanWallet(row pgx.Row) (*Wallet, error) {
	var w Wallet
	err := row.Scan(&w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.Description, &t.BookingRef, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t Transaction) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO wallet_transactions (id, user_id, amount, type, description, booking_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, t.ID, t.UserID, t.Amount, t.Type, t.Description, t.BookingRef)
	if err != nil {
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	return nil
}

func (r *PgRepository) Credit(ctx context.Context, t Transaction) (*Wallet, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	w, err := scanWallet(tx.QueryRow(ctx, `
		INSERT INTO wallets (user_id, balance, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (user_id) DO UPDATE
		SET balance = wallets.balance + EXCLUDED.balance,
		    updated_at = now()
		RETURNING user_id, balance, created_at, updated_at
	`, t.UserID, t.Amount))
	if err != nil {
		return nil, err
	}

	if err := insertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *PgRepository) Debit(ctx context.Context, t Transaction) (*Wallet, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	w, err := scanWallet(tx.QueryRow(ctx, `
		UPDATE wallets
		SET balance = balance - $2,
		    updated_at = now()
		WHERE user_id = $1
		  AND balance >= $2
		RETURNING user_id, balance, created_at, updated_at
	`, t.UserID, t.Amount))
	if errors.Is(err, ErrWalletNotFound) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE user_id = $1)`, t.UserID).Scan(&exists); err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrInsufficientBalance
		}
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := insertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *PgRepository) EnsureWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return scanWallet(r.pool.QueryRow(ctx, `
		INSERT INTO wallets (user_id, balance, created_at, updated_at)
		VALUES ($1, 0, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING user_id, balance, created_at, updated_at
	`, userID))
}

func (r *PgRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, amount, type, description, booking_ref, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
