package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("slot not found")))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(fmt.Errorf("query slots: %w", context.DeadlineExceeded)))
	assert.True(t, IsTransient(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}))
	assert.True(t, IsTransient(&pgconn.PgError{Code: "08006"}))
	assert.True(t, IsTransient(&pgconn.PgError{Code: "57P01"}))
	assert.False(t, IsTransient(&pgconn.PgError{Code: "23514"}))
}

func TestRetryRead(t *testing.T) {
	t.Run("retries transient errors", func(t *testing.T) {
		calls := 0
		got, err := RetryRead(context.Background(), 3, func(ctx context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, &pgconn.PgError{Code: "08006"}
			}
			return 42, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry domain errors", func(t *testing.T) {
		notFound := errors.New("not found")
		calls := 0
		_, err := RetryRead(context.Background(), 3, func(ctx context.Context) (int, error) {
			calls++
			return 0, notFound
		})
		assert.ErrorIs(t, err, notFound)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		calls := 0
		_, err := RetryRead(context.Background(), 2, func(ctx context.Context) (string, error) {
			calls++
			return "", &pgconn.PgError{Code: "08001"}
		})
		assert.Error(t, err)
		assert.Equal(t, 2, calls)
	})
	t.Run("does not retry an expired deadline", func(t *testing.T) {
		calls := 0
		_, err := RetryRead(context.Background(), 3, func(ctx context.Context) (int, error) {
			calls++
			return 0, fmt.Errorf("read: %w", context.DeadlineExceeded)
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, calls)
	})
}
