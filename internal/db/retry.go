package db

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	DefaultReadAttempts = 3
	retryBaseDelay      = 50 * time.Millisecond
)

// IsTransient reports whether err looks like a connection level failure that may
// succeed on a second attempt. Domain errors and constraint violations are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	// context.DeadlineExceeded also satisfies net.Error.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if pgconn.Timeout(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08: connection exception, 57P01..57P03: admin shutdown / cannot connect now
		switch {
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08":
			return true
		case pgErr.Code == "57P01", pgErr.Code == "57P02", pgErr.Code == "57P03":
			return true
		}
		return false
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// RetryRead runs an idempotent read up to attempts times, backing off between
// transient failures. Mutations must not go through here.
func RetryRead[T any](ctx context.Context, attempts int, fn func(ctx context.Context) (T, error)) (T, error) {
	if attempts < 1 {
		attempts = 1
	}

	var (
		out T
		err error
	)
	delay := retryBaseDelay
	for i := 0; i < attempts; i++ {
		out, err = fn(ctx)
		if err == nil || !IsTransient(err) {
			return out, err
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return out, err
		case <-time.After(delay):
		}
		delay *= 2
	}
	return out, err
}
