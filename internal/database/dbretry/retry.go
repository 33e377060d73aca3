package dbretry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

var (
	maxElapsedTime  = 30 * time.Second
	initialInterval = 500 * time.Millisecond
	maxInterval     = 5 * time.Second
	maxRetries      = uint64(5)
)

// retryableCodes lists the PostgreSQL SQLSTATE codes worth retrying.
var retryableCodes = map[string]struct{}{
	"08000": {}, // connection_exception
	"08003": {}, // connection_does_not_exist
	"08006": {}, // connection_failure
	"08001": {}, // sqlclient_unable_to_establish_sqlconnection
	"08004": {}, // sqlserver_rejected_establishment_of_sqlconnection
	"08007": {}, // transaction_resolution_unknown
	"08P01": {}, // protocol_violation
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"53000": {}, // insufficient_resources
	"53100": {}, // disk_full
	"53200": {}, // out_of_memory
	"53300": {}, // too_many_connections
	"53400": {}, // configuration_limit_exceeded
	"57000": {}, // operator_intervention
	"57P01": {}, // admin_shutdown
	"57P02": {}, // crash_shutdown
	"57P03": {}, // cannot_connect_now
	"55006": {}, // object_in_use
	"55P03": {}, // lock_not_available
}

// networkErrorFragments are substrings of transient network failures.
var networkErrorFragments = []string{
	"connection reset by peer",
	"broken pipe",
	"connection refused",
	"no connection",
	"i/o timeout",
	"unexpected EOF",
}

// IsRetryableError checks if the given error is retryable.
// Context cancellation and deadlines are never retried.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgerr pgdriver.Error
	if errors.As(err, &pgerr) {
		_, ok := retryableCodes[pgerr.Field('C')]
		return ok
	}

	errMsg := err.Error()
	for _, fragment := range networkErrorFragments {
		if strings.Contains(errMsg, fragment) {
			return true
		}
	}

	return false
}

// Operation wraps a database operation with retry logic.
func Operation[T any](ctx context.Context, operation func(context.Context) (T, error)) (T, error) {
	var result T

	err := retry(ctx, func() error {
		var err error
		result, err = operation(ctx)

		return err
	})

	return result, err
}

// NoResult wraps a database operation that doesn't return a result.
func NoResult(ctx context.Context, operation func(context.Context) error) error {
	return retry(ctx, func() error {
		return operation(ctx)
	})
}

// Transaction wraps a database transaction with retry logic.
func Transaction(ctx context.Context, db *bun.DB, fn func(context.Context, bun.Tx) error) error {
	return NoResult(ctx, func(ctx context.Context) error {
		return db.RunInTx(ctx, nil, fn)
	})
}

// retry runs attempt with exponential backoff until it succeeds or fails permanently.
func retry(ctx context.Context, attempt func() error) error {
	var lastErr error

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(maxElapsedTime),
		backoff.WithInitialInterval(initialInterval),
		backoff.WithMaxInterval(maxInterval),
	), maxRetries)

	err := backoff.Retry(func() error {
		err := attempt()
		if err == nil {
			return nil
		}

		if !IsRetryableError(err) {
			return backoff.Permanent(err)
		}

		lastErr = err

		return err
	}, backoff.WithContext(b, ctx))
	if err != nil {
		if lastErr != nil && !errors.Is(err, lastErr) {
			// Return the last actual database error instead of the context error
			return fmt.Errorf("database operation failed after retries: %w", lastErr)
		}

		return fmt.Errorf("database operation failed: %w", err)
	}

	return nil
}
