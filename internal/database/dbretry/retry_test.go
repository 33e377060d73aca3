package dbretry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/robalyx/chatguard/internal/database/dbretry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errConnReset  = errors.New("read tcp: connection reset by peer")
	errConstraint = errors.New("duplicate key value violates unique constraint")
)

func TestIsRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "network reset", err: errConnReset, want: true},
		{name: "wrapped network reset", err: fmt.Errorf("insert: %w", errConnReset), want: true},
		{name: "constraint violation", err: errConstraint, want: false},
		{name: "context canceled", err: context.Canceled, want: false},
		{name: "deadline exceeded", err: fmt.Errorf("query: %w", context.DeadlineExceeded), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, dbretry.IsRetryableError(tt.err))
		})
	}
}

func TestNoResultStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	calls := 0
	err := dbretry.NoResult(t.Context(), func(context.Context) error {
		calls++
		return errConstraint
	})

	require.ErrorIs(t, err, errConstraint)
	assert.Equal(t, 1, calls)
}

func TestOperationRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	calls := 0
	result, err := dbretry.Operation(t.Context(), func(context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, errConnReset
		}

		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 2, calls)
}
