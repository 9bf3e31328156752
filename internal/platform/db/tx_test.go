package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	committed  *int
	rolledBack *int
}

func (t fakeTx) Commit(ctx context.Context) error {
	*t.committed++
	return nil
}

func (t fakeTx) Rollback(ctx context.Context) error {
	*t.rolledBack++
	return nil
}

type fakeBeginner struct {
	begun      int
	committed  int
	rolledBack int
	opts       pgx.TxOptions
}

func (b *fakeBeginner) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	b.begun++
	b.opts = opts
	return fakeTx{committed: &b.committed, rolledBack: &b.rolledBack}, nil
}

func TestWithTxCommits(t *testing.T) {
	b := &fakeBeginner{}
	require.NoError(t, WithTx(t.Context(), b, func(pgx.Tx) error { return nil }))
	require.Equal(t, 1, b.begun)
	require.Equal(t, 1, b.committed)
	require.Equal(t, pgx.RepeatableRead, b.opts.IsoLevel)
}

func TestWithTxRetriesSerializationFailures(t *testing.T) {
	b := &fakeBeginner{}
	calls := 0
	err := WithTxOptions(t.Context(), b, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(pgx.Tx) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("insert: %w", &pgconn.PgError{Code: "40001"})
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, 1, b.committed)
	require.Equal(t, pgx.ReadCommitted, b.opts.IsoLevel)

	calls = 0
	err = WithTx(t.Context(), &fakeBeginner{}, func(pgx.Tx) error {
		calls++
		return &pgconn.PgError{Code: "40P01"}
	})
	require.True(t, IsSerializationFailure(err))
	require.Equal(t, maxTxAttempts, calls)
}

func TestWithTxDoesNotRetryOtherErrors(t *testing.T) {
	b := &fakeBeginner{}
	calls := 0
	boom := errors.New("boom")
	err := WithTx(t.Context(), b, func(pgx.Tx) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
	require.Zero(t, b.committed)
	require.Equal(t, 1, b.rolledBack)
	require.False(t, IsSerializationFailure(&pgconn.PgError{Code: "23505"}))
}
