package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transactwise/backend/internal/model"
)

func transactionOps(n int) []WriteOp {
	ops := make([]WriteOp, n)
	for i := range ops {
		ops[i] = WriteOp{
			Collection: CollectionTransactions,
			CompanyID:  "co1",
			Kind:       OpSet,
			Data:       &model.Transaction{CompanyID: "co1", Date: "2024-01-02", Description: fmt.Sprintf("tx %d", i)},
		}
	}
	return ops
}

func TestBulkWriterDefaults(t *testing.T) {
	s := NewMemoryStore()
	assert.Equal(t, DefaultBatchLimit, NewBulkWriter(s).BatchLimit())
	assert.Equal(t, DefaultBatchLimit, NewBulkWriterWithLimit(s, 0).BatchLimit())
	assert.Equal(t, DefaultBatchLimit, NewBulkWriterWithLimit(s, -3).BatchLimit())
	assert.Equal(t, 5, NewBulkWriterWithLimit(s, 5).BatchLimit())
}

func TestBulkWriterChunksIntoBatches(t *testing.T) {
	tests := []struct {
		name        string
		ops         int
		limit       int
		wantBatches int
	}{
		{"empty", 0, 5, 0},
		{"under limit", 3, 5, 1},
		{"exact multiple", 10, 5, 2},
		{"remainder batch", 12, 5, 3},
		{"one over", 6, 5, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := NewMemoryStore()
			w := NewBulkWriterWithLimit(s, tt.limit)

			result, err := w.Write(ctx, "u1", transactionOps(tt.ops))
			require.NoError(t, err)
			assert.Equal(t, tt.ops, result.Attempted)
			assert.Equal(t, tt.ops, result.Committed)
			assert.Equal(t, tt.wantBatches, result.Batches)
			assert.Equal(t, tt.wantBatches, s.CommittedBatches())

			txs, err := s.ListTransactions(ctx, "u1", "co1")
			require.NoError(t, err)
			assert.Len(t, txs, tt.ops)
		})
	}
}

func TestBulkWriterStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	// Fail the third batch; the first two stay committed.
	calls := 0
	s.SetCommitHook(func(ops []WriteOp) error {
		calls++
		if calls == 3 {
			return errors.New("simulated outage")
		}
		return nil
	})

	w := NewBulkWriterWithLimit(s, 5)
	result, err := w.Write(ctx, "u1", transactionOps(17))
	require.Error(t, err)
	assert.Equal(t, 17, result.Attempted)
	assert.Equal(t, 10, result.Committed)
	assert.Equal(t, 2, result.Batches)
	assert.Equal(t, 3, calls, "no retries, no later batches after the failure")

	txs, listErr := s.ListTransactions(ctx, "u1", "co1")
	require.NoError(t, listErr)
	assert.Len(t, txs, 10, "earlier batches are not rolled back")
}

func TestBulkWriterLargeSetUsesDefaultLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	w := NewBulkWriter(s)

	result, err := w.Write(ctx, "u1", transactionOps(600))
	require.NoError(t, err)
	assert.Equal(t, 600, result.Committed)
	assert.Equal(t, 2, result.Batches, "600 writes split 499 + 101")
}

func TestBulkWriterSecondBatchFailureKeepsFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	calls := 0
	s.SetCommitHook(func(ops []WriteOp) error {
		calls++
		if calls == 2 {
			return errors.New("simulated outage")
		}
		return nil
	})

	w := NewBulkWriter(s)
	result, err := w.Write(ctx, "u1", transactionOps(600))
	require.Error(t, err)
	assert.Equal(t, 600, result.Attempted)
	assert.Equal(t, 499, result.Committed)
	assert.Equal(t, 1, result.Batches)

	txs, listErr := s.ListTransactions(ctx, "u1", "co1")
	require.NoError(t, listErr)
	assert.Len(t, txs, 499)
}
