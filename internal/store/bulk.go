package store

import (
	"context"
	"fmt"
)

// DefaultBatchLimit is the number of writes committed per batch. Firestore
// caps a write batch at 500 operations; one slot is kept spare.
const DefaultBatchLimit = 499

// BulkResult reports the outcome of a chunked bulk write. Committed can be
// less than Attempted: batches already committed before a failure stay
// committed, there is no cross-batch rollback.
type BulkResult struct {
	Attempted int
	Committed int
	Batches   int
}

// BulkWriter partitions write operations into bounded batches and commits
// each batch atomically, in order, stopping at the first failure.
type BulkWriter struct {
	store Store
	limit int
}

// NewBulkWriter creates a bulk writer with the default batch limit.
func NewBulkWriter(s Store) *BulkWriter {
	return &BulkWriter{store: s, limit: DefaultBatchLimit}
}

// NewBulkWriterWithLimit creates a bulk writer with a custom batch limit.
func NewBulkWriterWithLimit(s Store, limit int) *BulkWriter {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	return &BulkWriter{store: s, limit: limit}
}

// BatchLimit returns the configured per-batch write limit.
func (w *BulkWriter) BatchLimit() int {
	return w.limit
}

// Write commits ops in ceil(len(ops)/limit) atomic batches. On a batch
// failure the returned result still reports the writes committed by earlier
// batches; the error wraps the failing batch's position so callers can
// surface succeeded-vs-attempted counts.
func (w *BulkWriter) Write(ctx context.Context, userID string, ops []WriteOp) (BulkResult, error) {
	result := BulkResult{Attempted: len(ops)}
	for start := 0; start < len(ops); start += w.limit {
		end := start + w.limit
		if end > len(ops) {
			end = len(ops)
		}
		chunk := ops[start:end]
		if err := w.store.CommitBatch(ctx, userID, chunk); err != nil {
			return result, fmt.Errorf("batch %d (%d writes, %d committed so far): %w",
				result.Batches, len(chunk), result.Committed, err)
		}
		result.Committed += len(chunk)
		result.Batches++
	}
	return result, nil
}
