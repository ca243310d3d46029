// package queue implements the durable FIFO list of pending remote
// operations.
//
// The whole queue lives under one well-known store key as a JSON array.
// Every mutation is a read-modify-write of that array, so all mutations
// are serialized behind one mutex: two concurrent appends, or a drain
// removal racing a new append, can never clobber each other even though
// the store itself has no transactions.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stepsync/internal/models"
	"github.com/desertthunder/stepsync/internal/shared"
	"github.com/desertthunder/stepsync/internal/store"
)

// Key is the store key holding the serialized queue.
const Key = "sync_queue"

// Queue is the durable, ordered list of pending [models.SyncOperation].
type Queue struct {
	mu     sync.Mutex
	store  store.Store
	logger *log.Logger
	now    func() int64
	newID  func() string
}

// New creates a Queue over the given store.
func New(s store.Store, logger *log.Logger) *Queue {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Queue{
		store:  s,
		logger: shared.WithLogger(logger, "component", "queue"),
		now:    shared.NowMillis,
		newID:  shared.GenerateID,
	}
}

// Pending returns the queued operations in FIFO order.
//
// A missing key or an undecodable value yields an empty queue, never an
// error; a corrupted queue is treated as lost, since the remote system
// of record is authoritative.
func (q *Queue) Pending(ctx context.Context) []models.SyncOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load(ctx)
}

// Len returns the number of queued operations.
func (q *Queue) Len(ctx context.Context) int {
	return len(q.Pending(ctx))
}

// Add appends a new operation with a generated ID, the current
// timestamp, and a zero retry count.
func (q *Queue) Add(ctx context.Context, kind models.OperationKind, userID string, data any) (models.SyncOperation, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return models.SyncOperation{}, fmt.Errorf("failed to encode operation data: %w", err)
	}

	op := models.SyncOperation{
		ID:        q.newID(),
		Kind:      kind,
		UserID:    userID,
		Data:      payload,
		Timestamp: q.now(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	ops := append(q.load(ctx), op)
	if err := q.save(ctx, ops); err != nil {
		return models.SyncOperation{}, err
	}

	q.logger.Debug("operation queued", "id", op.ID, "kind", op.Kind)
	return op, nil
}

// Remove drops the operation with the given ID. Removing an absent ID is
// a no-op, which keeps replay removal idempotent.
func (q *Queue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops := q.load(ctx)
	kept := ops[:0]
	for _, op := range ops {
		if op.ID != id {
			kept = append(kept, op)
		}
	}
	return q.save(ctx, kept)
}

// IncrementRetry bumps the retry counter for the given operation.
func (q *Queue) IncrementRetry(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops := q.load(ctx)
	for i := range ops {
		if ops[i].ID == id {
			ops[i].Retries++
			break
		}
	}
	return q.save(ctx, ops)
}

// SweepFailed removes operations whose retry count has reached
// [models.MaxRetries] and returns them.
//
// The sweep is never run automatically by the drain loop; discarding a
// user's pending write is an explicit caller decision.
func (q *Queue) SweepFailed(ctx context.Context) ([]models.SyncOperation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops := q.load(ctx)
	kept := make([]models.SyncOperation, 0, len(ops))
	var removed []models.SyncOperation

	for _, op := range ops {
		if op.Retries >= models.MaxRetries {
			removed = append(removed, op)
			continue
		}
		kept = append(kept, op)
	}

	if len(removed) == 0 {
		return nil, nil
	}

	if err := q.save(ctx, kept); err != nil {
		return nil, err
	}

	for _, op := range removed {
		q.logger.Warn("discarded operation after repeated failures", "id", op.ID, "kind", op.Kind, "retries", op.Retries)
	}
	return removed, nil
}

// Clear drops every queued operation and returns how many were removed.
func (q *Queue) Clear(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops := q.load(ctx)
	if len(ops) == 0 {
		return 0, nil
	}
	if err := q.save(ctx, nil); err != nil {
		return 0, err
	}
	q.logger.Warn("queue cleared", "dropped", len(ops))
	return len(ops), nil
}

// load reads the queue; callers must hold q.mu.
func (q *Queue) load(ctx context.Context) []models.SyncOperation {
	raw, ok, err := q.store.Get(ctx, Key)
	if err != nil {
		q.logger.Warn("read failed, treating queue as empty", "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	var ops []models.SyncOperation
	if err := json.Unmarshal([]byte(raw), &ops); err != nil {
		q.logger.Warn("undecodable queue, treating as empty", "error", err)
		return nil
	}
	return ops
}

// save writes the queue; callers must hold q.mu.
func (q *Queue) save(ctx context.Context, ops []models.SyncOperation) error {
	if len(ops) == 0 {
		if err := q.store.Remove(ctx, Key); err != nil {
			q.logger.Warn("failed to clear queue key", "error", err)
			return err
		}
		return nil
	}

	raw, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("failed to encode queue: %w", err)
	}
	if err := q.store.Set(ctx, Key, string(raw)); err != nil {
		q.logger.Warn("failed to persist queue", "error", err)
		return err
	}
	return nil
}
