package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/stepsync/internal/models"
	"github.com/desertthunder/stepsync/internal/netmon"
	"github.com/desertthunder/stepsync/internal/queue"
	"github.com/desertthunder/stepsync/internal/shared"
	"github.com/desertthunder/stepsync/internal/store"
)

// scriptedExecutor fails the kinds listed in fail and records every call.
type scriptedExecutor struct {
	mu        sync.Mutex
	calls     []models.SyncOperation
	fail      map[models.OperationKind]error
	onExecute func(op models.SyncOperation)
}

func (s *scriptedExecutor) Execute(ctx context.Context, op models.SyncOperation) error {
	s.mu.Lock()
	s.calls = append(s.calls, op)
	s.mu.Unlock()
	if s.onExecute != nil {
		s.onExecute(op)
	}
	if err, ok := s.fail[op.Kind]; ok {
		return err
	}
	return nil
}

func (s *scriptedExecutor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newDrainFixture(t *testing.T) (*queue.Queue, *scriptedExecutor) {
	t.Helper()
	q := queue.New(store.NewMemoryStore(), nil)
	return q, &scriptedExecutor{fail: map[models.OperationKind]error{}}
}

var fastDrain = DrainOpts{RateLimit: 1000}

func TestEngineDrain(t *testing.T) {
	ctx := context.Background()

	t.Run("Replays In FIFO Order And Removes", func(t *testing.T) {
		q, exec := newDrainFixture(t)
		for _, kind := range []models.OperationKind{models.OpAddFavorite, models.OpRemoveFavorite, models.OpDeleteChoreography} {
			if _, err := q.Add(ctx, kind, "u1", map[string]string{}); err != nil {
				t.Fatalf("Add failed: %v", err)
			}
		}

		engine := NewEngine(q, exec, nil, nil)
		result, err := engine.Drain(ctx, nil, fastDrain)
		if err != nil {
			t.Fatalf("Drain failed: %v", err)
		}

		if result.Succeeded != 3 {
			t.Errorf("Expected 3 replayed, got %d", result.Succeeded)
		}
		if q.Len(ctx) != 0 {
			t.Errorf("Expected empty queue, got %d", q.Len(ctx))
		}

		want := []models.OperationKind{models.OpAddFavorite, models.OpRemoveFavorite, models.OpDeleteChoreography}
		for i, op := range exec.calls {
			if op.Kind != want[i] {
				t.Errorf("Expected %s at position %d, got %s", want[i], i, op.Kind)
			}
		}
	})

	t.Run("Failure Keeps Operation And Continues", func(t *testing.T) {
		q, exec := newDrainFixture(t)
		exec.fail[models.OpAddFavorite] = shared.ErrTimeout

		if _, err := q.Add(ctx, models.OpAddFavorite, "u1", map[string]string{}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if _, err := q.Add(ctx, models.OpRemoveFavorite, "u1", map[string]string{}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}

		engine := NewEngine(q, exec, nil, nil)
		result, err := engine.Drain(ctx, nil, fastDrain)
		if err != nil {
			t.Fatalf("Drain failed: %v", err)
		}

		if result.Requeued != 1 || result.Succeeded != 1 {
			t.Errorf("Expected 1 requeued and 1 replayed, got %d and %d", result.Requeued, result.Succeeded)
		}

		pending := q.Pending(ctx)
		if len(pending) != 1 {
			t.Fatalf("Expected 1 pending op, got %d", len(pending))
		}
		if pending[0].Kind != models.OpAddFavorite {
			t.Errorf("Expected failed op to stay, got %s", pending[0].Kind)
		}
		if pending[0].Retries != 1 {
			t.Errorf("Expected retry counter bumped to 1, got %d", pending[0].Retries)
		}
	})

	t.Run("Retry Counter Accumulates Across Passes", func(t *testing.T) {
		q, exec := newDrainFixture(t)
		exec.fail[models.OpAddFavorite] = shared.ErrTimeout
		if _, err := q.Add(ctx, models.OpAddFavorite, "u1", map[string]string{}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}

		engine := NewEngine(q, exec, nil, nil)
		for range 2 {
			if _, err := engine.Drain(ctx, nil, fastDrain); err != nil {
				t.Fatalf("Drain failed: %v", err)
			}
		}

		if got := q.Pending(ctx)[0].Retries; got != 2 {
			t.Errorf("Expected 2 retries after 2 passes, got %d", got)
		}
	})

	t.Run("Unknown Kind Stays Queued Untouched", func(t *testing.T) {
		q, exec := newDrainFixture(t)
		exec.fail[models.OperationKind("futureOperation")] = shared.ErrUnknownOperation
		if _, err := q.Add(ctx, models.OperationKind("futureOperation"), "u1", map[string]string{}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if _, err := q.Add(ctx, models.OpRemoveFavorite, "u1", map[string]string{}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}

		engine := NewEngine(q, exec, nil, nil)
		result, err := engine.Drain(ctx, nil, fastDrain)
		if err != nil {
			t.Fatalf("Drain failed: %v", err)
		}

		if result.Skipped != 1 || result.Succeeded != 1 {
			t.Errorf("Expected 1 skipped and 1 replayed, got %d and %d", result.Skipped, result.Succeeded)
		}

		pending := q.Pending(ctx)
		if len(pending) != 1 {
			t.Fatalf("Expected unrecognized op to stay queued, got %d pending", len(pending))
		}
		if pending[0].Kind != models.OperationKind("futureOperation") {
			t.Errorf("Expected futureOperation to remain, got %s", pending[0].Kind)
		}
		if pending[0].Retries != 0 {
			t.Errorf("Expected retry counter untouched, got %d", pending[0].Retries)
		}
	})

	t.Run("Sweep Only When Requested", func(t *testing.T) {
		q, exec := newDrainFixture(t)
		exec.fail[models.OpAddFavorite] = shared.ErrTimeout
		if _, err := q.Add(ctx, models.OpAddFavorite, "u1", map[string]string{}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}

		engine := NewEngine(q, exec, nil, nil)
		for range models.MaxRetries {
			if _, err := engine.Drain(ctx, nil, fastDrain); err != nil {
				t.Fatalf("Drain failed: %v", err)
			}
		}
		if q.Len(ctx) != 1 {
			t.Fatal("Expected exhausted op to stay queued without sweep")
		}

		opts := fastDrain
		opts.SweepFailed = true
		result, err := engine.Drain(ctx, nil, opts)
		if err != nil {
			t.Fatalf("Drain failed: %v", err)
		}
		if len(result.Swept) != 1 {
			t.Errorf("Expected 1 swept op, got %d", len(result.Swept))
		}
		if q.Len(ctx) != 0 {
			t.Error("Expected queue empty after sweep")
		}
	})

	t.Run("Stops When Network Becomes Unusable", func(t *testing.T) {
		q, exec := newDrainFixture(t)
		monitor := netmon.New(nil)

		for range 3 {
			if _, err := q.Add(ctx, models.OpAddFavorite, "u1", map[string]string{}); err != nil {
				t.Fatalf("Add failed: %v", err)
			}
		}
		exec.onExecute = func(models.SyncOperation) {
			monitor.SetOnline(false)
		}

		engine := NewEngine(q, exec, monitor, nil)
		if _, err := engine.Drain(ctx, nil, fastDrain); err != nil {
			t.Fatalf("Drain failed: %v", err)
		}
		if exec.callCount() != 1 {
			t.Errorf("Expected drain to stop after going offline, got %d calls", exec.callCount())
		}
		if q.Len(ctx) != 2 {
			t.Errorf("Expected 2 ops left queued, got %d", q.Len(ctx))
		}
	})

	t.Run("Reports Progress", func(t *testing.T) {
		q, exec := newDrainFixture(t)
		if _, err := q.Add(ctx, models.OpAddFavorite, "u1", map[string]string{}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}

		progress := make(chan ProgressUpdate, 16)
		engine := NewEngine(q, exec, nil, nil)
		if _, err := engine.Drain(ctx, progress, fastDrain); err != nil {
			t.Fatalf("Drain failed: %v", err)
		}
		close(progress)

		phases := map[Phase]bool{}
		for update := range progress {
			phases[update.Phase] = true
		}
		if !phases[ScanQueue] || !phases[Replay] {
			t.Errorf("Expected scan and replay progress, got %v", phases)
		}
	})
}

func TestEngineWatch(t *testing.T) {
	t.Run("Drains After Reconnect", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		q, exec := newDrainFixture(t)
		monitor := netmon.New(nil)
		monitor.SetOnline(false)

		if _, err := q.Add(ctx, models.OpAddFavorite, "u1", map[string]string{}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}

		executed := make(chan struct{}, 1)
		exec.onExecute = func(models.SyncOperation) {
			select {
			case executed <- struct{}{}:
			default:
			}
		}

		engine := NewEngine(q, exec, monitor, nil)
		watchDone := make(chan error, 1)
		go func() {
			opts := fastDrain
			opts.SettleDelay = 10 * time.Millisecond
			watchDone <- engine.Watch(ctx, nil, opts)
		}()

		// Give the watcher a moment to subscribe before reconnecting.
		time.Sleep(50 * time.Millisecond)
		monitor.SetOnline(true)

		select {
		case <-executed:
		case <-ctx.Done():
			t.Fatal("Expected automatic drain after reconnect")
		}

		cancel()
		if err := <-watchDone; !errors.Is(err, context.Canceled) {
			t.Errorf("Expected canceled watch, got %v", err)
		}
	})

	t.Run("Requires Monitor", func(t *testing.T) {
		q, exec := newDrainFixture(t)
		engine := NewEngine(q, exec, nil, nil)
		if err := engine.Watch(context.Background(), nil, fastDrain); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("Expected service unavailable, got %v", err)
		}
	})
}
