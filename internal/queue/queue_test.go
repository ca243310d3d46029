package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/desertthunder/stepsync/internal/models"
	"github.com/desertthunder/stepsync/internal/store"
)

type favPayload struct {
	FigureID string `json:"figure_id"`
}

func newTestQueue(t *testing.T) (*Queue, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	return New(s, nil), s
}

func TestQueue(t *testing.T) {
	ctx := context.Background()

	t.Run("Empty On Missing Key", func(t *testing.T) {
		q, _ := newTestQueue(t)
		if got := q.Pending(ctx); len(got) != 0 {
			t.Errorf("expected empty queue, got %d entries", len(got))
		}
	})

	t.Run("Empty On Corrupt Value", func(t *testing.T) {
		q, s := newTestQueue(t)
		if err := s.Set(ctx, Key, "not an array"); err != nil {
			t.Fatalf("failed to seed corrupt queue: %v", err)
		}
		if got := q.Pending(ctx); len(got) != 0 {
			t.Errorf("expected empty queue for corrupt value, got %d", len(got))
		}
	})

	t.Run("Add Assigns ID Timestamp And Zero Retries", func(t *testing.T) {
		q, _ := newTestQueue(t)

		op, err := q.Add(ctx, models.OpAddFavorite, "user-1", favPayload{FigureID: "fig-1"})
		if err != nil {
			t.Fatalf("failed to add: %v", err)
		}

		if op.ID == "" {
			t.Error("expected generated ID")
		}
		if op.Timestamp == 0 {
			t.Error("expected timestamp")
		}
		if op.Retries != 0 {
			t.Errorf("expected zero retries, got %d", op.Retries)
		}

		pending := q.Pending(ctx)
		if len(pending) != 1 || pending[0].ID != op.ID {
			t.Errorf("expected the added operation to be pending, got %+v", pending)
		}
	})

	t.Run("FIFO Order Preserved", func(t *testing.T) {
		q, _ := newTestQueue(t)

		var ids []string
		for i := 0; i < 3; i++ {
			op, err := q.Add(ctx, models.OpAddFavorite, "user-1", favPayload{FigureID: fmt.Sprintf("fig-%d", i)})
			if err != nil {
				t.Fatalf("failed to add: %v", err)
			}
			ids = append(ids, op.ID)
		}

		pending := q.Pending(ctx)
		if len(pending) != 3 {
			t.Fatalf("expected 3 pending, got %d", len(pending))
		}
		for i, op := range pending {
			if op.ID != ids[i] {
				t.Errorf("position %d: expected %s, got %s", i, ids[i], op.ID)
			}
		}
	})

	t.Run("Remove", func(t *testing.T) {
		q, _ := newTestQueue(t)

		a, _ := q.Add(ctx, models.OpAddFavorite, "u", favPayload{FigureID: "a"})
		b, _ := q.Add(ctx, models.OpRemoveFavorite, "u", favPayload{FigureID: "b"})

		if err := q.Remove(ctx, a.ID); err != nil {
			t.Fatalf("failed to remove: %v", err)
		}

		pending := q.Pending(ctx)
		if len(pending) != 1 || pending[0].ID != b.ID {
			t.Errorf("expected only %s pending, got %+v", b.ID, pending)
		}

		if err := q.Remove(ctx, "no-such-id"); err != nil {
			t.Errorf("removing unknown ID should be a no-op: %v", err)
		}
	})

	t.Run("IncrementRetry", func(t *testing.T) {
		q, _ := newTestQueue(t)

		op, _ := q.Add(ctx, models.OpCreateChoreography, "u", map[string]string{"name": "routine"})
		if err := q.IncrementRetry(ctx, op.ID); err != nil {
			t.Fatalf("failed to increment: %v", err)
		}
		if err := q.IncrementRetry(ctx, op.ID); err != nil {
			t.Fatalf("failed to increment: %v", err)
		}

		pending := q.Pending(ctx)
		if pending[0].Retries != 2 {
			t.Errorf("expected 2 retries, got %d", pending[0].Retries)
		}
	})

	t.Run("SweepFailed", func(t *testing.T) {
		q, _ := newTestQueue(t)

		exhausted, _ := q.Add(ctx, models.OpAddFavorite, "u", favPayload{FigureID: "x"})
		healthy, _ := q.Add(ctx, models.OpRemoveFavorite, "u", favPayload{FigureID: "y"})

		for i := 0; i < models.MaxRetries; i++ {
			if err := q.IncrementRetry(ctx, exhausted.ID); err != nil {
				t.Fatalf("failed to increment: %v", err)
			}
		}

		removed, err := q.SweepFailed(ctx)
		if err != nil {
			t.Fatalf("failed to sweep: %v", err)
		}
		if len(removed) != 1 || removed[0].ID != exhausted.ID {
			t.Errorf("expected %s swept, got %+v", exhausted.ID, removed)
		}

		pending := q.Pending(ctx)
		if len(pending) != 1 || pending[0].ID != healthy.ID {
			t.Errorf("expected %s to remain, got %+v", healthy.ID, pending)
		}

		// Second sweep finds nothing.
		removed, err = q.SweepFailed(ctx)
		if err != nil {
			t.Fatalf("failed to sweep: %v", err)
		}
		if removed != nil {
			t.Errorf("expected no-op sweep, got %+v", removed)
		}
	})

	t.Run("Clear Drops Everything", func(t *testing.T) {
		q, s := newTestQueue(t)

		q.Add(ctx, models.OpAddFavorite, "u", favPayload{FigureID: "a"})
		q.Add(ctx, models.OpRemoveFavorite, "u", favPayload{FigureID: "b"})

		dropped, err := q.Clear(ctx)
		if err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		if dropped != 2 {
			t.Errorf("expected 2 dropped, got %d", dropped)
		}
		if _, ok, _ := s.Get(ctx, Key); ok {
			t.Error("expected queue key to be removed")
		}

		dropped, err = q.Clear(ctx)
		if err != nil || dropped != 0 {
			t.Errorf("expected no-op clear, got %d, %v", dropped, err)
		}
	})

	t.Run("Queue Key Cleared When Empty", func(t *testing.T) {
		q, s := newTestQueue(t)

		op, _ := q.Add(ctx, models.OpAddFavorite, "u", favPayload{FigureID: "z"})
		if err := q.Remove(ctx, op.ID); err != nil {
			t.Fatalf("failed to remove: %v", err)
		}

		if _, ok, _ := s.Get(ctx, Key); ok {
			t.Error("expected queue key to be removed once empty")
		}
	})

	t.Run("Concurrent Adds Do Not Clobber", func(t *testing.T) {
		q, _ := newTestQueue(t)

		const n = 50
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := q.Add(ctx, models.OpAddFavorite, "u", favPayload{FigureID: fmt.Sprintf("fig-%d", i)}); err != nil {
					t.Errorf("add failed: %v", err)
				}
			}(i)
		}
		wg.Wait()

		pending := q.Pending(ctx)
		if len(pending) != n {
			t.Fatalf("expected %d queued operations, got %d", n, len(pending))
		}

		seen := make(map[string]bool, n)
		for _, op := range pending {
			if seen[op.ID] {
				t.Errorf("duplicate operation ID %s", op.ID)
			}
			seen[op.ID] = true
		}
	})

	t.Run("Add To Unavailable Store Fails Without Panic", func(t *testing.T) {
		s := store.NewMemoryStore()
		s.Close()
		q := New(s, nil)

		if _, err := q.Add(ctx, models.OpAddFavorite, "u", favPayload{FigureID: "a"}); err == nil {
			t.Error("expected error when store is unavailable")
		}
		if got := q.Pending(ctx); len(got) != 0 {
			t.Errorf("expected empty queue, got %d", len(got))
		}
	})
}
