package syncer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/desertthunder/stepsync/internal/cache"
	"github.com/desertthunder/stepsync/internal/models"
	"github.com/desertthunder/stepsync/internal/shared"
	"github.com/desertthunder/stepsync/internal/store"
	tu "github.com/desertthunder/stepsync/internal/testing"
)

func newChoreoFixture(remote *tu.MockRemote, auth *tu.MockAuth) (*Choreographies, *tu.MockQueue) {
	q := &tu.MockQueue{}
	c := cache.New(store.NewMemoryStore(), nil)
	return NewChoreographies(remote, c, auth, q, nil, nil), q
}

var testMovements = []models.Movement{
	{FigureID: "waltz-box", Counts: 8},
	{FigureID: "waltz-turn", Counts: 4},
}

func TestChoreographies(t *testing.T) {
	ctx := context.Background()

	t.Run("Create Is Visible Immediately And Private", func(t *testing.T) {
		ch, _ := newChoreoFixture(&tu.MockRemote{CreateID: "server-1"}, tu.SignedIn("u1"))

		id, done := ch.Create(ctx, "Recital Opener", testMovements)
		if choreo, ok := ch.Get(id); !ok {
			t.Error("Expected choreography to be visible before remote confirmation")
		} else if choreo.Public {
			t.Error("Expected new choreography to be private")
		}

		waitOutcome(t, done)
		if _, ok := ch.Get("server-1"); !ok {
			t.Error("Expected local entry to adopt the server-assigned ID")
		}
		if _, ok := ch.Get(id); ok {
			t.Error("Expected local ID to be replaced after confirmation")
		}
	})

	t.Run("Create Offline Queues Full Document", func(t *testing.T) {
		remote := &tu.MockRemote{CreateErr: shared.ErrTimeout}
		ch, q := newChoreoFixture(remote, tu.SignedIn("u1"))

		id, done := ch.Create(ctx, "Recital Opener", testMovements)
		if got := waitOutcome(t, done); got != OutcomeQueued {
			t.Errorf("Expected queued, got %s", got)
		}
		if _, ok := ch.Get(id); !ok {
			t.Error("Expected optimistic choreography to survive")
		}

		if q.Len() != 1 {
			t.Fatalf("Expected 1 queued operation, got %d", q.Len())
		}
		var payload ChoreographyPayload
		if err := json.Unmarshal(q.Ops[0].Data, &payload); err != nil {
			t.Fatalf("Failed to decode payload: %v", err)
		}
		if payload.Choreography.ID != id {
			t.Error("Expected queued payload to carry the client-assigned ID")
		}
		if len(payload.Choreography.Movements) != 2 {
			t.Errorf("Expected full movement list in payload, got %d", len(payload.Choreography.Movements))
		}
	})

	t.Run("Create Rejected Is Reverted", func(t *testing.T) {
		remote := &tu.MockRemote{CreateErr: shared.ErrPermissionDenied}
		ch, q := newChoreoFixture(remote, tu.SignedIn("u1"))

		id, done := ch.Create(ctx, "Recital Opener", testMovements)
		if got := waitOutcome(t, done); got != OutcomeRolledBack {
			t.Errorf("Expected rollback, got %s", got)
		}
		if _, ok := ch.Get(id); ok {
			t.Error("Expected rejected creation to disappear")
		}
		if q.Len() != 0 {
			t.Error("Expected nothing queued after rejection")
		}
	})

	t.Run("Update Unknown ID Is Nil", func(t *testing.T) {
		ch, _ := newChoreoFixture(&tu.MockRemote{}, tu.SignedIn("u1"))
		if done := ch.Update(ctx, "missing", "Name", nil); done != nil {
			t.Error("Expected nil channel for unknown choreography")
		}
	})

	t.Run("Update Rejected Restores Previous Version", func(t *testing.T) {
		remote := &tu.MockRemote{CreateID: "c1"}
		ch, _ := newChoreoFixture(remote, tu.SignedIn("u1"))
		_, done := ch.Create(ctx, "Original", testMovements)
		waitOutcome(t, done)

		remote.WriteErr = shared.ErrPermissionDenied
		waitOutcome(t, ch.Update(ctx, "c1", "Renamed", nil))

		choreo, _ := ch.Get("c1")
		if choreo.Name != "Original" {
			t.Errorf("Expected name restored to Original, got %q", choreo.Name)
		}
		if len(choreo.Movements) != 2 {
			t.Error("Expected movements restored")
		}
	})

	t.Run("Delete Tolerates Unknown ID", func(t *testing.T) {
		remote := &tu.MockRemote{}
		ch, _ := newChoreoFixture(remote, tu.SignedIn("u1"))

		if got := waitOutcome(t, ch.Delete(ctx, "never-existed")); got != OutcomeConfirmed {
			t.Errorf("Expected confirmed, got %s", got)
		}
		if remote.CallCount("Delete") != 1 {
			t.Error("Expected remote delete to be attempted")
		}
	})

	t.Run("ToggleShare Flips Visibility", func(t *testing.T) {
		remote := &tu.MockRemote{CreateID: "c1"}
		ch, _ := newChoreoFixture(remote, tu.SignedIn("u1"))
		_, done := ch.Create(ctx, "Recital Opener", testMovements)
		waitOutcome(t, done)

		waitOutcome(t, ch.ToggleShare(ctx, "c1"))
		if choreo, _ := ch.Get("c1"); !choreo.Public {
			t.Error("Expected choreography to become public")
		}

		waitOutcome(t, ch.ToggleShare(ctx, "c1"))
		if choreo, _ := ch.Get("c1"); choreo.Public {
			t.Error("Expected choreography to become private again")
		}
	})

	t.Run("Load Lists Owned Documents", func(t *testing.T) {
		docA, _ := json.Marshal(models.Choreography{ID: "a", UserID: "u1", Name: "A", UpdatedAt: 2})
		docB, _ := json.Marshal(models.Choreography{ID: "b", UserID: "u1", Name: "B", UpdatedAt: 1})
		remote := &tu.MockRemote{ListDocs: []json.RawMessage{docA, docB}}
		ch, _ := newChoreoFixture(remote, tu.SignedIn("u1"))

		if err := ch.Load(ctx); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		all := ch.All()
		if len(all) != 2 {
			t.Fatalf("Expected 2 choreographies, got %d", len(all))
		}
		if all[0].ID != "a" {
			t.Errorf("Expected most recently updated first, got %s", all[0].ID)
		}
	})

	t.Run("Load Failure Falls Back To Cache", func(t *testing.T) {
		doc, _ := json.Marshal(models.Choreography{ID: "a", UserID: "u1", Name: "A"})
		remote := &tu.MockRemote{ListDocs: []json.RawMessage{doc}}
		q := &tu.MockQueue{}
		c := cache.New(store.NewMemoryStore(), nil)

		warm := NewChoreographies(remote, c, tu.SignedIn("u1"), q, nil, nil)
		if err := warm.Load(ctx); err != nil {
			t.Fatalf("warm load failed: %v", err)
		}

		remote.ListErr = shared.ErrTimeout
		cold := NewChoreographies(remote, c, tu.SignedIn("u1"), q, nil, nil)
		if err := cold.Load(ctx); err != nil {
			t.Fatalf("Expected cache fallback, got error: %v", err)
		}
		if _, ok := cold.Get("a"); !ok {
			t.Error("Expected cached choreography after remote failure")
		}
	})
}
