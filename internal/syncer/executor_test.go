package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/desertthunder/stepsync/internal/models"
	"github.com/desertthunder/stepsync/internal/shared"
	tu "github.com/desertthunder/stepsync/internal/testing"
)

func mustOp(t *testing.T, kind models.OperationKind, userID string, payload any) models.SyncOperation {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to encode payload: %v", err)
	}
	return models.SyncOperation{ID: "op-1", Kind: kind, UserID: userID, Data: raw}
}

func TestRemoteExecutor(t *testing.T) {
	ctx := context.Background()

	t.Run("Add Favorite Patches User Document", func(t *testing.T) {
		remote := &tu.MockRemote{}
		exec := NewRemoteExecutor(remote, nil)
		fav := &models.Favorite{FigureID: "waltz-box", AddedAt: 42}
		op := mustOp(t, models.OpAddFavorite, "u1", FavoritePayload{FigureID: "waltz-box", Favorite: fav})

		if err := exec.Execute(ctx, op); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		calls := remote.Calls()
		if len(calls) != 1 || calls[0].Method != "Write" {
			t.Fatalf("Expected one Write, got %+v", calls)
		}
		if calls[0].Collection != "favorites" || calls[0].ID != "u1" {
			t.Errorf("Expected favorites/u1, got %s/%s", calls[0].Collection, calls[0].ID)
		}
	})

	t.Run("Remove Favorite Clears Field", func(t *testing.T) {
		remote := &tu.MockRemote{}
		exec := NewRemoteExecutor(remote, nil)
		op := mustOp(t, models.OpRemoveFavorite, "u1", FavoritePayload{FigureID: "waltz-box"})

		if err := exec.Execute(ctx, op); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		patch := remote.Calls()[0].Payload.(map[string]*models.Favorite)
		if fav, present := patch["waltz-box"]; !present || fav != nil {
			t.Error("Expected field patched to null")
		}
	})

	t.Run("Create Replays As Upsert", func(t *testing.T) {
		remote := &tu.MockRemote{}
		exec := NewRemoteExecutor(remote, nil)
		choreo := models.Choreography{ID: "c1", UserID: "u1", Name: "Opener"}
		op := mustOp(t, models.OpCreateChoreography, "u1", ChoreographyPayload{Choreography: choreo})

		if err := exec.Execute(ctx, op); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		call := remote.Calls()[0]
		if call.Method != "Write" {
			t.Errorf("Expected replayed create to use Write, got %s", call.Method)
		}
		if call.ID != "c1" {
			t.Errorf("Expected upsert at client-assigned ID, got %s", call.ID)
		}
		if remote.CallCount("Create") != 0 {
			t.Error("Expected no POST during replay")
		}
	})

	t.Run("Replay Is Idempotent", func(t *testing.T) {
		remote := &tu.MockRemote{}
		exec := NewRemoteExecutor(remote, nil)
		fav := &models.Favorite{FigureID: "waltz-box", AddedAt: 42}
		op := mustOp(t, models.OpAddFavorite, "u1", FavoritePayload{FigureID: "waltz-box", Favorite: fav})

		if err := exec.Execute(ctx, op); err != nil {
			t.Fatalf("first Execute failed: %v", err)
		}
		if err := exec.Execute(ctx, op); err != nil {
			t.Fatalf("second Execute failed: %v", err)
		}
		calls := remote.Calls()
		if !reflect.DeepEqual(calls[0], calls[1]) {
			t.Error("Expected replaying the same operation to issue an identical request")
		}
	})

	t.Run("Delete Choreography", func(t *testing.T) {
		remote := &tu.MockRemote{}
		exec := NewRemoteExecutor(remote, nil)
		op := mustOp(t, models.OpDeleteChoreography, "u1", ChoreographyRefPayload{ID: "c1"})

		if err := exec.Execute(ctx, op); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		call := remote.Calls()[0]
		if call.Method != "Delete" || call.ID != "c1" {
			t.Errorf("Expected Delete of c1, got %+v", call)
		}
	})

	t.Run("Toggle Share Patches Visibility", func(t *testing.T) {
		remote := &tu.MockRemote{}
		exec := NewRemoteExecutor(remote, nil)
		op := mustOp(t, models.OpToggleChoreographyShare, "u1", ChoreographyRefPayload{ID: "c1", Public: true})

		if err := exec.Execute(ctx, op); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		patch := remote.Calls()[0].Payload.(map[string]any)
		if patch["public"] != true {
			t.Error("Expected public field patched to true")
		}
	})

	t.Run("Unknown Kind Is Reported", func(t *testing.T) {
		remote := &tu.MockRemote{}
		exec := NewRemoteExecutor(remote, nil)
		op := mustOp(t, models.OperationKind("futureOperation"), "u1", map[string]string{})

		err := exec.Execute(ctx, op)
		if !errors.Is(err, shared.ErrUnknownOperation) {
			t.Errorf("Expected unknown-operation error, got %v", err)
		}
		if remote.CallCount("") != 0 {
			t.Error("Expected no remote call for unknown kind")
		}
	})

	t.Run("Undecodable Payload Is An Ordinary Failure", func(t *testing.T) {
		remote := &tu.MockRemote{}
		exec := NewRemoteExecutor(remote, nil)
		op := models.SyncOperation{ID: "op-1", Kind: models.OpAddFavorite, UserID: "u1", Data: json.RawMessage(`[not json`)}

		err := exec.Execute(ctx, op)
		if err == nil {
			t.Fatal("Expected error for undecodable payload")
		}
		// Not unknown-kind: the drain must keep retry bookkeeping so the
		// sweep can eventually remove it.
		if errors.Is(err, shared.ErrUnknownOperation) {
			t.Errorf("Expected plain failure, got unknown-operation: %v", err)
		}
		if remote.CallCount("") != 0 {
			t.Error("Expected no remote call for undecodable payload")
		}
	})
}
