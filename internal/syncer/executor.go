package syncer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stepsync/internal/models"
	"github.com/desertthunder/stepsync/internal/services"
	"github.com/desertthunder/stepsync/internal/shared"
)

// RemoteExecutor replays queued operations against the backend. Every
// branch resolves to an idempotent call (merge patch, upsert at a known
// ID, or tolerant delete) so an operation that already landed once is
// harmless to replay.
//
// Queued creations upsert at the client-assigned ID via Write rather
// than POSTing, since a replayed POST would duplicate the document.
type RemoteExecutor struct {
	remote services.Remote
	logger *log.Logger
}

// NewRemoteExecutor creates an executor over the given backend client.
func NewRemoteExecutor(remote services.Remote, logger *log.Logger) *RemoteExecutor {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &RemoteExecutor{
		remote: remote,
		logger: shared.WithLogger(logger, "component", "executor"),
	}
}

// Execute performs one queued operation. Operations of a kind this
// build does not recognize return [shared.ErrUnknownOperation] so the
// drain loop leaves them queued for a build that can replay them.
func (e *RemoteExecutor) Execute(ctx context.Context, op models.SyncOperation) error {
	switch op.Kind {
	case models.OpAddFavorite, models.OpRemoveFavorite,
		models.OpUpdateFavoriteOpened, models.OpUpdateFavoriteMastery:
		return e.writeFavorite(ctx, op)

	case models.OpCreateChoreography, models.OpUpdateChoreography:
		return e.upsertChoreography(ctx, op)

	case models.OpDeleteChoreography:
		var payload ChoreographyRefPayload
		if err := decode(op, &payload); err != nil {
			return err
		}
		return e.remote.Delete(ctx, choreographiesCollection, payload.ID)

	case models.OpToggleChoreographyShare:
		var payload ChoreographyRefPayload
		if err := decode(op, &payload); err != nil {
			return err
		}
		patch := map[string]any{"public": payload.Public}
		return e.remote.Write(ctx, choreographiesCollection, payload.ID, patch)

	default:
		e.logger.Warn("skipping operation of unknown kind", "id", op.ID, "kind", op.Kind)
		return fmt.Errorf("%w: %q", shared.ErrUnknownOperation, op.Kind)
	}
}

// writeFavorite patches one field of the per-user favorites document.
// A nil favorite in the payload clears the field (removal).
func (e *RemoteExecutor) writeFavorite(ctx context.Context, op models.SyncOperation) error {
	var payload FavoritePayload
	if err := decode(op, &payload); err != nil {
		return err
	}
	patch := map[string]*models.Favorite{payload.FigureID: payload.Favorite}
	return e.remote.Write(ctx, favoritesCollection, op.UserID, patch)
}

func (e *RemoteExecutor) upsertChoreography(ctx context.Context, op models.SyncOperation) error {
	var payload ChoreographyPayload
	if err := decode(op, &payload); err != nil {
		return err
	}
	return e.remote.Write(ctx, choreographiesCollection, payload.Choreography.ID, payload.Choreography)
}

// decode unpacks an operation payload. An undecodable payload is an
// ordinary failure: the drain bumps its retry counter, and once the
// counter is exhausted the caller-invoked sweep may remove it. The
// operation is never silently destroyed.
func decode(op models.SyncOperation, dest any) error {
	if err := json.Unmarshal(op.Data, dest); err != nil {
		return fmt.Errorf("undecodable %s payload: %w", op.Kind, err)
	}
	return nil
}
