package syncer

import "github.com/desertthunder/stepsync/internal/models"

// Queue payloads carry everything needed to re-execute an operation
// against the backend during replay, with no reference to in-memory
// state. They marshal into SyncOperation.Data.

// FavoritePayload replays favorite mutations. Favorite is nil for
// removals; the field-level patch semantics of the document API make
// both directions idempotent.
type FavoritePayload struct {
	FigureID string           `json:"figureId"`
	Favorite *models.Favorite `json:"favorite,omitempty"`
}

// ChoreographyPayload replays choreography creation and updates. The
// full document is carried so replay is a plain upsert at the
// client-assigned ID.
type ChoreographyPayload struct {
	Choreography models.Choreography `json:"choreography"`
}

// ChoreographyRefPayload replays deletions and share toggles, which
// only need the document ID (and the target visibility for toggles).
type ChoreographyRefPayload struct {
	ID     string `json:"id"`
	Public bool   `json:"public,omitempty"`
}
