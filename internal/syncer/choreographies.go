package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stepsync/internal/cache"
	"github.com/desertthunder/stepsync/internal/models"
	"github.com/desertthunder/stepsync/internal/netmon"
	"github.com/desertthunder/stepsync/internal/services"
	"github.com/desertthunder/stepsync/internal/shared"
)

const choreographiesCollection = "choreographies"

func choreographiesCacheKey(uid string) string {
	return fmt.Sprintf("choreographies:%s", uid)
}

// Choreographies is the optimistic view of one user's choreographies.
// Unlike favorites, each choreography is its own remote document.
//
// IDs are assigned client-side so that a creation queued while offline
// replays as a plain upsert. When the backend is reachable at creation
// time the server may assign its own ID; the local entry adopts it once
// the create confirms.
type Choreographies struct {
	coord   *Coordinator[map[string]models.Choreography]
	remote  services.Remote
	cache   *cache.Cache
	auth    AuthState
	monitor *netmon.Monitor
	logger  *log.Logger
	now     func() int64
	newID   func() string
}

// NewChoreographies wires a choreographies collection. monitor may be
// nil in tests.
func NewChoreographies(remote services.Remote, c *cache.Cache, auth AuthState, q Enqueuer, monitor *netmon.Monitor, logger *log.Logger) *Choreographies {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	var gate Gate
	if monitor != nil {
		gate = monitor
	}
	return &Choreographies{
		coord:   NewCoordinator(map[string]models.Choreography{}, maps.Clone, auth, q, gate, logger),
		remote:  remote,
		cache:   c,
		auth:    auth,
		monitor: monitor,
		logger:  shared.WithLogger(logger, "collection", choreographiesCollection),
		now:     shared.NowMillis,
		newID:   shared.GenerateID,
	}
}

// OnFailure forwards to the underlying coordinator.
func (ch *Choreographies) OnFailure(fn func(Outcome, models.OperationKind)) {
	ch.coord.OnFailure(fn)
}

// Load populates the in-memory set from the backend, falling back to
// the cache on poor networks or read failure. Anonymous users get an
// empty set.
func (ch *Choreographies) Load(ctx context.Context) error {
	identity, ok := ch.auth.Identity()
	if !ok {
		ch.coord.Reset(map[string]models.Choreography{})
		return nil
	}
	key := choreographiesCacheKey(identity.UID)

	if ch.monitor != nil && ch.monitor.ShouldUseCache() {
		var cached map[string]models.Choreography
		if ch.cache.Get(ctx, key, &cached) {
			ch.coord.Reset(cached)
			return nil
		}
	}

	docs, err := ch.remote.List(ctx, choreographiesCollection, identity.UID)
	if err != nil {
		var cached map[string]models.Choreography
		if ch.cache.Get(ctx, key, &cached) {
			ch.logger.Info("remote list failed, serving cached choreographies", "error", err)
			ch.coord.Reset(cached)
			return nil
		}
		return fmt.Errorf("loading choreographies: %w", err)
	}

	state := make(map[string]models.Choreography, len(docs))
	for _, doc := range docs {
		var choreo models.Choreography
		if err := json.Unmarshal(doc, &choreo); err != nil {
			ch.logger.Warn("skipping undecodable choreography document", "error", err)
			continue
		}
		state[choreo.ID] = choreo
	}
	ch.coord.Reset(state)
	_ = ch.cache.Set(ctx, key, state)
	return nil
}

// All returns the choreographies ordered by most recently updated.
func (ch *Choreographies) All() []models.Choreography {
	state := ch.coord.State()
	out := make([]models.Choreography, 0, len(state))
	for _, c := range state {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt != out[j].UpdatedAt {
			return out[i].UpdatedAt > out[j].UpdatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Get returns one choreography by ID.
func (ch *Choreographies) Get(id string) (models.Choreography, bool) {
	c, ok := ch.coord.State()[id]
	return c, ok
}

// Create builds a new private choreography and returns its local ID
// along with the outcome channel. The ID may be superseded by a
// server-assigned one once the create confirms.
func (ch *Choreographies) Create(ctx context.Context, name string, movements []models.Movement) (string, <-chan Outcome) {
	now := ch.now()
	choreo := models.Choreography{
		ID:        ch.newID(),
		Name:      name,
		Movements: movements,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if identity, ok := ch.auth.Identity(); ok {
		choreo.UserID = identity.UID
	}

	var serverID string
	done := ch.coord.Mutate(ctx, MutationSpec[map[string]models.Choreography]{
		Kind:  models.OpCreateChoreography,
		Data:  ChoreographyPayload{Choreography: choreo},
		Apply: ch.set(choreo),
		Revert: func(state map[string]models.Choreography) map[string]models.Choreography {
			delete(state, choreo.ID)
			return state
		},
		Confirm: func(state map[string]models.Choreography) map[string]models.Choreography {
			if serverID == "" || serverID == choreo.ID {
				return state
			}
			adopted, ok := state[choreo.ID]
			if !ok {
				return state
			}
			delete(state, choreo.ID)
			adopted.ID = serverID
			state[serverID] = adopted
			return state
		},
		Remote: func(ctx context.Context) error {
			id, err := ch.remote.Create(ctx, choreographiesCollection, choreo)
			if err != nil {
				return err
			}
			serverID = id
			return nil
		},
	})
	return choreo.ID, done
}

// Update replaces a choreography's name and movements. Returns nil if
// the ID is unknown.
func (ch *Choreographies) Update(ctx context.Context, id, name string, movements []models.Movement) <-chan Outcome {
	prev, had := ch.coord.State()[id]
	if !had {
		return nil
	}
	next := prev
	next.Name = name
	next.Movements = movements
	next.UpdatedAt = ch.now()
	return ch.coord.Mutate(ctx, MutationSpec[map[string]models.Choreography]{
		Kind:   models.OpUpdateChoreography,
		Data:   ChoreographyPayload{Choreography: next},
		Apply:  ch.set(next),
		Revert: ch.set(prev),
		Remote: func(ctx context.Context) error {
			return ch.remote.Write(ctx, choreographiesCollection, id, next)
		},
	})
}

// Delete removes a choreography. Deleting an unknown ID is a no-op that
// still returns a settled channel, since a remote delete of an absent
// document succeeds anyway.
func (ch *Choreographies) Delete(ctx context.Context, id string) <-chan Outcome {
	prev, had := ch.coord.State()[id]
	return ch.coord.Mutate(ctx, MutationSpec[map[string]models.Choreography]{
		Kind: models.OpDeleteChoreography,
		Data: ChoreographyRefPayload{ID: id},
		Apply: func(state map[string]models.Choreography) map[string]models.Choreography {
			delete(state, id)
			return state
		},
		Revert: func(state map[string]models.Choreography) map[string]models.Choreography {
			if had {
				state[id] = prev
			}
			return state
		},
		Remote: func(ctx context.Context) error {
			return ch.remote.Delete(ctx, choreographiesCollection, id)
		},
	})
}

// ToggleShare flips a choreography between private and public. Returns
// nil if the ID is unknown.
func (ch *Choreographies) ToggleShare(ctx context.Context, id string) <-chan Outcome {
	prev, had := ch.coord.State()[id]
	if !had {
		return nil
	}
	next := prev
	next.Public = !prev.Public
	next.UpdatedAt = ch.now()
	return ch.coord.Mutate(ctx, MutationSpec[map[string]models.Choreography]{
		Kind:   models.OpToggleChoreographyShare,
		Data:   ChoreographyRefPayload{ID: id, Public: next.Public},
		Apply:  ch.set(next),
		Revert: ch.set(prev),
		Remote: func(ctx context.Context) error {
			patch := map[string]any{"public": next.Public, "updatedAt": next.UpdatedAt}
			return ch.remote.Write(ctx, choreographiesCollection, id, patch)
		},
	})
}

func (ch *Choreographies) set(choreo models.Choreography) func(map[string]models.Choreography) map[string]models.Choreography {
	return func(state map[string]models.Choreography) map[string]models.Choreography {
		state[choreo.ID] = choreo
		return state
	}
}
