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

const favoritesCollection = "favorites"

// favoritesCacheKey scopes the cached document to one user so a
// sign-out/sign-in cycle cannot leak another account's favorites.
func favoritesCacheKey(uid string) string {
	return fmt.Sprintf("favorites:%s", uid)
}

// Favorites is the optimistic view of one user's favorite figures,
// stored remotely as a single document keyed by figure ID.
type Favorites struct {
	coord   *Coordinator[map[string]models.Favorite]
	remote  services.Remote
	cache   *cache.Cache
	auth    AuthState
	monitor *netmon.Monitor
	logger  *log.Logger
	now     func() int64
}

// NewFavorites wires a favorites collection. monitor may be nil in
// tests; every other dependency is required.
func NewFavorites(remote services.Remote, c *cache.Cache, auth AuthState, q Enqueuer, monitor *netmon.Monitor, logger *log.Logger) *Favorites {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	var gate Gate
	if monitor != nil {
		gate = monitor
	}
	return &Favorites{
		coord:   NewCoordinator(map[string]models.Favorite{}, maps.Clone, auth, q, gate, logger),
		remote:  remote,
		cache:   c,
		auth:    auth,
		monitor: monitor,
		logger:  shared.WithLogger(logger, "collection", favoritesCollection),
		now:     shared.NowMillis,
	}
}

// OnFailure forwards to the underlying coordinator.
func (f *Favorites) OnFailure(fn func(Outcome, models.OperationKind)) {
	f.coord.OnFailure(fn)
}

// Load populates the in-memory set, preferring the backend and falling
// back to the local cache when the network is poor or the read fails.
// Anonymous users get an empty set.
func (f *Favorites) Load(ctx context.Context) error {
	identity, ok := f.auth.Identity()
	if !ok {
		f.coord.Reset(map[string]models.Favorite{})
		return nil
	}
	key := favoritesCacheKey(identity.UID)

	if f.monitor != nil && f.monitor.ShouldUseCache() {
		var cached map[string]models.Favorite
		if f.cache.Get(ctx, key, &cached) {
			f.coord.Reset(cached)
			return nil
		}
	}

	raw, err := f.remote.Read(ctx, favoritesCollection, identity.UID)
	if err != nil {
		if services.IsNotFound(err) {
			f.coord.Reset(map[string]models.Favorite{})
			return nil
		}
		var cached map[string]models.Favorite
		if f.cache.Get(ctx, key, &cached) {
			f.logger.Info("remote read failed, serving cached favorites", "error", err)
			f.coord.Reset(cached)
			return nil
		}
		return fmt.Errorf("loading favorites: %w", err)
	}

	favorites := make(map[string]models.Favorite)
	if err := json.Unmarshal(raw, &favorites); err != nil {
		return fmt.Errorf("%w: favorites document: %v", shared.ErrCacheDecode, err)
	}
	f.coord.Reset(favorites)
	_ = f.cache.Set(ctx, key, favorites)
	return nil
}

// All returns the favorites ordered by most recently added.
func (f *Favorites) All() []models.Favorite {
	state := f.coord.State()
	out := make([]models.Favorite, 0, len(state))
	for _, fav := range state {
		out = append(out, fav)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AddedAt != out[j].AddedAt {
			return out[i].AddedAt > out[j].AddedAt
		}
		return out[i].FigureID < out[j].FigureID
	})
	return out
}

// Has reports whether the figure is currently favorited.
func (f *Favorites) Has(figureID string) bool {
	_, ok := f.coord.State()[figureID]
	return ok
}

// Add favorites a figure. Adding an existing favorite is a no-op
// locally and an idempotent upsert remotely, so replaying a queued add
// is always safe.
func (f *Favorites) Add(ctx context.Context, figureID string) <-chan Outcome {
	fav := models.Favorite{FigureID: figureID, AddedAt: f.now()}
	prev, had := f.coord.State()[figureID]
	if had {
		fav = prev
	}
	return f.coord.Mutate(ctx, MutationSpec[map[string]models.Favorite]{
		Kind:   models.OpAddFavorite,
		Data:   FavoritePayload{FigureID: figureID, Favorite: &fav},
		Apply:  f.set(figureID, fav),
		Revert: f.restore(figureID, prev, had),
		Remote: f.writeEntry(figureID, &fav),
	})
}

// Remove unfavorites a figure. Removing an absent favorite still issues
// the (idempotent) remote delete so a queued remove replays cleanly.
func (f *Favorites) Remove(ctx context.Context, figureID string) <-chan Outcome {
	prev, had := f.coord.State()[figureID]
	return f.coord.Mutate(ctx, MutationSpec[map[string]models.Favorite]{
		Kind:   models.OpRemoveFavorite,
		Data:   FavoritePayload{FigureID: figureID},
		Apply:  f.unset(figureID),
		Revert: f.restore(figureID, prev, had),
		Remote: f.writeEntry(figureID, nil),
	})
}

// TouchOpened stamps the favorite with the current time. Returns nil if
// the figure is not a favorite.
func (f *Favorites) TouchOpened(ctx context.Context, figureID string) <-chan Outcome {
	prev, had := f.coord.State()[figureID]
	if !had {
		return nil
	}
	next := prev
	next.LastOpened = f.now()
	return f.coord.Mutate(ctx, MutationSpec[map[string]models.Favorite]{
		Kind:   models.OpUpdateFavoriteOpened,
		Data:   FavoritePayload{FigureID: figureID, Favorite: &next},
		Apply:  f.set(figureID, next),
		Revert: f.restore(figureID, prev, had),
		Remote: f.writeEntry(figureID, &next),
	})
}

// SetMastery records the user's self-assessed level for a favorite.
// Returns nil if the figure is not a favorite.
func (f *Favorites) SetMastery(ctx context.Context, figureID string, level models.MasteryLevel) <-chan Outcome {
	prev, had := f.coord.State()[figureID]
	if !had {
		return nil
	}
	next := prev
	next.Mastery = level
	return f.coord.Mutate(ctx, MutationSpec[map[string]models.Favorite]{
		Kind:   models.OpUpdateFavoriteMastery,
		Data:   FavoritePayload{FigureID: figureID, Favorite: &next},
		Apply:  f.set(figureID, next),
		Revert: f.restore(figureID, prev, had),
		Remote: f.writeEntry(figureID, &next),
	})
}

func (f *Favorites) set(figureID string, fav models.Favorite) func(map[string]models.Favorite) map[string]models.Favorite {
	return func(state map[string]models.Favorite) map[string]models.Favorite {
		state[figureID] = fav
		return state
	}
}

func (f *Favorites) unset(figureID string) func(map[string]models.Favorite) map[string]models.Favorite {
	return func(state map[string]models.Favorite) map[string]models.Favorite {
		delete(state, figureID)
		return state
	}
}

func (f *Favorites) restore(figureID string, prev models.Favorite, had bool) func(map[string]models.Favorite) map[string]models.Favorite {
	return func(state map[string]models.Favorite) map[string]models.Favorite {
		if had {
			state[figureID] = prev
		} else {
			delete(state, figureID)
		}
		return state
	}
}

// writeEntry patches a single field of the per-user favorites document.
// A nil favorite clears the field, which the backend treats as removal.
func (f *Favorites) writeEntry(figureID string, fav *models.Favorite) func(context.Context) error {
	return func(ctx context.Context) error {
		identity, ok := f.auth.Identity()
		if !ok {
			return shared.ErrNotAuthenticated
		}
		return f.remote.Write(ctx, favoritesCollection, identity.UID, map[string]*models.Favorite{figureID: fav})
	}
}
