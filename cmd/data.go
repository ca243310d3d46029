package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/stepsync/internal/models"
	"github.com/desertthunder/stepsync/internal/shared"
	"github.com/desertthunder/stepsync/internal/syncer"
	"github.com/urfave/cli/v3"
)

// reportOutcome waits for a mutation's terminal state and renders it.
// Only an authoritative rejection is an error; queued and local-only
// results are normal offline behavior.
func (r *Runner) reportOutcome(done <-chan syncer.Outcome) error {
	if done == nil {
		return fmt.Errorf("%w: no such entry", shared.ErrInvalidArgument)
	}

	switch outcome := <-done; outcome {
	case syncer.OutcomeConfirmed:
		return r.writePlain("✓ Synced\n")
	case syncer.OutcomeLocalOnly:
		return r.writePlain("✓ Saved locally (sign in to sync)\n")
	case syncer.OutcomeQueued:
		return r.writePlain("✓ Saved locally, queued for sync\n")
	case syncer.OutcomeDropped:
		return r.writePlain("✓ Saved locally, but the sync queue is unavailable\n")
	case syncer.OutcomeRolledBack:
		return fmt.Errorf("%w: the change was rejected and reverted", shared.ErrPermissionDenied)
	default:
		return fmt.Errorf("unexpected outcome: %v", outcome)
	}
}

// FavoritesList prints the favorite figures, most recent first.
func (r *Runner) FavoritesList(ctx context.Context, cmd *cli.Command) error {
	if r.favorites == nil {
		return fmt.Errorf("%w: favorites not initialized", shared.ErrServiceUnavailable)
	}
	if err := r.favorites.Load(ctx); err != nil {
		return err
	}

	favorites := r.favorites.All()
	if cmd.Bool("json") {
		return r.writeJSON(favorites, cmd.Bool("pretty"))
	}

	if len(favorites) == 0 {
		return r.writePlain("No favorites\n")
	}
	for _, fav := range favorites {
		added := time.UnixMilli(fav.AddedAt).Format("2006-01-02")
		r.writePlain("%s  (%s, added %s)\n", fav.FigureID, fav.Mastery, added)
	}
	return nil
}

// FavoritesAdd favorites a figure.
func (r *Runner) FavoritesAdd(ctx context.Context, cmd *cli.Command) error {
	return r.favoriteMutation(ctx, cmd, func(figureID string) <-chan syncer.Outcome {
		return r.favorites.Add(ctx, figureID)
	})
}

// FavoritesRemove unfavorites a figure.
func (r *Runner) FavoritesRemove(ctx context.Context, cmd *cli.Command) error {
	return r.favoriteMutation(ctx, cmd, func(figureID string) <-chan syncer.Outcome {
		return r.favorites.Remove(ctx, figureID)
	})
}

// FavoritesOpen stamps a favorite with the current time.
func (r *Runner) FavoritesOpen(ctx context.Context, cmd *cli.Command) error {
	return r.favoriteMutation(ctx, cmd, func(figureID string) <-chan syncer.Outcome {
		return r.favorites.TouchOpened(ctx, figureID)
	})
}

// FavoritesMastery sets the mastery level for a favorite.
func (r *Runner) FavoritesMastery(ctx context.Context, cmd *cli.Command) error {
	if r.favorites == nil {
		return fmt.Errorf("%w: favorites not initialized", shared.ErrServiceUnavailable)
	}

	figureID := cmd.StringArg("figure")
	if figureID == "" {
		return fmt.Errorf("%w: figure ID is required", shared.ErrMissingArgument)
	}
	level, err := parseMastery(cmd.StringArg("level"))
	if err != nil {
		return err
	}

	if err := r.favorites.Load(ctx); err != nil {
		return err
	}
	return r.reportOutcome(r.favorites.SetMastery(ctx, figureID, level))
}

func (r *Runner) favoriteMutation(ctx context.Context, cmd *cli.Command, mutate func(string) <-chan syncer.Outcome) error {
	if r.favorites == nil {
		return fmt.Errorf("%w: favorites not initialized", shared.ErrServiceUnavailable)
	}

	figureID := cmd.StringArg("figure")
	if figureID == "" {
		return fmt.Errorf("%w: figure ID is required", shared.ErrMissingArgument)
	}

	if err := r.favorites.Load(ctx); err != nil {
		return err
	}
	return r.reportOutcome(mutate(figureID))
}

func parseMastery(s string) (models.MasteryLevel, error) {
	switch s {
	case "unfamiliar":
		return models.MasteryUnfamiliar, nil
	case "learning":
		return models.MasteryLearning, nil
	case "comfortable":
		return models.MasteryComfortable, nil
	case "mastered":
		return models.MasteryMastered, nil
	default:
		return 0, fmt.Errorf("%w: unknown mastery level %q", shared.ErrInvalidArgument, s)
	}
}

// ChoreoList prints the user's choreographies.
func (r *Runner) ChoreoList(ctx context.Context, cmd *cli.Command) error {
	if r.choreos == nil {
		return fmt.Errorf("%w: choreographies not initialized", shared.ErrServiceUnavailable)
	}
	if err := r.choreos.Load(ctx); err != nil {
		return err
	}

	choreos := r.choreos.All()
	if cmd.Bool("json") {
		return r.writeJSON(choreos, cmd.Bool("pretty"))
	}

	if len(choreos) == 0 {
		return r.writePlain("No choreographies\n")
	}
	for _, c := range choreos {
		visibility := "private"
		if c.Public {
			visibility = "public"
		}
		r.writePlain("%s  %s (%d movements, %s)\n", c.ID, c.Name, len(c.Movements), visibility)
	}
	return nil
}

// ChoreoCreate creates a private choreography from the given figures.
func (r *Runner) ChoreoCreate(ctx context.Context, cmd *cli.Command) error {
	if r.choreos == nil {
		return fmt.Errorf("%w: choreographies not initialized", shared.ErrServiceUnavailable)
	}

	figures := cmd.StringSlice("figure")
	movements := make([]models.Movement, 0, len(figures))
	for _, figureID := range figures {
		movements = append(movements, models.Movement{FigureID: figureID})
	}

	if err := r.choreos.Load(ctx); err != nil {
		return err
	}

	id, done := r.choreos.Create(ctx, cmd.String("name"), movements)
	r.writePlain("Created %s\n", id)
	return r.reportOutcome(done)
}

// ChoreoDelete removes a choreography.
func (r *Runner) ChoreoDelete(ctx context.Context, cmd *cli.Command) error {
	return r.choreoMutation(ctx, cmd, func(id string) <-chan syncer.Outcome {
		return r.choreos.Delete(ctx, id)
	})
}

// ChoreoShare toggles a choreography's visibility.
func (r *Runner) ChoreoShare(ctx context.Context, cmd *cli.Command) error {
	return r.choreoMutation(ctx, cmd, func(id string) <-chan syncer.Outcome {
		return r.choreos.ToggleShare(ctx, id)
	})
}

func (r *Runner) choreoMutation(ctx context.Context, cmd *cli.Command, mutate func(string) <-chan syncer.Outcome) error {
	if r.choreos == nil {
		return fmt.Errorf("%w: choreographies not initialized", shared.ErrServiceUnavailable)
	}

	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: choreography ID is required", shared.ErrMissingArgument)
	}

	if err := r.choreos.Load(ctx); err != nil {
		return err
	}
	return r.reportOutcome(mutate(id))
}
