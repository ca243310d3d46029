package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/stepsync/internal/netmon"
	"github.com/desertthunder/stepsync/internal/shared"
	"github.com/desertthunder/stepsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// QueueList prints pending operations in replay order.
func (r *Runner) QueueList(ctx context.Context, cmd *cli.Command) error {
	if r.queue == nil {
		return fmt.Errorf("%w: run 'stepsync setup' first", shared.ErrStorageUnavailable)
	}

	pending := r.queue.Pending(ctx)
	if cmd.Bool("json") {
		return r.writeJSON(pending, cmd.Bool("pretty"))
	}

	if len(pending) == 0 {
		return r.writePlain("Queue is empty\n")
	}
	for i, op := range pending {
		when := time.UnixMilli(op.Timestamp).Format("Jan 2 15:04:05")
		line := fmt.Sprintf("%2d. %s  (queued %s", i+1, op.Kind, when)
		if op.Retries > 0 {
			line += fmt.Sprintf(", %d failed attempts", op.Retries)
		}
		r.writePlain("%s)\n", line)
	}
	return nil
}

// QueueSweep removes operations that exhausted their retries.
func (r *Runner) QueueSweep(ctx context.Context, cmd *cli.Command) error {
	if r.queue == nil {
		return fmt.Errorf("%w: run 'stepsync setup' first", shared.ErrStorageUnavailable)
	}

	swept, err := r.queue.SweepFailed(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}
	if len(swept) == 0 {
		return r.writePlain("Nothing to sweep\n")
	}

	for _, op := range swept {
		r.writePlain("✗ abandoned %s (%s)\n", op.Kind, op.ID)
	}
	return r.writePlain("Swept %d operation(s)\n", len(swept))
}

// QueueClear drops every pending operation.
func (r *Runner) QueueClear(ctx context.Context, cmd *cli.Command) error {
	if r.queue == nil {
		return fmt.Errorf("%w: run 'stepsync setup' first", shared.ErrStorageUnavailable)
	}

	dropped, err := r.queue.Clear(ctx)
	if err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}
	if dropped == 0 {
		return r.writePlain("Queue is empty\n")
	}
	return r.writePlain("✗ Dropped %d pending operation(s)\n", dropped)
}

// Drain replays the queue once, or continuously with --watch.
func (r *Runner) Drain(ctx context.Context, cmd *cli.Command) error {
	if r.engine == nil {
		return fmt.Errorf("%w: drain engine not initialized", shared.ErrServiceUnavailable)
	}

	opts := tasks.DrainOpts{
		RateLimit:   cmd.Float("rate"),
		SweepFailed: cmd.Bool("sweep"),
		SettleDelay: r.config.Drain.SettleDelay(),
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = r.config.Drain.RateLimit
	}

	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("%s\n", update.Message)
		}
	}()

	if cmd.Bool("watch") {
		r.logger.Info("watching for reconnects", "settle_delay", opts.SettleDelay)
		err := r.engine.Watch(ctx, progress, opts)
		close(progress)
		<-done
		return err
	}

	result, err := r.engine.Drain(ctx, progress, opts)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	r.writePlainln("Replayed %d/%d, %d still queued, %d skipped",
		result.Succeeded, result.Attempted, result.Requeued, result.Skipped)
	if len(result.Swept) > 0 {
		r.writePlain("Swept %d abandoned operation(s)\n", len(result.Swept))
	}
	return nil
}

// CacheGet prints a cached document.
func (r *Runner) CacheGet(ctx context.Context, cmd *cli.Command) error {
	if r.cache == nil {
		return fmt.Errorf("%w: run 'stepsync setup' first", shared.ErrStorageUnavailable)
	}

	key := cmd.StringArg("key")
	if key == "" {
		return fmt.Errorf("%w: cache key is required", shared.ErrMissingArgument)
	}

	var doc json.RawMessage
	if !r.cache.Get(ctx, key, &doc) {
		return r.writePlain("No fresh entry for %q\n", key)
	}
	return r.writeJSON(doc, cmd.Bool("pretty"))
}

// CacheClear drops a cached document.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	if r.cache == nil {
		return fmt.Errorf("%w: run 'stepsync setup' first", shared.ErrStorageUnavailable)
	}

	key := cmd.StringArg("key")
	if key == "" {
		return fmt.Errorf("%w: cache key is required", shared.ErrMissingArgument)
	}

	if err := r.cache.Clear(ctx, key); err != nil {
		return err
	}
	return r.writePlain("✓ Cleared %q\n", key)
}

// Status reports connection quality. With signal flags it classifies a
// hypothetical signal instead of the monitor's current state.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	if cmd.IsSet("downlink") || cmd.IsSet("effective-type") || cmd.IsSet("type") || cmd.IsSet("save-data") || cmd.IsSet("rtt") {
		sig := netmon.Signal{
			EffectiveType: cmd.String("effective-type"),
			Downlink:      cmd.Float("downlink"),
			RTT:           int(cmd.Int("rtt")),
			Type:          cmd.String("type"),
			SaveData:      cmd.Bool("save-data"),
		}
		level := netmon.Classify(sig)
		if cmd.Bool("json") {
			return r.writeJSON(map[string]any{"slow_level": level, "label": level.String()}, true)
		}
		return r.writePlain("Classification: %s\n", level)
	}

	snap := r.monitor.Snapshot()
	if cmd.Bool("json") {
		return r.writeJSON(snap, true)
	}

	state := "online"
	if snap.IsOffline {
		state = "offline"
	} else if snap.IsSlow {
		state = fmt.Sprintf("slow (%s)", snap.SlowLevel)
	}
	r.writePlain("Connection: %s\n", state)
	if r.queue != nil {
		r.writePlain("Queued operations: %d\n", r.queue.Len(ctx))
	}
	return nil
}
