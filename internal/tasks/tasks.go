// package tasks implements sync queue replay against the document backend.
//
// The core type is Engine, which drains the durable queue in FIFO order and
// can watch the network monitor to drain automatically on reconnect.
// Operations emit progress updates via channels for non-blocking status
// reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stepsync/internal/models"
	"github.com/desertthunder/stepsync/internal/netmon"
	"github.com/desertthunder/stepsync/internal/queue"
	"github.com/desertthunder/stepsync/internal/shared"
	"golang.org/x/time/rate"
)

// Executor performs one queued operation against the backend.
// This abstraction allows for easier testing and decoupling from concrete implementation.
type Executor interface {
	Execute(ctx context.Context, op models.SyncOperation) error
}

// DrainOpts contains configuration for queue drains.
type DrainOpts struct {
	RateLimit   float64       // Requests per second (default: 5)
	SweepFailed bool          // Remove operations that exhausted their retries after the pass
	SettleDelay time.Duration // Watch only: wait after reconnect before draining (default: 1s)
}

// OperationResult represents the outcome of replaying a single operation.
type OperationResult struct {
	Operation models.SyncOperation // The operation as read from the queue
	Error     error                // Error if replay failed
	Requeued  bool                 // True when the operation stays queued for another pass
}

// DrainResult contains all data from a drain pass.
type DrainResult struct {
	Attempted int                    // Operations pulled from the queue
	Succeeded int                    // Operations that landed and were removed
	Requeued  int                    // Operations left queued with a bumped retry counter
	Skipped   int                    // Operations of a kind this build does not recognize, left queued untouched
	Swept     []models.SyncOperation // Operations abandoned by the optional sweep
	Results   []OperationResult      // Individual replay results
}

// Engine drains the sync queue.
type Engine struct {
	queue   *queue.Queue
	exec    Executor
	monitor *netmon.Monitor
	logger  *log.Logger
}

// NewEngine creates an Engine. monitor may be nil, in which case Drain
// never aborts early and Watch is unavailable.
func NewEngine(q *queue.Queue, exec Executor, monitor *netmon.Monitor, logger *log.Logger) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{
		queue:   q,
		exec:    exec,
		monitor: monitor,
		logger:  shared.WithLogger(logger, "component", "drain"),
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Drain replays every pending operation in FIFO order.
//
// An operation that lands is removed; one that fails stays queued with a
// bumped retry counter for the next pass, preserving its position. An
// operation this build cannot decode is removed outright so it cannot
// block the queue. Failures never abort the pass; going offline does.
func (e *Engine) Drain(ctx context.Context, progress chan<- ProgressUpdate, opts DrainOpts) (*DrainResult, error) {
	if e.exec == nil {
		return nil, fmt.Errorf("%w: executor not initialized", shared.ErrServiceUnavailable)
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	pending := e.queue.Pending(ctx)
	e.sendProgress(progress, scanQueueUpdate(len(pending)))

	result := &DrainResult{
		Attempted: len(pending),
		Results:   make([]OperationResult, 0, len(pending)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	total := len(pending)

	for i, op := range pending {
		if e.monitor != nil && !e.monitor.Usable() {
			e.logger.Info("network no longer usable, stopping drain", "remaining", total-i)
			result.Attempted = i
			break
		}

		if err := limiter.Wait(ctx); err != nil {
			return result, fmt.Errorf("drain interrupted: %w", err)
		}

		e.sendProgress(progress, replayUpdate(i+1, total, op))
		err := e.exec.Execute(ctx, op)

		switch {
		case err == nil:
			if err := e.queue.Remove(ctx, op.ID); err != nil {
				// The write landed; the op replays next pass, which is
				// safe because every replay is idempotent.
				e.logger.Warn("replayed operation could not be removed", "id", op.ID, "error", err)
			}
			result.Succeeded++
			result.Results = append(result.Results, OperationResult{Operation: op})
			e.sendProgress(progress, replayedUpdate(i+1, total, op))

		case errors.Is(err, shared.ErrUnknownOperation):
			// A kind from a newer build. Leave it queued untouched; a
			// build that recognizes it can still replay it.
			e.logger.Warn("skipping operation of unrecognized kind", "id", op.ID, "kind", op.Kind)
			result.Skipped++
			result.Results = append(result.Results, OperationResult{Operation: op, Error: err, Requeued: true})

		default:
			e.logger.Info("replay failed, keeping operation queued", "id", op.ID, "kind", op.Kind, "retries", op.Retries+1, "error", err)
			if err := e.queue.IncrementRetry(ctx, op.ID); err != nil {
				e.logger.Warn("retry counter could not be updated", "id", op.ID, "error", err)
			}
			result.Requeued++
			result.Results = append(result.Results, OperationResult{Operation: op, Error: err, Requeued: true})
			e.sendProgress(progress, replayFailedUpdate(i+1, total, op, err))
		}
	}

	if opts.SweepFailed {
		swept, err := e.queue.SweepFailed(ctx)
		if err != nil {
			e.logger.Warn("sweep failed", "error", err)
		} else if len(swept) > 0 {
			result.Swept = swept
			e.sendProgress(progress, sweepUpdate(len(swept)))
		}
	}

	return result, nil
}

// Watch drains automatically whenever connectivity is restored, waiting
// out opts.SettleDelay first so a flapping connection does not trigger a
// burst of half-finished drains. Blocks until ctx is done.
func (e *Engine) Watch(ctx context.Context, progress chan<- ProgressUpdate, opts DrainOpts) error {
	if e.monitor == nil {
		return fmt.Errorf("%w: network monitor not initialized", shared.ErrServiceUnavailable)
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = time.Second
	}

	restored := make(chan models.NetworkQualitySnapshot, 1)
	e.monitor.Subscribe(func(snap models.NetworkQualitySnapshot) {
		if snap.IsOffline {
			return
		}
		select {
		case restored <- snap:
		default:
		}
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap := <-restored:
			e.sendProgress(progress, settleUpdate(snap))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(opts.SettleDelay):
			}

			if !e.monitor.Usable() {
				continue
			}
			if _, err := e.Drain(ctx, progress, opts); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				e.logger.Warn("automatic drain failed", "error", err)
			}
		}
	}
}
