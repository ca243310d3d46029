// package syncer implements the optimistic mutation pattern shared by
// every domain collection: apply locally first, confirm remotely in the
// background, and revert or queue on failure.
//
// One generic [Coordinator] owns the in-memory state for a collection;
// the collections (favorites, choreographies) build [MutationSpec]
// values describing each operation and hand them to Mutate. Failure
// handling is uniform: [shared.ClassifyError] decides between rollback
// (permission) and enqueue (everything else) for every mutation, with
// no per-call-site variation.
package syncer

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stepsync/internal/models"
	"github.com/desertthunder/stepsync/internal/services"
	"github.com/desertthunder/stepsync/internal/shared"
)

// Outcome is the terminal state of one optimistic mutation.
type Outcome int

const (
	// OutcomeLocalOnly means the user is anonymous; the change lives in
	// memory only and nothing was sent or queued.
	OutcomeLocalOnly Outcome = iota

	// OutcomeConfirmed means the remote write succeeded.
	OutcomeConfirmed

	// OutcomeRolledBack means the remote rejected the write
	// authoritatively and the local change was reverted.
	OutcomeRolledBack

	// OutcomeQueued means delivery failed transiently (or the network
	// was unusable) and the operation awaits replay.
	OutcomeQueued

	// OutcomeDropped means the operation could not even be queued; the
	// local change stands but will not reach the backend. Logged, never
	// fatal.
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLocalOnly:
		return "local-only"
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeRolledBack:
		return "rolled-back"
	case OutcomeQueued:
		return "queued"
	case OutcomeDropped:
		return "dropped"
	default:
		return ""
	}
}

// AuthState exposes the current identity; satisfied by
// [services.Authenticator].
type AuthState interface {
	Identity() (*services.Identity, bool)
}

// Enqueuer appends operations to the durable sync queue; satisfied by
// [queue.Queue].
type Enqueuer interface {
	Add(ctx context.Context, kind models.OperationKind, userID string, data any) (models.SyncOperation, error)
}

// Gate reports whether the network is worth attempting; satisfied by
// [netmon.Monitor].
type Gate interface {
	Usable() bool
}

// MutationSpec describes one optimistic mutation over state S.
type MutationSpec[S any] struct {
	// Kind identifies the replayable operation for queueing.
	Kind models.OperationKind

	// Data is the queue payload: enough to re-execute Remote later.
	Data any

	// Apply performs the local change synchronously.
	Apply func(S) S

	// Revert restores the affected entity to its pre-mutation value.
	// Only the entity this mutation touched; concurrent mutations to
	// other entities must survive a revert.
	Revert func(S) S

	// Confirm optionally adjusts state after remote success (e.g.
	// adopting a server-assigned ID). May be nil.
	Confirm func(S) S

	// Remote performs the background write.
	Remote func(ctx context.Context) error
}

// Coordinator owns one collection's in-memory state and runs the
// optimistic state machine over it.
type Coordinator[S any] struct {
	mu    sync.Mutex
	state S
	clone func(S) S

	auth    AuthState
	queue   Enqueuer
	gate    Gate
	logger  *log.Logger
	onError func(Outcome, models.OperationKind)
}

// NewCoordinator creates a Coordinator with the given initial state.
// clone must produce an independent copy; it guards every state read.
func NewCoordinator[S any](initial S, clone func(S) S, auth AuthState, q Enqueuer, gate Gate, logger *log.Logger) *Coordinator[S] {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Coordinator[S]{
		state:  initial,
		clone:  clone,
		auth:   auth,
		queue:  q,
		gate:   gate,
		logger: shared.WithLogger(logger, "component", "syncer"),
	}
}

// OnFailure registers a callback for rolled-back and dropped mutations,
// used by the embedding app to surface advisories ("please sign in
// again"). Runs on the background goroutine.
func (c *Coordinator[S]) OnFailure(fn func(Outcome, models.OperationKind)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// State returns an independent copy of the current state.
func (c *Coordinator[S]) State() S {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clone(c.state)
}

// Reset replaces the state wholesale; used by load/sign-out paths.
func (c *Coordinator[S]) Reset(state S) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

// Mutate runs the optimistic state machine for one mutation.
//
// The local change is applied before Mutate returns; the remote write
// runs in the background. The returned channel receives the terminal
// [Outcome] exactly once and is buffered, so callers are free to ignore
// it (the UI does; tests don't).
//
// The background work is detached from the caller's cancellation:
// navigating away must not abort an in-flight write, per the
// no-cancellation contract of this layer.
func (c *Coordinator[S]) Mutate(ctx context.Context, spec MutationSpec[S]) <-chan Outcome {
	done := make(chan Outcome, 1)

	c.mu.Lock()
	c.state = spec.Apply(c.state)
	c.mu.Unlock()

	identity, ok := c.auth.Identity()
	if !ok {
		done <- OutcomeLocalOnly
		return done
	}

	bgCtx := context.WithoutCancel(ctx)

	if c.gate != nil && !c.gate.Usable() {
		done <- c.enqueue(bgCtx, spec, identity.UID)
		return done
	}

	go func() {
		err := spec.Remote(bgCtx)
		switch shared.ClassifyError(err) {
		case shared.ClassNone:
			if spec.Confirm != nil {
				c.mu.Lock()
				c.state = spec.Confirm(c.state)
				c.mu.Unlock()
			}
			done <- OutcomeConfirmed

		case shared.ClassPermission:
			// The server rejected the write authoritatively; keeping the
			// optimistic change would desync the UI from reality.
			c.mu.Lock()
			c.state = spec.Revert(c.state)
			c.mu.Unlock()
			c.logger.Warn("mutation rejected, local change reverted", "kind", spec.Kind, "error", err)
			c.report(OutcomeRolledBack, spec.Kind)
			done <- OutcomeRolledBack

		default:
			c.logger.Info("delivery failed, queueing for replay", "kind", spec.Kind, "error", err)
			done <- c.enqueue(bgCtx, spec, identity.UID)
		}
	}()

	return done
}

func (c *Coordinator[S]) enqueue(ctx context.Context, spec MutationSpec[S], userID string) Outcome {
	if _, err := c.queue.Add(ctx, spec.Kind, userID, spec.Data); err != nil {
		c.logger.Warn("failed to queue operation, change is local only", "kind", spec.Kind, "error", err)
		c.report(OutcomeDropped, spec.Kind)
		return OutcomeDropped
	}
	return OutcomeQueued
}

func (c *Coordinator[S]) report(outcome Outcome, kind models.OperationKind) {
	c.mu.Lock()
	fn := c.onError
	c.mu.Unlock()
	if fn != nil {
		fn(outcome, kind)
	}
}
