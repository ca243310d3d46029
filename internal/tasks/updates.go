package tasks

import (
	"fmt"

	"github.com/desertthunder/stepsync/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ScanQueue Phase = iota
	Replay
	Sweep
	Settle
)

func (p Phase) String() string {
	switch p {
	case ScanQueue:
		return "scan_queue"
	case Replay:
		return "replay"
	case Sweep:
		return "sweep"
	case Settle:
		return "settle"
	default:
		return ""
	}
}

func scanQueueUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanQueue,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d pending operation(s)...", total),
	}
}

func replayUpdate(step, total int, op models.SyncOperation) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Replay,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Replaying %s...", step, total, op.Kind),
		Data:    op,
	}
}

func replayedUpdate(step, total int, op models.SyncOperation) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Replay,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, op.Kind),
	}
}

func replayFailedUpdate(step, total int, op models.SyncOperation, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Replay,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, op.Kind, err),
	}
}

func sweepUpdate(removed int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Sweep,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Swept %d abandoned operation(s)", removed),
	}
}

func settleUpdate(snapshot models.NetworkQualitySnapshot) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Settle,
		Step:    1,
		Total:   1,
		Message: "Connection restored, waiting for it to settle...",
		Data:    snapshot,
	}
}
