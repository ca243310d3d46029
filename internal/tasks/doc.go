// Package tasks orchestrates sync queue replay with real-time progress reporting.
//
// # Core Operations
//
// The [Engine] exposes two operations:
//
//  1. [Engine.Drain] : Replay every pending queue operation in FIFO order
//     - Rate-limits requests against the backend
//     - Removes operations that land, bumps the retry counter on those
//       that fail, and leaves operations of unrecognized kinds queued
//     - Optionally sweeps operations that exhausted their retries
//
//  2. [Engine.Watch] : Drain automatically when connectivity returns
//     - Subscribes to the network monitor
//     - Waits out a settle delay before draining so a flapping
//       connection does not trigger a burst of half-finished drains
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and
// optional data for advanced UI rendering. Updates use select with default
// to prevent blocking.
package tasks
