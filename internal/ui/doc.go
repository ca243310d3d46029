// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for inspecting and draining the sync queue:
//  1. [QueueListView] : Browse pending operations with retry counts
//  2. [ConfirmView] : Confirm a drain pass
//  3. [DrainView] : Monitor real-time replay progress
//  4. [ResultView] : Display replay, requeue and sweep counts
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from the drain Engine, providing non-blocking status reporting during replay.
// A header line tracks the network monitor so connection quality is always visible.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
