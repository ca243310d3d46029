package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/stepsync/internal/shared"
	"github.com/desertthunder/stepsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive queue inspector.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if r.queue == nil {
		return fmt.Errorf("%w: run 'stepsync setup' first", shared.ErrStorageUnavailable)
	}
	if r.engine == nil {
		return fmt.Errorf("%w: drain engine not initialized", shared.ErrServiceUnavailable)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/stepsync-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, r.queue, r.engine, r.monitor)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
