package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/vkm/internal/shared"
	"github.com/desertthunder/vkm/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for browsing and downloading audios.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	music, err := r.musicService(ctx)
	if err != nil {
		return err
	}
	engine, err := r.downloadEngine()
	if err != nil {
		return err
	}
	opts, err := r.downloadOpts(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, music, engine, opts)
	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
