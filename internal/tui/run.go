package tui

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/tui/themes"
)

// Options configures RunReview. Nil streams use the terminal.
type Options struct {
	Input  io.Reader
	Output io.Writer
	Theme  string
}

// RunReview opens the review browser over run and blocks until the user quits
// or ctx is canceled.
func RunReview(ctx context.Context, run *model.Run, opts Options) error {
	if run == nil {
		return fmt.Errorf("no run to review")
	}

	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	} else {
		progOpts = append(progOpts, tea.WithAltScreen())
	}

	p := tea.NewProgram(NewReview(run, themes.GetTheme(opts.Theme)), progOpts...)
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("review UI failed: %w", err)
	}
	return nil
}
