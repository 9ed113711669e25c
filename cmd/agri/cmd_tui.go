package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/agri-advisor/internal/app"
)

// tuiCmd starts the interactive terminal UI
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Start the interactive terminal UI (default)",
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	deps := app.Deps{
		Session:      manager,
		Client:       client,
		PollInterval: cfg.PollInterval(),
		Logger:       logger,
	}
	if cache != nil {
		deps.Cache = cache
	}

	p := tea.NewProgram(app.New(deps), tea.WithAltScreen(), tea.WithReportFocus())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running terminal UI: %w", err)
	}
	return nil
}
