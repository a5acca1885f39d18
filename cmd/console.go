package cmd

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"orthotracker/internal/bootstrap"
	"orthotracker/internal/errs"
	"orthotracker/internal/usecase/dashconsole"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Terminal console commands",
}

var consoleDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Live KPI dashboard in the terminal",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")
		actor, _ := cmd.Flags().GetString("actor")

		model := dashconsole.NewModel(cmd.Context(), app.Tracker, dashconsole.Options{
			RefreshInterval: refreshInterval,
			Actor:           actor,
		})

		program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run dashboard console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.AddCommand(consoleDashboardCmd)

	consoleDashboardCmd.Flags().Duration("refresh-interval", 5*time.Second, "Auto refresh interval")
	consoleDashboardCmd.Flags().String("actor", "console", "Actor recorded for recompute actions")
}
