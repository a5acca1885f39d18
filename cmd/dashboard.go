package cmd

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"orthotracker/internal/bootstrap"
	"orthotracker/internal/bootstrap/logging"
	"orthotracker/internal/errs"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Print the KPI summary",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		kpis, err := app.Tracker.Dashboard(ctx)
		if err != nil {
			logging.Error(ctx, "load dashboard failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "load dashboard")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		rows := [][2]string{
			{"total_procedures", fmt.Sprintf("%d", kpis.TotalProcedures)},
			{"total_revenue", formatAmount(kpis.TotalRevenue)},
			{"total_commission", formatAmount(kpis.TotalCommission)},
			{"pending", fmt.Sprintf("%d", kpis.Pending)},
			{"generated_at", kpis.GeneratedAt},
		}
		if _, err := fmt.Fprintln(w, "metric\tvalue"); err != nil {
			return errs.Wrap(err, "write dashboard header")
		}
		for _, row := range rows {
			if _, err := fmt.Fprintf(w, "%s\t%s\n", row[0], row[1]); err != nil {
				return errs.Wrap(err, "write dashboard row")
			}
		}
		if len(kpis.ByType) > 0 {
			if _, err := fmt.Fprintln(w, "\nprocedure_type\tcount"); err != nil {
				return errs.Wrap(err, "write dashboard header")
			}
			for _, item := range kpis.ByType {
				if _, err := fmt.Fprintf(w, "%s\t%d\n", item.ProcedureType, item.Count); err != nil {
					return errs.Wrap(err, "write dashboard row")
				}
			}
		}
		if err := w.Flush(); err != nil {
			return errs.Wrap(err, "flush dashboard output")
		}

		if len(kpis.Recent) == 0 {
			return nil
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), "\nRecent procedures:"); err != nil {
			return errs.Wrap(err, "write dashboard output")
		}
		return writeProcedureTable(cmd.OutOrStdout(), kpis.Recent)
	}),
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
