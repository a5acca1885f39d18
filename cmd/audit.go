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

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent audit entries, newest first",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := app.Tracker.ListAuditLogs(ctx, limit)
		if err != nil {
			logging.Error(ctx, "list audit logs failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list audit logs")
		}
		if len(entries) == 0 {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "no audit entries"); err != nil {
				return errs.Wrap(err, "write list output")
			}
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		if _, err := fmt.Fprintln(w, "id\tcreated_at\tactor\taction\tentity\tentity_id\tdetails"); err != nil {
			return errs.Wrap(err, "write list header")
		}
		for _, entry := range entries {
			if _, err := fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				entry.AuditID, entry.CreatedAt, entry.Actor, entry.Action, entry.Entity, entry.EntityID, entry.Details); err != nil {
				return errs.Wrap(err, "write list row")
			}
		}
		return errs.Wrap(w.Flush(), "flush list output")
	}),
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd)

	auditListCmd.Flags().Int("limit", 50, "Maximum entries")
}
