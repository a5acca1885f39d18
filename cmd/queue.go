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

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Capture procedures offline and sync them later",
}

var queueAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Queue a procedure without touching the database",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		input, err := procedureInputFromFlags(cmd)
		if err != nil {
			return err
		}

		entry, err := app.Tracker.QueueProcedure(ctx, input)
		if err != nil {
			logging.Error(ctx, "queue procedure failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "queue procedure")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "queued procedure: %s attachments=%d\n", entry.QueueID, len(entry.Attachments)); err != nil {
			return errs.Wrap(err, "write queue output")
		}
		return nil
	}),
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued procedures",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		entries, err := app.Tracker.ListQueued(ctx)
		if err != nil {
			logging.Error(ctx, "list queue failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list queue")
		}
		if len(entries) == 0 {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "queue is empty"); err != nil {
				return errs.Wrap(err, "write list output")
			}
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		if _, err := fmt.Fprintln(w, "queue_id\tcreated_at\trep\thospital\ttype\tdate\trevenue"); err != nil {
			return errs.Wrap(err, "write list header")
		}
		for _, entry := range entries {
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				entry.QueueID, entry.CreatedAt, entry.RepEmail, entry.Hospital, entry.ProcedureType,
				entry.Date, formatAmount(entry.Revenue)); err != nil {
				return errs.Wrap(err, "write list row")
			}
		}
		return errs.Wrap(w.Flush(), "flush list output")
	}),
}

var queueSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Persist queued procedures; failed entries stay queued",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		result, err := app.Tracker.SyncQueue(ctx)
		if err != nil {
			logging.Error(ctx, "sync queue failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "sync queue")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "synced: processed=%d failed=%d\n", result.Processed, result.Failed); err != nil {
			return errs.Wrap(err, "write sync output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueAddCmd, queueListCmd, queueSyncCmd)

	addProcedureInputFlags(queueAddCmd)
}
