package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"orthotracker/internal/bootstrap"
	"orthotracker/internal/bootstrap/logging"
	"orthotracker/internal/errs"
)

var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create or migrate the database schema",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		logging.Info(ctx, "start init-db")

		if err := app.InitSchema(ctx); err != nil {
			logging.Error(ctx, "initialize schema failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "initialize schema")
		}

		version, err := app.SchemaVersion(ctx)
		if err != nil {
			return errs.Wrap(err, "read schema version")
		}

		logging.Info(ctx, "init-db finished", slog.String("driver", app.Config.Database.Driver), slog.String("version", version))
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "database schema initialized: driver=%s version=%s\n", app.Config.Database.Driver, version); err != nil {
			return errs.Wrap(err, "write init-db output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(initDbCmd)
}
