package cmd

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"orthotracker/internal/bootstrap/logging"
	"orthotracker/internal/errs"
)

var (
	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:          "orthotracker",
	Short:        "Orthopaedic implant sales tracker",
	Long:         "Log procedures, manage commission rules and serve the sales tracker API.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env only fills variables that are not already exported.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errs.Wrapf(err, "load env file %s", envFile)
		}
		return nil
	},
}

// Execute runs the root command with a bootstrap logger. Commands that build
// the app swap in the configured logger once the config is loaded.
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	logging.SetDefault(logger)
	ctx = logging.WithLogger(ctx, logger)
	ctx = logging.WithAttrs(ctx, slog.String("app", "orthotracker"))

	rootCmd.SetContext(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "command execution failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "execute root command")
	}

	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path (default: configs/config.yaml or ./config.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before the config")
}
