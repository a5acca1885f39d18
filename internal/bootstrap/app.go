package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"orthotracker/internal/bootstrap/config"
	"orthotracker/internal/bootstrap/logging"
	"orthotracker/internal/errs"
	"orthotracker/internal/infrastructure/metrics"
	"orthotracker/internal/infrastructure/persistence/gormstore/model"
	"orthotracker/internal/infrastructure/persistence/schema"
	"orthotracker/internal/usecase/tracker"
)

// App is what commands receive once the fx graph is built.
type App struct {
	Config  config.Config
	DB      *gorm.DB
	Tracker *tracker.Service
	Metrics *metrics.Collector
}

// InitSchema migrates every table and stamps the schema version. It is safe
// to run repeatedly.
func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration", slog.String("driver", a.Config.Database.Driver))

	tables := append(model.All(), &schema.ProjectMeta{})
	if err := a.DB.WithContext(ctx).AutoMigrate(tables...); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}
	if err := schema.StampVersion(ctx, a.DB); err != nil {
		return err
	}

	logging.Info(logCtx, "schema migration completed", slog.String("version", schema.Version))
	return nil
}

// SchemaVersion returns "" when init-db has never run.
func (a *App) SchemaVersion(ctx context.Context) (string, error) {
	return schema.CurrentVersion(ctx, a.DB)
}
