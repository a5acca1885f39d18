package bootstrap

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"orthotracker/internal/bootstrap/config"
	"orthotracker/internal/bootstrap/database"
	"orthotracker/internal/bootstrap/logging"
	"orthotracker/internal/errs"
	cacheinfra "orthotracker/internal/infrastructure/cache"
	"orthotracker/internal/infrastructure/export"
	"orthotracker/internal/infrastructure/messaging"
	"orthotracker/internal/infrastructure/metrics"
	"orthotracker/internal/infrastructure/offlinequeue"
	"orthotracker/internal/infrastructure/persistence/gormstore/repository"
	"orthotracker/internal/infrastructure/persistence/gormstore/uow"
	"orthotracker/internal/infrastructure/security"
	"orthotracker/internal/infrastructure/storage"
	"orthotracker/internal/ports"
	"orthotracker/internal/usecase/tracker"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(
		fx.Annotate(repository.NewUserRepository, fx.As(new(ports.UserRepository))),
		fx.Annotate(repository.NewReferenceRepository, fx.As(new(ports.ReferenceRepository))),
		fx.Annotate(repository.NewProcedureRepository, fx.As(new(ports.ProcedureRepository))),
		fx.Annotate(repository.NewRuleRepository, fx.As(new(ports.RuleRepository))),
		fx.Annotate(repository.NewAuditRepository, fx.As(new(ports.AuditRepository))),
	),
	fx.Provide(
		fx.Annotate(
			uow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(provideCache),
	fx.Provide(provideAttachmentStore),
	fx.Provide(
		fx.Annotate(
			provideOfflineQueue,
			fx.As(new(ports.OfflineQueue)),
		),
	),
	fx.Provide(provideEventPublisher),
	fx.Provide(provideHasher, provideTokenIssuer),
	fx.Provide(
		fx.Annotate(
			metrics.NewCollector,
			fx.As(fx.Self()),
			fx.As(new(ports.MetricsRecorder)),
		),
	),
	fx.Provide(
		fx.Annotate(
			export.NewCSVWriter,
			fx.As(new(ports.ProcedureReportWriter)),
		),
	),
	fx.Provide(provideTracker),
	fx.Provide(provideApp),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
	return db, nil
}

func provideCache(lc fx.Lifecycle, cfg config.Config, db *gorm.DB) ports.Cache {
	switch cfg.Cache.Driver {
	case config.CacheDriverMemory:
		return cacheinfra.NewMemoryCache(cfg.Cache.TTL)
	case config.CacheDriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		lc.Append(fx.Hook{
			OnStop: func(_ context.Context) error {
				return client.Close()
			},
		})
		return cacheinfra.NewRedisCache(client, cfg.App.Name, cfg.Cache.TTL)
	default:
		return cacheinfra.NewDBCache(db, cfg.Cache.TTL)
	}
}

// provideAttachmentStore prefers S3 when a bucket is configured and keeps the
// local directory as fallback.
func provideAttachmentStore(ctx context.Context, cfg config.Config) ports.AttachmentStore {
	local := storage.NewLocalStore(cfg.Storage.UploadDir)
	if cfg.Storage.S3.Bucket == "" {
		return local
	}

	s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
		Bucket:          cfg.Storage.S3.Bucket,
		Region:          cfg.Storage.S3.Region,
		Endpoint:        cfg.Storage.S3.Endpoint,
		AccessKeyID:     cfg.Storage.S3.AccessKeyID,
		SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
	})
	if err != nil {
		logging.Warn(
			logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx")),
			"s3 attachment store unavailable, using local directory",
			slog.Any("err", errs.Loggable(err)),
		)
		return local
	}
	return storage.NewFallbackStore(s3Store, local)
}

func provideOfflineQueue(cfg config.Config) *offlinequeue.JSONFileQueue {
	return offlinequeue.NewJSONFileQueue(cfg.Queue.File)
}

// provideEventPublisher connects to NATS when a url is configured. A failed
// connection disables events rather than the whole application.
func provideEventPublisher(lc fx.Lifecycle, ctx context.Context, cfg config.Config) ports.EventPublisher {
	if cfg.NATS.URL == "" {
		return messaging.NoopPublisher{}
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))
	conn, err := nats.Connect(cfg.NATS.URL, nats.Name(cfg.App.Name))
	if err != nil {
		logging.Warn(logCtx, "nats unavailable, events disabled", slog.String("url", cfg.NATS.URL), slog.Any("err", errs.Loggable(err)))
		return messaging.NoopPublisher{}
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return conn.Drain()
		},
	})
	return messaging.NewNATSPublisher(conn, cfg.NATS.SubjectPrefix)
}

func provideHasher(cfg config.Config) ports.PasswordHasher {
	return security.NewBcryptHasher(cfg.Auth.BcryptCost)
}

func provideTokenIssuer(cfg config.Config) ports.TokenIssuer {
	return security.NewJWTIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
}

type trackerParams struct {
	fx.In

	Config      config.Config
	Users       ports.UserRepository
	References  ports.ReferenceRepository
	Procedures  ports.ProcedureRepository
	Rules       ports.RuleRepository
	Audit       ports.AuditRepository
	UnitOfWork  ports.UnitOfWork
	Cache       ports.Cache
	Attachments ports.AttachmentStore
	Queue       ports.OfflineQueue
	Events      ports.EventPublisher
	Hasher      ports.PasswordHasher
	Tokens      ports.TokenIssuer
	Metrics     ports.MetricsRecorder
	Reports     ports.ProcedureReportWriter
}

func provideTracker(p trackerParams) *tracker.Service {
	return tracker.NewService(tracker.Dependencies{
		Users:       p.Users,
		References:  p.References,
		Procedures:  p.Procedures,
		Rules:       p.Rules,
		Audit:       p.Audit,
		UnitOfWork:  p.UnitOfWork,
		Cache:       p.Cache,
		Attachments: p.Attachments,
		Queue:       p.Queue,
		Events:      p.Events,
		Hasher:      p.Hasher,
		Tokens:      p.Tokens,
		Metrics:     p.Metrics,
		Reports:     p.Reports,
	}, tracker.Options{
		EmptyCondition: p.Config.EmptyConditionPolicy(),
		DashboardTTL:   p.Config.Cache.TTL,
	})
}

func provideApp(cfg config.Config, db *gorm.DB, svc *tracker.Service, collector *metrics.Collector) *App {
	return &App{
		Config:  cfg,
		DB:      db,
		Tracker: svc,
		Metrics: collector,
	}
}
