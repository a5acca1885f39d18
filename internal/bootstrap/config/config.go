package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"orthotracker/internal/bootstrap/logging"
	"orthotracker/internal/domain/commission"
	"orthotracker/internal/errs"
)

const (
	CacheDriverDatabase = "database"
	CacheDriverMemory   = "memory"
	CacheDriverRedis    = "redis"

	minJWTSecretBytes = 32
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Log        logging.Options  `mapstructure:"log"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Commission CommissionConfig `mapstructure:"commission"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	NATS       NATSConfig       `mapstructure:"nats"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Driver string        `mapstructure:"driver"`
	TTL    time.Duration `mapstructure:"ttl"`
	Redis  RedisConfig   `mapstructure:"redis"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

type StorageConfig struct {
	UploadDir string   `mapstructure:"upload_dir"`
	S3        S3Config `mapstructure:"s3"`
}

type QueueConfig struct {
	File string `mapstructure:"file"`
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

type CommissionConfig struct {
	EmptyCondition string `mapstructure:"empty_condition"`
}

type HTTPConfig struct {
	Addr           string        `mapstructure:"addr"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// legacyEnv maps config keys to variables older deployments already export.
var legacyEnv = map[string]string{
	"database.dsn":      "DATABASE_URL",
	"storage.s3.bucket": "AWS_S3_BUCKET",
	"storage.s3.region": "AWS_REGION",
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("OT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := "OT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return Config{}, errs.Wrapf(err, "bind env %s", legacy)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Debug(logCtx, "config file not found, using defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Debug(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}
	cfg.Database = ResolveDatabase(cfg.Database)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Debug(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("cache_driver", cfg.Cache.Driver),
	)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "orthotracker")
	v.SetDefault("app.env", "local")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/orthotracker.sqlite")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file.path", "")
	v.SetDefault("log.file.max_size_mb", 50)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.compress", false)
	v.SetDefault("cache.driver", CacheDriverDatabase)
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.redis.addr", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("storage.upload_dir", "uploads")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("queue.file", "offline_queue.json")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "12h")
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("commission.empty_condition", string(commission.EmptyConditionMatchAll))
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.rate_limit", 20)
	v.SetDefault("http.rate_burst", 40)
	v.SetDefault("http.request_timeout", "30s")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "orthotracker")
}

// ResolveDatabase turns URL style DSNs into a driver and a DSN the driver
// understands. sqlite:///path selects sqlite; postgres:// and postgresql://
// select postgres.
func ResolveDatabase(cfg DatabaseConfig) DatabaseConfig {
	dsn := strings.TrimSpace(cfg.DSN)
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "sqlite:///"):
		cfg.Driver = "sqlite"
		cfg.DSN = dsn[len("sqlite:///"):]
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		cfg.Driver = "postgres"
		cfg.DSN = dsn
	default:
		cfg.DSN = dsn
	}
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	return cfg
}

func (c Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	switch c.Database.Driver {
	case "sqlite", "sqlite3", "postgres":
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}

	switch c.Cache.Driver {
	case CacheDriverDatabase, CacheDriverMemory:
	case CacheDriverRedis:
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			return errors.New("cache.redis.addr is required when cache.driver is redis")
		}
	default:
		return fmt.Errorf("cache.driver %q must be one of database, memory, redis", c.Cache.Driver)
	}

	if _, err := commission.ParseEmptyConditionPolicy(c.Commission.EmptyCondition); err != nil {
		return errs.Wrap(err, "commission.empty_condition")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errs.Wrap(err, "log.level")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q must be text or json", c.Log.Format)
	}
	return nil
}

// RequireJWTSecret reports whether tokens can be signed safely.
func (c Config) RequireJWTSecret() error {
	if len(c.Auth.JWTSecret) < minJWTSecretBytes {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes (set OT_AUTH_JWT_SECRET)", minJWTSecretBytes)
	}
	return nil
}

// EmptyConditionPolicy returns the validated policy.
func (c Config) EmptyConditionPolicy() commission.EmptyConditionPolicy {
	policy, err := commission.ParseEmptyConditionPolicy(c.Commission.EmptyCondition)
	if err != nil {
		return commission.EmptyConditionMatchAll
	}
	return policy
}
