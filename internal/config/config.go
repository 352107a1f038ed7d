// Package config loads worldtrip settings from WORLDTRIP_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"worldtrip/internal/blob"
	"worldtrip/internal/core"
)

// App holds settings shared by the API server and the client CLI.
type App struct {
	HTTPAddr          string
	Env               string
	LogLevel          string
	Storage           core.StorageConfig
	Blob              blob.Config
	LegacySnapshotKey string
	AdminJWTSecret    string
	AMQPURL           string
	AMQPExchange      string
	APIURL            string
	RefreshInterval   time.Duration
	ShutdownTimeout   time.Duration
}

// Load reads the environment, applying defaults for unset keys.
func Load() (App, error) {
	return load(os.Getenv)
}

func load(lookup func(string) string) (App, error) {
	getenv := func(k, def string) string {
		if v := strings.TrimSpace(lookup(k)); v != "" {
			return v
		}
		return def
	}
	cfg := App{
		HTTPAddr: getenv("WORLDTRIP_HTTP_ADDR", ":5000"),
		Env:      getenv("WORLDTRIP_ENV", "dev"),
		LogLevel: getenv("WORLDTRIP_LOG_LEVEL", "info"),
		Storage: core.StorageConfig{
			Driver:      core.StorageDriver(getenv("WORLDTRIP_STORAGE_DRIVER", string(core.StorageSQLite))),
			SQLitePath:  getenv("WORLDTRIP_SQLITE_PATH", "data/worldtrip.db"),
			PostgresDSN: lookup("WORLDTRIP_POSTGRES_DSN"),
		},
		Blob: blob.Config{
			Driver: blob.Driver(getenv("WORLDTRIP_BLOB_DRIVER", string(blob.DriverFilesystem))),
			FSRoot: getenv("WORLDTRIP_BLOB_FS_ROOT", "data"),
			S3: blob.S3Config{
				Bucket:          lookup("WORLDTRIP_BLOB_S3_BUCKET"),
				Region:          getenv("WORLDTRIP_BLOB_S3_REGION", "us-east-1"),
				Endpoint:        lookup("WORLDTRIP_BLOB_S3_ENDPOINT"),
				AccessKeyID:     lookup("WORLDTRIP_BLOB_S3_ACCESS_KEY_ID"),
				SecretAccessKey: lookup("WORLDTRIP_BLOB_S3_SECRET_ACCESS_KEY"),
				PathStyle:       strings.EqualFold(lookup("WORLDTRIP_BLOB_S3_PATH_STYLE"), "true"),
			},
		},
		LegacySnapshotKey: getenv("WORLDTRIP_LEGACY_SNAPSHOT_KEY", "database.json"),
		AdminJWTSecret:    lookup("WORLDTRIP_ADMIN_JWT_SECRET"),
		AMQPURL:           lookup("WORLDTRIP_AMQP_URL"),
		AMQPExchange:      getenv("WORLDTRIP_AMQP_EXCHANGE", "order_events"),
		APIURL:            getenv("WORLDTRIP_API_URL", "http://localhost:5000/api"),
	}

	var err error
	if cfg.RefreshInterval, err = duration(getenv("WORLDTRIP_REFRESH_INTERVAL", "3s")); err != nil {
		return App{}, fmt.Errorf("WORLDTRIP_REFRESH_INTERVAL: %w", err)
	}
	if cfg.ShutdownTimeout, err = duration(getenv("WORLDTRIP_SHUTDOWN_TIMEOUT", "10s")); err != nil {
		return App{}, fmt.Errorf("WORLDTRIP_SHUTDOWN_TIMEOUT: %w", err)
	}
	switch cfg.Storage.Driver {
	case core.StorageMemory, core.StorageSQLite, core.StoragePostgres:
	default:
		return App{}, fmt.Errorf("WORLDTRIP_STORAGE_DRIVER: unknown driver %q", cfg.Storage.Driver)
	}
	if cfg.Storage.Driver == core.StoragePostgres && cfg.Storage.PostgresDSN == "" {
		return App{}, fmt.Errorf("WORLDTRIP_POSTGRES_DSN required for postgres driver")
	}
	if cfg.Blob.Driver == blob.DriverS3 && cfg.Blob.S3.Bucket == "" {
		return App{}, fmt.Errorf("WORLDTRIP_BLOB_S3_BUCKET required for s3 driver")
	}
	return cfg, nil
}

// duration accepts Go duration strings or a bare number of seconds.
func duration(raw string) (time.Duration, error) {
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("must be positive")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return d, nil
}

// AdminAuthEnabled reports whether admin routes require a signed token.
func (a App) AdminAuthEnabled() bool { return a.AdminJWTSecret != "" }
