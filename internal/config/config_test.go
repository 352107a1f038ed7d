package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"worldtrip/internal/blob"
	"worldtrip/internal/core"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(envMap(nil))
	require.NoError(t, err)
	require.Equal(t, ":5000", cfg.HTTPAddr)
	require.Equal(t, core.StorageSQLite, cfg.Storage.Driver)
	require.Equal(t, "data/worldtrip.db", cfg.Storage.SQLitePath)
	require.Equal(t, blob.DriverFilesystem, cfg.Blob.Driver)
	require.Equal(t, "database.json", cfg.LegacySnapshotKey)
	require.Equal(t, 3*time.Second, cfg.RefreshInterval)
	require.Equal(t, "order_events", cfg.AMQPExchange)
	require.False(t, cfg.AdminAuthEnabled())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := load(envMap(map[string]string{
		"WORLDTRIP_HTTP_ADDR":          ":8080",
		"WORLDTRIP_STORAGE_DRIVER":     "postgres",
		"WORLDTRIP_POSTGRES_DSN":       "postgres://db/worldtrip",
		"WORLDTRIP_BLOB_DRIVER":        "s3",
		"WORLDTRIP_BLOB_S3_BUCKET":     "trips",
		"WORLDTRIP_BLOB_S3_PATH_STYLE": "TRUE",
		"WORLDTRIP_REFRESH_INTERVAL":   "10",
		"WORLDTRIP_ADMIN_JWT_SECRET":   "s3cret",
	}))
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, core.StoragePostgres, cfg.Storage.Driver)
	require.Equal(t, "trips", cfg.Blob.S3.Bucket)
	require.True(t, cfg.Blob.S3.PathStyle)
	require.Equal(t, 10*time.Second, cfg.RefreshInterval)
	require.True(t, cfg.AdminAuthEnabled())
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown storage":   {"WORLDTRIP_STORAGE_DRIVER": "mongo"},
		"postgres no dsn":   {"WORLDTRIP_STORAGE_DRIVER": "postgres"},
		"s3 no bucket":      {"WORLDTRIP_BLOB_DRIVER": "s3"},
		"bad interval":      {"WORLDTRIP_REFRESH_INTERVAL": "soon"},
		"negative interval": {"WORLDTRIP_REFRESH_INTERVAL": "-1s"},
		"zero seconds":      {"WORLDTRIP_SHUTDOWN_TIMEOUT": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := load(envMap(env))
			require.Error(t, err)
		})
	}
}

func TestLoadReadsProcessEnvironment(t *testing.T) {
	t.Setenv("WORLDTRIP_HTTP_ADDR", ":9999")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.HTTPAddr)
}
