package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8084, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, "data.csv", cfg.Data.Source)
	assert.Equal(t, OnLoadErrorEmpty, cfg.Data.OnLoadError)
	assert.Equal(t, 500, cfg.Query.MaxPageSize)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, []string{"http://localhost:8084"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, "localhost:8084", cfg.Address())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("DATABASE_QUERY_TIMEOUT", "250ms")
	t.Setenv("SECURITY_RATE_LIMIT_RPS", "7")
	t.Setenv("SECURITY_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DATA_ON_LOAD_ERROR", "fail")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 250*time.Millisecond, cfg.Database.QueryTimeout)
	assert.Equal(t, 7, cfg.Security.RateLimitRPS)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, OnLoadErrorFail, cfg.Data.OnLoadError)
}

func TestLoad_LegacyCSVFileVariable(t *testing.T) {
	t.Setenv("CSV_FILE", "/data/legacy.csv")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/data/legacy.csv", cfg.Data.Source)

	t.Setenv("DATA_SOURCE", "s3://bucket/sales.csv")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/sales.csv", cfg.Data.Source)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 7000
database:
  driver: postgres
  dsn: host=localhost user=sales dbname=sales
cache:
  enabled: true
  addr: redis:6379
  ttl: 30s
security:
  trusted_proxies:
    - 10.0.0.1
    - 10.0.0.2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Security.TrustedProxies)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"port out of range", map[string]string{"SERVER_PORT": "70000"}},
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "mysql"}},
		{"unknown log level", map[string]string{"LOG_LEVEL": "verbose"}},
		{"unknown log format", map[string]string{"LOG_FORMAT": "xml"}},
		{"unknown load policy", map[string]string{"DATA_ON_LOAD_ERROR": "retry"}},
		{"zero rate limit", map[string]string{"SECURITY_RATE_LIMIT_RPS": "0"}},
		{"zero max page size", map[string]string{"QUERY_MAX_PAGE_SIZE": "0"}},
		{"cache without ttl", map[string]string{"CACHE_ENABLED": "true", "CACHE_TTL": "0s"}},
		{"idle above open", map[string]string{"DATABASE_MAX_OPEN_CONNS": "2", "DATABASE_MAX_IDLE_CONNS": "3"}},
		{"sample ratio above one", map[string]string{"TELEMETRY_SAMPLE_RATIO": "1.5"}},
		{"s3 key without secret", map[string]string{"DATA_S3_ACCESS_KEY": "AKIA"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestValidateServe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data:\n  source: \"\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err, "an empty source is valid for commands that supply their own")
	assert.Empty(t, cfg.Data.Source)
	assert.Error(t, cfg.ValidateServe())

	cfg.Data.LoadOnStart = false
	assert.NoError(t, cfg.ValidateServe())

	cfg.Data.LoadOnStart = true
	cfg.Data.Source = "sales.csv"
	assert.NoError(t, cfg.ValidateServe())
}
