package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noEnvFile points Load at a file that does not exist so a developer's .env never leaks into tests.
func noEnvFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "prices.csv", cfg.OutputPath)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Epoch())
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "universe.db", cfg.DB.Path)
	assert.True(t, cfg.DB.Migrate)
	assert.Equal(t, "https://api.twelvedata.com", cfg.TwelveData.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.TwelveData.Timeout)
	assert.Equal(t, 8, cfg.LiveRatePerMinute)
	assert.Equal(t, 3, cfg.LiveMaxRetries)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.LiveEnabled())
}

func TestLoad_IgnoresBareNames(t *testing.T) {
	// shells export these; only the prefixed names may configure nested settings
	t.Setenv("PATH", "/usr/local/bin:/usr/bin")
	t.Setenv("USER", "alice")
	t.Setenv("NAME", "workstation")
	t.Setenv("HOST", "devbox")
	t.Setenv("PORT", "8080")
	t.Setenv("LEVEL", "verbose")
	t.Setenv("FORMAT", "xml")
	t.Setenv("TIMEOUT", "1ms")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "universe.db", cfg.DB.Path)
	assert.Empty(t, cfg.DB.User)
	assert.Empty(t, cfg.DB.Name)
	assert.Equal(t, "localhost", cfg.DB.Host)
	assert.Equal(t, "5432", cfg.DB.Port)
	assert.Empty(t, cfg.Redis.Host)
	assert.Equal(t, "6379", cfg.Redis.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 10*time.Second, cfg.TwelveData.Timeout)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("BULK_PATH", "/data/WIKI_PRICES.csv")
	t.Setenv("LOCAL_DIR", "/data/investing")
	t.Setenv("WORKERS", "8")
	t.Setenv("EPOCH_START", "2000-01-03")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_USER", "history")
	t.Setenv("DB_NAME", "universe")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("CACHE_TTL", "30m")
	t.Setenv("TWELVE_DATA_API_KEY", "secret")
	t.Setenv("LIVE_MAX_RETRIES", "5")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("DB_PATH", "/var/lib/history/universe.db")
	t.Setenv("DB_SSLMODE", "require")
	t.Setenv("DB_CONNECT_TIMEOUT", "5s")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("TWELVE_DATA_BASE_URL", "http://localhost:9000")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "/data/WIKI_PRICES.csv", cfg.BulkPath)
	assert.Equal(t, "/data/investing", cfg.LocalDir)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC), cfg.Epoch())
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
	assert.True(t, cfg.LiveEnabled())

	dbCfg := cfg.DBConfig()
	assert.Equal(t, "postgres", dbCfg.Driver)
	assert.Equal(t, "history", dbCfg.User)
	assert.Equal(t, "universe", dbCfg.Name)
	assert.Equal(t, "5432", dbCfg.Port)
	assert.Equal(t, "/var/lib/history/universe.db", dbCfg.Path)
	assert.Equal(t, "require", dbCfg.SSLMode)
	assert.Equal(t, 5*time.Second, dbCfg.ConnectTimeout)

	redisCfg := cfg.RedisConfig()
	assert.Equal(t, "cache", redisCfg.Host)
	assert.Equal(t, "6379", redisCfg.Port)
	assert.Equal(t, 2, redisCfg.DB)

	tdCfg := cfg.TwelveDataConfig()
	assert.Equal(t, "secret", tdCfg.APIKey)
	assert.Equal(t, 5, tdCfg.MaxRetries)
	assert.Equal(t, "http://localhost:9000", tdCfg.BaseURL)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("OUTPUT_PATH=/tmp/out.csv\nWORKERS=2\n"), 0o600))
	// godotenv never overrides variables that are already set
	t.Setenv("WORKERS", "6")
	t.Cleanup(func() { _ = os.Unsetenv("OUTPUT_PATH") })

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/out.csv", cfg.OutputPath)
	assert.Equal(t, 6, cfg.Workers)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"zero workers", map[string]string{"WORKERS": "0"}},
		{"bad epoch", map[string]string{"EPOCH_START": "01/01/1990"}},
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}},
		{"postgres without name", map[string]string{"DB_DRIVER": "postgres", "DB_USER": "history"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}},
		{"malformed number", map[string]string{"WORKERS": "many"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(noEnvFile(t))
			assert.Error(t, err)
		})
	}
}
