package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-32-chars"

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET_KEY", testSecret)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, CounterBackendPostgres, cfg.Counter.Backend)
	assert.Equal(t, "uniqueIdCounter", cfg.Counter.Name)
	assert.Equal(t, "RAIoT", cfg.Counter.UniqueIDPrefix)
	assert.Equal(t, 5, cfg.Counter.UniqueIDPadWidth)
	assert.Equal(t, 5, cfg.Counter.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.Counter.RetryInitialInterval)
	assert.Empty(t, cfg.Counter.BadgerDir)
	assert.Equal(t, LogOutputStdout, cfg.Logging.Output)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.True(t, cfg.Scheduler.ReconcileEnabled)
	assert.Equal(t, 100, cfg.Scheduler.ReconcileBatchSize)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET_KEY", testSecret)
	t.Setenv("COUNTER_BACKEND", "Badger")
	t.Setenv("COUNTER_BADGER_DIR", "/tmp/raiot-counter")
	t.Setenv("UNIQUE_ID_PREFIX", "CLUB")
	t.Setenv("UNIQUE_ID_PAD_WIDTH", "7")
	t.Setenv("COUNTER_MAX_ATTEMPTS", "9")
	t.Setenv("COUNTER_RETRY_MAX_INTERVAL", "2s")
	t.Setenv("RECONCILE_INTERVAL", "90s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, CounterBackendBadger, cfg.Counter.Backend)
	assert.Equal(t, "/tmp/raiot-counter", cfg.Counter.BadgerDir)
	assert.Equal(t, "CLUB", cfg.Counter.UniqueIDPrefix)
	assert.Equal(t, 7, cfg.Counter.UniqueIDPadWidth)
	assert.Equal(t, 9, cfg.Counter.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Counter.RetryMaxInterval)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.ReconcileInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	content := "# local overrides\n" +
		"JWT_SECRET_KEY=\"" + testSecret + "\"\n" +
		"export COUNTER_NAME='memberIds'\n" +
		"UNIQUE_ID_PREFIX=CLUB # club prefix\n" +
		"DB_NAME=from_file\n" +
		"DB_PASSWORD=from_file\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))

	t.Setenv("DB_NAME", "from_env")
	t.Setenv("DB_PASSWORD", "")
	// registered first so the variables set by the loader are restored afterwards
	for _, key := range []string{"COUNTER_NAME", "JWT_SECRET_KEY", "UNIQUE_ID_PREFIX"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "memberIds", cfg.Counter.Name)
	assert.Equal(t, "CLUB", cfg.Counter.UniqueIDPrefix)
	assert.Equal(t, testSecret, cfg.JWT.SecretKey)
	assert.Equal(t, "from_env", cfg.Database.Name, "environment wins over .env")
	assert.Equal(t, "", cfg.Database.Password, "an empty variable still counts as set")

	_, exported := os.LookupEnv("export COUNTER_NAME")
	assert.False(t, exported)
}

func TestLoadConfigWithoutEnvFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET_KEY", testSecret)

	_, err := LoadConfig()
	require.NoError(t, err)
}

func TestLoadConfigRejectsMalformedEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BAD-KEY=1\n"), 0o600))
	t.Setenv("JWT_SECRET_KEY", testSecret)

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Host: "localhost", Port: 5432, Name: "raiot", User: "postgres"},
			Server:   ServerConfig{Port: 8080},
			Cache:    CacheConfig{RedisURL: "redis://localhost:6379"},
			Counter: CounterConfig{
				Backend:              CounterBackendPostgres,
				Name:                 "uniqueIdCounter",
				UniqueIDPadWidth:     5,
				MaxAttempts:          5,
				RetryInitialInterval: 10 * time.Millisecond,
				RetryMaxInterval:     500 * time.Millisecond,
			},
			JWT:       JWTConfig{SecretKey: testSecret},
			Logging:   LoggingConfig{Output: LogOutputStdout},
			Metrics:   MetricsConfig{Enabled: true, Path: "/metrics"},
			Scheduler: SchedulerConfig{ReconcileEnabled: true, ReconcileInterval: time.Minute, ReconcileBatchSize: 10},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr []string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Counter.Backend = "etcd" },
			wantErr: []string{"COUNTER_BACKEND"},
		},
		{
			name:    "redis backend without url",
			mutate:  func(c *Config) { c.Counter.Backend = CounterBackendRedis; c.Cache.RedisURL = "" },
			wantErr: []string{"CACHE_REDIS_URL"},
		},
		{
			name:    "short secret",
			mutate:  func(c *Config) { c.JWT.SecretKey = "short" },
			wantErr: []string{"JWT_SECRET_KEY"},
		},
		{
			name:    "rsa without public key",
			mutate:  func(c *Config) { c.JWT.UseRSAKeys = true; c.JWT.SecretKey = "" },
			wantErr: []string{"JWT_PUBLIC_KEY"},
		},
		{
			name:    "file logging without path",
			mutate:  func(c *Config) { c.Logging.Output = LogOutputFile },
			wantErr: []string{"LOG_FILE_PATH"},
		},
		{
			name: "several violations are joined",
			mutate: func(c *Config) {
				c.Database.Host = ""
				c.Counter.MaxAttempts = 0
				c.Counter.UniqueIDPadWidth = 0
				c.Counter.RetryMaxInterval = time.Millisecond
			},
			wantErr: []string{"DB_HOST", "COUNTER_MAX_ATTEMPTS", "UNIQUE_ID_PAD_WIDTH", "COUNTER_RETRY_MAX_INTERVAL"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}
