package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

var testSecret = strings.Repeat("s", MinJWTSecretLength)

func TestLoadFrom_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFrom(envMap(map[string]string{"JWT_SECRET": testSecret}))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorageMemory, cfg.StorageBackend)
	assert.Equal(t, IdempotencyMemory, cfg.IdempotencyBackend)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, 30*time.Second, cfg.JWT.ClockSkew)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadFrom_EnvOverridesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
storageBackend: postgres
databaseURL: postgres://file
idempotencyTTL: 2h
corsAllowedOrigins: ["https://file.example"]
jwt:
  issuer: file-issuer
  ttl: 1h
`), 0o600))

	cfg, err := LoadFrom(envMap(map[string]string{
		"CONFIG_FILE":          path,
		"PORT":                 "9100",
		"JWT_SECRET":           testSecret,
		"CORS_ALLOWED_ORIGINS": "https://a.example, https://b.example,",
	}))
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, StoragePostgres, cfg.StorageBackend)
	assert.Equal(t, "postgres://file", cfg.DatabaseURL)
	assert.Equal(t, 2*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, "file-issuer", cfg.JWT.Issuer)
	assert.Equal(t, time.Hour, cfg.JWT.TTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadFrom_Errors(t *testing.T) {
	t.Parallel()

	cases := map[string]map[string]string{
		"short secret":        {"JWT_SECRET": "short"},
		"bad auth mode":       {"AUTH_MODE": "magic"},
		"postgres without db": {"AUTH_MODE": "dev", "STORAGE_BACKEND": "postgres"},
		"mongo without uri":   {"AUTH_MODE": "dev", "STORAGE_BACKEND": "mongo"},
		"bad ttl":             {"AUTH_MODE": "dev", "IDEMPOTENCY_TTL": "soon"},
		"bad bcrypt cost":     {"AUTH_MODE": "dev", "BCRYPT_COST": "2"},
		"unknown idempotency": {"AUTH_MODE": "dev", "IDEMPOTENCY_BACKEND": "redis"},
		"missing file":        {"AUTH_MODE": "dev", "CONFIG_FILE": "/does/not/exist.yaml"},
	}
	for name, env := range cases {
		_, err := LoadFrom(envMap(env))
		assert.Error(t, err, name)
	}
}

func TestLoadFrom_DevModeNeedsNoSecret(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFrom(envMap(map[string]string{"AUTH_MODE": "dev", "DEV_SUBJECT": "acct-1"}))
	require.NoError(t, err)
	assert.Equal(t, AuthModeDev, cfg.AuthMode)
	assert.Equal(t, "acct-1", cfg.DevSubject)
}
