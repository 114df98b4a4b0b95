package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "data/auth.db", cfg.Database.Path)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, "auth-api", cfg.Auth.Issuer)
	assert.Equal(t, time.Minute, cfg.Audit.FlushInterval)
	assert.Equal(t, 500, cfg.Audit.BatchSize)
	assert.Equal(t, "info", cfg.Log.Level)

	// no secret configured
	assert.Error(t, cfg.Validate())
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTHAPI_AUTH_JWTSECRET", goodSecret)
	t.Setenv("AUTHAPI_AUTH_TOKEN_TTL", "15m")
	t.Setenv("AUTHAPI_AUTH_BCRYPT_COST", "10")
	t.Setenv("AUTHAPI_DATABASE_DRIVER", "postgres")
	t.Setenv("AUTHAPI_DATABASE_DSN", "postgres://u:p@localhost/auth")
	t.Setenv("AUTHAPI_HASHING_WORKERS", "3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, goodSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Hashing.Workers)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "auth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: 127.0.0.1:9000
auth:
  jwtsecret: `+goodSecret+`
  token_ttl: 30m
audit:
  bucket: audit-logs
  flush_interval: 10s
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "audit-logs", cfg.Audit.Bucket)
	assert.Equal(t, 10*time.Second, cfg.Audit.FlushInterval)
	assert.NoError(t, cfg.Validate())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(
		"# local overrides\nexport AUTHAPI_SERVER_ADDR=\":7070\"\nAUTHAPI_LOG_LEVEL=debug\nbroken-line\n",
	), 0o600))
	t.Setenv("AUTHAPI_LOG_LEVEL", "warn")
	// registered with t.Setenv so the value .env exports is cleaned up
	t.Setenv("AUTHAPI_SERVER_ADDR", "")
	os.Unsetenv("AUTHAPI_SERVER_ADDR")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "warn", cfg.Log.Level, "real environment wins over .env")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		var c Config
		c.Auth.JWTSecret = goodSecret
		c.Auth.TokenTTL = time.Hour
		c.Auth.BcryptCost = 12
		c.Database.Driver = DriverSQLite
		c.Database.Path = "data/auth.db"
		return c
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(*Config){
		"short secret":    func(c *Config) { c.Auth.JWTSecret = "short" },
		"zero ttl":        func(c *Config) { c.Auth.TokenTTL = 0 },
		"low cost":        func(c *Config) { c.Auth.BcryptCost = 1 },
		"high cost":       func(c *Config) { c.Auth.BcryptCost = 40 },
		"negative pool":   func(c *Config) { c.Hashing.Workers = -1 },
		"unknown driver":  func(c *Config) { c.Database.Driver = "mysql" },
		"sqlite no path":  func(c *Config) { c.Database.Path = "" },
		"postgres no dsn": func(c *Config) { c.Database.Driver = DriverPostgres },
		"audit no batch":  func(c *Config) { c.Audit.Bucket = "b"; c.Audit.BatchSize = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
