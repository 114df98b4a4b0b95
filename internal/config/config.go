package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"auth-api/internal/security"
)

const EnvPrefix = "AUTHAPI"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Driver string
		Path   string
		DSN    string
	}
	Auth struct {
		JWTSecret  string
		TokenTTL   time.Duration `mapstructure:"token_ttl"`
		Issuer     string
		BcryptCost int `mapstructure:"bcrypt_cost"`
	}
	Hashing struct {
		Workers int
	}
	Audit struct {
		Bucket        string
		Prefix        string
		Region        string
		Endpoint      string
		FlushInterval time.Duration `mapstructure:"flush_interval"`
		BatchSize     int           `mapstructure:"batch_size"`
	}
	AWS struct {
		Profile string
	}
	Log struct {
		Level  string
		Format string
	}
}

// Load reads configuration from environment variables and an optional config file.
// When configFile is empty, ./config.{yaml,json,toml} is used if present.
func Load(configFile string) (Config, error) {
	loadDotEnv(".env")

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "data/auth.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.token_ttl", security.DefaultTokenTTL)
	v.SetDefault("auth.issuer", security.DefaultIssuer)
	v.SetDefault("auth.bcrypt_cost", security.DefaultBcryptCost)
	v.SetDefault("hashing.workers", 0)
	v.SetDefault("audit.bucket", "")
	v.SetDefault("audit.prefix", "audit")
	v.SetDefault("audit.region", "us-east-1")
	v.SetDefault("audit.endpoint", "")
	v.SetDefault("audit.flush_interval", time.Minute)
	v.SetDefault("audit.batch_size", 500)
	v.SetDefault("aws.profile", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate reports every setting that would prevent the server from starting.
func (c Config) Validate() error {
	var errs []error
	if len(strings.TrimSpace(c.Auth.JWTSecret)) < security.MinSecretLength {
		errs = append(errs, fmt.Errorf("auth jwt secret must be at least %d bytes", security.MinSecretLength))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("auth token ttl must be positive"))
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("auth bcrypt cost must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.Hashing.Workers < 0 {
		errs = append(errs, fmt.Errorf("hashing workers must not be negative"))
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			errs = append(errs, fmt.Errorf("database path is required for sqlite"))
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			errs = append(errs, fmt.Errorf("database dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if c.Audit.Bucket != "" && c.Audit.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("audit batch size must be positive"))
	}
	return errors.Join(errs...)
}

// loadDotEnv exports KEY=value pairs from path without overriding the real environment.
func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
