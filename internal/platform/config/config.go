package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	AuthModeJWT = "jwt"
	AuthModeDev = "dev"

	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"

	IdempotencyMemory  = "memory"
	IdempotencyStorage = "storage"
	IdempotencyBadger  = "badger"
)

// Config is the full process configuration.
//
// Values come from an optional YAML file named by CONFIG_FILE, then from the
// environment. Environment variables win.
type Config struct {
	Port     string `yaml:"port"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"logLevel"`

	AuthMode   string `yaml:"authMode"`
	DevSubject string `yaml:"devSubject"`

	StorageBackend string `yaml:"storageBackend"`
	DatabaseURL    string `yaml:"databaseURL"`
	MongoURI       string `yaml:"mongoURI"`
	MongoDatabase  string `yaml:"mongoDatabase"`

	IdempotencyBackend string        `yaml:"idempotencyBackend"`
	BadgerPath         string        `yaml:"badgerPath"`
	IdempotencyTTL     time.Duration `yaml:"idempotencyTTL"`

	JWT JWTConfig `yaml:"jwt"`

	CORSAllowedOrigins []string `yaml:"corsAllowedOrigins"`
	BcryptCost         int      `yaml:"bcryptCost"`
}

func Default() Config {
	return Config{
		Port:               "8080",
		Env:                "development",
		AuthMode:           AuthModeJWT,
		StorageBackend:     StorageMemory,
		MongoDatabase:      "parentmatch",
		IdempotencyBackend: IdempotencyMemory,
		BadgerPath:         "data/idempotency",
		IdempotencyTTL:     24 * time.Hour,
		JWT:                defaultJWTConfig(),
		BcryptCost:         10,
	}
}

// Load reads configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom is Load with an injectable environment lookup.
func LoadFrom(getenv func(string) string) (Config, error) {
	cfg := Default()

	if path := getenv("CONFIG_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read CONFIG_FILE: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse CONFIG_FILE %s: %w", path, err)
		}
	}

	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("PORT", &cfg.Port)
	str("APP_ENV", &cfg.Env)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("AUTH_MODE", &cfg.AuthMode)
	str("DEV_SUBJECT", &cfg.DevSubject)
	str("STORAGE_BACKEND", &cfg.StorageBackend)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("MONGO_URI", &cfg.MongoURI)
	str("MONGO_DATABASE", &cfg.MongoDatabase)
	str("IDEMPOTENCY_BACKEND", &cfg.IdempotencyBackend)
	str("BADGER_PATH", &cfg.BadgerPath)

	if v := getenv("IDEMPOTENCY_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("IDEMPOTENCY_TTL must be a duration (e.g. 24h): %w", err)
		}
		cfg.IdempotencyTTL = d
	}
	if v := getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}
	if v := getenv("BCRYPT_COST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("BCRYPT_COST must be an integer: %w", err)
		}
		cfg.BcryptCost = n
	}
	if err := cfg.JWT.applyEnv(getenv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements for the selected backends.
func (c Config) Validate() error {
	switch c.AuthMode {
	case AuthModeJWT:
		if err := c.JWT.Validate(); err != nil {
			return err
		}
	case AuthModeDev:
	default:
		return fmt.Errorf("AUTH_MODE must be %q or %q", AuthModeJWT, AuthModeDev)
	}

	switch c.StorageBackend {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	case StorageMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORAGE_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.IdempotencyBackend {
	case IdempotencyMemory, IdempotencyStorage:
	case IdempotencyBadger:
		if c.BadgerPath == "" {
			return fmt.Errorf("BADGER_PATH is required when IDEMPOTENCY_BACKEND=badger")
		}
	default:
		return fmt.Errorf("unknown IDEMPOTENCY_BACKEND %q", c.IdempotencyBackend)
	}
	if c.IdempotencyTTL <= 0 {
		return fmt.Errorf("IDEMPOTENCY_TTL must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}
	return nil
}

// IsDevelopment reports whether the process runs in a local development environment.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.Env) {
	case "", "dev", "development", "local":
		return true
	default:
		return false
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
