package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	HTTP      HTTPConfig      `yaml:"http"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	Events    EventsConfig    `yaml:"events"`
	Retention RetentionConfig `yaml:"retention"`
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`    // file path / URI for sqlite, connection string for postgres
}

// HTTPConfig contains REST server settings.
type HTTPConfig struct {
	Address        string        `yaml:"address"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	TrustProxy     bool          `yaml:"trust_proxy"` // honour X-Forwarded-For
}

// GRPCConfig contains gRPC server settings.
type GRPCConfig struct {
	Address string `yaml:"address"` // gRPC server listen address (e.g., ":50051")
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"` // JWT verification secret
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level     string `yaml:"level"`
	Directory string `yaml:"directory"` // empty logs to stderr only
}

// EventsConfig controls the lifecycle event publisher.
type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"` // empty disables publishing
	Exchange string `yaml:"exchange"`
}

// RetentionConfig controls API-history pruning.
type RetentionConfig struct {
	APIHistory    time.Duration `yaml:"api_history"`
	PruneSchedule string        `yaml:"prune_schedule"` // cron spec; empty disables the job
}

const devJWTSecret = "dev-secret-change-me"

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Database:  DatabaseConfig{Driver: "sqlite", DSN: "lmd.db"},
		HTTP:      HTTPConfig{Address: ":8080", RequestTimeout: 15 * time.Second},
		GRPC:      GRPCConfig{Address: ":50051"},
		Log:       LogConfig{Level: "info"},
		Events:    EventsConfig{Exchange: "lmd.events"},
		Retention: RetentionConfig{APIHistory: 30 * 24 * time.Hour},
	}
}

// Load loads configuration from an optional YAML file, a .env file and
// environment variables, in increasing precedence. JWT_SECRET is required.
func Load(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}

	// Validate critical settings
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set; required for production")
	}
	return cfg, cfg.Validate()
}

// LoadWithDefaults is like Load but uses a safe default for JWT_SECRET in development.
// WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = devJWTSecret
	}
	return cfg, cfg.Validate()
}

func load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		path = os.Getenv("LMD_CONFIG")
	}
	if path != "" {
		if err := readFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getEnv("DB_DSN", cfg.Database.DSN)
	cfg.HTTP.Address = getEnv("HTTP_ADDRESS", cfg.HTTP.Address)
	cfg.GRPC.Address = getEnv("GRPC_ADDRESS", cfg.GRPC.Address)
	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Directory = getEnv("LOG_DIR", cfg.Log.Directory)
	cfg.Events.AMQPURL = getEnv("AMQP_URL", cfg.Events.AMQPURL)
	cfg.Events.Exchange = getEnv("AMQP_EXCHANGE", cfg.Events.Exchange)
	cfg.Retention.PruneSchedule = getEnv("API_HISTORY_PRUNE_SCHEDULE", cfg.Retention.PruneSchedule)

	var err error
	if cfg.HTTP.RequestTimeout, err = getEnvDuration("HTTP_REQUEST_TIMEOUT", cfg.HTTP.RequestTimeout); err != nil {
		return err
	}
	if cfg.Retention.APIHistory, err = getEnvDuration("API_HISTORY_RETENTION", cfg.Retention.APIHistory); err != nil {
		return err
	}
	if cfg.HTTP.TrustProxy, err = getEnvBool("HTTP_TRUST_PROXY", cfg.HTTP.TrustProxy); err != nil {
		return err
	}
	return nil
}

// Validate checks settings that would otherwise fail later at startup.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.HTTP.RequestTimeout <= 0 {
		return fmt.Errorf("HTTP_REQUEST_TIMEOUT must be positive")
	}
	if c.Retention.APIHistory <= 0 {
		return fmt.Errorf("API_HISTORY_RETENTION must be positive")
	}
	return nil
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// getEnvBool retrieves an environment variable as a bool with a default fallback.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("invalid bool for %s: %w", key, err)
	}
	return b, nil
}

// getEnvDuration retrieves an environment variable as a duration with a default fallback.
// Bare integers are read as seconds.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultVal, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	dsn := c.Database.DSN
	if strings.EqualFold(c.Database.Driver, "postgres") {
		dsn = "*** (masked) ***"
	}
	amqp := "disabled"
	if c.Events.AMQPURL != "" {
		amqp = "*** (masked) ***"
	}
	return fmt.Sprintf("Config{DB: %s %s, HTTP: %s, gRPC: %s, AMQP: %s, Auth: *** (masked) ***}",
		c.Database.Driver, dsn, c.HTTP.Address, c.GRPC.Address, amqp)
}
