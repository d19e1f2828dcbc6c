package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `env:",prefix=SERVER_"`

	// Database configuration
	Database DatabaseConfig `env:",prefix=DB_"`

	// Application configuration
	App AppConfig `env:",prefix=APP_"`

	Auth       AuthConfig       `env:",prefix=AUTH_"`
	Storage    StorageConfig    `env:",prefix=STORAGE_"`
	Audit      AuditConfig      `env:",prefix=AUDIT_"`
	RateLimit  RateLimitConfig  `env:",prefix=RATE_LIMIT_"`
	Redemption RedemptionConfig `env:",prefix=REDEMPTION_"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  int      `env:"READ_TIMEOUT,default=30"`  // seconds
	WriteTimeout int      `env:"WRITE_TIMEOUT,default=30"` // seconds
	CORSOrigins  []string `env:"CORS_ORIGINS,default=http://localhost:3000"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=postgres"`
	Password string `env:"PASSWORD,default=postgres"`
	Name     string `env:"NAME,default=pinnity"`
	SSLMode  string `env:"SSL_MODE,default=disable"`
	MaxConns int    `env:"MAX_CONNS,default=25"`
	MinConns int    `env:"MIN_CONNS,default=5"`
	Migrate  bool   `env:"MIGRATE,default=true"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Environment string `env:"ENVIRONMENT,default=development"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
	Debug       bool   `env:"DEBUG,default=false"`
}

// AuthConfig holds JWT session settings.
type AuthConfig struct {
	JWTSecret  string        `env:"JWT_SECRET"`
	TokenTTL   time.Duration `env:"TOKEN_TTL,default=24h"`
	BcryptCost int           `env:"BCRYPT_COST,default=10"`
}

// StorageConfig selects where processed deal images go.
type StorageConfig struct {
	Driver        string `env:"DRIVER,default=memory"` // memory or s3
	Endpoint      string `env:"ENDPOINT"`
	Region        string `env:"REGION,default=auto"`
	Bucket        string `env:"BUCKET"`
	AccessKey     string `env:"ACCESS_KEY"`
	SecretKey     string `env:"SECRET_KEY"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL,default=http://localhost:8080/images"`
	MaxUploadMB   int    `env:"MAX_UPLOAD_MB,default=10"`
}

// AuditConfig selects the audit trail backend.
type AuditConfig struct {
	Driver     string `env:"DRIVER,default=log"` // log, mongo or none
	MongoURI   string `env:"MONGO_URI,default=mongodb://localhost:27017"`
	Database   string `env:"DATABASE,default=pinnity"`
	Collection string `env:"COLLECTION,default=audit_events"`
}

// RateLimitConfig throttles API clients and repair writes.
type RateLimitConfig struct {
	RPS       float64 `env:"RPS,default=50"`
	Burst     int     `env:"BURST,default=100"`
	RepairRPS float64 `env:"REPAIR_RPS,default=20"`
}

// RedemptionConfig holds redemption policy.
type RedemptionConfig struct {
	// EnforceLimits rejects redemptions over max_redemptions_per_user and
	// total_redemptions_limit. When false, limits are advisory only.
	EnforceLimits bool `env:"ENFORCE_LIMITS,default=true"`
	// CodeSecret keys the redemption code generator.
	CodeSecret string `env:"CODE_SECRET,default=pinnity-redemption"`
}

// Load loads configuration from environment variables. Outside production a
// .env file in the working directory is read first; real environment
// variables take precedence over it.
func Load(ctx context.Context) (*Config, error) {
	if !strings.EqualFold(os.Getenv("APP_ENVIRONMENT"), "production") {
		if err := godotenv.Load(); err == nil {
			slog.Debug("loaded .env file")
		}
	}

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.App.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: AUTH_JWT_SECRET is required in production")
	}
	switch c.Storage.Driver {
	case "memory":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("config: STORAGE_BUCKET is required for the s3 driver")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	switch c.Audit.Driver {
	case "log", "mongo", "none":
	default:
		return fmt.Errorf("config: unknown AUDIT_DRIVER %q", c.Audit.Driver)
	}
	return nil
}

// GetDatabaseURL returns the PostgreSQL connection URL
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if running in development environment
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

// SlogLevel maps LOG_LEVEL onto slog levels, defaulting to info.
func (c *AppConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// JWTSecretOrDefault returns the configured secret, or a fixed development
// secret outside production.
func (c *Config) JWTSecretOrDefault() string {
	if c.Auth.JWTSecret != "" {
		return c.Auth.JWTSecret
	}
	return "pinnity-development-secret"
}
