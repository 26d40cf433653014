package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Storage   StorageConfig
	Upstream  UpstreamConfig
	Ingestion IngestionConfig
	Server    ServerConfig
	Log       LogConfig
}

// StorageConfig holds storage-related configuration
type StorageConfig struct {
	Type        string `env:"STORAGE_TYPE" envDefault:"postgresql"` // "postgresql", "mysql", "mongodb", "dynamodb", "memory"
	Region      string `env:"AWS_REGION" envDefault:"eu-central-1"` // For AWS DynamoDB
	TablePrefix string `env:"TABLE_PREFIX" envDefault:"parliament"`
	Endpoint    string `env:"DYNAMODB_ENDPOINT"` // Custom endpoint for local testing
	MongoDBURI  string `env:"MONGODB_URI"`
	MongoDBName string `env:"MONGODB_DATABASE" envDefault:"parliament"`
	PostgresURI string `env:"POSTGRES_URI"`
	MySQLDSN    string `env:"MYSQL_DSN"`
}

// UpstreamConfig describes the parliament API
type UpstreamConfig struct {
	BaseURL    string        `env:"UPSTREAM_BASE_URL" envDefault:"https://www.parlament.gv.at"`
	FilterID   string        `env:"UPSTREAM_FILTER" envDefault:"WFW_002"`
	Chamber    string        `env:"UPSTREAM_CHAMBER" envDefault:"NR"` // NR (Nationalrat) or BR (Bundesrat)
	UserAgent  string        `env:"UPSTREAM_USER_AGENT" envDefault:"Demographics-Dashboard/1.0"`
	Timeout    time.Duration `env:"API_TIMEOUT" envDefault:"30s"`
	RetryCount int           `env:"RETRY_COUNT" envDefault:"3"`
}

// IngestionConfig holds ingestion-related configuration
type IngestionConfig struct {
	Interval      time.Duration `env:"INGESTION_INTERVAL" envDefault:"0s"` // 0 disables scheduled runs
	MaxConcurrent int           `env:"DETAIL_MAX_CONCURRENT" envDefault:"5"`
	BatchDelay    time.Duration `env:"DETAIL_BATCH_DELAY" envDefault:"1s"`
	SkipDetails   bool          `env:"SKIP_DETAILS" envDefault:"false"`
	Decoder       string        `env:"ROSTER_DECODER" envDefault:"regex"` // "regex" or "html"
	LayoutFile    string        `env:"ROSTER_LAYOUT_FILE"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int           `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout    time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout   time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"10m"` // a full run with details takes minutes
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	IngestRate     string        `env:"INGEST_RATE_LIMIT" envDefault:"6-H"`
	MetricsPath    string        `env:"METRICS_PATH" envDefault:"/metrics"`
}

// LogConfig controls the logrus logger
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load loads configuration from .env files and environment variables with defaults
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env", ".env.local"}
	}
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFiles(files []string) error {
	existing := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "postgresql":
		if c.Storage.PostgresURI == "" {
			return fmt.Errorf("POSTGRES_URI is required when STORAGE_TYPE is 'postgresql'")
		}
	case "mysql":
		if c.Storage.MySQLDSN == "" {
			return fmt.Errorf("MYSQL_DSN is required when STORAGE_TYPE is 'mysql'")
		}
	case "mongodb":
		if c.Storage.MongoDBURI == "" {
			return fmt.Errorf("MONGODB_URI is required when STORAGE_TYPE is 'mongodb'")
		}
	case "dynamodb", "memory":
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	chamber := strings.ToUpper(c.Upstream.Chamber)
	if chamber != "NR" && chamber != "BR" {
		return fmt.Errorf("UPSTREAM_CHAMBER must be 'NR' or 'BR', got '%s'", c.Upstream.Chamber)
	}
	c.Upstream.Chamber = chamber

	if c.Upstream.RetryCount < 1 {
		return fmt.Errorf("RETRY_COUNT must be at least 1, got %d", c.Upstream.RetryCount)
	}
	if c.Ingestion.MaxConcurrent < 1 {
		return fmt.Errorf("DETAIL_MAX_CONCURRENT must be at least 1, got %d", c.Ingestion.MaxConcurrent)
	}
	if c.Ingestion.BatchDelay < 0 {
		return fmt.Errorf("DETAIL_BATCH_DELAY must be non-negative, got %s", c.Ingestion.BatchDelay)
	}
	if c.Ingestion.Decoder != "regex" && c.Ingestion.Decoder != "html" {
		return fmt.Errorf("ROSTER_DECODER must be 'regex' or 'html', got '%s'", c.Ingestion.Decoder)
	}
	return nil
}
