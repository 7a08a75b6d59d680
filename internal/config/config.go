package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Search    SearchConfig    `yaml:"search"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Import    ImportConfig    `yaml:"import"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains HTTP listener settings
type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Type     string         `yaml:"type"` // mysql, postgres or memory
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
	Memory   MemoryConfig   `yaml:"memory"`
	LogLevel string         `yaml:"log_level"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// MemoryConfig seeds tenant ownership when running without a database
type MemoryConfig struct {
	Owners  []OwnerSeed  `yaml:"owners"`
	Members []MemberSeed `yaml:"members"`
}

// OwnerSeed assigns an entity to a tenant
type OwnerSeed struct {
	TargetType string `yaml:"target_type"`
	TargetID   string `yaml:"target_id"`
	TenantID   string `yaml:"tenant_id"`
}

// MemberSeed assigns a user to a tenant
type MemberSeed struct {
	UserID   string `yaml:"user_id"`
	TenantID string `yaml:"tenant_id"`
	Role     string `yaml:"role"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Meilisearch MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
	Index  string `yaml:"index"`
}

// SchedulerConfig contains background job settings
type SchedulerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	ConflictSyncCron string `yaml:"conflict_sync_cron"`
	Timezone         string `yaml:"timezone"`
}

// RateLimitConfig limits scraper refresh ingestion
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	RequestsPerHour   int  `yaml:"requests_per_hour"`
}

// ImportConfig contains client import settings
type ImportConfig struct {
	MaxUploadMB   int `yaml:"max_upload_mb"`
	MaxRows       int `yaml:"max_rows"`
	FuzzyDistance int `yaml:"fuzzy_distance"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	ServiceName string `yaml:"service_name"`
	LogRequests bool   `yaml:"log_requests"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8084",
			AllowedOrigins: []string{"http://localhost:5176"},
		},
		Database: DatabaseConfig{
			Type:     "mysql",
			LogLevel: "warn",
			MySQL: MySQLConfig{
				Host:     "mysql",
				Port:     3306,
				User:     "locator_user",
				Database: "locator_db",
			},
			Postgres: PostgresConfig{
				Host:     "db",
				Port:     5432,
				User:     "locator_user",
				Database: "locator_db",
				SSLMode:  "disable",
			},
		},
		Search: SearchConfig{
			Enabled: true,
			Meilisearch: MeilisearchConfig{
				Host:  "http://meilisearch:7700",
				Index: "field_conflicts",
			},
		},
		Scheduler: SchedulerConfig{
			Enabled:          true,
			ConflictSyncCron: "*/10 * * * *",
			Timezone:         "UTC",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 30,
			RequestsPerHour:   1800,
		},
		Import: ImportConfig{
			MaxUploadMB:   10,
			MaxRows:       5000,
			FuzzyDistance: 2,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "apartment-locator",
			LogRequests: true,
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filepath string) (*Config, error) {
	// Start with default config
	config := DefaultConfig()

	// If file doesn't exist, return default config
	if _, err := os.Stat(filepath); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings the process cannot start with
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "mysql", "postgres", "memory":
	default:
		return fmt.Errorf("database.type must be mysql, postgres or memory, got %q", c.Database.Type)
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerMinute <= 0 || c.RateLimit.RequestsPerHour <= 0) {
		return fmt.Errorf("rate_limit requires positive requests_per_minute and requests_per_hour")
	}
	if c.Import.FuzzyDistance < 0 {
		return fmt.Errorf("import.fuzzy_distance must not be negative")
	}
	return nil
}

// Location returns the scheduler time zone, falling back to UTC
func (c *SchedulerConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MaxUploadBytes returns the import upload limit in bytes
func (c *ImportConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
