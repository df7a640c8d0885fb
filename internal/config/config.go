// Package config provides configuration loading for the datatags CLI
// and gateway.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	// Endpoint is the gateway URL the CLI talks to
	Endpoint string `mapstructure:"endpoint"`

	// Auth configuration
	Auth AuthConfig `mapstructure:"auth"`

	// Registry configuration (tag schema sources)
	Registry RegistryConfig `mapstructure:"registry"`

	// Storage configuration (for gateway and audit history)
	Storage StorageConfig `mapstructure:"storage"`

	// Access configuration (role matrix sources)
	Access AccessConfig `mapstructure:"access"`

	// Scanners configuration (backing store coverage audits)
	Scanners ScannersConfig `mapstructure:"scanners"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`

	// Server configuration (for gateway)
	Server ServerConfig `mapstructure:"server"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Token string `mapstructure:"token"`
}

// RegistryConfig holds tag schema loading configuration.
type RegistryConfig struct {
	// SchemaPaths are the tag schema files, merged in order.
	SchemaPaths []string `mapstructure:"schemaPaths"`

	// RequiredFieldCheck enables reporting of required destination
	// fields missing from both payloads.
	RequiredFieldCheck bool `mapstructure:"requiredFieldCheck"`

	// SnapshotOnLoad persists a registry snapshot whenever the gateway
	// loads the schema, so drift stays detectable.
	SnapshotOnLoad bool `mapstructure:"snapshotOnLoad"`
}

// StorageConfig holds repository configuration.
type StorageConfig struct {
	// Backend selects the repository: postgres, sqlite, or memory.
	// The memory backend exists only for tests.
	Backend string `mapstructure:"backend"`

	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN renders the lib/pq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// SQLiteConfig holds embedded database configuration.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// AccessConfig holds role matrix configuration. Empty paths mean the
// embedded default matrix.
type AccessConfig struct {
	ModelPath  string `mapstructure:"modelPath"`
	PolicyPath string `mapstructure:"policyPath"`
}

// ScannersConfig holds one entry per backing store that can be audited
// for tag coverage.
type ScannersConfig struct {
	Postgres  PostgresScannerConfig  `mapstructure:"postgres"`
	DuckDB    DuckDBScannerConfig    `mapstructure:"duckdb"`
	Snowflake SnowflakeScannerConfig `mapstructure:"snowflake"`
	Trino     TrinoScannerConfig     `mapstructure:"trino"`
	BigQuery  BigQueryScannerConfig  `mapstructure:"bigquery"`
}

// PostgresScannerConfig audits a PostgreSQL-backed service schema.
type PostgresScannerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Service  string `mapstructure:"service"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Schema   string `mapstructure:"schema"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN renders the lib/pq connection string.
func (c PostgresScannerConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// DuckDBScannerConfig audits a DuckDB file (analytics extracts).
type DuckDBScannerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Service  string `mapstructure:"service"`
	Database string `mapstructure:"database"`
}

// SnowflakeScannerConfig audits a Snowflake schema (the warehouse copy).
type SnowflakeScannerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Service  string `mapstructure:"service"`
	DSN      string `mapstructure:"dsn"`
	Database string `mapstructure:"database"`
	Schema   string `mapstructure:"schema"`
}

// TrinoScannerConfig audits a catalog reachable through Trino.
type TrinoScannerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Service string `mapstructure:"service"`
	DSN     string `mapstructure:"dsn"`
	Catalog string `mapstructure:"catalog"`
	Schema  string `mapstructure:"schema"`
}

// BigQueryScannerConfig audits a BigQuery dataset.
type BigQueryScannerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Service string `mapstructure:"service"`
	Project string `mapstructure:"project"`
	Dataset string `mapstructure:"dataset"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  string `mapstructure:"readTimeout"`
	WriteTimeout string `mapstructure:"writeTimeout"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Endpoint: "http://localhost:8086",
		Auth: AuthConfig{
			Token: "",
		},
		Registry: RegistryConfig{
			SchemaPaths:        []string{"tag-schema.yaml"},
			RequiredFieldCheck: false,
			SnapshotOnLoad:     true,
		},
		Storage: StorageConfig{
			Backend: "sqlite",
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "datatags",
				Password: "datatags_dev",
				Name:     "datatags",
				SSLMode:  "disable",
			},
			SQLite: SQLiteConfig{
				Path: ".datatags/datatags.db",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Port:         8086,
			ReadTimeout:  "30s",
			WriteTimeout: "30s",
		},
	}
}

// Load loads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".datatags"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Environment variables
	v.SetEnvPrefix("DATATAGS")
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file is optional
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	// Unmarshal
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the rest of the system cannot act on.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("config: unknown storage backend %q (want postgres, sqlite, or memory)", c.Storage.Backend)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server port %d out of range", c.Server.Port)
	}

	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("config: unknown logging format %q (want json or text)", c.Logging.Format)
	}

	if len(c.Registry.SchemaPaths) == 0 {
		return fmt.Errorf("config: registry.schemaPaths must name at least one tag schema file")
	}

	// A matrix override needs both halves.
	if (c.Access.ModelPath == "") != (c.Access.PolicyPath == "") {
		return fmt.Errorf("config: access.modelPath and access.policyPath must be set together")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("endpoint", "http://localhost:8086")
	v.SetDefault("auth.token", "")
	v.SetDefault("registry.schemaPaths", []string{"tag-schema.yaml"})
	v.SetDefault("registry.requiredFieldCheck", false)
	v.SetDefault("registry.snapshotOnLoad", true)
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.user", "datatags")
	v.SetDefault("storage.postgres.password", "datatags_dev")
	v.SetDefault("storage.postgres.name", "datatags")
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.sqlite.path", ".datatags/datatags.db")
	v.SetDefault("scanners.postgres.enabled", false)
	v.SetDefault("scanners.duckdb.enabled", false)
	v.SetDefault("scanners.snowflake.enabled", false)
	v.SetDefault("scanners.trino.enabled", false)
	v.SetDefault("scanners.bigquery.enabled", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("server.port", 8086)
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "30s")
}
