package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Store backend names accepted by store.backend.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendNeo4j  = "neo4j"
)

// Config holds all configuration for mollusk.
type Config struct {
	DataDir string        `mapstructure:"data_dir"`
	Store   StoreConfig   `mapstructure:"store"`
	Neo4j   Neo4jConfig   `mapstructure:"neo4j"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StoreConfig selects and parameterizes the graph storage backend.
type StoreConfig struct {
	Backend    string `mapstructure:"backend"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// Neo4jConfig holds Neo4j connection settings.
type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// String returns a safe representation with the password masked.
func (c Neo4jConfig) String() string {
	masked := "***"
	if c.Password == "" {
		masked = ""
	}
	return fmt.Sprintf("Neo4jConfig{URI:%s, Username:%s, Password:%s, Database:%s}", c.URI, c.Username, masked, c.Database)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultDataDir is where the sqlite database and settings file live when
// data_dir is not configured.
func DefaultDataDir() string {
	return filepath.Join(homeDir(), ".mollusk")
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	dataDir := DefaultDataDir()
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.sqlite_path", filepath.Join(dataDir, "mollusk.sqlite"))

	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.database", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dataDir)
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("MOLLUSK")
	v.AutomaticEnv()

	// Map specific env vars
	_ = v.BindEnv("store.backend", "MOLLUSK_STORE_BACKEND")
	_ = v.BindEnv("store.sqlite_path", "MOLLUSK_STORE_SQLITE_PATH")
	_ = v.BindEnv("neo4j.uri", "MOLLUSK_NEO4J_URI")
	_ = v.BindEnv("neo4j.username", "MOLLUSK_NEO4J_USERNAME")
	_ = v.BindEnv("neo4j.password", "MOLLUSK_NEO4J_PASSWORD")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK — use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path must not be empty for the sqlite backend")
		}
	case BackendNeo4j:
		if c.Neo4j.URI == "" {
			return fmt.Errorf("neo4j.uri must not be empty for the neo4j backend")
		}
		if c.Neo4j.Username == "" {
			return fmt.Errorf("neo4j.username must not be empty for the neo4j backend")
		}
	default:
		return fmt.Errorf("store.backend must be one of %q, %q, %q", BackendMemory, BackendSQLite, BackendNeo4j)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
