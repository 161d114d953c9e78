package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/citl-review-server/internal/domain"
)

// Manager loads and validates application configuration using Viper.
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from file, environment, and defaults.
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/citl-review-server/")

	viper.SetEnvPrefix("CITL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars cover the rest
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values.
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.requests_per_second", 20)
	viper.SetDefault("server.request_burst", 40)

	// Storage defaults
	viper.SetDefault("storage.backend", "sqlite")
	viper.SetDefault("storage.sqlite_path", "./data/citl.db")
	viper.SetDefault("storage.postgres_url", "")
	viper.SetDefault("storage.migrations_path", "./migrations")
	viper.SetDefault("storage.max_open_conns", 25)
	viper.SetDefault("storage.max_idle_conns", 5)
	viper.SetDefault("storage.conn_max_lifetime", "5m")
	viper.SetDefault("storage.cache_size", 256)

	// Pipeline defaults
	viper.SetDefault("pipeline.base_url", "http://localhost:9090")
	viper.SetDefault("pipeline.timeout", "30s")
	viper.SetDefault("pipeline.max_retries", 3)
	viper.SetDefault("pipeline.retry_base_delay", "500ms")
	viper.SetDefault("pipeline.retry_max_delay", "10s")
	viper.SetDefault("pipeline.rate_limit", 10)
	viper.SetDefault("pipeline.rate_burst", 5)
	viper.SetDefault("pipeline.breaker_interval", "30s")
	viper.SetDefault("pipeline.breaker_timeout", "60s")
	viper.SetDefault("pipeline.breaker_min_requests", 3)

	// Quality thresholds
	viper.SetDefault("quality.min_spots_per_region", 30)
	viper.SetDefault("quality.ideal_spots_per_region", 50)
	viper.SetDefault("quality.marginal_fdr_low", 0.01)
	viper.SetDefault("quality.marginal_fdr_high", 0.05)
	viper.SetDefault("quality.marginal_fraction", 0.5)
	viper.SetDefault("quality.missing_warning_pct", 5.0)
	viper.SetDefault("quality.missing_critical_pct", 10.0)
	viper.SetDefault("quality.concordance_tolerance", 0.75)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration.
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetStorageConfig returns storage configuration.
func (m *Manager) GetStorageConfig() *domain.StorageConfig {
	return &m.config.Storage
}

// GetPipelineConfig returns pipeline client configuration.
func (m *Manager) GetPipelineConfig() *domain.PipelineConfig {
	return &m.config.Pipeline
}

// GetQualityConfig returns quality gate thresholds.
func (m *Manager) GetQualityConfig() *domain.QualityConfig {
	return &m.config.Quality
}

// Reload reloads the configuration.
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Storage.Backend {
	case "sqlite":
		if config.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite backend")
		}
	case "postgres":
		if config.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", config.Storage.Backend)
	}

	if config.Pipeline.BaseURL == "" {
		return fmt.Errorf("pipeline base URL is required")
	}

	if config.Quality.MarginalFDRLow >= config.Quality.MarginalFDRHigh {
		return fmt.Errorf("marginal FDR band is empty: low=%.3f high=%.3f",
			config.Quality.MarginalFDRLow, config.Quality.MarginalFDRHigh)
	}
	if config.Quality.MissingWarningPct > config.Quality.MissingCriticalPct {
		return fmt.Errorf("missing-data warning threshold exceeds critical threshold")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}
