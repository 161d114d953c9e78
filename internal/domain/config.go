package domain

import (
	"time"
)

// Configuration Models

// Config represents the main application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Quality  QualityConfig  `mapstructure:"quality"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	RequestBurst      int           `mapstructure:"request_burst"`
}

// StorageConfig selects and configures the artifact store backend.
type StorageConfig struct {
	Backend        string        `mapstructure:"backend"` // "sqlite" or "postgres"
	SQLitePath     string        `mapstructure:"sqlite_path"`
	PostgresURL    string        `mapstructure:"postgres_url"`
	MigrationsPath string        `mapstructure:"migrations_path"`
	MaxOpenConns   int           `mapstructure:"max_open_conns"`
	MaxIdleConns   int           `mapstructure:"max_idle_conns"`
	ConnMaxLife    time.Duration `mapstructure:"conn_max_lifetime"`
	CacheSize      int           `mapstructure:"cache_size"`
}

// PipelineConfig configures the analysis-pipeline collaborator client.
type PipelineConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay    time.Duration `mapstructure:"retry_max_delay"`
	RateLimit        float64       `mapstructure:"rate_limit"`
	RateBurst        int           `mapstructure:"rate_burst"`
	BreakerInterval  time.Duration `mapstructure:"breaker_interval"`
	BreakerTimeout   time.Duration `mapstructure:"breaker_timeout"`
	BreakerMinCalls  uint32        `mapstructure:"breaker_min_requests"`
}

// QualityConfig carries the fixed clinical/statistical thresholds applied by
// the quality gate before a draft reaches a reviewer.
type QualityConfig struct {
	MinSpotsPerRegion    int     `mapstructure:"min_spots_per_region"`
	IdealSpotsPerRegion  int     `mapstructure:"ideal_spots_per_region"`
	MarginalFDRLow       float64 `mapstructure:"marginal_fdr_low"`
	MarginalFDRHigh      float64 `mapstructure:"marginal_fdr_high"`
	MarginalFraction     float64 `mapstructure:"marginal_fraction"`
	MissingWarningPct    float64 `mapstructure:"missing_warning_pct"`
	MissingCriticalPct   float64 `mapstructure:"missing_critical_pct"`
	ConcordanceTolerance float64 `mapstructure:"concordance_tolerance"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
