package config

import (
	"os"
	"strconv"
	"time"

	"supptrace/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig `validate:"required"`
	Server   ServerConfig   `validate:"required"`
	Analysis AnalysisConfig `validate:"required"`
	Ops      OpsConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL     string `validate:"required"`
	SSLMode string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string `validate:"required"`
	GinMode string
}

// OpsConfig holds the operational/debug listener settings
type OpsConfig struct {
	Port    string
	Enabled bool
}

// AnalysisConfig holds every tunable knob of the effect detection engine.
// Defaults follow the engine's calibrated thresholds.
type AnalysisConfig struct {
	// LookbackDays bounds how far back the engine reads daily entries
	LookbackDays int
	// BoundaryBufferDays drops days adjacent to a period transition (washout)
	BoundaryBufferDays int
	// CoStartBufferDays flags ambiguous attribution when another supplement
	// starts or stops this close to the target's boundary
	CoStartBufferDays int
	// MinClassifySample is the floor below which classification is always too_early
	MinClassifySample int
	// MinUsableSample routes to testing when either window is thinner than this
	MinUsableSample int
	// DirectionEpsilon is the dead zone around zero effect for the neutral direction
	DirectionEpsilon float64
	// NoEffectMaxSize, NoEffectMinConfidence, NoEffectMinTotal gate the
	// no_detectable_effect verdict
	NoEffectMaxSize       float64
	NoEffectMinConfidence float64
	NoEffectMinTotal      int
	// SignificantMinConfidence and SignificantMinSize gate significance
	SignificantMinConfidence float64
	SignificantMinSize       float64
	// ConfoundRatioMax is the fraction of noisy in-window days that forces confounded
	ConfoundRatioMax float64
	// SampleSaturationDays is where the sample confidence factor flattens out
	SampleSaturationDays int
	// EffectSizeClamp bounds the Cohen's-d-like statistic before rescaling
	EffectSizeClamp float64
	// InconclusiveMinDays is how much tracked history an always-on supplement
	// needs before the engine gives up on ever finding an OFF baseline
	InconclusiveMinDays int
	// CommunityMinPopulation is the smallest cohort for percentile enrichment
	CommunityMinPopulation int
	// MaxParallelReports bounds concurrent generation in the patterns path
	MaxParallelReports int
	// GenerateTimeout is the caller-side budget for one report computation
	GenerateTimeout time.Duration
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	dbConfig, err := loadDatabaseConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load database configuration")
	}
	config.Database = *dbConfig

	config.Server = *loadServerConfig()
	config.Analysis = *loadAnalysisConfig()
	config.Ops = *loadOpsConfig()

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// DefaultAnalysisConfig returns the engine defaults without touching the environment
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		LookbackDays:             90,
		BoundaryBufferDays:       2,
		CoStartBufferDays:        7,
		MinClassifySample:        3,
		MinUsableSample:          5,
		DirectionEpsilon:         0.05,
		NoEffectMaxSize:          0.03,
		NoEffectMinConfidence:    0.65,
		NoEffectMinTotal:         14,
		SignificantMinConfidence: 0.5,
		SignificantMinSize:       0.15,
		ConfoundRatioMax:         0.30,
		SampleSaturationDays:     30,
		EffectSizeClamp:          2.0,
		InconclusiveMinDays:      60,
		CommunityMinPopulation:   20,
		MaxParallelReports:       8,
		GenerateTimeout:          10 * time.Second,
	}
}

func loadDatabaseConfig() (*DatabaseConfig, error) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}

	return &DatabaseConfig{
		URL:     url,
		SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
	}, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "debug"),
	}
}

func loadOpsConfig() *OpsConfig {
	return &OpsConfig{
		Port:    getEnvOrDefault("OPS_PORT", "6060"),
		Enabled: getEnvBoolOrDefault("OPS_ENABLED", true),
	}
}

func loadAnalysisConfig() *AnalysisConfig {
	cfg := DefaultAnalysisConfig()
	cfg.LookbackDays = getEnvIntOrDefault("LOOKBACK_DAYS", cfg.LookbackDays)
	cfg.BoundaryBufferDays = getEnvIntOrDefault("BOUNDARY_BUFFER_DAYS", cfg.BoundaryBufferDays)
	cfg.CoStartBufferDays = getEnvIntOrDefault("CO_START_BUFFER_DAYS", cfg.CoStartBufferDays)
	cfg.MinUsableSample = getEnvIntOrDefault("MIN_USABLE_SAMPLE", cfg.MinUsableSample)
	cfg.CommunityMinPopulation = getEnvIntOrDefault("COMMUNITY_MIN_POPULATION", cfg.CommunityMinPopulation)
	cfg.MaxParallelReports = getEnvIntOrDefault("MAX_PARALLEL_REPORTS", cfg.MaxParallelReports)
	cfg.GenerateTimeout = getEnvDurationOrDefault("GENERATE_TIMEOUT", cfg.GenerateTimeout)
	return &cfg
}

func validateConfig(config *Config) error {
	if config.Database.URL == "" {
		return errors.ConfigInvalid("database URL is required")
	}
	if config.Analysis.LookbackDays <= 0 {
		return errors.ConfigInvalid("lookback window must be positive")
	}
	if config.Analysis.MinUsableSample < config.Analysis.MinClassifySample {
		return errors.ConfigInvalid("usable sample floor cannot be below classification floor")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
