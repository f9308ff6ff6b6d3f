package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Matching  MatchingConfig
	Identity  IdentityConfig
	Alerts    AlertsConfig
	Storage   StorageConfig
	Notify    NotifyConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MatchingConfig holds the entity-resolution thresholds
type MatchingConfig struct {
	IntraSourceRatio  float64 `mapstructure:"intra_source_ratio"` // same-source duplicate ratio (0-1)
	StrongThreshold   float64 `mapstructure:"strong_threshold"`   // cross-source match threshold (0-100)
	ProbableThreshold float64 `mapstructure:"probable_threshold"` // recognized, not wired to any tier
	VolumeTolerance   float64 `mapstructure:"volume_tolerance"`   // volume compatibility tolerance (0-1)
	BlockWorkers      int     `mapstructure:"block_workers"`
	EnableDebugLog    bool    `mapstructure:"enable_debug_log"`
}

// IdentityConfig holds the persistent-identity settings
type IdentityConfig struct {
	FallbackThreshold float64       `mapstructure:"fallback_threshold"` // fuzzy identity fallback (0-1)
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
}

// AlertsConfig holds the notification engine settings
type AlertsConfig struct {
	Cooldown          time.Duration `mapstructure:"cooldown"`
	MonitoringHorizon time.Duration `mapstructure:"monitoring_horizon"`
}

// StorageConfig holds persistence settings
type StorageConfig struct {
	Path string `mapstructure:"path"` // sqlite database file, or ":memory:"
}

// NotifyConfig holds the task-queue collaborator settings
type NotifyConfig struct {
	QueueURL string        `mapstructure:"queue_url"` // empty disables dispatch
	Timeout  time.Duration `mapstructure:"timeout"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file into the environment first, if present
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricelens/")

	// Environment variable settings
	v.SetEnvPrefix("PRICELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Matching defaults
	v.SetDefault("matching.intra_source_ratio", 0.95)
	v.SetDefault("matching.strong_threshold", 90.0)
	v.SetDefault("matching.probable_threshold", 85.0)
	v.SetDefault("matching.volume_tolerance", 0.15)
	v.SetDefault("matching.block_workers", 4)
	v.SetDefault("matching.enable_debug_log", false)

	// Identity defaults
	v.SetDefault("identity.fallback_threshold", 0.8)
	v.SetDefault("identity.cache_ttl", "1h")

	// Alert defaults
	v.SetDefault("alerts.cooldown", "3600s")
	v.SetDefault("alerts.monitoring_horizon", "168h") // 7 days

	// Storage defaults
	v.SetDefault("storage.path", "data/pricelens.db")

	// Notify defaults
	v.SetDefault("notify.queue_url", "")
	v.SetDefault("notify.timeout", "10s")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Storage.Path == "" {
		return fmt.Errorf("storage path is required (set PRICELENS_STORAGE_PATH)")
	}

	if config.Matching.IntraSourceRatio <= 0 || config.Matching.IntraSourceRatio > 1 {
		return fmt.Errorf("intra-source ratio must be in (0, 1], got: %g", config.Matching.IntraSourceRatio)
	}

	if config.Matching.StrongThreshold <= 0 || config.Matching.StrongThreshold > 100 {
		return fmt.Errorf("strong threshold must be in (0, 100], got: %g", config.Matching.StrongThreshold)
	}

	if config.Matching.VolumeTolerance < 0 || config.Matching.VolumeTolerance > 1 {
		return fmt.Errorf("volume tolerance must be in [0, 1], got: %g", config.Matching.VolumeTolerance)
	}

	if config.Identity.FallbackThreshold <= 0 || config.Identity.FallbackThreshold > 1 {
		return fmt.Errorf("identity fallback threshold must be in (0, 1], got: %g", config.Identity.FallbackThreshold)
	}

	if config.Alerts.Cooldown <= 0 {
		return fmt.Errorf("alert cooldown must be positive, got: %s", config.Alerts.Cooldown)
	}

	return nil
}

// loadEnvFile loads KEY=VALUE pairs from a .env file in the working
// directory into the process environment. Existing variables win.
func loadEnvFile() error {
	file, err := os.Open(".env")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" || os.Getenv(key) != "" {
			continue
		}
		os.Setenv(key, strings.TrimSpace(value))
	}
	return scanner.Err()
}
