package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingFFNerdAPIKey is returned by Validate when FFNERD_API_KEY is unset
var ErrMissingFFNerdAPIKey = errors.New("FFNERD_API_KEY is required")

type Config struct {
	// Server
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Redis
	RedisURL       string `mapstructure:"REDIS_URL"`
	CacheNamespace string `mapstructure:"CACHE_NAMESPACE"`

	// Identity mapping
	MappingFilePath string `mapstructure:"MAPPING_FILE_PATH"`

	// External APIs
	SleeperBaseURL          string        `mapstructure:"SLEEPER_BASE_URL"`
	FFNerdBaseURL           string        `mapstructure:"FFNERD_BASE_URL"`
	FFNerdAPIKey            string        `mapstructure:"FFNERD_API_KEY"`
	ExternalAPITimeout      time.Duration `mapstructure:"EXTERNAL_API_TIMEOUT"`
	CircuitBreakerThreshold int           `mapstructure:"CIRCUIT_BREAKER_THRESHOLD"`
	ProviderRateLimit       float64       `mapstructure:"PROVIDER_RATE_LIMIT"` // requests per second

	// Enrichment
	ScoringFormat            string        `mapstructure:"SCORING_FORMAT"`
	NFLWeek                  int           `mapstructure:"NFL_WEEK"` // 0 = ask FFNerd
	MaxConcurrentEnrichments int           `mapstructure:"MAX_CONCURRENT_ENRICHMENTS"`
	DataFetchInterval        time.Duration `mapstructure:"DATA_FETCH_INTERVAL"`

	// Feature Flags
	EnableBackgroundJobs bool `mapstructure:"ENABLE_BACKGROUND_JOBS"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "")
	viper.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	viper.SetDefault("CACHE_NAMESPACE", "fantasy")
	viper.SetDefault("MAPPING_FILE_PATH", "data/player_mapping.json")
	viper.SetDefault("SLEEPER_BASE_URL", "https://api.sleeper.app")
	viper.SetDefault("FFNERD_BASE_URL", "https://api.fantasynerds.com")
	viper.SetDefault("FFNERD_API_KEY", "")
	viper.SetDefault("EXTERNAL_API_TIMEOUT", "10s")
	viper.SetDefault("CIRCUIT_BREAKER_THRESHOLD", 5)
	viper.SetDefault("PROVIDER_RATE_LIMIT", 5)
	viper.SetDefault("SCORING_FORMAT", "ppr")
	viper.SetDefault("NFL_WEEK", 0)
	viper.SetDefault("MAX_CONCURRENT_ENRICHMENTS", 50)
	viper.SetDefault("DATA_FETCH_INTERVAL", "2h")
	viper.SetDefault("ENABLE_BACKGROUND_JOBS", true)

	// Read from environment
	viper.AutomaticEnv()

	// Read config file if exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	config.ScoringFormat = strings.ToLower(strings.TrimSpace(config.ScoringFormat))
	config.FFNerdAPIKey = strings.TrimSpace(config.FFNerdAPIKey)

	return &config, nil
}

// Validate reports configuration that would make the service unusable
func (c *Config) Validate() error {
	if c.FFNerdAPIKey == "" {
		return ErrMissingFFNerdAPIKey
	}
	switch c.ScoringFormat {
	case "ppr", "half", "std":
	default:
		return fmt.Errorf("unsupported SCORING_FORMAT %q", c.ScoringFormat)
	}
	if c.NFLWeek < 0 || c.NFLWeek > 22 {
		return fmt.Errorf("NFL_WEEK must be between 0 and 22, got %d", c.NFLWeek)
	}
	if c.MaxConcurrentEnrichments <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_ENRICHMENTS must be positive, got %d", c.MaxConcurrentEnrichments)
	}
	if c.DataFetchInterval < time.Minute {
		return fmt.Errorf("DATA_FETCH_INTERVAL must be at least 1m, got %s", c.DataFetchInterval)
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}
