package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	YouTube    YouTubeConfig
	Transcript TranscriptConfig
	Engine     EngineConfig
	Cache      CacheConfig
	Memory     MemoryConfig
	Breaker    BreakerConfig
	Server     ServerConfig
	Logging    LoggingConfig
}

type YouTubeConfig struct {
	APIKey              string
	MaxVideosPerRequest int
	MetadataBatchSize   int
	MaxSearchResults    int64
	MinDuration         time.Duration
	RetryAttempts       int
	RetryBaseDelay      time.Duration
	CallTimeout         time.Duration
	MinCallDelay        time.Duration
	MaxCallDelay        time.Duration
}

type TranscriptConfig struct {
	Concurrency        int
	PreferredLanguages []string
	FetchTimeout       time.Duration
	MinDelay           time.Duration
}

type EngineConfig struct {
	Concurrency     int
	RequestDeadline time.Duration
}

type CacheConfig struct {
	DefaultCapacity int
	// Per-cache overrides keyed by the registered cache name, loaded
	// from CACHE_CAPACITY_<NAME> variables.
	Capacities map[string]int
}

type MemoryConfig struct {
	HighWaterFraction float64
	SoftCapMB         int
	CheckInterval     time.Duration
}

type BreakerConfig struct {
	Threshold    int
	ResetTimeout time.Duration
	HalfOpenMax  int
}

type ServerConfig struct {
	Port           int
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxBodyBytes   int64
}

type LoggingConfig struct {
	Level string
	File  string
}

// Named caches with capacity overrides.
var cacheNames = []string{
	"RESOLVE", "METADATA", "PLAYLIST_PAGES", "SEARCH_PAGES", "VIDEOS",
	"TRANSCRIPTS", "TRANSCRIPT_ERRORS", "TOKEN_COUNTS",
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		YouTube: YouTubeConfig{
			APIKey:              getEnv("YOUTUBE_API_KEY", ""),
			MaxVideosPerRequest: getEnvInt("MAX_VIDEOS_PER_REQUEST", 200),
			MetadataBatchSize:   getEnvInt("METADATA_BATCH_SIZE", 50),
			MaxSearchResults:    int64(getEnvInt("MAX_SEARCH_RESULTS", 50)),
			MinDuration:         time.Duration(getEnvInt("MIN_DURATION_SECONDS", 0)) * time.Second,
			RetryAttempts:       getEnvInt("API_RETRY_ATTEMPTS", 3),
			RetryBaseDelay:      time.Duration(getEnvInt("API_RETRY_BASE_DELAY_MS", 1000)) * time.Millisecond,
			CallTimeout:         time.Duration(getEnvInt("API_TIMEOUT_SECONDS", 20)) * time.Second,
			MinCallDelay:        time.Duration(getEnvInt("MIN_DELAY_MS", 100)) * time.Millisecond,
			MaxCallDelay:        time.Duration(getEnvInt("MAX_DELAY_MS", 400)) * time.Millisecond,
		},
		Transcript: TranscriptConfig{
			Concurrency:        getEnvInt("TRANSCRIPT_CONCURRENCY", 4),
			PreferredLanguages: parseCommaSeparated(getEnv("PREFERRED_TRANSCRIPT_LANGUAGES", "en")),
			FetchTimeout:       time.Duration(getEnvInt("TRANSCRIPT_TIMEOUT_SECONDS", 15)) * time.Second,
			MinDelay:           time.Duration(getEnvInt("TRANSCRIPT_MIN_DELAY_MS", 250)) * time.Millisecond,
		},
		Engine: EngineConfig{
			Concurrency:     getEnvInt("ENGINE_CONCURRENCY", 8),
			RequestDeadline: time.Duration(getEnvInt("REQUEST_DEADLINE_SECONDS", 120)) * time.Second,
		},
		Cache: CacheConfig{
			DefaultCapacity: getEnvInt("CACHE_CAPACITY_DEFAULT", 1024),
			Capacities:      collectCacheCapacities(),
		},
		Memory: MemoryConfig{
			HighWaterFraction: getEnvFloat("MEMORY_HIGH_WATER_FRACTION", 0.75),
			SoftCapMB:         getEnvInt("MEMORY_SOFT_CAP_MB", 512),
			CheckInterval:     time.Duration(getEnvInt("MEMORY_CHECK_INTERVAL_SECONDS", 30)) * time.Second,
		},
		Breaker: BreakerConfig{
			Threshold:    getEnvInt("CIRCUIT_BREAKER_THRESHOLD", 5),
			ResetTimeout: time.Duration(getEnvInt("CIRCUIT_BREAKER_RESET_TIMEOUT", 300)) * time.Second,
			HalfOpenMax:  getEnvInt("CIRCUIT_HALF_OPEN_REQUESTS", 3),
		},
		Server: ServerConfig{
			Port:           getEnvInt("PORT", 8000),
			AllowedOrigins: parseCommaSeparated(getEnv("ALLOWED_ORIGINS", "http://localhost:8000")),
			RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 0.5),
			RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 30),
			MaxBodyBytes:   int64(getEnvInt("MAX_CONTENT_LENGTH", 15*1024*1024)),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.YouTube.APIKey == "" {
		return fmt.Errorf("YOUTUBE_API_KEY is required")
	}
	if c.YouTube.MaxVideosPerRequest <= 0 {
		return fmt.Errorf("MAX_VIDEOS_PER_REQUEST must be positive")
	}
	if c.YouTube.MetadataBatchSize <= 0 || c.YouTube.MetadataBatchSize > 50 {
		return fmt.Errorf("METADATA_BATCH_SIZE must be in 1..50")
	}
	if c.Transcript.Concurrency <= 0 || c.Engine.Concurrency <= 0 {
		return fmt.Errorf("concurrency limits must be positive")
	}
	if c.Engine.RequestDeadline <= 0 {
		return fmt.Errorf("REQUEST_DEADLINE_SECONDS must be positive")
	}
	if c.Memory.HighWaterFraction <= 0 || c.Memory.HighWaterFraction > 1 {
		return fmt.Errorf("MEMORY_HIGH_WATER_FRACTION must be in (0, 1]")
	}
	if len(c.Transcript.PreferredLanguages) == 0 {
		c.Transcript.PreferredLanguages = []string{"en"}
	}
	return nil
}

// CacheCapacity returns the capacity for a named cache, falling back to
// the default.
func (c *Config) CacheCapacity(name string) int {
	if cap, ok := c.Cache.Capacities[name]; ok && cap > 0 {
		return cap
	}
	return c.Cache.DefaultCapacity
}

func collectCacheCapacities() map[string]int {
	capacities := make(map[string]int)
	for _, name := range cacheNames {
		if v := getEnvInt("CACHE_CAPACITY_"+name, 0); v > 0 {
			capacities[strings.ToLower(name)] = v
		}
	}
	return capacities
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func parseCommaSeparated(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
