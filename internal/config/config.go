// Package config loads viewer configuration from an optional TOML file with
// environment variable overrides. Precedence: defaults, then file, then env.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	TileURL          string
	CacheDir         string
	CacheMode        string
	MemoryCacheBytes int64
	DiskCacheBytes   int64
	DiskCacheMaxAge  time.Duration
	MaxFetches       int
	RetryLimit       int
	BackoffBase      time.Duration
	BackoffCap       time.Duration
	DrainInterval    time.Duration
	MinZoom          int
	MaxZoom          int
	PrefetchMargin   int
	LogLevel         string
}

const (
	defaultTileURL  = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
	defaultCacheDir = ".tile_cache"
)

func defaults() Config {
	return Config{
		TileURL:          defaultTileURL,
		CacheDir:         defaultCacheDir,
		CacheMode:        "memory",
		MemoryCacheBytes: 64 << 20,
		DiskCacheBytes:   256 << 20,
		DiskCacheMaxAge:  30 * 24 * time.Hour,
		MaxFetches:       4,
		RetryLimit:       3,
		BackoffBase:      250 * time.Millisecond,
		BackoffCap:       5 * time.Second,
		DrainInterval:    100 * time.Millisecond,
		MinZoom:          0,
		MaxZoom:          19,
		PrefetchMargin:   1,
		LogLevel:         "info",
	}
}

// Load reads the TOML file at path (missing file is fine: defaults apply)
// and then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return nil, err
		}
	}
	applyEnv(&cfg)

	if cfg.MinZoom < 0 || cfg.MaxZoom < cfg.MinZoom {
		return nil, fmt.Errorf("invalid zoom range [%d, %d]", cfg.MinZoom, cfg.MaxZoom)
	}
	if cfg.MaxFetches < 1 {
		return nil, fmt.Errorf("max_fetches must be at least 1, got %d", cfg.MaxFetches)
	}
	if cfg.RetryLimit < 1 {
		return nil, fmt.Errorf("retry_limit must be at least 1, got %d", cfg.RetryLimit)
	}
	return &cfg, nil
}

// Numeric fields are pointers so an explicit zero in the file is
// distinguishable from the key being absent.
type fileConfig struct {
	TileURL          string `toml:"tile_url"`
	CacheDir         string `toml:"cache_dir"`
	CacheMode        string `toml:"cache_mode"`
	MemoryCacheBytes *int64 `toml:"memory_cache_bytes"`
	DiskCacheBytes   *int64 `toml:"disk_cache_bytes"`
	DiskCacheMaxAge  string `toml:"disk_cache_max_age"`
	MaxFetches       *int   `toml:"max_fetches"`
	RetryLimit       *int   `toml:"retry_limit"`
	BackoffBase      string `toml:"backoff_base"`
	BackoffCap       string `toml:"backoff_cap"`
	DrainInterval    string `toml:"drain_interval"`
	MinZoom          *int   `toml:"min_zoom"`
	MaxZoom          *int   `toml:"max_zoom"`
	PrefetchMargin   *int   `toml:"prefetch_margin"`
	LogLevel         string `toml:"log_level"`
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	setString(&cfg.TileURL, raw.TileURL)
	setString(&cfg.CacheDir, raw.CacheDir)
	setString(&cfg.CacheMode, raw.CacheMode)
	setString(&cfg.LogLevel, raw.LogLevel)
	setInt64(&cfg.MemoryCacheBytes, raw.MemoryCacheBytes)
	setInt64(&cfg.DiskCacheBytes, raw.DiskCacheBytes)
	setInt(&cfg.MaxFetches, raw.MaxFetches)
	setInt(&cfg.RetryLimit, raw.RetryLimit)
	setInt(&cfg.MinZoom, raw.MinZoom)
	setInt(&cfg.MaxZoom, raw.MaxZoom)
	setInt(&cfg.PrefetchMargin, raw.PrefetchMargin)

	if err := setDuration(&cfg.DiskCacheMaxAge, raw.DiskCacheMaxAge); err != nil {
		return fmt.Errorf("disk_cache_max_age: %w", err)
	}
	if err := setDuration(&cfg.BackoffBase, raw.BackoffBase); err != nil {
		return fmt.Errorf("backoff_base: %w", err)
	}
	if err := setDuration(&cfg.BackoffCap, raw.BackoffCap); err != nil {
		return fmt.Errorf("backoff_cap: %w", err)
	}
	if err := setDuration(&cfg.DrainInterval, raw.DrainInterval); err != nil {
		return fmt.Errorf("drain_interval: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.TileURL = getEnv("SLIPPYMAP_TILE_URL", cfg.TileURL)
	cfg.CacheDir = getEnv("SLIPPYMAP_CACHE_DIR", cfg.CacheDir)
	cfg.CacheMode = getEnv("SLIPPYMAP_CACHE_MODE", cfg.CacheMode)
	cfg.LogLevel = getEnv("SLIPPYMAP_LOG_LEVEL", cfg.LogLevel)
	cfg.MemoryCacheBytes = getEnvInt64("SLIPPYMAP_MEMORY_CACHE_BYTES", cfg.MemoryCacheBytes)
	cfg.DiskCacheBytes = getEnvInt64("SLIPPYMAP_DISK_CACHE_BYTES", cfg.DiskCacheBytes)
	cfg.MaxFetches = getEnvInt("SLIPPYMAP_MAX_FETCHES", cfg.MaxFetches)
	cfg.RetryLimit = getEnvInt("SLIPPYMAP_RETRY_LIMIT", cfg.RetryLimit)
	cfg.MinZoom = getEnvInt("SLIPPYMAP_MIN_ZOOM", cfg.MinZoom)
	cfg.MaxZoom = getEnvInt("SLIPPYMAP_MAX_ZOOM", cfg.MaxZoom)
	cfg.PrefetchMargin = getEnvInt("SLIPPYMAP_PREFETCH_MARGIN", cfg.PrefetchMargin)
	cfg.DiskCacheMaxAge = getEnvDuration("SLIPPYMAP_DISK_CACHE_MAX_AGE", cfg.DiskCacheMaxAge)
	cfg.BackoffBase = getEnvDuration("SLIPPYMAP_BACKOFF_BASE", cfg.BackoffBase)
	cfg.BackoffCap = getEnvDuration("SLIPPYMAP_BACKOFF_CAP", cfg.BackoffCap)
	cfg.DrainInterval = getEnvDuration("SLIPPYMAP_DRAIN_INTERVAL", cfg.DrainInterval)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setInt64(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
