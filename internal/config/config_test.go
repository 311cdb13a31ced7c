package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TileURL != defaultTileURL {
		t.Errorf("TileURL = %q, want default", cfg.TileURL)
	}
	if cfg.MaxFetches != 4 || cfg.RetryLimit != 3 {
		t.Errorf("fetch defaults = %d/%d, want 4/3", cfg.MaxFetches, cfg.RetryLimit)
	}
	if cfg.DrainInterval != 100*time.Millisecond {
		t.Errorf("DrainInterval = %v, want 100ms", cfg.DrainInterval)
	}
	if cfg.PrefetchMargin != 1 {
		t.Errorf("PrefetchMargin = %d, want 1", cfg.PrefetchMargin)
	}
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	err := os.WriteFile(path, []byte(`
tile_url = "https://tiles.example.com/{z}/{x}/{y}.webp"
memory_cache_bytes = 1048576
max_fetches = 8
drain_interval = "50ms"
prefetch_margin = 0
max_zoom = 16
`), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TileURL != "https://tiles.example.com/{z}/{x}/{y}.webp" {
		t.Errorf("TileURL = %q", cfg.TileURL)
	}
	if cfg.MemoryCacheBytes != 1048576 {
		t.Errorf("MemoryCacheBytes = %d", cfg.MemoryCacheBytes)
	}
	if cfg.MaxFetches != 8 {
		t.Errorf("MaxFetches = %d", cfg.MaxFetches)
	}
	if cfg.DrainInterval != 50*time.Millisecond {
		t.Errorf("DrainInterval = %v", cfg.DrainInterval)
	}
	if cfg.PrefetchMargin != 0 {
		t.Errorf("PrefetchMargin = %d, want explicit 0", cfg.PrefetchMargin)
	}
	if cfg.MaxZoom != 16 {
		t.Errorf("MaxZoom = %d", cfg.MaxZoom)
	}
	// Untouched fields keep their defaults.
	if cfg.RetryLimit != 3 {
		t.Errorf("RetryLimit = %d, want default 3", cfg.RetryLimit)
	}
}

func TestLoadHonorsExplicitZeroes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	err := os.WriteFile(path, []byte(`
max_zoom = 0
disk_cache_bytes = 0
`), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxZoom != 0 {
		t.Errorf("MaxZoom = %d, want explicit 0, not the default", cfg.MaxZoom)
	}
	if cfg.DiskCacheBytes != 0 {
		t.Errorf("DiskCacheBytes = %d, want explicit 0", cfg.DiskCacheBytes)
	}
}

func TestLoadRejectsZeroRetryLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`retry_limit = 0`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("zero retry_limit accepted")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`max_fetches = 8`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SLIPPYMAP_MAX_FETCHES", "2")
	t.Setenv("SLIPPYMAP_DRAIN_INTERVAL", "250ms")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxFetches != 2 {
		t.Errorf("MaxFetches = %d, want env override 2", cfg.MaxFetches)
	}
	if cfg.DrainInterval != 250*time.Millisecond {
		t.Errorf("DrainInterval = %v, want 250ms", cfg.DrainInterval)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("SLIPPYMAP_MAX_ZOOM", "-5")
	if _, err := Load(""); err == nil {
		t.Error("negative zoom range accepted")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`drain_interval = "soon"`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("unparseable duration accepted")
	}
}
