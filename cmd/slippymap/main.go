// Command slippymap is a headless demonstration of the viewer core: it
// builds a viewport from flags, schedules every visible tile through the
// loader and drains fetch results on the configured interval until the view
// is fully resolved. Useful for warming a disk cache before shipping it.
package main

import (
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"slippymap/internal/cache"
	"slippymap/internal/config"
	"slippymap/internal/events"
	"slippymap/internal/fetch"
	"slippymap/internal/loader"
	"slippymap/internal/logger"
	"slippymap/internal/projection"
	"slippymap/internal/source"
	"slippymap/internal/viewport"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to TOML config file")
		lon        = flag.Float64("lon", 13.4050, "viewport center longitude")
		lat        = flag.Float64("lat", 52.5200, "viewport center latitude")
		zoom       = flag.Float64("zoom", 12, "viewport zoom level")
		width      = flag.Int("width", 1024, "viewport width in pixels")
		height     = flag.Int("height", 768, "viewport height in pixels")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	src, err := buildSource(cfg, log)
	if err != nil {
		log.Fatal("failed to build tile source", zap.Error(err))
	}

	tileCache, err := cache.New(cfg.CacheMode, cfg.MemoryCacheBytes, cfg.CacheDir, cfg.DiskCacheBytes, cfg.DiskCacheMaxAge, log)
	if err != nil {
		log.Fatal("failed to initialize cache", zap.Error(err))
	}

	queue := fetch.NewQueue(fetch.Config{
		MaxConcurrent: cfg.MaxFetches,
		RetryLimit:    cfg.RetryLimit,
		BackoffBase:   cfg.BackoffBase,
		BackoffCap:    cfg.BackoffCap,
	}, tileCache, log)

	tiles := loader.New(src, tileCache, queue, log)
	defer tiles.Close()

	v := viewport.New(projection.LonLat{Lon: *lon, Lat: *lat}, *zoom, *width, *height)
	v.SetZoomBounds(float64(src.MinZoom()), float64(src.MaxZoom()))
	v.SetMargin(cfg.PrefetchMargin)

	eventMgr := events.NewManager(log)
	eventMgr.OnViewportChange(func(ev events.ViewportChangeEvent) {
		log.Info("viewport",
			zap.Float64("lon", ev.Center.Lon),
			zap.Float64("lat", ev.Center.Lat),
			zap.Float64("zoom", ev.Zoom),
		)
	})
	eventMgr.TriggerViewportChange(events.ViewportChangeEvent{
		Center: v.Center(),
		Zoom:   v.Zoom(),
		Size:   v.Size(),
	})

	visible := v.VisibleTiles()
	tiles.UpdateViewport(v)

	pending := 0
	failed := 0
	tiles.SetOnTileReady(func(addr projection.TileAddress, _ image.Image, err error) {
		pending--
		if err != nil {
			failed++
			log.Warn("tile unavailable", zap.String("tile", addr.String()), zap.Error(err))
			return
		}
		log.Info("tile ready", zap.String("tile", addr.String()), zap.Int("remaining", pending))
	})

	addrs := uniqueAddrs(visible)
	for _, addr := range addrs {
		if _, ok := tiles.GetOrSchedule(addr); !ok {
			pending++
		}
	}
	log.Info("warming viewport",
		zap.Int("tiles", len(addrs)),
		zap.Int("to_fetch", pending),
		zap.String("source", string(src.ID())),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.DrainInterval)
	defer ticker.Stop()

	for pending > 0 {
		select {
		case <-ticker.C:
			tiles.DrainCompleted(0)
		case <-quit:
			log.Info("interrupted", zap.Int("remaining", pending))
			return
		}
	}

	log.Info("viewport resolved",
		zap.Int("tiles", len(addrs)),
		zap.Int("failed", failed),
		zap.Int64("memory_bytes", tileCache.MemorySizeBytes()),
	)
}

// uniqueAddrs collapses the placement list to distinct tile addresses. A
// viewport wider than the world plane places the same wrapped tile several
// times, but the loader notifies once per address, so the warmer must count
// each address once or its pending count never reaches zero.
func uniqueAddrs(placed []viewport.PlacedTile) []projection.TileAddress {
	addrs := make([]projection.TileAddress, 0, len(placed))
	seen := make(map[projection.TileAddress]struct{}, len(placed))
	for _, pt := range placed {
		if _, ok := seen[pt.Addr]; ok {
			continue
		}
		seen[pt.Addr] = struct{}{}
		addrs = append(addrs, pt.Addr)
	}
	return addrs
}

func buildSource(cfg *config.Config, log *zap.Logger) (source.Source, error) {
	if cfg.TileURL == "placeholder" {
		return source.NewPlaceholder(), nil
	}
	return source.NewHTTP(cfg.TileURL, source.HTTPOptions{
		MinZoom: cfg.MinZoom,
		MaxZoom: cfg.MaxZoom,
	}, log)
}
