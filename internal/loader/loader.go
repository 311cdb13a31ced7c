// Package loader is the public contract the map widget talks to: give me
// this tile now if cached, otherwise schedule a fetch and tell me when it
// lands. It composes the tile cache with the fetch queue and maintains the
// advisory pinned/interest sets derived from the viewport.
package loader

import (
	"image"

	"go.uber.org/zap"

	"slippymap/internal/cache"
	"slippymap/internal/fetch"
	"slippymap/internal/projection"
	"slippymap/internal/source"
	"slippymap/internal/viewport"
)

// TileReadyFunc is invoked from DrainCompleted for each freshly resolved
// tile the widget still cares about. err is non-nil for failed tiles, which
// the renderer shows as a placeholder.
type TileReadyFunc func(addr projection.TileAddress, img image.Image, err error)

// Loader is owned by the UI context; all methods must be called from there.
type Loader struct {
	src    source.Source
	cache  *cache.TileCache
	queue  *fetch.Queue
	log    *zap.Logger
	wanted map[cache.Key]struct{}
	ready  TileReadyFunc
}

func New(src source.Source, tc *cache.TileCache, q *fetch.Queue, log *zap.Logger) *Loader {
	return &Loader{
		src:    src,
		cache:  tc,
		queue:  q,
		log:    log,
		wanted: make(map[cache.Key]struct{}),
	}
}

// SetOnTileReady installs the notification hook for tiles that resolve
// after a cache miss.
func (l *Loader) SetOnTileReady(fn TileReadyFunc) {
	l.ready = fn
}

// GetOrSchedule returns the cached tile immediately on a hit. On a miss it
// schedules a background fetch and reports pending; however many callers
// ask before the tile resolves, exactly one fetch runs underneath.
func (l *Loader) GetOrSchedule(addr projection.TileAddress) (image.Image, bool) {
	if !addr.Valid() || addr.Zoom < l.src.MinZoom() || addr.Zoom > l.src.MaxZoom() {
		l.log.Warn("tile address outside source bounds", zap.String("tile", addr.String()))
		return nil, false
	}

	key := cache.Key{Source: l.src.ID(), Addr: addr}
	if img, ok := l.cache.Get(key); ok {
		return img, true
	}

	l.wanted[key] = struct{}{}
	l.queue.Request(l.src, addr, l.completed)
	return nil, false
}

// DrainCompleted moves up to max finished fetches into the UI context,
// populating the cache and firing tile-ready notifications. Call it on the
// host loop's polling interval.
func (l *Loader) DrainCompleted(max int) int {
	return l.queue.Drain(max)
}

// UpdateViewport recomputes the pinned and interest sets from the tiles the
// viewport currently needs. Fetches for tiles that scrolled away are not
// aborted; their results still land in the cache, but no notification fires.
func (l *Loader) UpdateViewport(v *viewport.Viewport) {
	tiles := v.VisibleTiles()
	pinned := make(map[cache.Key]struct{}, len(tiles))
	wanted := make(map[cache.Key]struct{}, len(tiles))
	for _, pt := range tiles {
		key := cache.Key{Source: l.src.ID(), Addr: pt.Addr}
		pinned[key] = struct{}{}
		wanted[key] = struct{}{}
	}
	l.cache.SetPinned(pinned)
	l.wanted = wanted
}

// Close tears down the fetch queue.
func (l *Loader) Close() {
	l.queue.Close()
}

// completed runs during DrainCompleted for every resolution of a key this
// loader requested. The cache put has already happened; this only decides
// whether the widget still wants to hear about it.
func (l *Loader) completed(addr projection.TileAddress, img image.Image, err error) {
	key := cache.Key{Source: l.src.ID(), Addr: addr}
	if _, ok := l.wanted[key]; !ok {
		return
	}
	delete(l.wanted, key)
	if l.ready != nil {
		l.ready(addr, img, err)
	}
}
