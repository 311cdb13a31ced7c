package loader

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"slippymap/internal/cache"
	"slippymap/internal/fetch"
	"slippymap/internal/projection"
	"slippymap/internal/source"
	"slippymap/internal/viewport"
)

type stubSource struct {
	mu    sync.Mutex
	calls int
	data  []byte
}

func (s *stubSource) ID() source.ID { return "stub" }
func (s *stubSource) TileSize() int { return 256 }
func (s *stubSource) MinZoom() int  { return 0 }
func (s *stubSource) MaxZoom() int  { return 19 }

func (s *stubSource) Resolve(context.Context, projection.TileAddress) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.data, nil
}

func (s *stubSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestLoader(t *testing.T) (*Loader, *stubSource, *cache.TileCache) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	src := &stubSource{data: buf.Bytes()}

	tc, err := cache.New("memory", 1<<20, "", 0, 0, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	q := fetch.NewQueue(fetch.Config{}, tc, zap.NewNop())
	l := New(src, tc, q, zap.NewNop())
	t.Cleanup(l.Close)
	return l, src, tc
}

// drainUntil polls DrainCompleted until n tasks have resolved.
func drainUntil(t *testing.T, l *Loader, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	resolved := 0
	for resolved < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out draining, resolved %d of %d", resolved, n)
		}
		resolved += l.DrainCompleted(0)
		time.Sleep(2 * time.Millisecond)
	}
}

func TestGetOrScheduleResolvesThenHits(t *testing.T) {
	l, src, _ := newTestLoader(t)
	addr := projection.TileAddress{Zoom: 7, X: 60, Y: 40}

	var readyCount int
	l.SetOnTileReady(func(a projection.TileAddress, img image.Image, err error) {
		if err != nil {
			t.Errorf("tile %s failed: %v", a, err)
		}
		readyCount++
	})

	if img, ok := l.GetOrSchedule(addr); ok || img != nil {
		t.Fatal("cold cache reported a hit")
	}
	drainUntil(t, l, 1)

	if readyCount != 1 {
		t.Fatalf("readyCount = %d, want 1", readyCount)
	}

	// Second ask is a pure memory hit: no new fetch.
	img, ok := l.GetOrSchedule(addr)
	if !ok || img == nil {
		t.Fatal("resolved tile not served from cache")
	}
	if src.callCount() != 1 {
		t.Errorf("source hit %d times, want 1", src.callCount())
	}
}

func TestRepeatedScheduleBeforeResolutionFetchesOnce(t *testing.T) {
	l, src, _ := newTestLoader(t)
	addr := projection.TileAddress{Zoom: 9, X: 5, Y: 6}

	var readyCount int
	l.SetOnTileReady(func(projection.TileAddress, image.Image, error) { readyCount++ })

	for i := 0; i < 3; i++ {
		l.GetOrSchedule(addr)
	}
	drainUntil(t, l, 1)

	if src.callCount() != 1 {
		t.Errorf("source hit %d times for one key, want 1", src.callCount())
	}
	// The widget is told once per tile, not once per ask.
	if readyCount != 1 {
		t.Errorf("readyCount = %d, want 1", readyCount)
	}
}

func TestStaleTileSuppressesNotificationButStillCaches(t *testing.T) {
	l, _, tc := newTestLoader(t)
	addr := projection.TileAddress{Zoom: 12, X: 2200, Y: 1343}

	var readyCount int
	l.SetOnTileReady(func(projection.TileAddress, image.Image, error) { readyCount++ })

	l.GetOrSchedule(addr)

	// The viewport moves away before the fetch lands.
	v := viewport.New(projection.LonLat{Lon: -74, Lat: 40.7}, 12, 512, 512)
	l.UpdateViewport(v)

	drainUntil(t, l, 1)

	if readyCount != 0 {
		t.Errorf("readyCount = %d for a tile that scrolled away, want 0", readyCount)
	}
	if _, ok := tc.Get(cache.Key{Source: "stub", Addr: addr}); !ok {
		t.Error("stale result was not cached for later reuse")
	}
}

func TestOutOfBoundsAddressNeverFetches(t *testing.T) {
	l, src, _ := newTestLoader(t)

	for _, addr := range []projection.TileAddress{
		{Zoom: 25, X: 0, Y: 0},
		{Zoom: 3, X: 8, Y: 0},
		{Zoom: -1, X: 0, Y: 0},
	} {
		if _, ok := l.GetOrSchedule(addr); ok {
			t.Errorf("invalid address %v reported a hit", addr)
		}
	}
	time.Sleep(10 * time.Millisecond)
	l.DrainCompleted(0)
	if src.callCount() != 0 {
		t.Errorf("source hit %d times for invalid addresses, want 0", src.callCount())
	}
}

func TestUpdateViewportPinsVisibleTiles(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 16, 16))); err != nil {
		t.Fatal(err)
	}
	src := &stubSource{data: buf.Bytes()}

	// Tiny budget: room for exactly two 16x16 tiles.
	tc, err := cache.New("memory", 2048, "", 0, 0, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	q := fetch.NewQueue(fetch.Config{}, tc, zap.NewNop())
	l := New(src, tc, q, zap.NewNop())
	t.Cleanup(l.Close)

	v := viewport.New(projection.LonLat{Lon: 0, Lat: 0}, 2, 256, 256)
	v.SetMargin(0)
	visible := v.VisibleTiles()
	l.UpdateViewport(v)

	pinnedKey := cache.Key{Source: "stub", Addr: visible[0].Addr}
	tc.Put(pinnedKey, image.NewRGBA(image.Rect(0, 0, 16, 16)))

	// Flood the cache; the pinned visible tile must survive.
	for i := 0; i < 8; i++ {
		tc.Put(cache.Key{Source: "stub", Addr: projection.TileAddress{Zoom: 10, X: i, Y: 0}},
			image.NewRGBA(image.Rect(0, 0, 16, 16)))
	}
	if _, ok := tc.Get(pinnedKey); !ok {
		t.Error("visible tile evicted despite being pinned")
	}
}
