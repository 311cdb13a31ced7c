package cache

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DiskCache is the durable tile tier: one immutable file per
// (source, zoom, x, y) under a deterministic path, so a cold process reuses
// a warm cache. Layout: {dir}/{source}/{z}/{x}/{y}.png
//
// Unlike the memory tier it is safe for concurrent use; reads and writes
// happen in fetch worker contexts and may block.
type DiskCache struct {
	mu        sync.Mutex
	dir       string
	budget    int64
	maxAge    time.Duration
	size      int64
	lastSweep time.Time
	log       *zap.Logger
}

// NewDiskCache opens (or creates) a disk tier rooted at dir. budget bounds
// the total bytes and maxAge the entry lifetime; zero disables either bound.
func NewDiskCache(dir string, budget int64, maxAge time.Duration, log *zap.Logger) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	c := &DiskCache{
		dir:       dir,
		budget:    budget,
		maxAge:    maxAge,
		lastSweep: time.Now(),
		log:       log,
	}
	c.size = c.scan()
	return c, nil
}

func (c *DiskCache) path(key Key) string {
	return filepath.Join(c.dir,
		string(key.Source),
		strconv.Itoa(key.Addr.Zoom),
		strconv.Itoa(key.Addr.X),
		strconv.Itoa(key.Addr.Y)+".png",
	)
}

func (c *DiskCache) Get(key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	// Touch so eviction sees the file as recently used.
	now := time.Now()
	_ = os.Chtimes(path, now, now)
	return data, true
}

func (c *DiskCache) Has(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := os.Stat(c.path(key))
	return err == nil
}

func (c *DiskCache) Put(key Key, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		c.log.Warn("disk cache mkdir failed", zap.String("tile", key.Addr.String()), zap.Error(err))
		return
	}

	var existing int64
	if info, err := os.Stat(path); err == nil {
		existing = info.Size()
	}

	// Write atomically
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		c.log.Warn("disk cache write failed", zap.String("tile", key.Addr.String()), zap.Error(err))
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		c.log.Warn("disk cache rename failed", zap.String("tile", key.Addr.String()), zap.Error(err))
		return
	}
	c.size += int64(len(data)) - existing

	if c.needsSweep() {
		c.sweep()
	}
}

func (c *DiskCache) SizeBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *DiskCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.RemoveAll(c.dir); err != nil {
		c.log.Warn("disk cache clear failed", zap.Error(err))
		return
	}
	os.MkdirAll(c.dir, 0o755)
	c.size = 0
}

func (c *DiskCache) needsSweep() bool {
	if c.budget > 0 && c.size > c.budget {
		return true
	}
	return c.maxAge > 0 && time.Since(c.lastSweep) >= c.maxAge
}

type diskEntry struct {
	path  string
	size  int64
	mtime time.Time
}

// removeFile is swapped in tests to exercise eviction failures.
var removeFile = os.Remove

// sweep deletes expired files, then the oldest files until the byte budget
// is satisfied. Files that fail to delete stay in the accounting so c.size
// keeps matching what is actually on disk. Called with the lock held.
func (c *DiskCache) sweep() {
	entries := c.list()
	now := time.Now()
	c.lastSweep = now

	var kept []diskEntry
	var total int64
	for _, e := range entries {
		if c.maxAge > 0 && now.Sub(e.mtime) > c.maxAge && c.remove(e) {
			continue
		}
		kept = append(kept, e)
		total += e.size
	}

	if c.budget > 0 {
		sort.Slice(kept, func(i, j int) bool { return kept[i].mtime.Before(kept[j].mtime) })
		for _, e := range kept {
			if total <= c.budget {
				break
			}
			if c.remove(e) {
				total -= e.size
			}
		}
	}
	c.size = total
}

func (c *DiskCache) remove(e diskEntry) bool {
	if err := removeFile(e.path); err != nil {
		c.log.Warn("disk cache evict failed", zap.String("path", e.path), zap.Error(err))
		return false
	}
	return true
}

func (c *DiskCache) list() []diskEntry {
	var entries []diskEntry
	filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		entries = append(entries, diskEntry{path: path, size: info.Size(), mtime: info.ModTime()})
		return nil
	})
	return entries
}

func (c *DiskCache) scan() int64 {
	var total int64
	for _, e := range c.list() {
		total += e.size
	}
	return total
}
