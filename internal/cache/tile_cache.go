package cache

import (
	"image"

	"go.uber.org/zap"
)

// TileCache combines the memory and disk tiers behind one object with an
// explicit lifecycle: created once at startup, torn down with the widget.
//
// The split between the tiers follows the concurrency model: Get/Put touch
// only the memory tier and must be called from the UI context, while
// DiskGet/DiskPut are for fetch workers. A disk hit is promoted into memory
// when its decoded image flows back through the drain cycle.
type TileCache struct {
	mem  Memory
	disk *DiskCache
	log  *zap.Logger
}

func NewTileCache(mem Memory, disk *DiskCache, log *zap.Logger) *TileCache {
	return &TileCache{mem: mem, disk: disk, log: log}
}

// Get returns the decoded tile from the memory tier. UI context only.
func (c *TileCache) Get(key Key) (image.Image, bool) {
	return c.mem.Get(key)
}

// Put stores a decoded tile in the memory tier. UI context only; the raw
// bytes were already written to disk by the fetch worker.
func (c *TileCache) Put(key Key, img image.Image) {
	c.mem.Put(key, img)
}

// SetPinned forwards the advisory pinned set to the memory tier.
func (c *TileCache) SetPinned(keys map[Key]struct{}) {
	c.mem.SetPinned(keys)
}

// DiskGet returns the raw bytes of a tile from the disk tier, if present.
// Worker contexts only; the read may block.
func (c *TileCache) DiskGet(key Key) ([]byte, bool) {
	if c.disk == nil {
		return nil, false
	}
	return c.disk.Get(key)
}

// DiskPut writes raw tile bytes to the disk tier. Worker contexts only.
func (c *TileCache) DiskPut(key Key, data []byte) {
	if c.disk == nil {
		return
	}
	c.disk.Put(key, data)
}

func (c *TileCache) MemorySizeBytes() int64 { return c.mem.SizeBytes() }

func (c *TileCache) Clear() {
	c.mem.Clear()
	if c.disk != nil {
		c.disk.Clear()
	}
}
