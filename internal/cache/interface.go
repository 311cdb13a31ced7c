// Package cache implements the two-tier tile store: a byte-bounded in-memory
// LRU of decoded images and a durable on-disk tier of raw tile bytes.
package cache

import (
	"image"

	"slippymap/internal/projection"
	"slippymap/internal/source"
)

// Key identifies one cache entry. The source ID namespaces the tile address
// so tiles from different sources never collide.
type Key struct {
	Source source.ID
	Addr   projection.TileAddress
}

// Memory is the contract of the in-memory tier. Implementations are owned by
// the UI context and must only be touched from there.
type Memory interface {
	Get(key Key) (image.Image, bool)
	// Put stores a decoded tile, evicting unpinned entries as needed. It
	// reports whether the tile was actually kept in memory; an entry larger
	// than the whole budget is not.
	Put(key Key, img image.Image) bool
	// SetPinned replaces the advisory set of eviction-exempt keys. It is
	// recomputed by the loader whenever the viewport changes - the cache
	// does not track references itself.
	SetPinned(keys map[Key]struct{})
	SizeBytes() int64
	Len() int
	Clear()
}
