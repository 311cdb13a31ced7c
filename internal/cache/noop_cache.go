package cache

import "image"

// NoopCache is a disabled memory tier: every lookup misses and nothing is
// retained.
type NoopCache struct{}

func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

func (c *NoopCache) Get(key Key) (image.Image, bool) { return nil, false }
func (c *NoopCache) Put(key Key, img image.Image) bool { return false }
func (c *NoopCache) SetPinned(keys map[Key]struct{})  {}
func (c *NoopCache) SizeBytes() int64                 { return 0 }
func (c *NoopCache) Len() int                         { return 0 }
func (c *NoopCache) Clear()                           {}
