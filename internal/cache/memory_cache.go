package cache

import (
	"container/list"
	"image"
	"time"

	"go.uber.org/zap"
)

type entry struct {
	key        Key
	img        image.Image
	size       int64
	lastAccess time.Time
}

// MemoryCache is the in-memory tile tier: an LRU bounded by a byte budget.
// Every mutation happens on the single UI context, so it carries no lock;
// worker contexts hand decoded tiles over through the fetch queue instead of
// touching it directly.
type MemoryCache struct {
	budget int64
	size   int64
	items  map[Key]*list.Element
	lru    *list.List
	pinned map[Key]struct{}
	log    *zap.Logger
}

// NewMemoryCache creates a memory tier holding at most budget bytes of
// decoded tiles. A budget of zero or less disables the bound.
func NewMemoryCache(budget int64, log *zap.Logger) *MemoryCache {
	return &MemoryCache{
		budget: budget,
		items:  make(map[Key]*list.Element),
		lru:    list.New(),
		pinned: make(map[Key]struct{}),
		log:    log,
	}
}

func (c *MemoryCache) Get(key Key) (image.Image, bool) {
	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	ent := elem.Value.(*entry)
	ent.lastAccess = time.Now()
	c.lru.MoveToFront(elem)
	return ent.img, true
}

func (c *MemoryCache) Put(key Key, img image.Image) bool {
	size := imageBytes(img)
	if c.budget > 0 && size > c.budget {
		c.log.Debug("tile exceeds whole memory budget, keeping on disk only",
			zap.String("tile", key.Addr.String()),
			zap.Int64("bytes", size),
		)
		return false
	}

	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*entry)
		c.size += size - ent.size
		ent.img = img
		ent.size = size
		ent.lastAccess = time.Now()
		c.lru.MoveToFront(elem)
		c.evict()
		return true
	}

	ent := &entry{key: key, img: img, size: size, lastAccess: time.Now()}
	c.items[key] = c.lru.PushFront(ent)
	c.size += size
	c.evict()
	return true
}

// evict removes unpinned least-recently-used entries until the budget is
// satisfied. If everything left is pinned the budget may be exceeded.
func (c *MemoryCache) evict() {
	if c.budget <= 0 {
		return
	}
	for elem := c.lru.Back(); elem != nil && c.size > c.budget; {
		prev := elem.Prev()
		ent := elem.Value.(*entry)
		if _, isPinned := c.pinned[ent.key]; !isPinned {
			c.lru.Remove(elem)
			delete(c.items, ent.key)
			c.size -= ent.size
		}
		elem = prev
	}
}

func (c *MemoryCache) SetPinned(keys map[Key]struct{}) {
	if keys == nil {
		keys = make(map[Key]struct{})
	}
	c.pinned = keys
}

func (c *MemoryCache) SizeBytes() int64 { return c.size }
func (c *MemoryCache) Len() int         { return c.lru.Len() }

func (c *MemoryCache) Clear() {
	c.items = make(map[Key]*list.Element)
	c.lru = list.New()
	c.size = 0
}

// imageBytes estimates the resident size of a decoded tile: four bytes per
// pixel regardless of the source encoding.
func imageBytes(img image.Image) int64 {
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}
