// Package fetch turns cache misses into bounded, deduplicated background
// fetches. Workers resolve tile bytes (disk tier first, then the source),
// decode them and park the results; the UI context collects them with Drain.
package fetch

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	_ "golang.org/x/image/webp"

	"slippymap/internal/cache"
	"slippymap/internal/projection"
	"slippymap/internal/source"
)

// Callback receives the outcome of a fetch. Callbacks run on the context
// that calls Drain, never on a worker.
type Callback func(addr projection.TileAddress, img image.Image, err error)

// Config tunes the queue. Zero values select the defaults.
type Config struct {
	// MaxConcurrent bounds the number of fetches in flight.
	MaxConcurrent int
	// RetryLimit is the total attempt count for transient failures.
	RetryLimit int
	// BackoffBase is the delay before the first retry; it doubles per
	// attempt up to BackoffCap.
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}
	if c.RetryLimit <= 0 {
		c.RetryLimit = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 250 * time.Millisecond
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 5 * time.Second
	}
	return c
}

// task is one live fetch. At most one task exists per key; additional
// requesters attach their callbacks to it.
type task struct {
	id        uuid.UUID
	key       cache.Key
	src       source.Source
	callbacks []Callback
	attempts  int

	// set by the worker before the task is parked for draining
	img image.Image
	err error
}

// Queue is the deduplicating fetch pipeline. Request and Drain are called
// from the UI context; the fetch work itself runs on worker goroutines.
type Queue struct {
	cfg   Config
	cache *cache.TileCache
	log   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	cond   *sync.Cond
	tasks  map[cache.Key]*task // all live tasks, queued through drained-pending
	fifo   []*task             // waiting for a worker, submission order
	done   []*task             // finished, waiting for Drain; unbounded
	closed bool
	wg     sync.WaitGroup
}

func NewQueue(cfg Config, tc *cache.TileCache, log *zap.Logger) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		cfg:    cfg.withDefaults(),
		cache:  tc,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[cache.Key]*task),
	}
	q.cond = sync.NewCond(&q.mu)
	for i := 0; i < q.cfg.MaxConcurrent; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Request schedules a fetch for the tile, or attaches the callback to the
// live task if one already exists for the key. It never blocks.
func (q *Queue) Request(src source.Source, addr projection.TileAddress, cb Callback) {
	key := cache.Key{Source: src.ID(), Addr: addr}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	if t, ok := q.tasks[key]; ok {
		t.callbacks = append(t.callbacks, cb)
		return
	}
	t := &task{id: uuid.New(), key: key, src: src, callbacks: []Callback{cb}}
	q.tasks[key] = t
	q.fifo = append(q.fifo, t)
	q.cond.Signal()
}

// Pending returns the number of live tasks (queued, running, or awaiting
// drain).
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Drain moves up to max completed fetches into the calling context: the
// decoded image is put into the memory tier, then every callback attached
// to the task runs in attachment order. max <= 0 drains everything. Returns
// the number of tasks resolved.
func (q *Queue) Drain(max int) int {
	resolved := 0
	for max <= 0 || resolved < max {
		q.mu.Lock()
		if len(q.done) == 0 {
			q.mu.Unlock()
			break
		}
		t := q.done[0]
		q.done = q.done[1:]
		cbs := t.callbacks
		// The task dies here; a later request for the key starts fresh.
		delete(q.tasks, t.key)
		q.mu.Unlock()

		if t.err == nil {
			q.cache.Put(t.key, t.img)
		} else {
			q.log.Debug("tile fetch failed",
				zap.String("tile", t.key.Addr.String()),
				zap.String("task_id", t.id.String()),
				zap.Int("attempts", t.attempts),
				zap.Error(t.err),
			)
		}
		for _, cb := range cbs {
			cb(t.key.Addr, t.img, t.err)
		}
		resolved++
	}
	return resolved
}

// Close stops the workers and aborts in-flight fetches. Queued tasks are
// dropped; their callbacks are never invoked.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		for len(q.fifo) == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		t := q.fifo[0]
		q.fifo = q.fifo[1:]
		q.mu.Unlock()

		q.run(t)

		q.mu.Lock()
		q.done = append(q.done, t)
		q.mu.Unlock()
	}
}

// run resolves one task: disk tier first, then the source with capped
// exponential backoff on transient failures. On success the raw bytes are
// written to the disk tier; the memory put happens later, during Drain.
func (q *Queue) run(t *task) {
	if data, ok := q.cache.DiskGet(t.key); ok {
		img, err := decode(data)
		if err == nil {
			t.img = img
			return
		}
		// Corrupt file on disk: refetch from the source.
		q.log.Warn("disk cache entry undecodable, refetching",
			zap.String("tile", t.key.Addr.String()),
			zap.Error(err),
		)
	}

	for attempt := 0; ; attempt++ {
		t.attempts = attempt + 1
		data, err := t.src.Resolve(q.ctx, t.key.Addr)
		if err == nil {
			img, derr := decode(data)
			if derr != nil {
				t.err = &DecodeError{Addr: t.key.Addr, Err: derr}
				return
			}
			q.cache.DiskPut(t.key, data)
			t.img = img
			return
		}
		if !retryable(err) || t.attempts >= q.cfg.RetryLimit {
			t.err = err
			return
		}

		delay := q.cfg.BackoffBase << attempt
		if delay > q.cfg.BackoffCap {
			delay = q.cfg.BackoffCap
		}
		q.log.Debug("retrying tile fetch",
			zap.String("tile", t.key.Addr.String()),
			zap.Int("attempt", t.attempts),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		select {
		case <-q.ctx.Done():
			t.err = q.ctx.Err()
			return
		case <-time.After(delay):
		}
	}
}

func decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}
