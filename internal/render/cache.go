package render

import (
	"bytes"
	"sync"
	"time"

	"snake-arena/internal/game"
)

const (
	DefaultMaxImages     = 64
	ImageTTL             = 2 * time.Second
	MaxConcurrentRenders = 2
)

type cacheKey struct {
	room string
	tick uint64
	size int
}

type cachedImage struct {
	png        []byte
	renderedAt time.Time
}

// Cache keeps recently encoded minimaps with LRU eviction, so viewers
// polling the same room share one render per tick and size.
type Cache struct {
	mu      sync.Mutex
	images  map[cacheKey]*cachedImage
	order   []cacheKey // LRU order (oldest first)
	maxSize int
	ttl     time.Duration

	pending map[cacheKey]chan struct{} // renders in flight
	sem     chan struct{}               // bounds concurrent renders
	now     func() time.Time

	renders int
}

// NewCache creates a minimap cache holding at most maxSize images.
func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxImages
	}
	return &Cache{
		images:  make(map[cacheKey]*cachedImage),
		order:   make([]cacheKey, 0, maxSize),
		maxSize: maxSize,
		ttl:     ImageTTL,
		pending: make(map[cacheKey]chan struct{}),
		sem:     make(chan struct{}, MaxConcurrentRenders),
		now:     time.Now,
	}
}

// PNG returns the encoded minimap of snap for roomCode, rendering it only
// when no fresh copy for the same tick and size is cached. Concurrent
// requests for the same image wait for a single render.
func (c *Cache) PNG(roomCode string, snap game.FullSnapshot, size int) ([]byte, error) {
	key := cacheKey{room: roomCode, tick: snap.Tick, size: ClampSize(size)}

	for {
		c.mu.Lock()
		if img := c.lookup(key); img != nil {
			c.mu.Unlock()
			return img, nil
		}
		wait, busy := c.pending[key]
		if !busy {
			break // still locked
		}
		c.mu.Unlock()
		<-wait
	}
	done := make(chan struct{})
	c.pending[key] = done
	c.mu.Unlock()

	img, err := c.render(snap, key.size)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, key)
	close(done)
	if err != nil {
		return nil, err
	}
	c.renders++
	if _, exists := c.images[key]; !exists {
		if len(c.images) >= c.maxSize {
			c.evict()
		}
		c.order = append(c.order, key)
	}
	c.images[key] = &cachedImage{png: img, renderedAt: c.now()}
	return img, nil
}

func (c *Cache) render(snap game.FullSnapshot, size int) ([]byte, error) {
	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	var buf bytes.Buffer
	if err := WritePNG(&buf, snap, size); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// lookup returns a fresh cached image. Callers hold c.mu.
func (c *Cache) lookup(key cacheKey) []byte {
	cached, ok := c.images[key]
	if !ok {
		return nil
	}
	if c.now().Sub(cached.renderedAt) > c.ttl {
		delete(c.images, key)
		c.dropOrder(key)
		return nil
	}
	return cached.png
}

// evict removes the oldest cached image
func (c *Cache) evict() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.images, oldest)
}

func (c *Cache) dropOrder(key cacheKey) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Size returns the current cache size
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.images)
}

// Renders counts encodes done so far.
func (c *Cache) Renders() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renders
}
