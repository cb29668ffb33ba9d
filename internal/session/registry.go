package session

import (
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Registry keeps one controller per visitor, bounded by size. Evicted
// controllers are closed, which releases their media.
type Registry struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *Controller]
	newFn func(id string) *Controller
}

func NewRegistry(size int, newFn func(id string) *Controller) (*Registry, error) {
	cache, err := lru.NewWithEvict(size, func(id string, c *Controller) {
		slog.Debug("session evicted", "session", id)
		c.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}
	return &Registry{cache: cache, newFn: newFn}, nil
}

// GetOrCreate returns the visitor's controller, creating it on first use.
func (r *Registry) GetOrCreate(id string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.cache.Get(id); ok {
		return c
	}
	c := r.newFn(id)
	r.cache.Add(id, c)
	return c
}

func (r *Registry) Get(id string) (*Controller, bool) {
	return r.cache.Get(id)
}

func (r *Registry) Len() int {
	return r.cache.Len()
}

// Close closes every controller.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Purge()
}
