package agent

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// maxCachedThreads is the size threshold past which the whole cache is
// reset. The reset is an unconditional full clear, not an LRU eviction;
// intentionally coarse, since a dropped mapping only costs one extra
// thread-creation round trip.
const maxCachedThreads = 100

// ThreadCreator is the single backend operation the correlator needs.
// Implemented by *Client.
type ThreadCreator interface {
	CreateThread(ctx context.Context) (string, error)
}

// Correlator maps a conversation id to the backend thread that carries
// its memory. Mappings are created lazily on first resolve and cached
// for the conversation's lifetime.
type Correlator struct {
	backend ThreadCreator
	group   singleflight.Group

	mu      sync.RWMutex
	threads map[string]string
}

// NewCorrelator creates an empty Correlator over the given backend.
func NewCorrelator(backend ThreadCreator) *Correlator {
	return &Correlator{
		backend: backend,
		threads: make(map[string]string),
	}
}

// Resolve returns the thread id for a conversation, creating one on the
// backend if no mapping is cached. Concurrent calls for the same
// conversation are collapsed into a single backend round trip.
func (c *Correlator) Resolve(ctx context.Context, conversationID string) (string, error) {
	c.mu.RLock()
	threadID, ok := c.threads[conversationID]
	c.mu.RUnlock()
	if ok {
		return threadID, nil
	}

	v, err, _ := c.group.Do(conversationID, func() (any, error) {
		// Re-check under the group: a concurrent caller may have
		// populated the mapping before we were admitted.
		c.mu.RLock()
		id, ok := c.threads[conversationID]
		c.mu.RUnlock()
		if ok {
			return id, nil
		}

		id, err := c.backend.CreateThread(ctx)
		if err != nil {
			return "", err
		}

		c.mu.Lock()
		if len(c.threads) > maxCachedThreads {
			slog.Info("thread cache over limit, clearing", "size", len(c.threads))
			c.threads = make(map[string]string)
		}
		c.threads[conversationID] = id
		c.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached mapping for a conversation, forcing the
// next Resolve to create a fresh thread. Used after backend errors that
// indicate the thread is gone.
func (c *Correlator) Invalidate(conversationID string) {
	c.mu.Lock()
	delete(c.threads, conversationID)
	c.mu.Unlock()
}

// ClearAll resets the entire cache.
func (c *Correlator) ClearAll() {
	c.mu.Lock()
	c.threads = make(map[string]string)
	c.mu.Unlock()
}

// Size returns the number of cached mappings.
func (c *Correlator) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.threads)
}
