package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	errspkg "github.com/drblury/eventpub/internal/runtime/errors"
	"github.com/drblury/eventpub/internal/runtime/transport"
)

// handleEntry is one topic's slot in the cache. ready is closed once the open
// finished; handle and err are only read after that.
type handleEntry struct {
	ready  chan struct{}
	handle transport.Handle
	err    error
}

// handleCache keeps one open transport handle per topic id. Entries are never
// evicted; closeAll releases them all.
type handleCache struct {
	client transport.Client

	mu      sync.Mutex
	entries map[string]*handleEntry
	open    int
	closed  bool

	// onChange observes the number of open handles.
	onChange func(open int)
	// onOpen is called after a new handle was stored.
	onOpen func(path transport.TopicPath)
}

func newHandleCache(client transport.Client) *handleCache {
	return &handleCache{
		client:  client,
		entries: make(map[string]*handleEntry),
	}
}

// getOrCreate returns the handle for topicID, opening it on first use.
// Concurrent first use opens exactly one handle. Opening happens outside the
// cache lock, so topics that are already open are never held up by it, and
// every caller stops waiting when its ctx is done.
func (c *handleCache) getOrCreate(ctx context.Context, topicID string) (transport.Handle, transport.TopicPath, error) {
	path := c.client.TopicPath(topicID)

	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, path, errspkg.ErrPublisherClosed
		}
		e, waiting := c.entries[topicID]
		if !waiting {
			e = &handleEntry{ready: make(chan struct{})}
			c.entries[topicID] = e
			go c.openEntry(ctx, topicID, path, e)
		}
		c.mu.Unlock()

		select {
		case <-e.ready:
		case <-ctx.Done():
			return nil, path, fmt.Errorf("%w: open %s: %w", errspkg.ErrTransport, path, ctx.Err())
		}

		if e.err == nil {
			return e.handle, path, nil
		}
		// The caller that started the open gave up; try again with our own ctx.
		if waiting && isContextError(e.err) && ctx.Err() == nil {
			continue
		}
		return nil, path, e.err
	}
}

// openEntry opens the handle for e and publishes the outcome. Failed opens
// are dropped from the cache so the next call retries.
func (c *handleCache) openEntry(ctx context.Context, topicID string, path transport.TopicPath, e *handleEntry) {
	h, err := c.client.OpenHandle(ctx, path)
	if err == nil && h == nil {
		err = fmt.Errorf("%w: transport returned no handle for %s", errspkg.ErrTransport, path)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer close(e.ready)

	if err == nil && c.closed {
		_ = h.Close()
		err = errspkg.ErrPublisherClosed
	}
	if err != nil {
		e.err = err
		if c.entries[topicID] == e {
			delete(c.entries, topicID)
		}
		return
	}

	e.handle = h
	c.open++
	if c.onOpen != nil {
		c.onOpen(path)
	}
	if c.onChange != nil {
		c.onChange(c.open)
	}
}

// closeAll closes every open handle and marks the cache closed. Close errors
// are joined. Handles still opening are closed by their opener. A second call
// is a no-op.
func (c *handleCache) closeAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	for topicID, e := range c.entries {
		select {
		case <-e.ready:
		default:
			continue
		}
		if e.handle == nil {
			continue
		}
		if err := e.handle.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", topicID, err))
		}
	}
	c.entries = make(map[string]*handleEntry)
	c.open = 0

	if c.onChange != nil {
		c.onChange(0)
	}
	return errors.Join(errs...)
}

// has reports whether topicID has an open handle.
func (c *handleCache) has(topicID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[topicID]
	if !ok {
		return false
	}
	select {
	case <-e.ready:
		return e.handle != nil
	default:
		return false
	}
}

func (c *handleCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *handleCache) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
