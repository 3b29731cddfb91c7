package browser

import (
	"context"
	"sync"
)

// Handle owns the session's page. Every site interaction goes through Do, so
// at most one of them is in flight at a time.
type Handle struct {
	sem  chan struct{}
	page *Page

	mu     sync.Mutex
	closed bool
}

// NewHandle wraps driver in a handle.
func NewHandle(driver Driver) *Handle {
	return &Handle{
		sem:  make(chan struct{}, 1),
		page: &Page{driver: driver},
	}
}

// Do runs fn with exclusive access to the page.
func (h *Handle) Do(ctx context.Context, fn func(p *Page) error) error {
	select {
	case h.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-h.sem }()

	if h.isClosed() {
		return ErrSessionClosed
	}
	return fn(h.page)
}

func (h *Handle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// close waits for the in-flight interaction, if any, and closes the driver.
func (h *Handle) close() error {
	h.sem <- struct{}{}
	defer func() { <-h.sem }()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.page.driver.Close()
}
