package browser

import (
	"context"
	"fmt"
)

// Driver is the low-level automation capability behind a session.
type Driver interface {
	// Navigate loads url and returns once the page's network activity has settled.
	Navigate(ctx context.Context, url string) error
	// Search submits query through the site's search UI and returns the rendered document HTML.
	Search(ctx context.Context, query string) (string, error)
	// Download triggers the download control of the result at index and returns the
	// name of the completed file in the download directory.
	Download(ctx context.Context, index int) (string, error)
	Close() error
}

// ElementRef points at one search result on the live page. It is only valid
// for the search that produced it.
type ElementRef struct {
	generation uint64
	index      int
	valid      bool
}

// Index returns the position of the referenced result in document order.
func (r ElementRef) Index() int {
	return r.index
}

// Page is the shared browser page. It is only reachable through Handle.Do.
type Page struct {
	driver     Driver
	generation uint64
}

// Search runs query on the page. References minted before the call become stale.
func (p *Page) Search(ctx context.Context, query string) (string, error) {
	p.generation++
	return p.driver.Search(ctx, query)
}

// Ref returns a reference to the result at index for the current page state.
func (p *Page) Ref(index int) ElementRef {
	return ElementRef{generation: p.generation, index: index, valid: true}
}

// Download clicks the download control of ref and waits for the file.
func (p *Page) Download(ctx context.Context, ref ElementRef) (string, error) {
	if !ref.valid || ref.generation != p.generation {
		return "", fmt.Errorf("%w: result %d", ErrStaleRef, ref.index)
	}
	return p.driver.Download(ctx, ref.index)
}
