// Package catalog turns the site's search page into song results and downloads.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jaki95/music-web-crawler/config"
	"github.com/jaki95/music-web-crawler/internal/browser"
	"github.com/jaki95/music-web-crawler/internal/domain"
)

var (
	ErrSearchFailed   = errors.New("search failed")
	ErrNotFound       = errors.New("song not found")
	ErrTransferFailed = errors.New("download failed")
)

// Result is one search hit. Ref is only usable on the page that produced it.
type Result struct {
	domain.Song
	Ref browser.ElementRef `json:"-"`
}

// PageSearcher searches a page the caller already holds.
type PageSearcher interface {
	SearchPage(ctx context.Context, page *browser.Page, query string) ([]Result, error)
}

type Searcher struct {
	selectors config.Selectors
}

func NewSearcher(selectors config.Selectors) *Searcher {
	return &Searcher{selectors: selectors}
}

// Search acquires the session handle and runs query.
func (s *Searcher) Search(ctx context.Context, h *browser.Handle, query string) ([]Result, error) {
	var results []Result
	err := h.Do(ctx, func(p *browser.Page) error {
		var err error
		results, err = s.SearchPage(ctx, p, query)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrSearchFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	return results, nil
}

func (s *Searcher) SearchPage(ctx context.Context, page *browser.Page, query string) ([]Result, error) {
	slog.Debug("Searching site", "query", query)

	html, err := page.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	results, err := ParseResults(html, s.selectors, page.Ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	slog.Info("Search completed", "query", query, "results", len(results))
	return results, nil
}

// ParseResults extracts results from html in document order. ref mints the
// reference for the item at each position.
func ParseResults(html string, selectors config.Selectors, ref func(int) browser.ElementRef) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing results page: %w", err)
	}

	results := []Result{}
	doc.Find(selectors.ResultItem).Each(func(i int, item *goquery.Selection) {
		results = append(results, Result{
			Song: domain.Song{
				Title:  strings.TrimSpace(item.Find(selectors.Title).First().Text()),
				Artist: strings.TrimSpace(item.Find(selectors.Artist).First().Text()),
			},
			Ref: ref(i),
		})
	})
	return results, nil
}

// Songs strips the page references from results.
func Songs(results []Result) []domain.Song {
	songs := make([]domain.Song, len(results))
	for i, r := range results {
		songs[i] = r.Song
	}
	return songs
}

// FindMatch returns the first result whose title and artist both equal target.
func FindMatch(results []Result, target domain.Song) (Result, bool) {
	for _, r := range results {
		if r.Matches(target) {
			return r, true
		}
	}
	return Result{}, false
}
