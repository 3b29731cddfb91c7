package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jaki95/music-web-crawler/internal/browser"
	"github.com/jaki95/music-web-crawler/internal/domain"
)

type Downloader struct {
	searcher PageSearcher
}

func NewDownloader(searcher PageSearcher) *Downloader {
	return &Downloader{searcher: searcher}
}

// Download re-searches the site for target's title and downloads the first
// result matching both title and artist. The search and the click happen
// without releasing the page in between.
func (d *Downloader) Download(ctx context.Context, h *browser.Handle, target domain.Song) (string, error) {
	var filename string
	err := h.Do(ctx, func(p *browser.Page) error {
		results, err := d.searcher.SearchPage(ctx, p, target.Title)
		if err != nil {
			return err
		}

		match, ok := FindMatch(results, target)
		if !ok {
			slog.Info("No matching result", "title", target.Title, "artist", target.Artist, "results", len(results))
			return fmt.Errorf("%w: %s by %s", ErrNotFound, target.Title, target.Artist)
		}

		slog.Info("Downloading song", "title", target.Title, "artist", target.Artist, "index", match.Ref.Index())
		filename, err = p.Download(ctx, match.Ref)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSearchFailed) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrTransferFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	slog.Info("Song downloaded", "title", target.Title, "artist", target.Artist, "filename", filename)
	return filename, nil
}
