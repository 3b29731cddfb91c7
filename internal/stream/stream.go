// Package stream serves stored song files with byte-range support.
package stream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jaki95/music-web-crawler/internal/storage"
)

type Streamer struct {
	store       storage.Storage
	contentType string
}

func New(store storage.Storage, contentType string) *Streamer {
	return &Streamer{store: store, contentType: contentType}
}

// Stream writes name to w. With an empty rangeHeader the whole file is sent
// with 200; otherwise the requested span is sent with 206. Nothing is written
// to w when an error is returned before the body starts.
func (s *Streamer) Stream(ctx context.Context, w http.ResponseWriter, name, rangeHeader string) error {
	info, err := s.store.Stat(ctx, name)
	if err != nil {
		return err
	}

	status := http.StatusOK
	offset, length := int64(0), info.Size
	var rng Range

	if rangeHeader != "" {
		rng, err = ParseRange(rangeHeader, info.Size)
		if err != nil {
			return err
		}
		status = http.StatusPartialContent
		offset, length = rng.Start, rng.Length()
	}

	body, err := s.store.OpenRange(ctx, name, offset, length)
	if err != nil {
		return err
	}
	defer body.Close()

	header := w.Header()
	header.Set("Content-Type", s.contentType)
	header.Set("Accept-Ranges", "bytes")
	header.Set("Content-Length", strconv.FormatInt(length, 10))
	if status == http.StatusPartialContent {
		header.Set("Content-Range", rng.ContentRange(info.Size))
	}
	w.WriteHeader(status)

	n, err := io.Copy(w, body)
	if err != nil {
		slog.Warn("Stream interrupted", "filename", name, "written", n, "expected", length, "error", err)
		return fmt.Errorf("streaming %s: %w", name, err)
	}

	slog.Debug("Streamed file", "filename", name, "status", status, "bytes", n)
	return nil
}
