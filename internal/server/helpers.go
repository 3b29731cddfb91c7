package server

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jaki95/music-web-crawler/internal/domain"
	"github.com/jaki95/music-web-crawler/internal/registry"
)

// songFromRequest splits the client's song object into the identity used for
// matching and the remaining fields to echo back.
func songFromRequest(raw map[string]any) (domain.Song, map[string]any, error) {
	title, ok := raw["title"].(string)
	if !ok || strings.TrimSpace(title) == "" {
		return domain.Song{}, nil, fmt.Errorf("%w: title is required", ErrInvalidSong)
	}
	artist, ok := raw["artist"].(string)
	if !ok {
		return domain.Song{}, nil, fmt.Errorf("%w: artist is required", ErrInvalidSong)
	}

	extra := make(map[string]any)
	for k, v := range raw {
		switch k {
		case "title", "artist", "id", "filename":
			continue
		}
		extra[k] = v
	}
	if len(extra) == 0 {
		extra = nil
	}

	return domain.Song{Title: title, Artist: artist}, extra, nil
}

// resolveStreamFile finds the stored file for id. Unknown ids fall back to the
// first stored file with the configured extension unless disabled.
func (s *Server) resolveStreamFile(ctx context.Context, id string) (string, error) {
	if filename, ok := s.registry.Lookup(id); ok {
		return filename, nil
	}

	if s.cfg.Stream.DisableFallback {
		return "", fmt.Errorf("%w: %s", ErrNoFiles, id)
	}

	files, err := s.store.List(ctx, s.cfg.FileExtension)
	if err != nil {
		return "", fmt.Errorf("listing stored files: %w", err)
	}
	if len(files) == 0 {
		return "", ErrNoFiles
	}
	return files[0], nil
}

// parsePagination reads page and pageSize query parameters.
func parsePagination(c *gin.Context) (int, int) {
	page := 1
	pageSize := registry.DefaultPageSize

	if p := c.Query("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}

	if ps := c.Query("pageSize"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 && parsed <= registry.MaxPageSize {
			pageSize = parsed
		}
	}

	return page, pageSize
}
