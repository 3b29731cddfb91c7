package server

import (
	"errors"
	"net/http"

	"github.com/jaki95/music-web-crawler/internal/catalog"
	"github.com/jaki95/music-web-crawler/internal/registry"
	"github.com/jaki95/music-web-crawler/internal/storage"
	"github.com/jaki95/music-web-crawler/internal/stream"
)

var (
	ErrEmptyQuery  = errors.New("query parameter q is required")
	ErrInvalidSong = errors.New("invalid song")
	ErrNoFiles     = errors.New("no files found")
)

// statusFor maps an adapter error to the HTTP status returned to the client.
func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, storage.ErrFileMissing),
		errors.Is(err, registry.ErrNotFound),
		errors.Is(err, ErrNoFiles):
		return http.StatusNotFound
	case errors.Is(err, stream.ErrInvalidRange),
		errors.Is(err, ErrEmptyQuery),
		errors.Is(err, ErrInvalidSong):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
