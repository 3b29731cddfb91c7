package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jaki95/music-web-crawler/internal/browser"
	"github.com/jaki95/music-web-crawler/internal/catalog"
	"github.com/jaki95/music-web-crawler/internal/registry"
	"github.com/jaki95/music-web-crawler/internal/storage"
	"github.com/jaki95/music-web-crawler/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeInto(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{catalog.ErrNotFound, http.StatusNotFound},
		{storage.ErrFileMissing, http.StatusNotFound},
		{registry.ErrNotFound, http.StatusNotFound},
		{ErrNoFiles, http.StatusNotFound},
		{stream.ErrInvalidRange, http.StatusBadRequest},
		{ErrEmptyQuery, http.StatusBadRequest},
		{ErrInvalidSong, http.StatusBadRequest},
		{browser.ErrSessionUnavailable, http.StatusInternalServerError},
		{catalog.ErrSearchFailed, http.StatusInternalServerError},
		{catalog.ErrTransferFailed, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.expected, statusFor(tt.err))
			assert.Equal(t, tt.expected, statusFor(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}
}

func TestSongFromRequest(t *testing.T) {
	song, extra, err := songFromRequest(map[string]any{
		"title":    "Blue Monday",
		"artist":   "New Order",
		"year":     float64(1983),
		"filename": "client.flac",
	})
	require.NoError(t, err)
	assert.Equal(t, "Blue Monday", song.Title)
	assert.Equal(t, "New Order", song.Artist)
	assert.Equal(t, map[string]any{"year": float64(1983)}, extra)

	_, extra, err = songFromRequest(map[string]any{"title": "T", "artist": ""})
	require.NoError(t, err)
	assert.Nil(t, extra)

	for _, raw := range []map[string]any{
		{},
		{"title": "", "artist": "A"},
		{"title": 42, "artist": "A"},
		{"title": "T"},
	} {
		_, _, err := songFromRequest(raw)
		assert.ErrorIs(t, err, ErrInvalidSong)
	}
}
