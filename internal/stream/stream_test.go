package stream

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/jaki95/music-web-crawler/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		size     int64
		expected Range
		wantErr  bool
	}{
		{"closed range", "bytes=100-199", 1000, Range{100, 199}, false},
		{"open end", "bytes=100-", 1000, Range{100, 999}, false},
		{"first byte", "bytes=0-0", 1000, Range{0, 0}, false},
		{"end clamped", "bytes=900-5000", 1000, Range{900, 999}, false},
		{"last byte", "bytes=999-", 1000, Range{999, 999}, false},
		{"start at size", "bytes=1000-", 1000, Range{}, true},
		{"start beyond size", "bytes=2000-2100", 1000, Range{}, true},
		{"end before start", "bytes=200-100", 1000, Range{}, true},
		{"suffix range", "bytes=-500", 1000, Range{}, true},
		{"multiple ranges", "bytes=0-10,20-30", 1000, Range{}, true},
		{"wrong unit", "items=0-10", 1000, Range{}, true},
		{"garbage", "bytes=abc-def", 1000, Range{}, true},
		{"missing dash", "bytes=100", 1000, Range{}, true},
		{"empty file", "bytes=0-", 0, Range{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseRange(tt.header, tt.size)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, r)
		})
	}
}

func newTestStreamer(t *testing.T) (*Streamer, []byte) {
	t.Helper()
	dir := t.TempDir()

	content := make([]byte, 1000)
	for i := range content {
		content[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "song.flac"), content, 0644))

	store, err := storage.NewLocalFileStorage(dir)
	require.NoError(t, err)
	return New(store, "audio/flac"), content
}

func TestStreamFull(t *testing.T) {
	s, content := newTestStreamer(t)
	w := httptest.NewRecorder()

	err := s.Stream(context.Background(), w, "song.flac", "")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1000", w.Header().Get("Content-Length"))
	assert.Equal(t, "audio/flac", w.Header().Get("Content-Type"))
	assert.Equal(t, "bytes", w.Header().Get("Accept-Ranges"))
	assert.Empty(t, w.Header().Get("Content-Range"))
	assert.True(t, bytes.Equal(content, w.Body.Bytes()))
}

func TestStreamPartial(t *testing.T) {
	s, content := newTestStreamer(t)

	tests := []struct {
		header       string
		contentRange string
		start, end   int
	}{
		{"bytes=100-199", "bytes 100-199/1000", 100, 199},
		{"bytes=900-", "bytes 900-999/1000", 900, 999},
		{"bytes=950-5000", "bytes 950-999/1000", 950, 999},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			w := httptest.NewRecorder()
			err := s.Stream(context.Background(), w, "song.flac", tt.header)
			require.NoError(t, err)

			assert.Equal(t, http.StatusPartialContent, w.Code)
			assert.Equal(t, tt.contentRange, w.Header().Get("Content-Range"))
			assert.Equal(t, "bytes", w.Header().Get("Accept-Ranges"))
			assert.Equal(t, "audio/flac", w.Header().Get("Content-Type"))
			assert.Equal(t, len(content[tt.start:tt.end+1]), w.Body.Len())
			assert.Equal(t, w.Header().Get("Content-Length"), strconv.Itoa(w.Body.Len()))
			assert.True(t, bytes.Equal(content[tt.start:tt.end+1], w.Body.Bytes()))
		})
	}
}

func TestStreamErrors(t *testing.T) {
	s, _ := newTestStreamer(t)

	t.Run("missing file", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := s.Stream(context.Background(), w, "missing.flac", "")
		assert.ErrorIs(t, err, storage.ErrFileMissing)
		assert.Equal(t, 0, w.Body.Len())
		assert.Empty(t, w.Header().Get("Content-Type"))
	})

	t.Run("invalid range", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := s.Stream(context.Background(), w, "song.flac", "bytes=5000-")
		assert.ErrorIs(t, err, ErrInvalidRange)
		assert.Equal(t, 0, w.Body.Len())
		assert.Empty(t, w.Header().Get("Content-Type"))
	})
}
