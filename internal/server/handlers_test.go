package server

import (
	"bytes"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/jaki95/music-web-crawler/internal/browser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownload(t *testing.T) {
	site := &fakeSite{songs: catalogSongs}
	server, dir := newTestServer(t, site)

	body := map[string]any{
		"song": map[string]any{
			"title":  "Blue Monday",
			"artist": "Orkestra",
			"album":  "Covers",
			"id":     "client-id",
		},
	}
	rr := doRequest(t, server, "POST", "/api/download", body, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var response DownloadResponse
	require.NoError(t, decodeInto(rr.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Equal(t, "Blue Monday", response.Song["title"])
	assert.Equal(t, "Orkestra", response.Song["artist"])
	assert.Equal(t, "Covers", response.Song["album"])
	assert.Equal(t, "download-1.flac", response.Song["filename"])

	id, ok := response.Song["id"].(string)
	require.True(t, ok)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)

	// The second result is the first exact match.
	assert.Equal(t, []int{1}, site.downloads)
	assert.FileExists(t, filepath.Join(dir, "download-1.flac"))

	filename, ok := server.registry.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, "download-1.flac", filename)
}

func TestDownloadErrors(t *testing.T) {
	tests := []struct {
		name           string
		site           *fakeSite
		body           any
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "no match",
			site:           &fakeSite{songs: catalogSongs},
			body:           map[string]any{"song": map[string]any{"title": "Blue Monday", "artist": "Someone Else"}},
			expectedStatus: http.StatusNotFound,
			expectedError:  "Song not found",
		},
		{
			name:           "missing song",
			site:           &fakeSite{},
			body:           map[string]any{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing title",
			site:           &fakeSite{},
			body:           map[string]any{"song": map[string]any{"artist": "New Order"}},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid json",
			site:           &fakeSite{},
			body:           "invalid json",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "session unavailable",
			site:           &fakeSite{launchErr: errors.New("no chrome")},
			body:           map[string]any{"song": map[string]any{"title": "Blue Monday", "artist": "New Order"}},
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "transfer failed",
			site:           &fakeSite{songs: catalogSongs, downloadErr: errors.New("download cancelled")},
			body:           map[string]any{"song": map[string]any{"title": "Blue Monday", "artist": "New Order"}},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer(t, tt.site)

			rr := doRequest(t, server, "POST", "/api/download", tt.body, nil)
			assert.Equal(t, tt.expectedStatus, rr.Code)

			response := decode(t, rr)
			assert.Equal(t, false, response["success"])
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, response["error"])
			} else {
				assert.NotEmpty(t, response["error"])
			}
			assert.Equal(t, 0, server.registry.Len())
		})
	}
}

func TestDownloadNoMatchNeverClicks(t *testing.T) {
	site := &fakeSite{songs: catalogSongs}
	server, _ := newTestServer(t, site)

	body := map[string]any{"song": map[string]any{"title": "Blue Monday", "artist": "new order"}}
	rr := doRequest(t, server, "POST", "/api/download", body, nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Empty(t, site.downloads)
}

func TestDownloadPageLostResetsSession(t *testing.T) {
	site := &fakeSite{songs: catalogSongs, downloadErr: browser.ErrPageLost}
	server, _ := newTestServer(t, site)

	body := map[string]any{"song": map[string]any{"title": "Blue Monday", "artist": "New Order"}}
	rr := doRequest(t, server, "POST", "/api/download", body, nil)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, browser.StateUninitialized, server.session.State())

	site.downloadErr = nil
	rr = doRequest(t, server, "POST", "/api/download", body, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int32(2), site.launches)
}

func TestListAndGetDownloads(t *testing.T) {
	site := &fakeSite{songs: catalogSongs}
	server, _ := newTestServer(t, site)

	for _, song := range catalogSongs {
		body := map[string]any{"song": map[string]any{"title": song.Title, "artist": song.Artist}}
		rr := doRequest(t, server, "POST", "/api/download", body, nil)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := doRequest(t, server, "GET", "/api/downloads?page=1&pageSize=2", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	response := decode(t, rr)
	assert.Equal(t, float64(3), response["total"])
	assert.Equal(t, float64(2), response["totalPages"])
	downloads := response["downloads"].([]any)
	require.Len(t, downloads, 2)

	first := downloads[0].(map[string]any)
	id := first["id"].(string)

	rr = doRequest(t, server, "GET", "/api/downloads/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "download-1.flac", decode(t, rr)["filename"])

	rr = doRequest(t, server, "GET", "/api/downloads/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	health := decode(t, doRequest(t, server, "GET", "/health", nil, nil))
	assert.Equal(t, float64(3), health["downloads"])
	assert.Equal(t, "ready", health["session"])

	rr = doRequest(t, server, "GET", "/api/downloads?page=9223372036854775807&pageSize=100", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	response = decode(t, rr)
	assert.Empty(t, response["downloads"])
	assert.Equal(t, float64(3), response["total"])
}

func TestStreamRecordedDownload(t *testing.T) {
	site := &fakeSite{songs: catalogSongs, fileSize: 1000}
	server, dir := newTestServer(t, site)

	body := map[string]any{"song": map[string]any{"title": "Age of Consent", "artist": "New Order"}}
	rr := doRequest(t, server, "POST", "/api/download", body, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	id := decode(t, rr)["song"].(map[string]any)["id"].(string)

	content, err := os.ReadFile(filepath.Join(dir, "download-1.flac"))
	require.NoError(t, err)

	rr = doRequest(t, server, "GET", "/api/stream/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1000", rr.Header().Get("Content-Length"))
	assert.Equal(t, "audio/flac", rr.Header().Get("Content-Type"))
	assert.True(t, bytes.Equal(content, rr.Body.Bytes()))

	rr = doRequest(t, server, "GET", "/api/stream/"+id, nil, map[string]string{"Range": "bytes=100-199"})
	require.Equal(t, http.StatusPartialContent, rr.Code)
	assert.Equal(t, "100", rr.Header().Get("Content-Length"))
	assert.Equal(t, "bytes 100-199/1000", rr.Header().Get("Content-Range"))
	assert.Equal(t, "bytes", rr.Header().Get("Accept-Ranges"))
	assert.True(t, bytes.Equal(content[100:200], rr.Body.Bytes()))
}

func TestStreamFallback(t *testing.T) {
	server, dir := newTestServer(t, &fakeSite{})

	rr := doRequest(t, server, "GET", "/api/stream/unknown", nil, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"No files found"}`, rr.Body.String())

	content := bytes.Repeat([]byte("x"), 1000)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "only.flac"), content, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	rr = doRequest(t, server, "GET", "/api/stream/unknown", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, bytes.Equal(content, rr.Body.Bytes()))
}

func TestStreamFallbackDisabled(t *testing.T) {
	server, dir := newTestServer(t, &fakeSite{})
	server.cfg.Stream.DisableFallback = true
	require.NoError(t, os.WriteFile(filepath.Join(dir, "only.flac"), []byte("data"), 0644))

	rr := doRequest(t, server, "GET", "/api/stream/unknown", nil, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"No files found"}`, rr.Body.String())
}

func TestStreamErrors(t *testing.T) {
	site := &fakeSite{songs: catalogSongs}
	server, dir := newTestServer(t, site)

	body := map[string]any{"song": map[string]any{"title": "Age of Consent", "artist": "New Order"}}
	rr := doRequest(t, server, "POST", "/api/download", body, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	id := decode(t, rr)["song"].(map[string]any)["id"].(string)

	t.Run("invalid range", func(t *testing.T) {
		rr := doRequest(t, server, "GET", "/api/stream/"+id, nil, map[string]string{"Range": "bytes=5000-6000"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.NotEmpty(t, decode(t, rr)["error"])
		assert.Empty(t, rr.Header().Get("Content-Range"))
	})

	t.Run("recorded file missing", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(dir, "download-1.flac")))

		rr := doRequest(t, server, "GET", "/api/stream/"+id, nil, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.NotEmpty(t, decode(t, rr)["error"])
	})
}
