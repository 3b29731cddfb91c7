package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jaki95/music-web-crawler/internal/browser"
	"github.com/jaki95/music-web-crawler/internal/catalog"
	"github.com/jaki95/music-web-crawler/internal/domain"
)

// healthCheck godoc
// @Summary Service health
// @Description Reports the browser session state and the number of recorded downloads. Pass probe=true to also check the upstream site.
// @Tags Health
// @Produce json
// @Param probe query bool false "Probe the upstream site"
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (s *Server) healthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "ok",
		Session:   s.session.State().String(),
		Downloads: s.registry.Len(),
	}
	if err := s.session.LastError(); err != nil && s.session.State() == browser.StateFailed {
		resp.SessionError = err.Error()
	}

	if c.Query("probe") == "true" {
		status := s.prober.Probe(c.Request.Context())
		resp.Site = &status
	}

	c.JSON(http.StatusOK, resp)
}

// searchSongs godoc
// @Summary Search the catalog
// @Tags Songs
// @Produce json
// @Param q query string true "Search text"
// @Success 200 {object} SearchResponse
// @Failure 400 {object} FailureResponse
// @Failure 500 {object} FailureResponse
// @Router /api/search [get]
func (s *Server) searchSongs(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		s.fail(c, ErrEmptyQuery)
		return
	}

	// Site interactions finish even if the client goes away.
	ctx := context.WithoutCancel(c.Request.Context())

	h, err := s.session.EnsureReady(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}

	results, err := s.searcher.Search(ctx, h, query)
	if err != nil {
		s.resetOnPageLost(h, err)
		slog.Error("Search failed", "query", query, "error", err)
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, SearchResponse{
		Success: true,
		Songs:   catalog.Songs(results),
	})
}

// downloadSong godoc
// @Summary Download a song
// @Description Searches the site for the song's title and downloads the first result matching title and artist.
// @Tags Songs
// @Accept json
// @Produce json
// @Param request body DownloadRequest true "Song to download"
// @Success 200 {object} DownloadResponse
// @Failure 400 {object} FailureResponse
// @Failure 404 {object} FailureResponse
// @Failure 500 {object} FailureResponse
// @Router /api/download [post]
func (s *Server) downloadSong(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", ErrInvalidSong, err))
		return
	}

	song, extra, err := songFromRequest(req.Song)
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())

	h, err := s.session.EnsureReady(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}

	filename, err := s.downloader.Download(ctx, h, song)
	if err != nil {
		s.resetOnPageLost(h, err)
		if errors.Is(err, catalog.ErrNotFound) {
			slog.Info("Song not found", "title", song.Title, "artist", song.Artist)
		} else {
			slog.Error("Download failed", "title", song.Title, "artist", song.Artist, "error", err)
		}
		s.fail(c, err)
		return
	}

	if err := s.store.Store(ctx, filename); err != nil {
		slog.Error("Failed to store download", "filename", filename, "error", err)
		s.fail(c, fmt.Errorf("%w: %w", catalog.ErrTransferFailed, err))
		return
	}

	rec := domain.DownloadRecord{
		ID:        uuid.NewString(),
		Filename:  filename,
		Song:      song,
		Extra:     extra,
		CreatedAt: time.Now(),
	}
	if err := s.registry.Record(rec); err != nil {
		s.fail(c, err)
		return
	}

	slog.Info("Download recorded", "id", rec.ID, "filename", filename)
	c.JSON(http.StatusOK, DownloadResponse{
		Success: true,
		Song:    rec.SongPayload(),
	})
}

// listDownloads godoc
// @Summary List recorded downloads
// @Tags Songs
// @Produce json
// @Param page query int false "Page number (default 1)"
// @Param pageSize query int false "Page size (default 10, max 100)"
// @Success 200 {object} registry.ListResponse
// @Router /api/downloads [get]
func (s *Server) listDownloads(c *gin.Context) {
	page, pageSize := parsePagination(c)
	c.JSON(http.StatusOK, s.registry.List(page, pageSize))
}

// getDownload godoc
// @Summary Get a recorded download
// @Tags Songs
// @Produce json
// @Param id path string true "Download ID"
// @Success 200 {object} domain.DownloadRecord
// @Failure 404 {object} ErrorResponse
// @Router /api/downloads/{id} [get]
func (s *Server) getDownload(c *gin.Context) {
	rec, err := s.registry.Get(c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// streamSong godoc
// @Summary Stream a downloaded song
// @Description Streams the file recorded for id, honoring a single byte range. Unknown ids are served the first stored file unless fallback is disabled.
// @Tags Songs
// @Produce audio/flac
// @Param id path string true "Download ID"
// @Param Range header string false "bytes=<start>-<end>"
// @Success 200 {file} binary
// @Success 206 {file} binary
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/stream/{id} [get]
func (s *Server) streamSong(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	filename, err := s.resolveStreamFile(ctx, id)
	if err != nil {
		s.streamFail(c, id, err)
		return
	}

	if err := s.streamer.Stream(ctx, c.Writer, filename, c.GetHeader("Range")); err != nil {
		if c.Writer.Written() {
			return
		}
		for _, h := range []string{"Content-Type", "Content-Length", "Content-Range", "Accept-Ranges"} {
			c.Writer.Header().Del(h)
		}
		s.streamFail(c, id, err)
	}
}

func (s *Server) streamFail(c *gin.Context, id string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if errors.Is(err, ErrNoFiles) {
		msg = "No files found"
	}
	if status == http.StatusInternalServerError {
		slog.Error("Stream failed", "id", id, "error", err)
	} else {
		slog.Debug("Stream rejected", "id", id, "status", status, "error", err)
	}
	c.JSON(status, ErrorResponse{Error: msg})
}

// fail writes the {success:false, error} payload for err.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if errors.Is(err, catalog.ErrNotFound) {
		msg = "Song not found"
	}
	c.JSON(status, FailureResponse{Success: false, Error: msg})
}

// resetOnPageLost discards the session when the browser page died under h.
func (s *Server) resetOnPageLost(h *browser.Handle, err error) {
	if errors.Is(err, browser.ErrPageLost) || errors.Is(err, browser.ErrSessionClosed) {
		s.session.Reset(h)
	}
}
