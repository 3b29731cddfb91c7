package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaki95/music-web-crawler/config"
	"github.com/jaki95/music-web-crawler/internal/browser"
	"github.com/jaki95/music-web-crawler/internal/catalog"
	"github.com/jaki95/music-web-crawler/internal/registry"
	"github.com/jaki95/music-web-crawler/internal/site"
	"github.com/jaki95/music-web-crawler/internal/storage"
	"github.com/jaki95/music-web-crawler/internal/stream"
)

const shutdownTimeout = 10 * time.Second

// Server handles HTTP requests for the song catalog
type Server struct {
	cfg    *config.Config
	router *gin.Engine

	session    *browser.Session
	searcher   *catalog.Searcher
	downloader *catalog.Downloader
	registry   *registry.Registry
	store      storage.Storage
	streamer   *stream.Streamer
	prober     *site.Prober
}

type options struct {
	launcher browser.Launcher
	store    storage.Storage
}

// Option overrides a component the server would otherwise build from config.
type Option func(*options)

// WithLauncher replaces the Chrome launcher.
func WithLauncher(l browser.Launcher) Option {
	return func(o *options) { o.launcher = l }
}

// WithStorage replaces the configured storage backend.
func WithStorage(s storage.Storage) Option {
	return func(o *options) { o.store = s }
}

// New creates a new HTTP server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.store == nil {
		store, err := storage.New(context.Background(), cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
		o.store = store
	}

	if o.launcher == nil {
		o.launcher = browser.ChromeLauncher(cfg.Site, o.store.Dir())
	}

	if cfg.LogLevel <= int(slog.LevelDebug) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	searcher := catalog.NewSearcher(cfg.Site.Selectors)
	server := &Server{
		cfg:        cfg,
		router:     gin.New(),
		session:    browser.NewSession(o.launcher, cfg.Site.BaseURL),
		searcher:   searcher,
		downloader: catalog.NewDownloader(searcher),
		registry:   registry.New(cfg.Registry.MaxEntries),
		store:      o.store,
		streamer:   stream.New(o.store, cfg.ContentType),
		prober:     site.NewProber(cfg.Site),
	}

	server.setupRoutes()
	return server, nil
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery(), requestLogger())

	// Add CORS middleware
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Range")
		c.Header("Access-Control-Expose-Headers", "Content-Range, Content-Length, Accept-Ranges")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check endpoint
	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api")
	{
		api.GET("/search", s.searchSongs)
		api.POST("/download", s.downloadSong)
		api.GET("/downloads", s.listDownloads)
		api.GET("/downloads/:id", s.getDownload)
		api.GET("/stream/:id", s.streamSong)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("Request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Run serves HTTP on the configured address until ctx ends, then shuts the
// server and the browser session down.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	slog.Info("Server listening", "addr", srv.Addr)

	var runErr error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Server shutdown incomplete", "error", err)
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	s.Close()
	return runErr
}

// Close releases the browser session and the storage backend.
func (s *Server) Close() {
	if err := s.session.Close(); err != nil {
		slog.Warn("Failed to close browser session", "error", err)
	}
	if err := s.store.Close(); err != nil {
		slog.Warn("Failed to close storage", "error", err)
	}
}
