// Package site checks that the upstream music site is reachable without
// touching the shared browser session.
package site

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gocolly/colly"
	"github.com/jaki95/music-web-crawler/config"
)

// Status is the outcome of one probe.
type Status struct {
	URL        string `json:"url"`
	Reachable  bool   `json:"reachable"`
	StatusCode int    `json:"statusCode,omitempty"`
	Title      string `json:"title,omitempty"`
	LatencyMS  int64  `json:"latencyMs"`
	Error      string `json:"error,omitempty"`
}

type Prober struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
}

func NewProber(cfg config.SiteConfig) *Prober {
	return &Prober{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		timeout:   cfg.ProbeTimeout,
	}
}

// Probe fetches the site's entry page once.
func (p *Prober) Probe(ctx context.Context) Status {
	status := Status{URL: p.baseURL}

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.MaxDepth(1),
		colly.UserAgent(p.userAgent),
	)
	c.SetRequestTimeout(p.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
		r.Headers.Set("Cache-Control", "max-age=0")
	})

	c.OnResponse(func(r *colly.Response) {
		status.StatusCode = r.StatusCode
		status.Reachable = true
	})

	c.OnHTML("title", func(e *colly.HTMLElement) {
		if status.Title == "" {
			status.Title = strings.TrimSpace(e.Text)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status.StatusCode = r.StatusCode
		}
		status.Error = err.Error()
	})

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- c.Visit(p.baseURL)
	}()

	select {
	case err := <-done:
		if err != nil && status.Error == "" {
			status.Error = err.Error()
		}
	case <-ctx.Done():
		return Status{URL: p.baseURL, Error: ctx.Err().Error(), LatencyMS: time.Since(start).Milliseconds()}
	}

	status.LatencyMS = time.Since(start).Milliseconds()
	if status.Error != "" {
		status.Reachable = false
		slog.Warn("Site probe failed", "url", p.baseURL, "status", status.StatusCode, "error", status.Error)
	} else {
		slog.Debug("Site probe succeeded", "url", p.baseURL, "status", status.StatusCode, "latencyMs", status.LatencyMS)
	}
	return status
}
