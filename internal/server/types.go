package server

import (
	"github.com/jaki95/music-web-crawler/internal/domain"
	"github.com/jaki95/music-web-crawler/internal/site"
)

// SearchResponse is returned by the search endpoint.
type SearchResponse struct {
	Success bool          `json:"success"`
	Songs   []domain.Song `json:"songs"`
}

// DownloadRequest carries the song to download. Fields other than title and
// artist are echoed back in the response.
type DownloadRequest struct {
	Song map[string]any `json:"song" binding:"required"`
}

// DownloadResponse is returned by a successful download.
type DownloadResponse struct {
	Success bool           `json:"success"`
	Song    map[string]any `json:"song"`
}

// FailureResponse is the error payload of the search and download endpoints.
type FailureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ErrorResponse represents a generic error payload used for error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse reports the state of the shared browser session.
type HealthResponse struct {
	Status       string       `json:"status"`
	Session      string       `json:"session"`
	SessionError string       `json:"sessionError,omitempty"`
	Downloads    int          `json:"downloads"`
	Site         *site.Status `json:"site,omitempty"`
}
