package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jaki95/music-web-crawler/internal/domain"
)

var (
	ErrNotFound    = errors.New("download not found")
	ErrDuplicateID = errors.New("download id already recorded")
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListResponse is one page of recorded downloads, oldest first.
type ListResponse struct {
	Downloads  []domain.DownloadRecord `json:"downloads"`
	Page       int                     `json:"page"`
	PageSize   int                     `json:"pageSize"`
	Total      int                     `json:"total"`
	TotalPages int                     `json:"totalPages"`
}

// Registry maps issued download ids to the files they produced. It lives only
// in memory.
type Registry struct {
	mu         sync.RWMutex
	records    map[string]domain.DownloadRecord
	order      []string
	maxEntries int
}

// New creates a registry. A positive maxEntries evicts the oldest record once
// the limit is reached.
func New(maxEntries int) *Registry {
	return &Registry{
		records:    make(map[string]domain.DownloadRecord),
		maxEntries: maxEntries,
	}
}

// Record stores rec. Existing ids are never overwritten.
func (r *Registry) Record(rec domain.DownloadRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[rec.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
	}

	if r.maxEntries > 0 && len(r.order) >= r.maxEntries {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.records, oldest)
		slog.Warn("Registry full, evicting oldest download", "id", oldest, "maxEntries", r.maxEntries)
	}

	r.records[rec.ID] = rec
	r.order = append(r.order, rec.ID)
	return nil
}

// Lookup returns the filename recorded for id.
func (r *Registry) Lookup(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	return rec.Filename, ok
}

// Get returns the full record for id.
func (r *Registry) Get(id string) (domain.DownloadRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return domain.DownloadRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// List returns recorded downloads with pagination
func (r *Registry) List(page, pageSize int) *ListResponse {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	total := len(r.order)
	resp := &ListResponse{
		Downloads:  []domain.DownloadRecord{},
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}

	// Past the last page; also keeps (page-1)*pageSize from overflowing.
	if page > resp.TotalPages {
		return resp
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}

	for _, id := range r.order[start:end] {
		resp.Downloads = append(resp.Downloads, r.records[id])
	}
	return resp
}
