package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jaki95/music-web-crawler/config"
)

var ErrFileMissing = errors.New("file missing")

// FileInfo describes a stored song file.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Storage defines the interface for the flat song directory downloads are
// written to and streamed from. Names are bare file names, never paths.
type Storage interface {
	// Dir is the local directory the browser writes downloads into.
	Dir() string

	Stat(ctx context.Context, name string) (FileInfo, error)

	// OpenRange returns length bytes of name starting at offset. A negative
	// length reads to the end of the file.
	OpenRange(ctx context.Context, name string, offset, length int64) (io.ReadCloser, error)

	// List returns the names of stored files with extension ext, sorted.
	List(ctx context.Context, ext string) ([]string, error)

	// Store is called once a download has completed in Dir.
	Store(ctx context.Context, name string) error

	Close() error
}

// New creates the storage backend selected by cfg.Type.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case config.StorageLocal, "":
		return NewLocalFileStorage(cfg.OutputDir)
	case config.StorageGCS:
		return NewGCSStorage(ctx, cfg.Bucket, cfg.ObjectPrefix, cfg.OutputDir, cfg.CredentialsFile)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
