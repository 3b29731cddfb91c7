package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStorage implements the Storage interface for Google Cloud Storage.
// Downloads land in a local staging directory and are uploaded by Store.
type GCSStorage struct {
	client       *storage.Client
	bucket       string
	tempDir      string
	objectPrefix string
}

// NewGCSStorage creates a new GCSStorage instance
func NewGCSStorage(ctx context.Context, bucketName, objectPrefix, tempDir, credentialsFile string) (*GCSStorage, error) {
	var client *storage.Client
	var err error

	// Create a client
	if credentialsFile != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	} else {
		// Use application default credentials
		client, err = storage.NewClient(ctx)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	// Create local temp directory if it doesn't exist
	if err := os.MkdirAll(tempDir, os.ModePerm); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &GCSStorage{
		client:       client,
		bucket:       bucketName,
		tempDir:      tempDir,
		objectPrefix: strings.Trim(objectPrefix, "/"),
	}, nil
}

func (s *GCSStorage) Dir() string {
	return s.tempDir
}

func (s *GCSStorage) objectName(name string) string {
	if s.objectPrefix != "" {
		return s.objectPrefix + "/" + name
	}
	return name
}

func (s *GCSStorage) object(name string) (*storage.ObjectHandle, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return s.client.Bucket(s.bucket).Object(s.objectName(name)), nil
}

func (s *GCSStorage) Stat(ctx context.Context, name string) (FileInfo, error) {
	obj, err := s.object(name)
	if err != nil {
		return FileInfo{}, err
	}

	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return FileInfo{}, fmt.Errorf("%w: %s", ErrFileMissing, name)
		}
		return FileInfo{}, fmt.Errorf("failed to get object attributes: %w", err)
	}

	return FileInfo{Name: name, Size: attrs.Size, ModTime: attrs.Updated}, nil
}

func (s *GCSStorage) OpenRange(ctx context.Context, name string, offset, length int64) (io.ReadCloser, error) {
	obj, err := s.object(name)
	if err != nil {
		return nil, err
	}

	r, err := obj.NewRangeReader(ctx, offset, length)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileMissing, name)
		}
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return r, nil
}

func (s *GCSStorage) List(ctx context.Context, ext string) ([]string, error) {
	query := &storage.Query{}
	if s.objectPrefix != "" {
		query.Prefix = s.objectPrefix + "/"
	}

	it := s.client.Bucket(s.bucket).Objects(ctx, query)

	results := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error listing objects: %w", err)
		}

		// Only direct children of the prefix
		name := strings.TrimPrefix(attrs.Name, query.Prefix)
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		if hasExt(name, ext) {
			results = append(results, path.Base(name))
		}
	}

	sort.Strings(results)
	return results, nil
}

// Store uploads a completed download from the staging directory and removes
// the local copy.
func (s *GCSStorage) Store(ctx context.Context, name string) error {
	obj, err := s.object(name)
	if err != nil {
		return err
	}

	localPath := filepath.Join(s.tempDir, name)
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", localPath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, time.Minute*5)
	defer cancel()

	wc := obj.NewWriter(ctx)
	if _, err = io.Copy(wc, f); err != nil {
		wc.Close()
		return fmt.Errorf("failed to copy file to GCS: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}

	if err := os.Remove(localPath); err != nil {
		slog.Warn("Failed to remove staged download", "filename", name, "error", err)
	}

	slog.Info("Uploaded download to GCS", "bucket", s.bucket, "object", s.objectName(name))
	return nil
}

// Close closes the GCS client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}
