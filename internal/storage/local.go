package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalFileStorage implements the Storage interface for a local directory
type LocalFileStorage struct {
	dir string
}

// NewLocalFileStorage creates a new local file storage instance
func NewLocalFileStorage(dir string) (*LocalFileStorage, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return &LocalFileStorage{dir: dir}, nil
}

func (s *LocalFileStorage) Dir() string {
	return s.dir
}

// path resolves name inside the storage directory.
func (s *LocalFileStorage) path(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

func (s *LocalFileStorage) Stat(ctx context.Context, name string) (FileInfo, error) {
	p, err := s.path(name)
	if err != nil {
		return FileInfo{}, err
	}

	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FileInfo{}, fmt.Errorf("%w: %s", ErrFileMissing, name)
		}
		return FileInfo{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return FileInfo{}, fmt.Errorf("%w: %s is a directory", ErrFileMissing, name)
	}

	return FileInfo{Name: name, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (s *LocalFileStorage) OpenRange(ctx context.Context, name string, offset, length int64) (io.ReadCloser, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileMissing, name)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to seek: %w", err)
		}
	}
	if length < 0 {
		return f, nil
	}

	return &limitedFile{Reader: io.LimitReader(f, length), Closer: f}, nil
}

type limitedFile struct {
	io.Reader
	io.Closer
}

func (s *LocalFileStorage) List(ctx context.Context, ext string) ([]string, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	results := []string{}
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if hasExt(file.Name(), ext) {
			results = append(results, file.Name())
		}
	}
	sort.Strings(results)
	return results, nil
}

// Store is a no-op: downloads are already in place.
func (s *LocalFileStorage) Store(ctx context.Context, name string) error {
	_, err := s.Stat(ctx, name)
	return err
}

func (s *LocalFileStorage) Close() error {
	return nil
}

// validateName rejects anything that is not a plain file name.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: invalid name %q", ErrFileMissing, name)
	}
	return nil
}

func hasExt(name, ext string) bool {
	if ext == "" {
		return true
	}
	return strings.HasSuffix(name, "."+strings.TrimPrefix(ext, "."))
}
