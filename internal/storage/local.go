package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage stores objects as files under a base directory. The server
// exposes the directory at BaseURL.
type LocalStorage struct {
	basePath string
	baseURL  string
	logger   *slog.Logger
}

// NewLocalStorage creates the base directory if needed.
func NewLocalStorage(cfg LocalConfig, logger *slog.Logger) (*LocalStorage, error) {
	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	logger.Info("initialized local storage", "base_path", absPath, "base_url", cfg.BaseURL)

	return &LocalStorage{
		basePath: absPath,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:   logger,
	}, nil
}

// BasePath returns the directory objects are written under.
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

// Put writes to a temporary file in the target directory and renames it into
// place, so readers never observe a partial object.
func (s *LocalStorage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	filePath, err := s.resolvePath(key)
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: err}
	}
	if !opts.Overwrite {
		if _, err := os.Stat(filePath); err == nil {
			return &StorageError{Op: "Put", Key: key, Err: ErrKeyExists}
		}
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &StorageError{Op: "Put", Key: key, Err: fmt.Errorf("failed to create directory: %w", err)}
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: fmt.Errorf("failed to create file: %w", err)}
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	src := data
	if opts.MaxSize > 0 {
		src = io.LimitReader(data, opts.MaxSize+1)
	}
	written, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: fmt.Errorf("failed to write file: %w", err)}
	}
	if opts.MaxSize > 0 && written > opts.MaxSize {
		return &StorageError{Op: "Put", Key: key, Err: ErrTooLarge}
	}

	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return &StorageError{Op: "Put", Key: key, Err: fmt.Errorf("failed to move file into place: %w", err)}
	}

	s.logger.Debug("stored file", "key", key, "size", written, "content_type", opts.ContentType)
	return nil
}

// Get opens the file at key.
func (s *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}

	filePath, err := s.resolvePath(key)
	if err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: err}
	}

	f, err := os.Open(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: ErrNotFound}
	}
	if err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: err}
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: err}
	}

	return f, ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		ContentType:  TypeForExtension(filepath.Ext(key)),
		LastModified: stat.ModTime(),
	}, nil
}

// Delete removes the file at key.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	filePath, err := s.resolvePath(key)
	if err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: err}
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &StorageError{Op: "Delete", Key: key, Err: err}
	}

	s.logger.Debug("deleted file", "key", key)
	return nil
}

// URL returns BaseURL/key. Local links never expire.
func (s *LocalStorage) URL(ctx context.Context, key string, _ time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := s.resolvePath(key); err != nil {
		return "", &StorageError{Op: "URL", Key: key, Err: err}
	}
	return s.baseURL + "/" + key, nil
}

// resolvePath maps key to a path inside basePath, rejecting traversal.
func (s *LocalStorage) resolvePath(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || filepath.IsAbs(key) {
		return "", ErrInvalidKey
	}

	abs := filepath.Join(s.basePath, filepath.FromSlash(key))
	if !strings.HasPrefix(abs, s.basePath+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}
	return abs, nil
}
