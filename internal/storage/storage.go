// Package storage persists uploaded teaching materials and their previews.
//
// Two backends implement Storage: LocalStorage writes under a directory on
// disk for development, R2Storage writes to a Cloudflare R2 bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage is a flat key/value object store.
type Storage interface {
	// Put writes data at key. ErrTooLarge is returned when data exceeds
	// opts.MaxSize; ErrKeyExists when the key is taken and opts.Overwrite is
	// false.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get opens the object at key. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a link to the object. A zero expires asks for a permanent
	// link where the backend has one.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// PutOptions configures a write.
type PutOptions struct {
	ContentType string
	MaxSize     int64 // 0 means no limit
	Overwrite   bool
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// =============================================================================
// Configuration
// =============================================================================

const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

// LocalConfig configures LocalStorage.
type LocalConfig struct {
	BasePath string // e.g. "./storage"
	BaseURL  string // e.g. "http://localhost:8080/files"
}

// R2Config configures R2Storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string // Custom domain; presigned URLs are used when empty
	Region          string // Defaults to "auto"
}

// =============================================================================
// Keys
// =============================================================================

const uploadsPrefix = "uploads"

// UploadKey returns a fresh key for a user's upload, keeping the original
// file extension: uploads/{userID}/{uuid}.{ext}
func UploadKey(userID uuid.UUID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s/%s/%s%s", uploadsPrefix, userID, uuid.New(), ext)
}

// PreviewKey returns the key of the JPEG preview stored next to an upload:
// uploads/{userID}/{uuid}.preview.jpg
func PreviewKey(uploadKey string) string {
	return strings.TrimSuffix(uploadKey, path.Ext(uploadKey)) + ".preview.jpg"
}

// OwnedBy reports whether key lives in userID's upload prefix.
func OwnedBy(key string, userID uuid.UUID) bool {
	return strings.HasPrefix(key, fmt.Sprintf("%s/%s/", uploadsPrefix, userID))
}
