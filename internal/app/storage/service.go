package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Backends understood by NewStorageService.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// MaxPresignExpiry is the longest lifetime S3 accepts for a presigned URL.
const MaxPresignExpiry = 7 * 24 * time.Hour

// ErrInvalidKey is returned for keys that are empty, absolute or escape the storage root.
var ErrInvalidKey = errors.New("storage: invalid key")

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	Backend string

	// Local backend: files live under LocalDir and are served by this process at
	// PublicBaseURL + LocalRoutePrefix.
	LocalDir      string
	PublicBaseURL string

	// S3 backend. When S3PublicBaseURL is empty, URL hands out presigned GET links
	// valid for PresignExpiry.
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PublicBaseURL   string
	PresignExpiry     time.Duration
}

// LocalRoutePrefix is the HTTP path under which local objects are served.
const LocalRoutePrefix = "/results/"

// StorageService defines the public interface for the result storage service.
// Keys are slash-separated, e.g. "tmp/20240315/<id>_overlay.jpg".
type StorageService interface {
	// Put stores body under key, replacing any previous object.
	Put(ctx context.Context, key string, body io.Reader, contentType string) error

	// URL returns an https URL under which key can be fetched by anyone holding it.
	URL(ctx context.Context, key string) (string, error)

	// ListPrefixes returns the immediate "directories" below prefix, each ending in "/".
	ListPrefixes(ctx context.Context, prefix string) ([]string, error)

	// DeletePrefix removes every object whose key starts with prefix and returns how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// NewStorageService is the factory function for StorageService.
// It initializes and returns a concrete implementation based on the provided configuration.
func NewStorageService(ctx context.Context, cfg ServiceConfig) (StorageService, error) {
	switch cfg.Backend {
	case BackendLocal, "":
		return newLocalStore(cfg)
	case BackendS3:
		return newS3Client(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
