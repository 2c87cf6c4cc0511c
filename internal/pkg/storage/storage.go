package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Backend names accepted by New.
const (
	BackendNone  = "none"
	BackendS3    = "s3"
	BackendLocal = "local"
)

// Storage is an object store addressed by slash-separated keys.
type Storage interface {
	// Put stores the object at key, replacing any existing one.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// Config selects and configures a backend.
type Config struct {
	Backend string

	LocalDir string

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
}

// New builds the configured backend. It returns nil, nil for BackendNone.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendNone:
		return nil, nil
	case BackendLocal:
		return NewLocalStorage(cfg.LocalDir)
	case BackendS3:
		return NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
