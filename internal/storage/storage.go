// Package storage holds the object stores locker-server can serve files
// from: a local directory, an S3 bucket or an Azure Blob container.
//
// Keys are slash separated, "folder/sub/name.ext". A key's folder is
// everything before the last slash.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/document-locker/locker/internal/config"
	"github.com/document-locker/locker/internal/logging"
)

// Common backend errors
var (
	// ErrNotFound is returned for keys that do not exist.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidKey is returned for keys that fail validation.ValidateObjectKey.
	ErrInvalidKey = errors.New("invalid object key")
)

// Object describes one stored file.
type Object struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Name is the last segment of the key.
func (o Object) Name() string {
	return path.Base(o.Key)
}

// Folder is the key prefix before the name, or "" at the root.
func (o Object) Folder() string {
	return FolderOf(o.Key)
}

// FolderOf returns the folder part of key.
func FolderOf(key string) string {
	if d := path.Dir(key); d != "." {
		return d
	}
	return ""
}

// Backend is an object store.
type Backend interface {
	// Name identifies the backend kind in /status ("local", "s3", "azure").
	Name() string
	// Location is the directory, bucket or container served.
	Location() string

	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, Object, error)
	Stat(ctx context.Context, key string) (Object, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]Object, error)
}

// New opens the backend selected by cfg.Backend. An empty backend returns
// (nil, nil) and the server answers file routes with 503.
func New(ctx context.Context, cfg *config.ServerConfig, logger *logging.Logger) (Backend, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	switch cfg.Backend {
	case config.BackendLocal:
		b, err := NewLocal(cfg.LocalDir)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("dir", b.Location()).Msg("Using local storage")
		return b, nil
	case config.BackendS3:
		b, err := NewS3(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.BackendAzure:
		b, err := NewAzure(ctx, cfg.AzureConnectionString, cfg.AzureContainer, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "":
		logger.Warn().Msg("No storage backend configured; file routes will return 503")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// TotalSize sums the sizes of objs.
func TotalSize(objs []Object) int64 {
	var n int64
	for _, o := range objs {
		n += o.Size
	}
	return n
}
