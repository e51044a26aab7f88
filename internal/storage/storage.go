package storage

import (
	"context"
	"path"
	"strings"

	"github.com/andresuchdata/netplan/internal/config"
)

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the minimal S3-compatible operations run exports need.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DownloadObject(ctx context.Context, key string, destPath string) error
	UploadObject(ctx context.Context, key string, data []byte) error
}

// New returns a MinIO-backed store when storage is enabled and a noop store
// otherwise.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}
	return NewMinioClient(ctx, MinioConfig{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		UseSSL:    cfg.UseSSL,
	})
}

// RunKey joins prefix, run id and file name into an object key.
func RunKey(prefix, runID, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return path.Join(runID, name)
	}
	return path.Join(prefix, runID, name)
}

func contentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// Noop discards uploads and lists nothing.
type Noop struct{}

func (Noop) ListObjects(context.Context, string) ([]ObjectInfo, error) { return nil, nil }

func (Noop) DownloadObject(_ context.Context, key, _ string) error {
	return ErrObjectNotFound{Key: key}
}

func (Noop) UploadObject(context.Context, string, []byte) error { return nil }

// ErrObjectNotFound is returned when a key does not exist.
type ErrObjectNotFound struct {
	Key string
}

func (e ErrObjectNotFound) Error() string { return "object not found: " + e.Key }

var _ ObjectStorage = Noop{}
