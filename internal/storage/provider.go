package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrObjectNotFound = errors.New("object not found")

type Object struct {
	Name string
	Size int64
}

// Provider stores objects under keys relative to its root, a local directory or
// an S3 bucket prefix.
type Provider interface {
	PutObject(ctx context.Context, key string, data io.Reader) error

	GetObject(ctx context.Context, key string) ([]byte, error)

	ListObjects(ctx context.Context, prefix string) ([]Object, error)
}

// ParseS3Path splits s3://bucket/prefix into its bucket and prefix.
func ParseS3Path(path string) (string, string, error) {
	if !strings.HasPrefix(path, "s3://") {
		return "", "", fmt.Errorf("path %s is not an s3 path", path)
	}

	bucket, prefix, _ := strings.Cut(strings.TrimPrefix(path, "s3://"), "/")
	if bucket == "" {
		return "", "", fmt.Errorf("path %s has no bucket", path)
	}

	return bucket, strings.Trim(prefix, "/"), nil
}

// NewProviderForPath returns an S3 provider for s3:// paths and a local
// directory provider otherwise.
func NewProviderForPath(ctx context.Context, path string, cfg S3ClientConfig) (Provider, error) {
	if strings.HasPrefix(path, "s3://") {
		bucket, prefix, err := ParseS3Path(path)
		if err != nil {
			return nil, err
		}
		return NewS3Provider(ctx, cfg, bucket, prefix)
	}
	return NewLocalProvider(path)
}
