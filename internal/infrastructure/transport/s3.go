package transport

import (
	"context"
	"net/url"
	"strings"

	"github.com/turtacn/VisionServe/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/VisionServe/pkg/errors"
)

// ObjectStore is the object-store surface the s3 scheme needs.  The minio
// client satisfies it.
type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

type s3Scheme struct {
	store  ObjectStore
	logger logging.Logger
}

func newS3Scheme(store ObjectStore, log logging.Logger) *s3Scheme {
	return &s3Scheme{store: store, logger: log}
}

// splitBucketKey parses s3://bucket/key/with/slashes.
func splitBucketKey(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", errors.InvalidParam("invalid s3 url").WithCause(err)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", errors.InvalidParam("s3 url must be s3://bucket/key").WithDetail(rawURL)
	}
	return bucket, key, nil
}

func (s *s3Scheme) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	bucket, key, err := splitBucketKey(rawURL)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, bucket, key)
}

func (s *s3Scheme) Put(ctx context.Context, rawURL string, data []byte, contentType string) error {
	bucket, key, err := splitBucketKey(rawURL)
	if err != nil {
		return err
	}
	return s.store.Put(ctx, bucket, key, data, contentType)
}
