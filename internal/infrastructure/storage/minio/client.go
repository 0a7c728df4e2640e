// Package minio wraps the MinIO SDK behind the small object-store surface
// the transport layer needs: fetch one object, store one object.
package minio

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/VisionServe/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/VisionServe/pkg/errors"
)

// ObjectAPI is the subset of the MinIO SDK the client uses.  Tests swap in
// an in-memory implementation.
type ObjectAPI interface {
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
}

// Config carries object-store connection settings.
type Config struct {
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	Region          string        `mapstructure:"region"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

func applyDefaults(cfg *Config) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
}

// Client is the object-store client used for s3:// inputs and result uploads.
type Client struct {
	api    ObjectAPI
	config *Config
	logger logging.Logger
}

// NewClient connects to the configured endpoint and verifies reachability.
func NewClient(cfg *Config, log logging.Logger) (*Client, error) {
	applyDefaults(cfg)

	api, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create object store client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if _, err := api.BucketExists(ctx, "probe"); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUpstream, "failed to connect to object store")
	}

	log.Info("Object store client connected",
		logging.String("endpoint", cfg.Endpoint), logging.Bool("ssl", cfg.UseSSL))
	return &Client{api: api, config: cfg, logger: log}, nil
}

// NewClientWithAPI wires a pre-built API, used by tests.
func NewClientWithAPI(api ObjectAPI, log logging.Logger) *Client {
	return &Client{api: api, config: &Config{}, logger: log}
}

// Get reads the full object bucket/key.
func (c *Client) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := c.api.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUpstream, "object store get failed")
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.StatusCode == 404 {
			return nil, errors.NotFound("object not found").WithDetail(bucket + "/" + key)
		}
		return nil, errors.Wrap(err, errors.ErrCodeUpstream, "object store read failed")
	}
	return data, nil
}

// Put writes data to bucket/key with the given content type.
func (c *Client) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := c.api.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeUpstream, "object store put failed")
	}
	c.logger.Debug("Stored object",
		logging.String("bucket", bucket), logging.String("key", key), logging.Int("bytes", len(data)))
	return nil
}
