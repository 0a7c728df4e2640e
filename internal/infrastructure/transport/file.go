package transport

import (
	"context"
	"net/url"
	"os"
	"path/filepath"

	"github.com/turtacn/VisionServe/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/VisionServe/pkg/errors"
)

// fileScheme serves file:// URLs from the local filesystem.  Batch jobs use
// it to feed staged inputs through the same path as remote ones.
type fileScheme struct {
	logger logging.Logger
}

func newFileScheme(log logging.Logger) *fileScheme {
	return &fileScheme{logger: log}
}

func filePath(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.InvalidParam("invalid file url").WithCause(err)
	}
	p := u.Path
	if u.Host != "" && u.Host != "localhost" {
		p = filepath.Join(u.Host, p)
	}
	if p == "" {
		return "", errors.InvalidParam("file url has empty path").WithDetail(rawURL)
	}
	return p, nil
}

func (f *fileScheme) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Timeout("fetch aborted").WithCause(err)
	}
	p, err := filePath(rawURL)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("file not found").WithDetail(p)
		}
		return nil, errors.Wrap(err, errors.ErrCodeUpstream, "file read failed")
	}
	return data, nil
}

func (f *fileScheme) Put(ctx context.Context, rawURL string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return errors.Timeout("upload aborted").WithCause(err)
	}
	p, err := filePath(rawURL)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeUpstream, "file write failed")
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrCodeUpstream, "file write failed")
	}
	return nil
}
