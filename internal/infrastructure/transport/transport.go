// Package transport moves payload bytes between the service and remote
// resources.  A single Transport dispatches on URL scheme: http/https hit
// the network, file serves the local filesystem, s3 goes through the
// object store.  All calls honor the caller's context deadline.
package transport

import (
	"context"
	"net/url"
	"time"

	"github.com/turtacn/VisionServe/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/VisionServe/pkg/errors"
)

// Fetcher retrieves the full payload behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Putter stores a payload at a URL with the given content type.
type Putter interface {
	Put(ctx context.Context, rawURL string, data []byte, contentType string) error
}

// Transport is the scheme-dispatching fetcher/putter used by every content
// handler.
type Transport interface {
	Fetcher
	Putter
}

type scheme interface {
	Fetcher
	Putter
}

// Observer receives one callback per completed transfer.  Direction is
// "download" or "upload".
type Observer interface {
	ObserveTransfer(direction, scheme string, bytes int, elapsed time.Duration)
}

type transport struct {
	schemes  map[string]scheme
	logger   logging.Logger
	observer Observer
}

// Options configures optional backends.  The object store is nil when the
// deployment has no s3 access; Observer is nil when transfers are not
// measured.
type Options struct {
	HTTP        *HTTPConfig
	ObjectStore ObjectStore
	Logger      logging.Logger
	Observer    Observer
}

// New builds a Transport with http/https, file and, when an object store is
// supplied, s3 scheme support.
func New(opts Options) Transport {
	log := opts.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}

	httpScheme := newHTTPScheme(opts.HTTP, log)
	fileScheme := newFileScheme(log)

	schemes := map[string]scheme{
		"http":  httpScheme,
		"https": httpScheme,
		"file":  fileScheme,
	}
	if opts.ObjectStore != nil {
		schemes["s3"] = newS3Scheme(opts.ObjectStore, log)
	}
	return &transport{schemes: schemes, logger: log, observer: opts.Observer}
}

func (t *transport) resolve(rawURL string) (scheme, *url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, errors.InvalidParam("invalid url").WithCause(err)
	}
	s, ok := t.schemes[u.Scheme]
	if !ok {
		return nil, nil, errors.InvalidParam("unsupported url scheme").WithDetail(u.Scheme)
	}
	return s, u, nil
}

func (t *transport) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	s, u, err := t.resolve(rawURL)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	data, err := s.Fetch(ctx, rawURL)
	if err == nil && t.observer != nil {
		t.observer.ObserveTransfer("download", u.Scheme, len(data), time.Since(start))
	}
	return data, err
}

func (t *transport) Put(ctx context.Context, rawURL string, data []byte, contentType string) error {
	s, u, err := t.resolve(rawURL)
	if err != nil {
		return err
	}
	start := time.Now()
	if err := s.Put(ctx, rawURL, data, contentType); err != nil {
		return err
	}
	if t.observer != nil {
		t.observer.ObserveTransfer("upload", u.Scheme, len(data), time.Since(start))
	}
	return nil
}
