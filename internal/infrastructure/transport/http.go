package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/turtacn/VisionServe/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/VisionServe/pkg/errors"
)

// HTTPConfig tunes the shared HTTP client.  Per-request deadlines come
// from the caller's context; Timeout is only a hard upper bound.
type HTTPConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout"`
}

type httpScheme struct {
	client *http.Client
	logger logging.Logger
}

func newHTTPScheme(cfg *HTTPConfig, log logging.Logger) *httpScheme {
	if cfg == nil {
		cfg = &HTTPConfig{}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 32
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}
	return &httpScheme{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        cfg.MaxIdleConns,
				MaxIdleConnsPerHost: cfg.MaxIdleConns,
				IdleConnTimeout:     cfg.IdleConnTimeout,
			},
		},
		logger: log,
	}
}

func (h *httpScheme) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.InvalidParam("invalid url").WithCause(err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, wrapNetErr(ctx, err, "fetch failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.NotFound("resource not found").WithDetail(rawURL)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, errors.Upstream("fetch returned non-2xx status").
			WithDetail(resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapNetErr(ctx, err, "fetch body read failed")
	}
	return data, nil
}

func (h *httpScheme) Put(ctx context.Context, rawURL string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, rawURL, bytes.NewReader(data))
	if err != nil {
		return errors.InvalidParam("invalid url").WithCause(err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))

	resp, err := h.client.Do(req)
	if err != nil {
		return wrapNetErr(ctx, err, "upload failed")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Upstream("upload returned non-2xx status").WithDetail(resp.Status)
	}
	return nil
}

// wrapNetErr classifies a transport-level failure.  Context expiry maps to
// the timeout code so budget exhaustion mid-transfer surfaces uniformly.
func wrapNetErr(ctx context.Context, err error, msg string) error {
	if ctx.Err() != nil {
		return errors.Timeout(msg).WithCause(err)
	}
	return errors.Upstream(msg).WithCause(err)
}
