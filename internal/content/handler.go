package content

import (
	"context"

	"github.com/turtacn/VisionServe/internal/domain/predict"
	"github.com/turtacn/VisionServe/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/VisionServe/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/VisionServe/internal/infrastructure/transport"
	"github.com/turtacn/VisionServe/pkg/errors"
)

// Item is one unit of content exchanged with a predictor.  File payloads
// carry Data only; decoded visual payloads carry Frame, with Data holding
// the original encoded bytes when available.
type Item struct {
	Data        []byte
	ContentType string
	Frame       *Frame
}

// Handler moves one request's payloads in and rendered results out.
//
// Fetch returns predictor inputs in request order plus the effective
// frame rate, which is zero for non-video content.  When uploads is
// non-empty those in-memory payloads stand in for the inputs and nothing
// is fetched.  UploadResults takes one rendered item per destination and
// returns a per-item success flag; a failed upload is reported, never
// fatal.
type Handler interface {
	Fetch(ctx context.Context, uploads [][]byte) ([]Item, float64, error)
	UploadResults(ctx context.Context, rendered []Item) ([]bool, error)
}

// Deps carries the shared infrastructure handlers run on.  Metrics is
// optional.
type Deps struct {
	Transport transport.Transport
	Pool      *transport.Pool
	Codec     Codec
	Logger    logging.Logger
	Metrics   *prometheus.PipelineMetrics
}

func (d *Deps) logger() logging.Logger {
	if d.Logger == nil {
		return logging.NewNopLogger()
	}
	return d.Logger
}

func (d *Deps) codec() Codec {
	if d.Codec == nil {
		return NewFFmpegCodec()
	}
	return d.Codec
}

// NewHandler selects the handler for a validated request.  Dispatch is by
// mode first, then by the first input's declared content type.
func NewHandler(req *predict.Request, deps Deps) (Handler, error) {
	switch req.Mode {
	case predict.ModeFile:
		return newFileHandler(req, deps), nil
	case predict.ModeImage:
		if req.Data[0].IsVideo() {
			return nil, errors.NotImplemented("algorithm_type:image video not supported")
		}
		return newImageHandler(req, deps), nil
	case predict.ModeSimple:
		first := req.Data[0]
		switch {
		case first.IsVideo():
			return newVideoHandler(req, deps), nil
		case first.IsImage():
			return newImageHandler(req, deps), nil
		default:
			return nil, errors.New(errors.ErrCodeMediaTypeUnsupported, "unsupported content type").
				WithDetail(first.ContentType)
		}
	}
	return nil, errors.InvalidParam("invalid algorithm_type").WithDetail(req.Mode)
}

// fetchInputs resolves input payloads, taking caller-supplied uploads
// verbatim when present.  A fetch failure other than an exhausted deadline
// surfaces as NotFound: from the caller's side the input simply was not
// there.
func fetchInputs(ctx context.Context, deps Deps, inputs []predict.Input, uploads [][]byte) ([][]byte, error) {
	if len(uploads) > 0 {
		return uploads, nil
	}
	payloads, err := fetchAll(ctx, deps, inputs)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeTimeout) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrCodeNotFound, "input resource not available")
	}
	return payloads, nil
}

// fetchAll downloads every input through the shared pool, preserving
// request order.
func fetchAll(ctx context.Context, deps Deps, inputs []predict.Input) ([][]byte, error) {
	futures := make([]*transport.Future[[]byte], len(inputs))
	for i, in := range inputs {
		url := in.URL
		futures[i] = transport.Go(ctx, deps.Pool, func(ctx context.Context) ([]byte, error) {
			return deps.Transport.Fetch(ctx, url)
		})
	}
	return transport.WaitAll(ctx, futures)
}
