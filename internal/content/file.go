package content

import (
	"context"

	"github.com/turtacn/VisionServe/internal/domain/predict"
	"github.com/turtacn/VisionServe/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/VisionServe/pkg/errors"
)

// fileHandler passes opaque payloads through untouched.  The predictor
// receives raw bytes and produces one output file per configured MIME.
type fileHandler struct {
	req  *predict.Request
	deps Deps
}

func newFileHandler(req *predict.Request, deps Deps) *fileHandler {
	return &fileHandler{req: req, deps: deps}
}

func (h *fileHandler) Fetch(ctx context.Context, uploads [][]byte) ([]Item, float64, error) {
	payloads, err := fetchInputs(ctx, h.deps, h.req.Data, uploads)
	if err != nil {
		return nil, 0, err
	}
	items := make([]Item, len(payloads))
	for i, data := range payloads {
		var contentType string
		if i < len(h.req.Data) {
			contentType = h.req.Data[i].ContentType
		}
		items[i] = Item{Data: data, ContentType: contentType}
	}
	return items, 0, nil
}

// UploadResults stores each predictor output at its configured
// destination, pairing rendered[i] with the request's ith upload slot.
func (h *fileHandler) UploadResults(ctx context.Context, rendered []Item) ([]bool, error) {
	if len(rendered) > len(h.req.ResultsFiles) {
		return nil, errors.InvalidParam("more result files than upload destinations")
	}

	ok := make([]bool, len(rendered))
	for i, item := range rendered {
		dest := h.req.ResultsFiles[i]
		contentType := item.ContentType
		if contentType == "" {
			contentType = dest.ContentType
		}
		if err := h.deps.Transport.Put(ctx, dest.URL, item.Data, contentType); err != nil {
			h.deps.logger().Warn("Result file upload failed",
				logging.String("url", dest.URL),
				logging.Err(err))
			continue
		}
		ok[i] = true
	}
	return ok, nil
}
