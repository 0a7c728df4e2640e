package content

import (
	"context"

	"github.com/turtacn/VisionServe/internal/domain/predict"
	"github.com/turtacn/VisionServe/internal/infrastructure/monitoring/logging"
)

// imageHandler decodes still images for the predictor and uploads rendered
// overlays to each input's results_to_show destination.
type imageHandler struct {
	req  *predict.Request
	deps Deps
}

func newImageHandler(req *predict.Request, deps Deps) *imageHandler {
	return &imageHandler{req: req, deps: deps}
}

func (h *imageHandler) Fetch(ctx context.Context, uploads [][]byte) ([]Item, float64, error) {
	payloads, err := fetchInputs(ctx, h.deps, h.req.Data, uploads)
	if err != nil {
		return nil, 0, err
	}

	items := make([]Item, len(payloads))
	for i, data := range payloads {
		frame, err := DecodeFrame(data)
		if err != nil {
			return nil, 0, err
		}
		var contentType string
		if i < len(h.req.Data) {
			contentType = h.req.Data[i].ContentType
		}
		items[i] = Item{Data: data, ContentType: contentType, Frame: frame}
	}
	return items, 0, nil
}

// UploadResults encodes rendered[i] to the ith input's results_to_show
// content type and uploads it there.  Inputs without a destination are
// skipped and reported unsuccessful.
func (h *imageHandler) UploadResults(ctx context.Context, rendered []Item) ([]bool, error) {
	ok := make([]bool, len(rendered))
	for i, item := range rendered {
		if i >= len(h.req.Data) {
			break
		}
		dest := h.req.Data[i].ResultsToShow
		if dest == nil || item.Frame == nil {
			continue
		}

		encoded, err := EncodeFrame(item.Frame, dest.ContentType)
		if err != nil {
			h.deps.logger().Warn("Rendered image encode failed",
				logging.String("url", dest.URL),
				logging.Err(err))
			continue
		}
		contentType := dest.ContentType
		if contentType == "" {
			contentType = MIMEJPEG
		}
		if err := h.deps.Transport.Put(ctx, dest.URL, encoded, contentType); err != nil {
			h.deps.logger().Warn("Rendered image upload failed",
				logging.String("url", dest.URL),
				logging.Err(err))
			continue
		}
		ok[i] = true
	}
	return ok, nil
}
