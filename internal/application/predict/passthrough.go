package predict

import (
	"context"

	"github.com/turtacn/VisionServe/internal/content"
)

// Passthrough is a predictor that describes its inputs instead of running
// a model.  Deployments use it to smoke-test the pipeline; tests use it to
// observe exactly what reaches the inference boundary.
type Passthrough struct{}

func (Passthrough) Predict(ctx context.Context, items []content.Item, params map[string]interface{}) (*Outcome, error) {
	results := make([]interface{}, len(items))
	for i, item := range items {
		entry := map[string]interface{}{
			"content_type": item.ContentType,
			"bytes":        len(item.Data),
		}
		if item.Frame != nil {
			entry["width"] = item.Frame.Width
			entry["height"] = item.Frame.Height
		}
		if fps, ok := params["fps"]; ok {
			entry["fps"] = fps
		}
		results[i] = entry
	}
	return &Outcome{Results: results}, nil
}

// EchoRenderer hands inputs back as rendered artifacts unchanged.  Paired
// with Passthrough it exercises the upload path without a model.
type EchoRenderer struct{}

func (EchoRenderer) Render(ctx context.Context, items []content.Item, results []interface{}, args map[string]interface{}) ([]content.Item, error) {
	out := make([]content.Item, len(items))
	copy(out, items)
	return out, nil
}
