package content

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/turtacn/VisionServe/internal/domain/predict"
	"github.com/turtacn/VisionServe/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/VisionServe/pkg/errors"
)

// videoHandler splits a video into decimated frames for the predictor and
// re-encodes rendered frames into a result clip.
type videoHandler struct {
	req  *predict.Request
	deps Deps

	effectiveFPS float64
}

func newVideoHandler(req *predict.Request, deps Deps) *videoHandler {
	return &videoHandler{req: req, deps: deps}
}

// targetFPS reads options.video.fps; zero means native rate.
func (h *videoHandler) targetFPS() float64 {
	if v, ok := h.req.VideoOption("fps").(float64); ok && v > 0 {
		return v
	}
	return 0
}

// frameList reads options.video.frames, an explicit list of zero-based
// frame indexes that overrides rate decimation.
func (h *videoHandler) frameList() map[int]bool {
	raw, ok := h.req.VideoOption("frames").([]interface{})
	if !ok || len(raw) == 0 {
		return nil
	}
	set := make(map[int]bool, len(raw))
	for _, v := range raw {
		if n, ok := v.(float64); ok && n >= 0 {
			set[int(n)] = true
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

func (h *videoHandler) Fetch(ctx context.Context, uploads [][]byte) ([]Item, float64, error) {
	input := h.req.Data[0]
	var data []byte
	if len(uploads) > 0 {
		data = uploads[0]
	} else {
		var err error
		data, err = h.deps.Transport.Fetch(ctx, input.URL)
		if err != nil {
			return nil, 0, err
		}
	}

	dir, err := os.MkdirTemp("", "visionserve-video-")
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to create temp dir")
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "input"+Ext(input.ContentType))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to stage video")
	}

	codec := h.deps.codec()
	info, err := codec.Probe(ctx, path)
	if err != nil {
		return nil, 0, err
	}

	var frames []*Frame
	if set := h.frameList(); set != nil {
		frames, err = h.readListed(ctx, codec, path, info, set)
		h.effectiveFPS = info.FPS
	} else {
		sampler := NewSampler(info.FPS, h.targetFPS())
		frames, err = h.readSampled(ctx, codec, path, info, sampler)
		h.effectiveFPS = sampler.Effective()
	}
	if err != nil {
		return nil, 0, err
	}
	if len(frames) == 0 {
		return nil, 0, errors.New(errors.ErrCodeMediaDecodeFailed, "no decodable frames in video")
	}

	h.deps.logger().Debug("Video split into frames",
		logging.String("url", input.URL),
		logging.Int("frames", len(frames)),
		logging.Float64("fps", h.effectiveFPS))
	if h.deps.Metrics != nil {
		h.deps.Metrics.FramesDecoded.WithLabelValues(h.req.TaskName).Add(float64(len(frames)))
	}

	items := make([]Item, len(frames))
	for i, f := range frames {
		items[i] = Item{ContentType: input.ContentType, Frame: f}
	}
	return items, h.effectiveFPS, nil
}

// readSampled walks the stream once, keeping frames the sampler selects.
// If the very first read fails the decoder is reopened once; any later
// failure truncates the stream at the frames already read.
func (h *videoHandler) readSampled(ctx context.Context, codec Codec, path string, info *VideoInfo, sampler *Sampler) ([]*Frame, error) {
	reader, err := codec.OpenDecoder(ctx, path, info)
	if err != nil {
		return nil, err
	}
	defer func() { reader.Close() }()

	var frames []*Frame
	readAny := false
	for {
		frame, err := reader.Next()
		if err != nil {
			if !readAny {
				reader.Close()
				reader, err = codec.OpenDecoder(ctx, path, info)
				if err != nil {
					return nil, err
				}
				frame, err = reader.Next()
				if err != nil {
					return nil, errors.New(errors.ErrCodeMediaDecodeFailed, "video stream unreadable")
				}
			} else {
				break
			}
		}
		readAny = true
		if sampler.Keep() {
			frames = append(frames, frame)
		}
	}
	return frames, nil
}

// readListed keeps exactly the requested frame indexes, stopping once the
// highest index has been passed.
func (h *videoHandler) readListed(ctx context.Context, codec Codec, path string, info *VideoInfo, set map[int]bool) ([]*Frame, error) {
	maxIdx := 0
	for idx := range set {
		if idx > maxIdx {
			maxIdx = idx
		}
	}

	reader, err := codec.OpenDecoder(ctx, path, info)
	if err != nil {
		return nil, err
	}
	defer func() { reader.Close() }()

	var frames []*Frame
	for idx := 0; idx <= maxIdx; idx++ {
		frame, err := reader.Next()
		if err != nil {
			if idx == 0 && err != io.EOF {
				reader.Close()
				reader, err = codec.OpenDecoder(ctx, path, info)
				if err != nil {
					return nil, err
				}
				frame, err = reader.Next()
				if err != nil {
					return nil, errors.New(errors.ErrCodeMediaDecodeFailed, "video stream unreadable")
				}
			} else {
				break
			}
		}
		if set[idx] {
			frames = append(frames, frame)
		}
	}
	return frames, nil
}

// UploadResults encodes rendered frames into a clip at the effective rate
// and uploads it to the input's results_to_show destination.  The whole
// clip succeeds or fails as one, so every rendered unit gets the same flag.
func (h *videoHandler) UploadResults(ctx context.Context, rendered []Item) ([]bool, error) {
	flags := func(ok bool) []bool {
		out := make([]bool, len(rendered))
		for i := range out {
			out[i] = ok
		}
		return out
	}

	dest := h.req.Data[0].ResultsToShow
	if dest == nil || len(rendered) == 0 {
		return flags(false), nil
	}

	frames := make([]*Frame, 0, len(rendered))
	for _, item := range rendered {
		if item.Frame != nil {
			frames = append(frames, item.Frame)
		}
	}
	if len(frames) == 0 {
		return flags(false), nil
	}

	dir, err := os.MkdirTemp("", "visionserve-encode-")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create temp dir")
	}
	defer os.RemoveAll(dir)

	contentType := dest.ContentType
	if contentType == "" {
		contentType = MIMEMP4
	}
	outPath := filepath.Join(dir, "result"+Ext(contentType))

	fps := h.effectiveFPS
	if fps <= 0 {
		fps = 25
	}
	if err := h.deps.codec().Encode(ctx, frames, fps, outPath); err != nil {
		h.deps.logger().Warn("Result clip encode failed",
			logging.String("url", dest.URL), logging.Err(err))
		return flags(false), nil
	}

	encoded, err := os.ReadFile(outPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read encoded clip")
	}
	if err := h.deps.Transport.Put(ctx, dest.URL, encoded, contentType); err != nil {
		h.deps.logger().Warn("Result clip upload failed",
			logging.String("url", dest.URL), logging.Err(err))
		return flags(false), nil
	}
	return flags(true), nil
}
