package content

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/VisionServe/internal/domain/predict"
	"github.com/turtacn/VisionServe/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/VisionServe/internal/infrastructure/transport"
)

type fakeReader struct {
	frames    []*Frame
	idx       int
	failAt    int // frame index whose read fails, -1 for none
	failedYet bool
}

func (r *fakeReader) Next() (*Frame, error) {
	if r.failAt >= 0 && r.idx == r.failAt && !r.failedYet {
		r.failedYet = true
		return nil, io.ErrUnexpectedEOF
	}
	if r.idx >= len(r.frames) {
		return nil, io.EOF
	}
	f := r.frames[r.idx]
	r.idx++
	return f, nil
}

func (r *fakeReader) Close() error { return nil }

type fakeCodec struct {
	info          *VideoInfo
	frames        []*Frame
	failFirstOpen bool
	opens         int

	encodedFrames []*Frame
	encodedFPS    float64
}

func (c *fakeCodec) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	return c.info, nil
}

func (c *fakeCodec) OpenDecoder(ctx context.Context, path string, info *VideoInfo) (FrameReader, error) {
	c.opens++
	failAt := -1
	if c.failFirstOpen && c.opens == 1 {
		failAt = 0
	}
	return &fakeReader{frames: c.frames, failAt: failAt}, nil
}

func (c *fakeCodec) Encode(ctx context.Context, frames []*Frame, fps float64, outPath string) error {
	c.encodedFrames = frames
	c.encodedFPS = fps
	return os.WriteFile(outPath, []byte("encoded-clip"), 0o644)
}

func videoFrames(n int) []*Frame {
	frames := make([]*Frame, n)
	for i := range frames {
		frames[i] = solidFrame(4, 4, byte(i), 0, 0)
	}
	return frames
}

func videoTestSetup(t *testing.T, codec Codec, options map[string]interface{}) (*videoHandler, string) {
	t.Helper()
	dir := t.TempDir()
	in := writeTemp(t, dir, "clip.mp4", []byte("fake video bytes"))
	showPath := filepath.Join(dir, "show.mp4")

	req := &predict.Request{
		Mode:    predict.ModeSimple,
		Options: options,
		Data: []predict.Input{{
			URL:         "file://" + in,
			ContentType: MIMEMP4,
			ResultsToShow: &predict.Destination{
				URL:         "file://" + showPath,
				ContentType: MIMEMP4,
			},
		}},
	}
	deps := Deps{
		Transport: transport.New(transport.Options{Logger: logging.NewNopLogger()}),
		Pool:      transport.NewPool(2),
		Codec:     codec,
		Logger:    logging.NewNopLogger(),
	}
	return newVideoHandler(req, deps), showPath
}

func TestVideoHandlerDecimates(t *testing.T) {
	codec := &fakeCodec{
		info:   &VideoInfo{Width: 4, Height: 4, FPS: 30, FrameCount: 30},
		frames: videoFrames(30),
	}
	h, _ := videoTestSetup(t, codec, map[string]interface{}{
		"video": map[string]interface{}{"fps": float64(10)},
	})

	items, fps, err := h.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 10.0, fps)
	// frame 0 is always kept, then one frame per tenth of a second
	assert.Len(t, items, 11)
	assert.Equal(t, byte(0), items[0].Frame.Pix[0])
	assert.Equal(t, byte(2), items[1].Frame.Pix[0])
	assert.Equal(t, byte(5), items[2].Frame.Pix[0])
	for _, item := range items {
		require.NotNil(t, item.Frame)
	}
}

func TestVideoHandlerNativeRateDefault(t *testing.T) {
	codec := &fakeCodec{
		info:   &VideoInfo{Width: 4, Height: 4, FPS: 25},
		frames: videoFrames(12),
	}
	h, _ := videoTestSetup(t, codec, nil)

	items, fps, err := h.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 25.0, fps)
	assert.Len(t, items, 12)
}

func TestVideoHandlerFrameListOverride(t *testing.T) {
	codec := &fakeCodec{
		info:   &VideoInfo{Width: 4, Height: 4, FPS: 30},
		frames: videoFrames(30),
	}
	h, _ := videoTestSetup(t, codec, map[string]interface{}{
		"video": map[string]interface{}{"frames": []interface{}{float64(0), float64(2), float64(4)}},
	})

	items, fps, err := h.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 30.0, fps)
	require.Len(t, items, 3)
	// frame identity follows the requested indexes
	assert.Equal(t, byte(0), items[0].Frame.Pix[0])
	assert.Equal(t, byte(2), items[1].Frame.Pix[0])
	assert.Equal(t, byte(4), items[2].Frame.Pix[0])
}

func TestVideoHandlerReopensOnFirstReadFailure(t *testing.T) {
	codec := &fakeCodec{
		info:          &VideoInfo{Width: 4, Height: 4, FPS: 10},
		frames:        videoFrames(5),
		failFirstOpen: true,
	}
	h, _ := videoTestSetup(t, codec, nil)

	items, _, err := h.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, items, 5)
	assert.Equal(t, 2, codec.opens)
}

func TestVideoHandlerTruncatesOnLaterFailure(t *testing.T) {
	// reader fails mid-stream; frames before the failure survive
	codec := &fakeCodec{
		info:   &VideoInfo{Width: 4, Height: 4, FPS: 10, FrameCount: 100},
		frames: videoFrames(7),
	}
	h, _ := videoTestSetup(t, codec, nil)

	items, _, err := h.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, items, 7)
}

func TestVideoHandlerUploadEncodesAtEffectiveRate(t *testing.T) {
	codec := &fakeCodec{
		info:   &VideoInfo{Width: 4, Height: 4, FPS: 30},
		frames: videoFrames(30),
	}
	h, showPath := videoTestSetup(t, codec, map[string]interface{}{
		"video": map[string]interface{}{"fps": float64(10)},
	})

	items, _, err := h.Fetch(context.Background(), nil)
	require.NoError(t, err)

	ok, err := h.UploadResults(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, ok, len(items))
	for _, flag := range ok {
		assert.True(t, flag)
	}
	assert.Equal(t, 10.0, codec.encodedFPS)
	assert.Len(t, codec.encodedFrames, 11)

	stored, err := os.ReadFile(showPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("encoded-clip"), stored)
}

func TestVideoHandlerFetchFromUploads(t *testing.T) {
	codec := &fakeCodec{info: &VideoInfo{Width: 4, Height: 4, FPS: 10}, frames: videoFrames(4)}

	req := &predict.Request{
		Mode: predict.ModeSimple,
		Data: []predict.Input{{URL: "file:///never/fetched", ContentType: MIMEMP4}},
	}
	h := newVideoHandler(req, Deps{
		Transport: transport.New(transport.Options{Logger: logging.NewNopLogger()}),
		Pool:      transport.NewPool(2),
		Codec:     codec,
		Logger:    logging.NewNopLogger(),
	})

	items, fps, err := h.Fetch(context.Background(), [][]byte{[]byte("clip bytes")})
	require.NoError(t, err)
	assert.Equal(t, 10.0, fps)
	assert.Len(t, items, 4)
}

func TestVideoHandlerUploadWithoutDestination(t *testing.T) {
	codec := &fakeCodec{info: &VideoInfo{Width: 4, Height: 4, FPS: 10}, frames: videoFrames(3)}
	dir := t.TempDir()
	in := writeTemp(t, dir, "clip.mp4", []byte("v"))

	req := &predict.Request{
		Mode: predict.ModeSimple,
		Data: []predict.Input{{URL: "file://" + in, ContentType: MIMEMP4}},
	}
	h := newVideoHandler(req, Deps{
		Transport: transport.New(transport.Options{Logger: logging.NewNopLogger()}),
		Pool:      transport.NewPool(2),
		Codec:     codec,
		Logger:    logging.NewNopLogger(),
	})

	items, _, err := h.Fetch(context.Background(), nil)
	require.NoError(t, err)

	// one flag per rendered unit, all false without a destination
	ok, err := h.UploadResults(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, false}, ok)
}
