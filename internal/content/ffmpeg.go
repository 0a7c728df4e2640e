package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/turtacn/VisionServe/pkg/errors"
)

// VideoInfo is the probed geometry and rate of a video stream.
type VideoInfo struct {
	Width  int
	Height int
	FPS    float64
	// FrameCount is the container's declared frame count.  Containers
	// lie about it often enough that callers must treat it as a hint.
	FrameCount int
}

// Codec runs the external video codec processes.  Tests substitute a fake.
type Codec interface {
	Probe(ctx context.Context, path string) (*VideoInfo, error)
	OpenDecoder(ctx context.Context, path string, info *VideoInfo) (FrameReader, error)
	Encode(ctx context.Context, frames []*Frame, fps float64, outPath string) error
}

// FrameReader yields decoded frames in stream order.
type FrameReader interface {
	// Next returns the next frame, io.EOF at end of stream.
	Next() (*Frame, error)
	Close() error
}

type ffmpegCodec struct{}

// NewFFmpegCodec returns a Codec backed by the ffmpeg and ffprobe binaries.
func NewFFmpegCodec() Codec {
	return &ffmpegCodec{}
}

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
	} `json:"streams"`
}

// parseRate parses ffprobe's "num/den" rational frame rate.
func parseRate(s string) float64 {
	parts := strings.SplitN(s, "/", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0
	}
	if len(parts) == 1 {
		return num
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den == 0 {
		return 0
	}
	return num / den
}

func (c *ffmpegCodec) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,avg_frame_rate,nb_frames",
		"-of", "json",
		path)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMediaDecodeFailed, "ffprobe failed").
			WithDetail(strings.TrimSpace(stderr.String()))
	}

	var probed probeOutput
	if err := json.Unmarshal(out.Bytes(), &probed); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMediaDecodeFailed, "ffprobe output unreadable")
	}
	if len(probed.Streams) == 0 {
		return nil, errors.New(errors.ErrCodeMediaDecodeFailed, "no video stream found")
	}

	s := probed.Streams[0]
	fps := parseRate(s.RFrameRate)
	if fps == 0 {
		fps = parseRate(s.AvgFrameRate)
	}
	if s.Width <= 0 || s.Height <= 0 || fps <= 0 {
		return nil, errors.New(errors.ErrCodeMediaDecodeFailed, "video stream has invalid geometry")
	}
	frameCount, _ := strconv.Atoi(s.NbFrames)
	return &VideoInfo{Width: s.Width, Height: s.Height, FPS: fps, FrameCount: frameCount}, nil
}

type pipeReader struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	width  int
	height int
}

func (c *ffmpegCodec) OpenDecoder(ctx context.Context, path string, info *VideoInfo) (FrameReader, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-v", "error",
		"-i", path,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMediaDecodeFailed, "failed to open decoder pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMediaDecodeFailed, "failed to start decoder")
	}
	return &pipeReader{cmd: cmd, stdout: stdout, width: info.Width, height: info.Height}, nil
}

func (r *pipeReader) Next() (*Frame, error) {
	buf := make([]byte, frameSize(r.width, r.height))
	if _, err := io.ReadFull(r.stdout, buf); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		// A short read means the stream ended mid-frame.
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, errors.ErrCodeMediaDecodeFailed, "frame read failed")
	}
	return &Frame{Width: r.width, Height: r.height, Pix: buf}, nil
}

func (r *pipeReader) Close() error {
	r.stdout.Close()
	r.cmd.Process.Kill()
	r.cmd.Wait()
	return nil
}

func (c *ffmpegCodec) Encode(ctx context.Context, frames []*Frame, fps float64, outPath string) error {
	if len(frames) == 0 {
		return errors.New(errors.ErrCodeMediaEncodeFailed, "no frames to encode")
	}
	width, height := frames[0].Width, frames[0].Height

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-v", "error",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-pix_fmt", "yuv420p",
		outPath)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeMediaEncodeFailed, "failed to open encoder pipe")
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, errors.ErrCodeMediaEncodeFailed, "failed to start encoder")
	}

	var writeErr error
	for _, f := range frames {
		if f.Width != width || f.Height != height {
			writeErr = errors.New(errors.ErrCodeMediaEncodeFailed, "frame geometry changed mid-stream")
			break
		}
		if _, err := stdin.Write(f.Pix); err != nil {
			writeErr = errors.Wrap(err, errors.ErrCodeMediaEncodeFailed, "frame write failed")
			break
		}
	}
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		return errors.Wrap(err, errors.ErrCodeMediaEncodeFailed, "encode failed").
			WithDetail(strings.TrimSpace(stderr.String()))
	}
	return writeErr
}
