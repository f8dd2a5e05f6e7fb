package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"

	"gobot.io/x/gobot/platforms/dji/tello"

	"github.com/Skarlso/drone-pilot/internal/follow"
	"github.com/Skarlso/drone-pilot/internal/vision"
)

// VideoSource decodes the drone's H.264 stream through an ffmpeg child process and
// serves raw BGR frames. Only the newest decoded frame is kept, so a slow consumer
// skips frames instead of falling behind.
type VideoSource struct {
	width, height int
	logger        *slog.Logger

	cmd *exec.Cmd
	in  io.WriteCloser
	out io.ReadCloser

	frames chan []byte
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// NewVideoSource prepares ffmpeg to scale the stream to width x height.
func NewVideoSource(width, height int, logger *slog.Logger) (*VideoSource, error) {
	cmd := exec.Command("ffmpeg", "-hwaccel", "auto", "-hwaccel_device", "opencl", "-i", "pipe:0",
		"-pix_fmt", "bgr24", "-s", strconv.Itoa(width)+"x"+strconv.Itoa(height), "-f", "rawvideo", "pipe:1")
	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin: %w", err)
	}
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	return &VideoSource{
		width:  width,
		height: height,
		logger: logger,
		cmd:    cmd,
		in:     in,
		out:    out,
		frames: make(chan []byte, 1),
		done:   make(chan struct{}),
	}, nil
}

// Attach feeds the drone's video packets into ffmpeg and starts decoding.
func (v *VideoSource) Attach(t *Tello) error {
	if err := v.cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	if err := t.Driver().On(tello.VideoFrameEvent, func(data interface{}) {
		pkt, ok := data.([]byte)
		if !ok {
			return
		}
		if _, err := v.in.Write(pkt); err != nil {
			v.logger.Debug("writing video packet", "error", err)
		}
	}); err != nil {
		return err
	}
	go v.read()
	return nil
}

func (v *VideoSource) read() {
	defer close(v.done)
	size := v.width * v.height * 3
	for {
		buf := make([]byte, size)
		if _, err := io.ReadFull(v.out, buf); err != nil {
			v.mu.Lock()
			v.err = err
			v.mu.Unlock()
			return
		}
		// Drop the stale frame, if any, so the next read sees this one.
		select {
		case <-v.frames:
		default:
		}
		v.frames <- buf
	}
}

// Next implements follow.FrameSource.
func (v *VideoSource) Next(ctx context.Context) (vision.Frame, error) {
	select {
	case buf := <-v.frames:
		return vision.FromBGR(v.width, v.height, buf)
	case <-v.done:
		v.mu.Lock()
		defer v.mu.Unlock()
		if errors.Is(v.err, io.ErrUnexpectedEOF) {
			return vision.Frame{}, fmt.Errorf("video stream ended: %w", io.EOF)
		}
		return vision.Frame{}, fmt.Errorf("video stream ended: %w", v.err)
	case <-ctx.Done():
		return vision.Frame{}, ctx.Err()
	}
}

// Close stops ffmpeg.
func (v *VideoSource) Close() error {
	_ = v.in.Close()
	if v.cmd.Process == nil {
		return nil
	}
	_ = v.cmd.Process.Kill()
	_ = v.cmd.Wait()
	return nil
}

var _ follow.FrameSource[vision.Frame] = (*VideoSource)(nil)
