package vision

import (
	"context"
	"fmt"
	"io"

	"gocv.io/x/gocv"

	"github.com/Skarlso/drone-pilot/internal/follow"
)

// Webcam reads frames from a local capture device.
type Webcam struct {
	capture *gocv.VideoCapture
}

// OpenWebcam opens capture device id.
func OpenWebcam(id int) (*Webcam, error) {
	capture, err := gocv.VideoCaptureDevice(id)
	if err != nil {
		return nil, fmt.Errorf("open capture device %d: %w", id, err)
	}
	return &Webcam{capture: capture}, nil
}

// Next implements follow.FrameSource. A closed device ends the stream with io.EOF.
func (w *Webcam) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	img := gocv.NewMat()
	if ok := w.capture.Read(&img); !ok {
		img.Close()
		return Frame{}, fmt.Errorf("capture device closed: %w", io.EOF)
	}
	if img.Empty() {
		img.Close()
		return Frame{}, follow.ErrNotReady
	}
	return Frame{Mat: img}, nil
}

// Close releases the device.
func (w *Webcam) Close() error {
	return w.capture.Close()
}
