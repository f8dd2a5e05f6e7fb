// Package vision binds the OpenCV side of the follower: face detectors, the webcam
// source and the overlay window.
package vision

import (
	"gocv.io/x/gocv"
)

// Frame wraps a BGR image. The drive loop closes it at the end of each cycle.
type Frame struct {
	Mat gocv.Mat
}

// Size returns the frame width and height. An empty Mat reports 0x0.
func (f Frame) Size() (width, height int) {
	if f.Mat.Empty() {
		return 0, 0
	}
	return f.Mat.Cols(), f.Mat.Rows()
}

// Close releases the underlying Mat.
func (f Frame) Close() error {
	return f.Mat.Close()
}

// FromBGR wraps raw bgr24 bytes of a width x height image.
func FromBGR(width, height int, buf []byte) (Frame, error) {
	img, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, buf)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Mat: img}, nil
}
