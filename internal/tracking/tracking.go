// Package tracking picks the face to follow out of a set of detections.
//
// Boxes are reduced to a proxy 3-D point: the box centre in pixels plus a depth
// derived from the box size. Depth is distance-like: a bigger box is assumed to be
// closer to the camera and therefore gets a smaller Z.
package tracking

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// BoundingBox is a face rectangle in (top, right, bottom, left) order, in pixels of
// the original, uncompressed frame.
type BoundingBox struct {
	Top, Right, Bottom, Left int
}

// Width of the box in pixels.
func (b BoundingBox) Width() int { return b.Right - b.Left }

// Height of the box in pixels.
func (b BoundingBox) Height() int { return b.Bottom - b.Top }

// Valid reports whether the box satisfies right >= left and bottom >= top.
func (b BoundingBox) Valid() bool { return b.Right >= b.Left && b.Bottom >= b.Top }

// Scale multiplies every edge by factor. Detectors use it to map boxes found on a
// compressed frame back to source resolution.
func (b BoundingBox) Scale(factor int) BoundingBox {
	return BoundingBox{
		Top:    b.Top * factor,
		Right:  b.Right * factor,
		Bottom: b.Bottom * factor,
		Left:   b.Left * factor,
	}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("trbl(%d,%d,%d,%d)", b.Top, b.Right, b.Bottom, b.Left)
}

// Space converts boxes to proxy 3-D points.
type Space struct {
	// ZeroDepthBoxSize is the mean side length (px) of a box at depth 0.
	ZeroDepthBoxSize int
}

// BoxCenter returns the proxy centre of b: x and y are the pixel centre
// (integer halves), z is ZeroDepthBoxSize minus the mean of width and height.
func (s Space) BoxCenter(b BoundingBox) r3.Vector {
	w, h := b.Width(), b.Height()
	return r3.Vector{
		X: float64(b.Left + w/2),
		Y: float64(b.Top + h/2),
		Z: float64(s.ZeroDepthBoxSize - (w+h)/2),
	}
}

// Reference is the point the follower steers towards: the frame centre at the depth
// where a box of targetBoxSize pixels would sit.
func (s Space) Reference(frameWidth, frameHeight, targetBoxSize int) r3.Vector {
	return r3.Vector{
		X: float64(frameWidth / 2),
		Y: float64(frameHeight / 2),
		Z: float64(s.ZeroDepthBoxSize - targetBoxSize),
	}
}

// Target is the outcome of a selection.
type Target struct {
	Box      BoundingBox
	Center   r3.Vector
	Distance float64
	// Displacement is Center minus the reference point.
	Displacement r3.Vector
}

// SelectClosest returns the box whose proxy centre is nearest to ref. Ties go to the
// box that comes first in boxes. ok is false when boxes is empty, which callers treat
// as "no target" rather than an error.
func (s Space) SelectClosest(boxes []BoundingBox, ref r3.Vector) (t Target, ok bool) {
	for i, b := range boxes {
		c := s.BoxCenter(b)
		d := c.Distance(ref)
		if i == 0 || d < t.Distance {
			t = Target{Box: b, Center: c, Distance: d}
		}
	}
	if len(boxes) == 0 {
		return Target{}, false
	}
	t.Displacement = t.Center.Sub(ref)
	return t, true
}
