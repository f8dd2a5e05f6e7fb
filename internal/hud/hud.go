// Package hud computes what the debug overlay draws: crosshairs, colours and the
// readout line. Drawing itself happens in the vision package.
package hud

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/colornames"

	"github.com/Skarlso/drone-pilot/internal/control"
	"github.com/Skarlso/drone-pilot/internal/tracking"
)

// Overlay colours.
var (
	FaceColor   = colornames.Lime
	TargetColor = colornames.Red
	CenterColor = colornames.Red
	TextColor   = colornames.White
)

// Segment is a straight line between two points.
type Segment struct {
	From, To image.Point
}

// Crosshair returns the horizontal and vertical strokes of a crosshair of the given
// half length around c.
func Crosshair(c image.Point, halfLength int) [2]Segment {
	return [2]Segment{
		{From: image.Pt(c.X-halfLength, c.Y), To: image.Pt(c.X+halfLength, c.Y)},
		{From: image.Pt(c.X, c.Y-halfLength), To: image.Pt(c.X, c.Y+halfLength)},
	}
}

// FrameCrosshair is the crosshair marking the centre of a width x height frame.
func FrameCrosshair(width, height, halfLength int) [2]Segment {
	return Crosshair(image.Pt(width/2, height/2), halfLength)
}

// BoxCrosshair is a small crosshair in the middle of b. The strokes never extend past
// the box.
func BoxCrosshair(b tracking.BoundingBox, size int) [2]Segment {
	length := min(size, b.Width(), b.Height())
	c := image.Pt((b.Left+b.Right)/2, (b.Top+b.Bottom)/2)
	return Crosshair(c, length/2)
}

// Rect converts a box into an image.Rectangle for drawing.
func Rect(b tracking.BoundingBox) image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// Box is one rectangle to draw.
type Box struct {
	Rect  image.Rectangle
	Color color.RGBA
	Cross [2]Segment
}

// Scene is everything the overlay needs for one frame.
type Scene struct {
	Boxes   []Box
	Center  [2]Segment
	Readout string
	// ReadoutAt is the bottom-left origin of the readout text.
	ReadoutAt image.Point
}

// Battery reports the last known battery percentage, or ok == false.
type Battery func() (percent int, ok bool)

// Compose lays out a frame: every face in FaceColor, the target in TargetColor, the
// frame-centre crosshair and the command readout along the bottom edge.
func Compose(width, height int, faces []tracking.BoundingBox, target *tracking.BoundingBox, cmd control.ControlState, battery Battery) Scene {
	s := Scene{
		Center:    FrameCrosshair(width, height, 20),
		Readout:   Readout(cmd, battery),
		ReadoutAt: image.Pt(10, height-10),
	}
	for _, f := range faces {
		s.Boxes = append(s.Boxes, Box{Rect: Rect(f), Color: FaceColor, Cross: BoxCrosshair(f, 4)})
	}
	if target != nil {
		s.Boxes = append(s.Boxes, Box{Rect: Rect(*target), Color: TargetColor, Cross: BoxCrosshair(*target, 4)})
	}
	return s
}

// Readout formats the command line shown on the overlay.
func Readout(cmd control.ControlState, battery Battery) string {
	text := fmt.Sprintf("Forward: %d, Right: %d, Up: %d, Yaw Right: %d",
		cmd.Forward, cmd.Right, cmd.Up, cmd.YawRight)
	if battery != nil {
		if pct, ok := battery(); ok {
			text += fmt.Sprintf(", Battery: %d%%", pct)
		}
	}
	return text
}
