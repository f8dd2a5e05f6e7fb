package vision

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hybridgroup/mjpeg"
	"gocv.io/x/gocv"

	"github.com/Skarlso/drone-pilot/internal/follow"
	"github.com/Skarlso/drone-pilot/internal/hud"
	"github.com/Skarlso/drone-pilot/internal/input"
	"github.com/Skarlso/drone-pilot/internal/tracking"
)

// KeyHandler receives key presses from the overlay window.
type KeyHandler interface {
	HandleKey(name string) bool
}

// Overlay draws each cycle onto its frame and publishes the result: to a desktop
// window, to an MJPEG stream, or both. The undecorated frame goes to the recorder
// first. It implements follow.Presenter.
type Overlay struct {
	window      *gocv.Window
	stream      *mjpeg.Stream
	recorder    *Recorder
	snapshotDir string
	keys        KeyHandler
	battery     hud.Battery
	logger      *slog.Logger
}

// OverlayOptions configures NewOverlay. An empty Window runs headless.
type OverlayOptions struct {
	Window      string
	Stream      *mjpeg.Stream
	Recorder    *Recorder
	SnapshotDir string
	Keys        KeyHandler
	Battery     hud.Battery
	Logger      *slog.Logger
}

// NewOverlay creates the presenter and, unless headless, its window.
func NewOverlay(opts OverlayOptions) *Overlay {
	o := &Overlay{
		stream:      opts.Stream,
		recorder:    opts.Recorder,
		snapshotDir: opts.SnapshotDir,
		keys:        opts.Keys,
		battery:     opts.Battery,
		logger:      opts.Logger,
	}
	if opts.Window != "" {
		o.window = gocv.NewWindow(opts.Window)
	}
	return o
}

// Present implements follow.Presenter. Pressing q in the window returns follow.ErrQuit,
// p saves a snapshot and any other key goes to the KeyHandler.
func (o *Overlay) Present(frame Frame, c follow.Cycle) error {
	if frame.Mat.Empty() {
		return nil
	}
	if o.recorder != nil {
		if err := o.recorder.Write(frame); err != nil {
			// The flight goes on without a recording.
			o.logger.Error("recording stopped", "error", err)
			o.recorder = nil
		}
	}
	var target *tracking.BoundingBox
	if c.Target != nil {
		target = &c.Target.Box
	}
	draw(&frame.Mat, hud.Compose(c.Width, c.Height, c.Faces, target, c.Command, o.battery))

	var jpeg []byte
	if o.stream != nil {
		buf, err := gocv.IMEncode(".jpg", frame.Mat)
		if err != nil {
			return fmt.Errorf("encode stream frame: %w", err)
		}
		jpeg = buf
		o.stream.UpdateJPEG(jpeg)
	}

	if o.window == nil {
		return nil
	}
	o.window.IMShow(frame.Mat)
	key := o.window.WaitKey(1)
	switch name := KeyName(key); name {
	case "":
	case "q":
		return follow.ErrQuit
	case "p":
		path, err := o.snapshot(frame, jpeg)
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		o.logger.Info("snapshot saved", "path", path)
	default:
		if o.keys != nil {
			o.keys.HandleKey(name)
		}
	}
	return nil
}

func (o *Overlay) snapshot(frame Frame, jpeg []byte) (string, error) {
	if jpeg == nil {
		buf, err := gocv.IMEncode(".jpg", frame.Mat)
		if err != nil {
			return "", err
		}
		jpeg = buf
	}
	if err := os.MkdirAll(o.snapshotDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(o.snapshotDir, uuid.NewString()+".jpg")
	return path, os.WriteFile(path, jpeg, 0o644)
}

// Close destroys the window.
func (o *Overlay) Close() error {
	if o.window == nil {
		return nil
	}
	return o.window.Close()
}

func draw(img *gocv.Mat, s hud.Scene) {
	for _, b := range s.Boxes {
		gocv.Rectangle(img, b.Rect, b.Color, 2)
		for _, seg := range b.Cross {
			gocv.Line(img, seg.From, seg.To, b.Color, 1)
		}
	}
	for _, seg := range s.Center {
		gocv.Line(img, seg.From, seg.To, hud.CenterColor, 2)
	}
	gocv.PutText(img, s.Readout, s.ReadoutAt, gocv.FontHersheyPlain, 1.2, hud.TextColor, 2)
}

// gtkKeys are the full key codes GTK reports for the arrow keys. WaitKey usually
// masks them to their low byte, which collides with 'Q'..'T'.
var gtkKeys = map[int]string{
	0xFF51: input.KeyLeft,
	0xFF52: input.KeyUp,
	0xFF53: input.KeyRight,
	0xFF54: input.KeyDown,
}

// KeyName maps a WaitKey code to the key names the input package uses. It returns ""
// when no key was pressed. Letters are case sensitive so that a masked arrow key
// never reads as a lowercase command key.
func KeyName(code int) string {
	if code < 0 {
		return ""
	}
	if name, ok := gtkKeys[code&0xFFFF]; ok {
		return name
	}
	switch code & 0xFF {
	case 13, 10:
		return input.KeyEnter
	case 27:
		return input.KeyEscape
	case 32:
		return input.KeySpace
	}
	if c := code & 0xFF; c > 32 && c < 127 {
		return string(rune(c))
	}
	return ""
}
