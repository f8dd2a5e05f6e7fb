package input

import (
	"sync"
	"sync/atomic"

	"gobot.io/x/gobot/platforms/dji/tello"

	"github.com/Skarlso/drone-pilot/internal/control"
)

// stickRange is the magnitude of a full stick deflection as reported by SDL.
const stickRange = 32767

// Gamepad keeps the latest stick positions and the queue of pressed buttons for a
// gamepad whose events are described by a Layout.
type Gamepad struct {
	layout   Layout
	channels [4]atomic.Int32

	mu      sync.Mutex
	pending []control.Action
}

// NewGamepad returns a gamepad adapter for layout.
func NewGamepad(layout Layout) *Gamepad {
	return &Gamepad{layout: layout}
}

// HandleAxis records a stick movement. Unknown axis names are ignored.
func (g *Gamepad) HandleAxis(name string, value int16) {
	b, ok := g.layout.Axes[name]
	if !ok {
		return
	}
	v := axisVelocity(value)
	if b.Invert {
		v = -v
	}
	g.channels[b.Axis].Store(int32(v))
}

// HandleButton queues the action bound to a button event. It reports whether the
// event is bound.
func (g *Gamepad) HandleButton(name string) bool {
	a, ok := g.layout.Buttons[name]
	if !ok {
		return false
	}
	g.mu.Lock()
	g.pending = append(g.pending, a)
	g.mu.Unlock()
	return true
}

// Drain returns and clears the queued actions.
func (g *Gamepad) Drain() []control.Action {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.pending
	g.pending = nil
	return out
}

// State implements Controller.
func (g *Gamepad) State() control.ControlState {
	return control.ControlState{
		Forward:  int(g.channels[AxisForward].Load()),
		Right:    int(g.channels[AxisRight].Load()),
		Up:       int(g.channels[AxisUp].Load()),
		YawRight: int(g.channels[AxisYaw].Load()),
		Events:   g.Drain(),
	}
}

// axisVelocity scales a raw stick value onto [-100, 100], with the small dead zone
// around centre the tello driver applies to its own stick input.
func axisVelocity(value int16) int {
	v := tello.ValidatePitch(float64(value), stickRange)
	if value < 0 {
		return -v
	}
	return v
}
