package input

import (
	"sync"

	"github.com/Skarlso/drone-pilot/internal/control"
)

// Key names understood by the keyboard adapter. Printable keys use their character.
const (
	KeyUp     = "up"
	KeyDown   = "down"
	KeyLeft   = "left"
	KeyRight  = "right"
	KeyEnter  = "enter"
	KeySpace  = "space"
	KeyEscape = "escape"
)

// DefaultKeyStep is the velocity change per key press.
const DefaultKeyStep = 10

var keyActions = map[string]control.Action{
	KeyEscape: control.EmergencyLand,
	"1":       control.FlipForward,
	"2":       control.FlipBack,
	"3":       control.FlipLeft,
	"4":       control.FlipRight,
	"]":       control.IncreaseSpeed,
	"[":       control.DecreaseSpeed,
	KeySpace:  control.Land,
	KeyEnter:  control.TakeOff,
}

// keyAxes maps movement keys to the channel they nudge and the direction.
var keyAxes = map[string]struct {
	axis Axis
	sign int
}{
	"w":      {AxisForward, 1},
	"s":      {AxisForward, -1},
	"d":      {AxisRight, 1},
	"a":      {AxisRight, -1},
	KeyUp:    {AxisUp, 1},
	KeyDown:  {AxisUp, -1},
	KeyRight: {AxisYaw, 1},
	KeyLeft:  {AxisYaw, -1},
}

// KeyboardController steers with key presses. Each movement key nudges its channel by
// the step and the value sticks until changed again; "h" recentres every channel.
type KeyboardController struct {
	step int

	mu       sync.Mutex
	channels [4]int
	pending  []control.Action
}

// NewKeyboard returns a keyboard adapter. step <= 0 selects DefaultKeyStep.
func NewKeyboard(step int) *KeyboardController {
	if step <= 0 {
		step = DefaultKeyStep
	}
	return &KeyboardController{step: step}
}

// HandleKey applies one key press and reports whether the key is bound.
func (k *KeyboardController) HandleKey(name string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	if a, ok := keyActions[name]; ok {
		k.pending = append(k.pending, a)
		return true
	}
	if m, ok := keyAxes[name]; ok {
		k.channels[m.axis] = clampVelocity(k.channels[m.axis] + m.sign*k.step)
		return true
	}
	if name == "h" {
		k.channels = [4]int{}
		return true
	}
	return false
}

// Drain returns and clears the queued actions.
func (k *KeyboardController) Drain() []control.Action {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := k.pending
	k.pending = nil
	return out
}

// State implements Controller.
func (k *KeyboardController) State() control.ControlState {
	k.mu.Lock()
	defer k.mu.Unlock()
	s := control.ControlState{
		Forward:  k.channels[AxisForward],
		Right:    k.channels[AxisRight],
		Up:       k.channels[AxisUp],
		YawRight: k.channels[AxisYaw],
		Events:   k.pending,
	}
	k.pending = nil
	return s
}

func clampVelocity(v int) int {
	return max(control.MinVelocity, min(control.MaxVelocity, v))
}
