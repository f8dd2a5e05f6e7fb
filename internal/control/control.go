// Package control holds the drone command model: the four RC velocity channels, the
// discrete actions and the normalizer that turns a tracking offset into velocities.
package control

import (
	"errors"
	"fmt"
	"strings"
)

// RC channel bounds of the drone SDK.
const (
	MinVelocity = -100
	MaxVelocity = 100
)

// ErrOutOfRange is returned when a velocity lies outside [MinVelocity, MaxVelocity].
var ErrOutOfRange = errors.New("velocity out of range")

// Action is a one-shot command distinct from the continuous velocity channels.
type Action int

const (
	TakeOff Action = iota + 1
	Land
	EmergencyLand
	FlipForward
	FlipBack
	FlipLeft
	FlipRight
	IncreaseSpeed
	DecreaseSpeed
)

var actionNames = map[Action]string{
	TakeOff:       "TAKEOFF",
	Land:          "LAND",
	EmergencyLand: "EMERGENCY_LAND",
	FlipForward:   "FLIP_FORWARD",
	FlipBack:      "FLIP_BACK",
	FlipLeft:      "FLIP_LEFT",
	FlipRight:     "FLIP_RIGHT",
	IncreaseSpeed: "INCREASE_SPEED",
	DecreaseSpeed: "DECREASE_SPEED",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction converts an action name into an Action. The speed actions are also
// accepted with a _CM_S suffix.
func ParseAction(name string) (Action, error) {
	normalized := strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(name)), "_CM_S")
	for a, n := range actionNames {
		if n == normalized {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", name)
}

// ControlState is one cycle's command: RC velocities plus the actions to fire.
type ControlState struct {
	Right    int
	Forward  int
	Up       int
	YawRight int
	Events   []Action
}

// NewControlState validates every velocity and builds a ControlState. Out-of-range
// values are an error; they are never clamped.
func NewControlState(right, forward, up, yawRight int, events ...Action) (ControlState, error) {
	channels := []struct {
		name  string
		value int
	}{
		{"right", right},
		{"forward", forward},
		{"up", up},
		{"yaw_right", yawRight},
	}
	for _, ch := range channels {
		if ch.value < MinVelocity || ch.value > MaxVelocity {
			return ControlState{}, fmt.Errorf("%s velocity %d not in [%d, %d]: %w",
				ch.name, ch.value, MinVelocity, MaxVelocity, ErrOutOfRange)
		}
	}
	return ControlState{Right: right, Forward: forward, Up: up, YawRight: yawRight, Events: events}, nil
}

// Neutral returns a hover state carrying the given events.
func Neutral(events ...Action) ControlState {
	return ControlState{Events: events}
}

// IsNeutral reports whether all velocity channels are zero.
func (s ControlState) IsNeutral() bool {
	return s.Right == 0 && s.Forward == 0 && s.Up == 0 && s.YawRight == 0
}

func (s ControlState) String() string {
	return fmt.Sprintf("forward=%d right=%d up=%d yaw_right=%d events=%v",
		s.Forward, s.Right, s.Up, s.YawRight, s.Events)
}
