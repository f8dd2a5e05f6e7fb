// Package input turns gamepad and keyboard events into ControlStates.
//
// Device events arrive on gobot's goroutines while the control loops poll from their
// own, so every adapter here is safe for concurrent use.
package input

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Skarlso/drone-pilot/internal/control"
)

// ErrUnknownController is returned for controller names nothing here can drive.
var ErrUnknownController = errors.New("unknown controller")

// ControllerType selects the adapter used for manual piloting.
type ControllerType string

const (
	Xbox360    ControllerType = "xbox360"
	XboxOne    ControllerType = "xboxone"
	DualShock4 ControllerType = "dualshock4"
	Keyboard   ControllerType = "keyboard"
	// Auto probes the first attached joystick and falls back to Keyboard.
	Auto ControllerType = "auto"
	// None disables the companion controller of the follow command.
	None ControllerType = "none"
)

// ControllerTypes lists every accepted value, in the order shown in help text.
var ControllerTypes = []ControllerType{Xbox360, Keyboard, XboxOne, DualShock4, Auto, None}

// ParseControllerType validates a --controller value.
func ParseControllerType(name string) (ControllerType, error) {
	t := ControllerType(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range ControllerTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownController, name)
}

// IsGamepad reports whether t is driven through the joystick platform.
func (t ControllerType) IsGamepad() bool {
	_, ok := layouts[t]
	return ok
}

// joystickNames maps the names SDL reports to a controller type. Matching is by
// case-insensitive substring since drivers decorate names differently per platform.
var joystickNames = []struct {
	fragment string
	kind     ControllerType
}{
	{"xbox series", Xbox360},
	{"xbox 360", Xbox360},
	{"x-box 360", Xbox360},
	{"xbox one", XboxOne},
	{"xbox wireless", XboxOne},
	{"dualshock", DualShock4},
	{"wireless controller", DualShock4},
	{"ps4", DualShock4},
}

// ControllerForName maps a joystick name to a controller type.
func ControllerForName(name string) (ControllerType, error) {
	lower := strings.ToLower(name)
	for _, n := range joystickNames {
		if strings.Contains(lower, n.fragment) {
			return n.kind, nil
		}
	}
	return "", fmt.Errorf("%w: no mapping for joystick %q", ErrUnknownController, name)
}

// Controller is a polled input device.
type Controller interface {
	// State returns the current stick velocities plus the actions queued since the
	// previous call.
	State() control.ControlState
}
