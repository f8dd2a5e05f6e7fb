package input

import "github.com/Skarlso/drone-pilot/internal/control"

// Axis is an RC channel a stick axis drives.
type Axis int

const (
	AxisForward Axis = iota
	AxisRight
	AxisUp
	AxisYaw
)

// Binding ties a gamepad stick axis to a channel.
type Binding struct {
	Axis Axis
	// Invert flips the sign, for stick axes that grow downward.
	Invert bool
}

// Layout is the button and axis table of one gamepad family. Keys are gobot joystick
// event names.
type Layout struct {
	Axes    map[string]Binding
	Buttons map[string]control.Action
}

// Both xbox pads share the mode-2 stick arrangement: left stick flies, right stick
// climbs and turns.
var xboxLayout = Layout{
	Axes: map[string]Binding{
		"left_y":  {Axis: AxisForward, Invert: true},
		"left_x":  {Axis: AxisRight},
		"right_y": {Axis: AxisUp, Invert: true},
		"right_x": {Axis: AxisYaw},
	},
	Buttons: map[string]control.Action{
		"y_press":     control.TakeOff,
		"a_press":     control.Land,
		"b_press":     control.EmergencyLand,
		"up_press":    control.FlipForward,
		"down_press":  control.FlipBack,
		"left_press":  control.FlipLeft,
		"right_press": control.FlipRight,
		"rb_press":    control.IncreaseSpeed,
		"lb_press":    control.DecreaseSpeed,
	},
}

var dualShock4Layout = Layout{
	Axes: xboxLayout.Axes,
	Buttons: map[string]control.Action{
		"triangle_press": control.TakeOff,
		"x_press":        control.Land,
		"circle_press":   control.EmergencyLand,
		"up_press":       control.FlipForward,
		"down_press":     control.FlipBack,
		"left_press":     control.FlipLeft,
		"right_press":    control.FlipRight,
		"r1_press":       control.IncreaseSpeed,
		"l1_press":       control.DecreaseSpeed,
	},
}

var layouts = map[ControllerType]Layout{
	Xbox360:    xboxLayout,
	XboxOne:    xboxLayout,
	DualShock4: dualShock4Layout,
}

// LayoutFor returns the table for a gamepad type.
func LayoutFor(t ControllerType) (Layout, bool) {
	l, ok := layouts[t]
	return l, ok
}
