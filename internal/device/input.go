package device

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/veandco/go-sdl2/sdl"
	"gobot.io/x/gobot"
	"gobot.io/x/gobot/platforms/joystick"
	"gobot.io/x/gobot/platforms/keyboard"

	"github.com/Skarlso/drone-pilot/internal/follow"
	"github.com/Skarlso/drone-pilot/internal/input"
)

// Inputs holds the gobot connections and devices backing a controller.
type Inputs struct {
	Connections []gobot.Connection
	Devices     []gobot.Device
}

// joystickConfigs names the gobot joystick configuration per gamepad type. Xbox One
// pads report the same buttons as the 360 pad.
var joystickConfigs = map[input.ControllerType]string{
	input.Xbox360:    "xbox360",
	input.XboxOne:    "xbox360",
	input.DualShock4: "dualshock4",
}

// BindGamepad creates the joystick adaptor and driver for kind and routes every event
// of the layout into g.
func BindGamepad(kind input.ControllerType, g *input.Gamepad) Inputs {
	layout, _ := input.LayoutFor(kind)
	adaptor := joystick.NewAdaptor()
	stick := joystick.NewDriver(adaptor, joystickConfigs[kind])

	for name := range layout.Axes {
		_ = stick.On(name, func(data interface{}) {
			if v, ok := data.(int16); ok {
				g.HandleAxis(name, v)
			}
		})
	}
	for name := range layout.Buttons {
		_ = stick.On(name, func(interface{}) {
			g.HandleButton(name)
		})
	}
	return Inputs{
		Connections: []gobot.Connection{adaptor},
		Devices:     []gobot.Device{stick},
	}
}

// specialKeys are the non-printable keys the keyboard adapter understands.
var specialKeys = []struct {
	code int
	name string
}{
	{keyboard.ArrowUp, input.KeyUp},
	{keyboard.ArrowDown, input.KeyDown},
	{keyboard.ArrowLeft, input.KeyLeft},
	{keyboard.ArrowRight, input.KeyRight},
	{keyboard.Escape, input.KeyEscape},
	{keyboard.Spacebar, input.KeySpace},
	{13, input.KeyEnter},
	{10, input.KeyEnter},
}

// BindKeyboard reads the terminal keyboard into k.
func BindKeyboard(k *input.KeyboardController, logger *slog.Logger) Inputs {
	keys := keyboard.NewDriver()
	_ = keys.On(keyboard.Key, func(data interface{}) {
		ev, ok := data.(keyboard.KeyEvent)
		if !ok {
			return
		}
		name := KeyName(ev)
		if !k.HandleKey(name) {
			logger.Debug("unbound key", "key", name)
		}
	})
	return Inputs{Devices: []gobot.Device{keys}}
}

// KeyName converts a terminal key event into an input key name.
func KeyName(ev keyboard.KeyEvent) string {
	for _, s := range specialKeys {
		if ev.Key == s.code {
			return s.name
		}
	}
	if ev.Char == "\r" || ev.Char == "\n" {
		return input.KeyEnter
	}
	return strings.ToLower(ev.Char)
}

// DetectController probes the first joystick SDL reports and maps its name to a
// controller type. Anything unrecognised falls back to the keyboard.
func DetectController(logger *slog.Logger) input.ControllerType {
	if err := sdl.Init(sdl.INIT_JOYSTICK); err != nil {
		logger.Warn("joystick subsystem unavailable, defaulting to keyboard", "error", err)
		return input.Keyboard
	}
	defer sdl.Quit()

	if sdl.NumJoysticks() < 1 {
		logger.Info("no joystick attached, defaulting to keyboard")
		return input.Keyboard
	}
	name := sdl.JoystickNameForIndex(0)
	kind, err := input.ControllerForName(name)
	if err != nil {
		logger.Error("error detecting controller", "error", err)
		logger.Info("defaulting to keyboard controller")
		return input.Keyboard
	}
	logger.Info("detected controller", "joystick", name, "controller", string(kind))
	return kind
}

// Controller is a ready-to-start input device.
type Controller struct {
	Kind       input.ControllerType
	Controller input.Controller
	// Events drains only the discrete actions, for use as a companion device.
	Events follow.EventSource
	// Keys is set for the keyboard so the overlay window can feed it too.
	Keys   *input.KeyboardController
	Inputs Inputs
}

// NewController builds the adapter and gobot wiring for kind. Auto must be resolved
// with DetectController first.
func NewController(kind input.ControllerType, keyStep int, logger *slog.Logger) (*Controller, error) {
	if kind == input.Keyboard {
		k := input.NewKeyboard(keyStep)
		return &Controller{Kind: kind, Controller: k, Events: k, Keys: k, Inputs: BindKeyboard(k, logger)}, nil
	}
	layout, ok := input.LayoutFor(kind)
	if !ok {
		return nil, fmt.Errorf("%w %q", input.ErrUnknownController, kind)
	}
	g := input.NewGamepad(layout)
	return &Controller{Kind: kind, Controller: g, Events: g, Inputs: BindGamepad(kind, g)}, nil
}
