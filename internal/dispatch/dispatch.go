// Package dispatch relays ControlStates to a drone connection.
package dispatch

import (
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/Skarlso/drone-pilot/internal/control"
)

// Speed bounds accepted by the drone, in cm/s.
const (
	MinSpeed = 10
	MaxSpeed = 100
)

// FlipDirection names the four flips the drone supports.
type FlipDirection int

const (
	FlipForward FlipDirection = iota
	FlipBack
	FlipLeft
	FlipRight
)

func (f FlipDirection) String() string {
	switch f {
	case FlipForward:
		return "forward"
	case FlipBack:
		return "back"
	case FlipLeft:
		return "left"
	case FlipRight:
		return "right"
	default:
		return fmt.Sprintf("FlipDirection(%d)", int(f))
	}
}

// Drone is the connection the dispatcher drives. Calls are fire-and-forget: an error
// means the command could not be handed to the connection, not that the drone failed
// to execute it.
type Drone interface {
	SendRC(right, forward, up, yaw int) error
	TakeOff() error
	Land() error
	Emergency() error
	Flip(FlipDirection) error
	SetSpeed(cmPerSec int) error
}

// Dispatcher sends the velocities and actions of a ControlState to a Drone. It owns
// the speed counter; it is not safe for concurrent use.
type Dispatcher struct {
	drone  Drone
	logger *slog.Logger
	speed  int
	step   int
}

// Options tunes the speed counter.
type Options struct {
	InitialSpeed int
	SpeedStep    int
}

// New creates a Dispatcher and pushes the initial speed to the drone.
func New(drone Drone, logger *slog.Logger, opts Options) (*Dispatcher, error) {
	if opts.InitialSpeed == 0 {
		opts.InitialSpeed = MinSpeed
	}
	if opts.SpeedStep == 0 {
		opts.SpeedStep = 10
	}
	d := &Dispatcher{drone: drone, logger: logger, speed: clampSpeed(opts.InitialSpeed), step: opts.SpeedStep}
	if err := drone.SetSpeed(d.speed); err != nil {
		return nil, fmt.Errorf("set initial speed %d cm/s: %w", d.speed, err)
	}
	return d, nil
}

// Speed returns the current speed counter in cm/s.
func (d *Dispatcher) Speed() int {
	return d.speed
}

// Send issues the RC velocities and then every event in order. A failing event does
// not stop the ones after it; all failures are returned together.
func (d *Dispatcher) Send(state control.ControlState) error {
	var result error
	if err := d.drone.SendRC(state.Right, state.Forward, state.Up, state.YawRight); err != nil {
		result = multierror.Append(result, fmt.Errorf("send rc: %w", err))
	}
	for _, ev := range state.Events {
		if err := d.fire(ev); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", ev, err))
		}
	}
	return result
}

func (d *Dispatcher) fire(ev control.Action) error {
	d.logger.Debug("dispatching action", "action", ev.String())
	switch ev {
	case control.TakeOff:
		return d.drone.TakeOff()
	case control.Land:
		return d.drone.Land()
	case control.EmergencyLand:
		return d.drone.Emergency()
	case control.FlipForward:
		return d.drone.Flip(FlipForward)
	case control.FlipBack:
		return d.drone.Flip(FlipBack)
	case control.FlipLeft:
		return d.drone.Flip(FlipLeft)
	case control.FlipRight:
		return d.drone.Flip(FlipRight)
	case control.IncreaseSpeed:
		return d.adjustSpeed(d.step)
	case control.DecreaseSpeed:
		return d.adjustSpeed(-d.step)
	default:
		return fmt.Errorf("unhandled action %v", ev)
	}
}

func (d *Dispatcher) adjustSpeed(delta int) error {
	next := clampSpeed(d.speed + delta)
	if next == d.speed {
		d.logger.Info("speed already at limit", "speed_cm_s", d.speed)
		return nil
	}
	if err := d.drone.SetSpeed(next); err != nil {
		return err
	}
	d.speed = next
	d.logger.Info("speed adjusted", "speed_cm_s", d.speed)
	return nil
}

func clampSpeed(v int) int {
	if v < MinSpeed {
		return MinSpeed
	}
	if v > MaxSpeed {
		return MaxSpeed
	}
	return v
}
