// Package manual flies the drone from a gamepad or the keyboard.
package manual

import (
	"context"
	"log/slog"
	"time"

	"github.com/Skarlso/drone-pilot/internal/control"
)

// DefaultCadence is how often the controller is polled.
const DefaultCadence = 100 * time.Millisecond

// Controller is polled once per tick.
type Controller interface {
	State() control.ControlState
}

// Sender takes each polled state. *dispatch.Dispatcher implements it.
type Sender interface {
	Send(state control.ControlState) error
}

// Pilot relays controller input to the drone at a fixed cadence.
type Pilot struct {
	Controller Controller
	Sender     Sender
	Cadence    time.Duration
	Logger     *slog.Logger
}

// Run polls until ctx is cancelled. Failed sends are logged and the next tick goes
// ahead; a newer state supersedes the lost one anyway.
func (p *Pilot) Run(ctx context.Context) error {
	cadence := p.Cadence
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	ticker := time.NewTicker(cadence)
	defer ticker.Stop()

	p.Logger.Info("manual control started", "cadence", cadence)
	for {
		select {
		case <-ctx.Done():
			p.Logger.Info("manual control stopped")
			return nil
		case <-ticker.C:
			p.Tick()
		}
	}
}

// Tick polls the controller once and sends the result.
func (p *Pilot) Tick() {
	defer func() {
		if r := recover(); r != nil {
			p.Logger.Error("recovered panic while issuing command", "panic", r)
		}
	}()

	s := p.Controller.State()
	state, err := control.NewControlState(s.Right, s.Forward, s.Up, s.YawRight, s.Events...)
	if err != nil {
		p.Logger.Error("controller produced invalid state", "state", s.String(), "error", err)
		// Keep the discrete actions so a land request is never lost to a bad stick value.
		state = control.Neutral(s.Events...)
	}
	if err := p.Sender.Send(state); err != nil {
		p.Logger.Error("error issuing command", "error", err)
	}
}
