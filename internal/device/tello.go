// Package device connects the pilot to real hardware through gobot: the Tello driver,
// its ffmpeg-decoded video feed, gamepads and the terminal keyboard.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"gobot.io/x/gobot"
	"gobot.io/x/gobot/platforms/dji/tello"

	"github.com/Skarlso/drone-pilot/internal/dispatch"
)

// keepAlive is how often the video stream is re-requested. The drone stops sending
// key frames when it is not asked regularly.
const keepAlive = 100 * time.Millisecond

// Telemetry is the subset of flight data the pilot reports.
type Telemetry struct {
	BatteryPercentage int
	BatteryLow        bool
	Height            int
	Flying            bool
	UpdatedAt         time.Time
}

// Tello adapts the gobot tello.Driver to dispatch.Drone.
type Tello struct {
	driver    *tello.Driver
	fastSpeed int
	logger    *slog.Logger

	connected chan struct{}
	once      sync.Once

	mu        sync.Mutex
	telemetry Telemetry
	seen      bool
}

// TelloOptions configures NewTello.
type TelloOptions struct {
	Port string
	// FastSpeed is the speed (cm/s) at and above which the drone is put in fast mode.
	FastSpeed int
	Logger    *slog.Logger
}

// NewTello creates the driver and subscribes to its events. Nothing is sent until
// the driver is started by a Robot.
func NewTello(opts TelloOptions) *Tello {
	t := &Tello{
		driver:    tello.NewDriver(opts.Port),
		fastSpeed: opts.FastSpeed,
		logger:    opts.Logger,
		connected: make(chan struct{}),
	}
	_ = t.driver.On(tello.ConnectedEvent, func(interface{}) {
		t.once.Do(func() { close(t.connected) })
	})
	_ = t.driver.On(tello.FlightDataEvent, func(data interface{}) {
		fd, ok := data.(*tello.FlightData)
		if !ok {
			return
		}
		t.mu.Lock()
		t.telemetry = telemetryFrom(fd, time.Now())
		t.seen = true
		t.mu.Unlock()
	})
	return t
}

// telemetryFrom copies the reported fields of fd. EmSky is the drone's in-flight flag.
func telemetryFrom(fd *tello.FlightData, at time.Time) Telemetry {
	return Telemetry{
		BatteryPercentage: int(fd.BatteryPercentage),
		BatteryLow:        fd.BatteryLow,
		Height:            int(fd.Height),
		Flying:            fd.EmSky,
		UpdatedAt:         at,
	}
}

// Driver exposes the gobot device for robot assembly.
func (t *Tello) Driver() *tello.Driver {
	return t.driver
}

// Telemetry returns the last flight data and whether any has arrived yet.
func (t *Tello) Telemetry() (Telemetry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.telemetry, t.seen
}

// Battery reports the last known battery percentage.
func (t *Tello) Battery() (int, bool) {
	tm, ok := t.Telemetry()
	return tm.BatteryPercentage, ok
}

// WaitConnected blocks until the drone acknowledges the connection.
func (t *Tello) WaitConnected(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case <-t.connected:
		t.logger.Info("connected to drone")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for drone connection: %w", ctx.Err())
	}
}

// StartVideo asks the drone for its video stream and keeps asking, as the
// SDK expects. The returned ticker must be stopped by the caller.
func (t *Tello) StartVideo() (*time.Ticker, error) {
	var result error
	if err := t.driver.StartVideo(); err != nil {
		result = multierror.Append(result, fmt.Errorf("start video: %w", err))
	}
	if err := t.driver.SetVideoEncoderRate(tello.VideoBitRateAuto); err != nil {
		result = multierror.Append(result, fmt.Errorf("set encoder rate: %w", err))
	}
	if err := t.driver.SetExposure(0); err != nil {
		result = multierror.Append(result, fmt.Errorf("set exposure: %w", err))
	}
	ticker := gobot.Every(keepAlive, func() {
		_ = t.driver.StartVideo()
	})
	return ticker, result
}

// SendRC implements dispatch.Drone. Signed velocities are split onto the driver's
// directional setters.
func (t *Tello) SendRC(right, forward, up, yaw int) error {
	var result error
	set := func(name string, v int, pos, neg func(int) error) {
		var err error
		if v >= 0 {
			err = pos(v)
		} else {
			err = neg(-v)
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s %d: %w", name, v, err))
		}
	}
	set("right", right, t.driver.Right, t.driver.Left)
	set("forward", forward, t.driver.Forward, t.driver.Backward)
	set("up", up, t.driver.Up, t.driver.Down)
	set("yaw", yaw, t.driver.Clockwise, t.driver.CounterClockwise)
	return result
}

func (t *Tello) TakeOff() error { return t.driver.TakeOff() }

func (t *Tello) Land() error { return t.driver.Land() }

// Emergency stops all movement and lands. The gobot driver has no motor cut-off, so
// this is the fastest safe stop it offers.
func (t *Tello) Emergency() error {
	t.driver.Hover()
	return t.driver.Land()
}

func (t *Tello) Flip(dir dispatch.FlipDirection) error {
	switch dir {
	case dispatch.FlipForward:
		return t.driver.FrontFlip()
	case dispatch.FlipBack:
		return t.driver.BackFlip()
	case dispatch.FlipLeft:
		return t.driver.LeftFlip()
	case dispatch.FlipRight:
		return t.driver.RightFlip()
	default:
		return fmt.Errorf("unsupported flip %v", dir)
	}
}

// SetSpeed maps a cm/s speed onto the two speed modes the driver exposes.
func (t *Tello) SetSpeed(cmPerSec int) error {
	if cmPerSec >= t.fastSpeed {
		t.logger.Debug("fast mode", "speed_cm_s", cmPerSec)
		return t.driver.SetFastMode()
	}
	t.logger.Debug("slow mode", "speed_cm_s", cmPerSec)
	return t.driver.SetSlowMode()
}

// ReportTelemetry logs flight data every interval until ctx is done. A low battery is
// logged as a warning.
func (t *Tello) ReportTelemetry(ctx context.Context, every time.Duration) {
	ticker := gobot.Every(every, func() {
		tm, ok := t.Telemetry()
		if !ok {
			return
		}
		attrs := []any{"battery", tm.BatteryPercentage, "height_dm", tm.Height, "flying", tm.Flying}
		if tm.BatteryLow {
			t.logger.Warn("battery low", attrs...)
			return
		}
		t.logger.Info("telemetry", attrs...)
	})
	go func() {
		<-ctx.Done()
		ticker.Stop()
	}()
}
