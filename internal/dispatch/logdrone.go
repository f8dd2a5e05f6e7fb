package dispatch

import "log/slog"

// LogDrone is a Drone that only logs what it is asked to do. It backs --dry-run, so
// the follow loop can be tried against a webcam without anything taking off.
type LogDrone struct {
	Logger *slog.Logger
}

func (l LogDrone) SendRC(right, forward, up, yaw int) error {
	l.Logger.Debug("rc", "right", right, "forward", forward, "up", up, "yaw", yaw)
	return nil
}

func (l LogDrone) TakeOff() error {
	l.Logger.Info("take off")
	return nil
}

func (l LogDrone) Land() error {
	l.Logger.Info("land")
	return nil
}

func (l LogDrone) Emergency() error {
	l.Logger.Warn("emergency stop")
	return nil
}

func (l LogDrone) Flip(dir FlipDirection) error {
	l.Logger.Info("flip", "direction", dir.String())
	return nil
}

func (l LogDrone) SetSpeed(cmPerSec int) error {
	l.Logger.Info("set speed", "speed_cm_s", cmPerSec)
	return nil
}
