// Package follow runs the face-following drive loop.
//
// Every cycle pulls one frame, detects faces, picks the one closest to the frame
// centre and turns the offset into RC velocities. A cycle with no usable target is
// IDLE: the drone gets a zero velocity command plus whatever discrete actions the
// companion input device queued. Cycles are independent; nothing carries over.
package follow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Skarlso/drone-pilot/internal/control"
	"github.com/Skarlso/drone-pilot/internal/tracking"
)

var (
	// ErrNotReady is returned by a FrameSource that has no frame yet. The loop waits
	// PollDelay before asking again.
	ErrNotReady = errors.New("frame not ready")
	// ErrQuit is returned by a Presenter when the operator asked to stop.
	ErrQuit = errors.New("quit requested")
)

// Frame is one decoded video frame.
type Frame interface {
	Size() (width, height int)
	Close() error
}

// FrameSource yields frames. Next blocks until a frame is available, ctx is done
// or it can report ErrNotReady.
type FrameSource[F Frame] interface {
	Next(ctx context.Context) (F, error)
}

// Detector finds faces in a frame. Boxes are in source-frame pixels.
type Detector[F Frame] interface {
	Detect(frame F) ([]tracking.BoundingBox, error)
}

// Presenter shows the outcome of a cycle, usually as an overlay window.
type Presenter[F Frame] interface {
	Present(frame F, c Cycle) error
}

// Sender takes the command of a cycle. *dispatch.Dispatcher implements it.
type Sender interface {
	Send(state control.ControlState) error
}

// EventSource supplies discrete actions queued by a companion input device since the
// last call.
type EventSource interface {
	Drain() []control.Action
}

// State is the outcome class of a cycle.
type State int

const (
	Idle State = iota
	Tracking
)

func (s State) String() string {
	if s == Tracking {
		return "TRACKING"
	}
	return "IDLE"
}

// Cycle records what one iteration saw and sent.
type Cycle struct {
	State   State
	Width   int
	Height  int
	Faces   []tracking.BoundingBox
	Target  *tracking.Target
	Command control.ControlState
}

// Loop wires the collaborators together. Source, Detector and Sender are required.
type Loop[F Frame] struct {
	Source    FrameSource[F]
	Detector  Detector[F]
	Sender    Sender
	Presenter Presenter[F]
	Events    EventSource

	Normalizer    control.Normalizer
	Space         tracking.Space
	TargetBoxSize int

	// FrameTimeout bounds the wait for a frame; zero disables it.
	FrameTimeout time.Duration
	// PollDelay is the pause after ErrNotReady or a timed out frame.
	PollDelay time.Duration

	Logger *slog.Logger
}

// Run cycles until ctx is cancelled, the presenter returns ErrQuit or the source
// fails for good. Quitting and cancellation are not errors.
func (l *Loop[F]) Run(ctx context.Context) error {
	if l.Source == nil || l.Detector == nil || l.Sender == nil {
		return errors.New("follow loop needs a source, a detector and a sender")
	}
	for {
		_, err := l.Step(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrQuit):
			l.Logger.Info("quit requested, leaving drive loop")
			return nil
		case ctx.Err() != nil:
			return nil
		default:
			return err
		}
	}
}

// Step runs a single cycle. The error is non-nil only when the loop should stop.
func (l *Loop[F]) Step(ctx context.Context) (Cycle, error) {
	frame, err := l.next(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Cycle{}, ctx.Err()
		}
		if !errors.Is(err, ErrNotReady) && !errors.Is(err, context.DeadlineExceeded) {
			return Cycle{}, fmt.Errorf("next frame: %w", err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			l.Logger.Warn("no frame within timeout", "timeout", l.FrameTimeout)
		}
		if !sleep(ctx, l.PollDelay) {
			return Cycle{}, ctx.Err()
		}
		c := Cycle{State: Idle, Command: control.Neutral(l.drain()...)}
		l.send(c)
		return c, nil
	}
	defer func() {
		if err := frame.Close(); err != nil {
			l.Logger.Debug("closing frame", "error", err)
		}
	}()

	c := l.track(frame)
	c.Command.Events = append(c.Command.Events, l.drain()...)
	l.send(c)

	if l.Presenter != nil {
		if err := l.Presenter.Present(frame, c); err != nil {
			if errors.Is(err, ErrQuit) {
				return c, err
			}
			l.Logger.Warn("presenting frame", "error", err)
		}
	}
	return c, nil
}

func (l *Loop[F]) next(ctx context.Context) (F, error) {
	if l.FrameTimeout <= 0 {
		return l.Source.Next(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, l.FrameTimeout)
	defer cancel()
	return l.Source.Next(tctx)
}

// track computes the command for one frame. Every failure degrades to IDLE.
func (l *Loop[F]) track(frame F) (c Cycle) {
	c = Cycle{State: Idle, Command: control.Neutral()}
	defer func() {
		if r := recover(); r != nil {
			l.Logger.Error("recovered panic in tracking cycle", "panic", r)
			c = Cycle{State: Idle, Width: c.Width, Height: c.Height, Command: control.Neutral()}
		}
	}()

	c.Width, c.Height = frame.Size()
	if c.Width <= 0 || c.Height <= 0 {
		l.Logger.Debug("skipping empty frame")
		return c
	}

	faces, err := l.Detector.Detect(frame)
	if err != nil {
		l.Logger.Warn("face detection failed", "error", err)
		return c
	}
	c.Faces = faces

	ref := l.Space.Reference(c.Width, c.Height, l.TargetBoxSize)
	target, ok := l.Space.SelectClosest(faces, ref)
	if !ok {
		return c
	}

	cmd, err := l.Normalizer.Normalize(target.Displacement)
	if err != nil {
		l.Logger.Error("normalizing displacement", "displacement", target.Displacement, "error", err)
		return c
	}
	c.State = Tracking
	c.Target = &target
	c.Command = cmd
	l.Logger.Debug("tracking", "target", target.Box.String(), "distance", target.Distance, "command", cmd.String())
	return c
}

func (l *Loop[F]) send(c Cycle) {
	if err := l.Sender.Send(c.Command); err != nil {
		l.Logger.Warn("dispatching command", "state", c.State.String(), "error", err)
	}
}

func (l *Loop[F]) drain() []control.Action {
	if l.Events == nil {
		return nil
	}
	return l.Events.Drain()
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
