package follow

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/Skarlso/drone-pilot/internal/control"
	"github.com/Skarlso/drone-pilot/internal/logging"
	"github.com/Skarlso/drone-pilot/internal/tracking"
)

type fakeFrame struct {
	w, h   int
	closed *int
}

func (f fakeFrame) Size() (int, int) { return f.w, f.h }
func (f fakeFrame) Close() error {
	if f.closed != nil {
		*f.closed++
	}
	return nil
}

// scriptedSource replays frames and errors in order, then reports io.EOF.
type scriptedSource struct {
	items []any
}

func (s *scriptedSource) Next(ctx context.Context) (fakeFrame, error) {
	if len(s.items) == 0 {
		return fakeFrame{}, io.EOF
	}
	item := s.items[0]
	s.items = s.items[1:]
	switch v := item.(type) {
	case fakeFrame:
		return v, nil
	case error:
		return fakeFrame{}, v
	}
	panic("unexpected item")
}

type fakeDetector struct {
	boxes []tracking.BoundingBox
	err   error
	panic bool
}

func (d fakeDetector) Detect(fakeFrame) ([]tracking.BoundingBox, error) {
	if d.panic {
		panic("detector blew up")
	}
	return d.boxes, d.err
}

type recordingSender struct {
	sent []control.ControlState
	err  error
}

func (r *recordingSender) Send(s control.ControlState) error {
	r.sent = append(r.sent, s)
	return r.err
}

type queuedEvents struct{ pending []control.Action }

func (q *queuedEvents) Drain() []control.Action {
	out := q.pending
	q.pending = nil
	return out
}

type quitAfter struct{ n, seen int }

func (q *quitAfter) Present(fakeFrame, Cycle) error {
	q.seen++
	if q.seen >= q.n {
		return ErrQuit
	}
	return nil
}

func newLoop(src *scriptedSource, det fakeDetector, sender *recordingSender) *Loop[fakeFrame] {
	return &Loop[fakeFrame]{
		Source:        src,
		Detector:      det,
		Sender:        sender,
		Normalizer:    control.DefaultNormalizer(),
		Space:         tracking.Space{ZeroDepthBoxSize: 400},
		TargetBoxSize: 200,
		Logger:        logging.Discard(),
	}
}

func TestEmptyDetectionSendsZeroVelocity(t *testing.T) {
	sender := &recordingSender{}
	l := newLoop(&scriptedSource{items: []any{fakeFrame{w: 960, h: 720}}}, fakeDetector{}, sender)

	c, err := l.Step(context.Background())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if c.State != Idle {
		t.Errorf("State = %v, want IDLE", c.State)
	}
	if len(sender.sent) != 1 || !sender.sent[0].IsNeutral() {
		t.Errorf("sent = %v, want one neutral command", sender.sent)
	}
}

func TestTrackingCycleSendsNormalizedVelocities(t *testing.T) {
	// A 200px face sitting at the reference depth, 100px right of centre: pure yaw.
	face := tracking.BoundingBox{Top: 260, Left: 480, Right: 680, Bottom: 460}
	sender := &recordingSender{}
	l := newLoop(&scriptedSource{items: []any{fakeFrame{w: 960, h: 720}}},
		fakeDetector{boxes: []tracking.BoundingBox{face}}, sender)

	c, err := l.Step(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if c.State != Tracking || c.Target == nil || c.Target.Box != face {
		t.Fatalf("cycle = %+v, want tracking %v", c, face)
	}
	want := control.ControlState{YawRight: 100}
	got := sender.sent[0]
	if got.Right != want.Right || got.Forward != want.Forward || got.Up != want.Up || got.YawRight != want.YawRight {
		t.Errorf("sent %v, want %v", got, want)
	}
}

func TestPendingEventsRideAlong(t *testing.T) {
	face := tracking.BoundingBox{Top: 260, Left: 480, Right: 680, Bottom: 460}
	sender := &recordingSender{}
	l := newLoop(&scriptedSource{items: []any{fakeFrame{w: 960, h: 720}, fakeFrame{w: 960, h: 720}}},
		fakeDetector{boxes: []tracking.BoundingBox{face}}, sender)
	events := &queuedEvents{pending: []control.Action{control.FlipLeft, control.IncreaseSpeed}}
	l.Events = events

	if _, err := l.Step(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Step(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(sender.sent[0].Events, []control.Action{control.FlipLeft, control.IncreaseSpeed}) {
		t.Errorf("first cycle events = %v", sender.sent[0].Events)
	}
	if len(sender.sent[1].Events) != 0 {
		t.Errorf("events fired twice: %v", sender.sent[1].Events)
	}
}

func TestDetectorFailuresDegradeToIdle(t *testing.T) {
	for name, det := range map[string]fakeDetector{
		"error": {err: errors.New("cascade not loaded")},
		"panic": {panic: true},
	} {
		t.Run(name, func(t *testing.T) {
			closed := 0
			sender := &recordingSender{}
			l := newLoop(&scriptedSource{items: []any{fakeFrame{w: 640, h: 480, closed: &closed}}}, det, sender)
			l.Events = &queuedEvents{pending: []control.Action{control.Land}}

			c, err := l.Step(context.Background())
			if err != nil {
				t.Fatalf("Step: %v", err)
			}
			if c.State != Idle {
				t.Errorf("State = %v, want IDLE", c.State)
			}
			if len(sender.sent) != 1 || sender.sent[0].Forward != 0 || sender.sent[0].YawRight != 0 {
				t.Errorf("sent = %v", sender.sent)
			}
			if !reflect.DeepEqual(sender.sent[0].Events, []control.Action{control.Land}) {
				t.Errorf("pending events dropped: %v", sender.sent[0].Events)
			}
			if closed != 1 {
				t.Errorf("frame closed %d times, want 1", closed)
			}
		})
	}
}

func TestZeroSizeFrameIsIdle(t *testing.T) {
	sender := &recordingSender{}
	l := newLoop(&scriptedSource{items: []any{fakeFrame{}}},
		fakeDetector{boxes: []tracking.BoundingBox{{Right: 10, Bottom: 10}}}, sender)
	c, err := l.Step(context.Background())
	if err != nil || c.State != Idle {
		t.Fatalf("Step = %v, %v; want IDLE", c.State, err)
	}
}

func TestDispatchErrorsDoNotStopTheLoop(t *testing.T) {
	sender := &recordingSender{err: errors.New("socket closed")}
	src := &scriptedSource{items: []any{fakeFrame{w: 10, h: 10}, fakeFrame{w: 10, h: 10}}}
	l := newLoop(src, fakeDetector{}, sender)

	err := l.Run(context.Background())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Run = %v, want source EOF", err)
	}
	if len(sender.sent) != 2 {
		t.Errorf("sent %d commands, want 2", len(sender.sent))
	}
}

func TestNotReadyWaitsAndIdles(t *testing.T) {
	sender := &recordingSender{}
	l := newLoop(&scriptedSource{items: []any{ErrNotReady}}, fakeDetector{}, sender)
	l.PollDelay = 5 * time.Millisecond

	start := time.Now()
	c, err := l.Step(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if time.Since(start) < l.PollDelay {
		t.Error("Step returned without waiting")
	}
	if c.State != Idle || len(sender.sent) != 1 {
		t.Errorf("cycle = %+v, sent = %v", c, sender.sent)
	}
}

type stalledSource struct{}

func (stalledSource) Next(ctx context.Context) (fakeFrame, error) {
	<-ctx.Done()
	return fakeFrame{}, ctx.Err()
}

func TestFrameTimeoutIsIdle(t *testing.T) {
	sender := &recordingSender{}
	l := &Loop[fakeFrame]{
		Source:       stalledSource{},
		Detector:     fakeDetector{},
		Sender:       sender,
		FrameTimeout: 5 * time.Millisecond,
		Logger:       logging.Discard(),
	}
	c, err := l.Step(context.Background())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if c.State != Idle || len(sender.sent) != 1 {
		t.Errorf("cycle = %+v, sent = %v", c, sender.sent)
	}
}

func TestRunStopsOnQuit(t *testing.T) {
	items := []any{}
	for i := 0; i < 10; i++ {
		items = append(items, fakeFrame{w: 10, h: 10})
	}
	sender := &recordingSender{}
	l := newLoop(&scriptedSource{items: items}, fakeDetector{}, sender)
	l.Presenter = &quitAfter{n: 3}

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run = %v, want nil on quit", err)
	}
	if len(sender.sent) != 3 {
		t.Errorf("sent %d commands, want 3", len(sender.sent))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := &Loop[fakeFrame]{
		Source:   stalledSource{},
		Detector: fakeDetector{},
		Sender:   &recordingSender{},
		Logger:   logging.Discard(),
	}
	if err := l.Run(ctx); err != nil {
		t.Fatalf("Run = %v, want nil on cancel", err)
	}
}
