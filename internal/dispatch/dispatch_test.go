package dispatch

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/Skarlso/drone-pilot/internal/control"
	"github.com/Skarlso/drone-pilot/internal/logging"
)

// recordingDrone captures every call as a string so ordering can be asserted.
type recordingDrone struct {
	calls []string
	fail  map[string]error
}

func (r *recordingDrone) record(call string) error {
	r.calls = append(r.calls, call)
	for prefix, err := range r.fail {
		if strings.HasPrefix(call, prefix) {
			return err
		}
	}
	return nil
}

func (r *recordingDrone) SendRC(right, forward, up, yaw int) error {
	return r.record(fmt.Sprintf("rc %d %d %d %d", right, forward, up, yaw))
}
func (r *recordingDrone) TakeOff() error             { return r.record("takeoff") }
func (r *recordingDrone) Land() error                { return r.record("land") }
func (r *recordingDrone) Emergency() error           { return r.record("emergency") }
func (r *recordingDrone) Flip(d FlipDirection) error { return r.record("flip " + d.String()) }
func (r *recordingDrone) SetSpeed(v int) error       { return r.record(fmt.Sprintf("speed %d", v)) }

func newTestDispatcher(t *testing.T, drone *recordingDrone) *Dispatcher {
	t.Helper()
	d, err := New(drone, logging.Discard(), Options{InitialSpeed: 10, SpeedStep: 10})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	drone.calls = nil
	return d
}

func TestNewPushesInitialSpeed(t *testing.T) {
	drone := &recordingDrone{}
	if _, err := New(drone, logging.Discard(), Options{}); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(drone.calls, []string{"speed 10"}) {
		t.Errorf("calls = %v, want initial speed 10", drone.calls)
	}
}

func TestSendOrdersVelocitiesBeforeEvents(t *testing.T) {
	drone := &recordingDrone{}
	d := newTestDispatcher(t, drone)

	state, err := control.NewControlState(1, 2, 3, 4,
		control.TakeOff, control.FlipForward, control.FlipBack, control.FlipLeft, control.FlipRight,
		control.Land, control.EmergencyLand)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Send(state); err != nil {
		t.Fatalf("Send: %v", err)
	}
	want := []string{
		"rc 1 2 3 4", "takeoff", "flip forward", "flip back", "flip left", "flip right", "land", "emergency",
	}
	if !reflect.DeepEqual(drone.calls, want) {
		t.Errorf("calls = %v, want %v", drone.calls, want)
	}
}

func TestIncreaseSpeedAddsTenWithoutTouchingVelocities(t *testing.T) {
	drone := &recordingDrone{}
	d := newTestDispatcher(t, drone)

	state, _ := control.NewControlState(0, 50, 0, -20, control.IncreaseSpeed)
	if err := d.Send(state); err != nil {
		t.Fatal(err)
	}
	if d.Speed() != 20 {
		t.Errorf("Speed = %d, want 20", d.Speed())
	}
	want := []string{"rc 0 50 0 -20", "speed 20"}
	if !reflect.DeepEqual(drone.calls, want) {
		t.Errorf("calls = %v, want %v", drone.calls, want)
	}
}

func TestSpeedIsClamped(t *testing.T) {
	drone := &recordingDrone{}
	d := newTestDispatcher(t, drone)

	if err := d.Send(control.Neutral(control.DecreaseSpeed)); err != nil {
		t.Fatal(err)
	}
	if d.Speed() != MinSpeed {
		t.Errorf("Speed = %d, want %d", d.Speed(), MinSpeed)
	}

	events := make([]control.Action, 12)
	for i := range events {
		events[i] = control.IncreaseSpeed
	}
	if err := d.Send(control.Neutral(events...)); err != nil {
		t.Fatal(err)
	}
	if d.Speed() != MaxSpeed {
		t.Errorf("Speed = %d, want %d", d.Speed(), MaxSpeed)
	}
}

func TestFailingEventDoesNotStopLaterEvents(t *testing.T) {
	boom := errors.New("udp write failed")
	drone := &recordingDrone{fail: map[string]error{"takeoff": boom}}
	d := newTestDispatcher(t, drone)

	err := d.Send(control.Neutral(control.TakeOff, control.Land))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped takeoff error, got %v", err)
	}
	want := []string{"rc 0 0 0 0", "takeoff", "land"}
	if !reflect.DeepEqual(drone.calls, want) {
		t.Errorf("calls = %v, want %v", drone.calls, want)
	}
}

func TestFailedSpeedChangeKeepsCounter(t *testing.T) {
	drone := &recordingDrone{}
	d := newTestDispatcher(t, drone)
	drone.fail = map[string]error{"speed": errors.New("nope")}

	if err := d.Send(control.Neutral(control.IncreaseSpeed)); err == nil {
		t.Fatal("expected error")
	}
	if d.Speed() != 10 {
		t.Errorf("Speed = %d, want unchanged 10", d.Speed())
	}
}

func TestUnknownActionIsAnError(t *testing.T) {
	drone := &recordingDrone{}
	d := newTestDispatcher(t, drone)
	if err := d.Send(control.Neutral(control.Action(99))); err == nil {
		t.Fatal("expected error for unknown action")
	}
}
