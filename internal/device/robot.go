package device

import (
	"context"
	"fmt"
	"time"

	"gobot.io/x/gobot"
)

// Session is a started gobot robot made of the drone and an optional controller.
type Session struct {
	Drone *Tello
	robot *gobot.Robot
}

// Connect starts the robot and waits for the drone to report in. inputs may be empty.
func Connect(ctx context.Context, drone *Tello, timeout time.Duration, inputs ...Inputs) (*Session, error) {
	var connections []gobot.Connection
	devices := []gobot.Device{drone.Driver()}
	for _, in := range inputs {
		connections = append(connections, in.Connections...)
		devices = append(devices, in.Devices...)
	}
	robot := gobot.NewRobot("tello", connections, devices)

	// Start(false) returns right away instead of blocking on the robot's own signal
	// handling; shutdown is driven by ctx.
	if err := robot.Start(false); err != nil {
		return nil, fmt.Errorf("start robot: %w", err)
	}
	if err := drone.WaitConnected(ctx, timeout); err != nil {
		_ = robot.Stop()
		return nil, err
	}
	return &Session{Drone: drone, robot: robot}, nil
}

// StartInputs runs controller devices that have no drone attached, as in dry runs.
func StartInputs(inputs ...Inputs) (*Session, error) {
	var connections []gobot.Connection
	var devices []gobot.Device
	for _, in := range inputs {
		connections = append(connections, in.Connections...)
		devices = append(devices, in.Devices...)
	}
	robot := gobot.NewRobot("pilot", connections, devices)
	if err := robot.Start(false); err != nil {
		return nil, fmt.Errorf("start inputs: %w", err)
	}
	return &Session{robot: robot}, nil
}

// Close stops every device and connection.
func (s *Session) Close() error {
	return s.robot.Stop()
}
