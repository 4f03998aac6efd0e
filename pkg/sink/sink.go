// Package sink defines the flight backend contract the control loop
// dispatches to. Backends live in subpackages: sim (in-process kinematic
// simulator) and tello (DJI Tello over WiFi).
package sink

import (
	"context"
	"errors"
	"time"
)

// ErrNotConnected is returned by backends when a vehicle operation arrives
// before Connect.
var ErrNotConnected = errors.New("sink: not connected")

// VelocityCommand is one body-frame velocity setpoint. Axes follow the NED
// convention: VX forward, VY right, VZ down. YawRate is in deg/s, positive
// clockwise viewed from above.
type VelocityCommand struct {
	VX      float64
	VY      float64
	VZ      float64
	YawRate float64

	// Duration is the nominal validity of the setpoint, normally one
	// control tick. Backends that stream continuously may ignore it.
	Duration time.Duration
}

// Sink is a flight backend. All vehicle operations are per-vehicle-named so
// a backend can serve more than one vehicle.
//
// Takeoff and Land block until the maneuver completes; the session state
// machine relies on that to sequence its transitions. SendVelocity blocks
// until the backend has accepted the command, which makes a slow backend
// naturally reduce the effective control rate.
type Sink interface {
	Connect(ctx context.Context) error
	Close() error

	EnableControl(ctx context.Context, vehicle string) error
	ReleaseControl(ctx context.Context, vehicle string) error
	Arm(ctx context.Context, vehicle string) error
	Disarm(ctx context.Context, vehicle string) error

	Takeoff(ctx context.Context, vehicle string) error
	Land(ctx context.Context, vehicle string) error
	Hover(ctx context.Context, vehicle string) error

	SendVelocity(ctx context.Context, vehicle string, cmd VelocityCommand) error
}
