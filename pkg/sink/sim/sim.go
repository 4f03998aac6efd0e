// Package sim provides an in-process kinematic flight backend. It integrates
// body-frame velocity commands into a world-frame pose and is used for
// offline flying and for exercising the control loop in tests.
package sim

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/skylab-uav/skyleader/pkg/sink"
)

const takeoffAltitude = 3.0 // meters above ground

// Pose is a vehicle's world-frame position and heading. Position follows the
// NED convention, so Z is negative above ground. Yaw is in degrees.
type Pose struct {
	X, Y, Z float64
	Yaw     float64
}

type vehicle struct {
	controlled bool
	armed      bool
	airborne   bool
	pose       Pose
	lastCmd    sink.VelocityCommand
}

// Backend is a simulated flight backend. The zero value is not usable; use
// New.
type Backend struct {
	mu        sync.Mutex
	connected bool
	vehicles  map[string]*vehicle
	log       *slog.Logger
}

var _ sink.Sink = (*Backend)(nil)

// New creates a simulator backend. All vehicles start grounded at the
// origin.
func New() *Backend {
	return &Backend{
		vehicles: make(map[string]*vehicle),
		log:      slog.Default().With("backend", "sim"),
	}
}

func (b *Backend) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	b.log.Debug("connected")
	return nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	return nil
}

// get returns the named vehicle, creating it on first use. Callers hold the
// lock.
func (b *Backend) get(name string) *vehicle {
	v, ok := b.vehicles[name]
	if !ok {
		v = &vehicle{}
		b.vehicles[name] = v
	}
	return v
}

func (b *Backend) EnableControl(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return sink.ErrNotConnected
	}
	b.get(name).controlled = true
	return nil
}

func (b *Backend) ReleaseControl(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return sink.ErrNotConnected
	}
	b.get(name).controlled = false
	return nil
}

func (b *Backend) Arm(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return sink.ErrNotConnected
	}
	b.get(name).armed = true
	return nil
}

func (b *Backend) Disarm(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return sink.ErrNotConnected
	}
	b.get(name).armed = false
	return nil
}

func (b *Backend) Takeoff(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return sink.ErrNotConnected
	}
	v := b.get(name)
	v.airborne = true
	v.pose.Z = -takeoffAltitude
	b.log.Debug("takeoff", "vehicle", name)
	return nil
}

func (b *Backend) Land(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return sink.ErrNotConnected
	}
	v := b.get(name)
	v.airborne = false
	v.pose.Z = 0
	v.lastCmd = sink.VelocityCommand{}
	b.log.Debug("landed", "vehicle", name)
	return nil
}

func (b *Backend) Hover(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return sink.ErrNotConnected
	}
	b.get(name).lastCmd = sink.VelocityCommand{}
	return nil
}

// SendVelocity integrates the body-frame command into the vehicle pose over
// the command duration. Grounded vehicles accept commands but do not move.
func (b *Backend) SendVelocity(ctx context.Context, name string, cmd sink.VelocityCommand) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return sink.ErrNotConnected
	}
	v := b.get(name)
	v.lastCmd = cmd
	if !v.airborne {
		return nil
	}

	dt := cmd.Duration.Seconds()
	yaw := v.pose.Yaw * math.Pi / 180

	// Rotate body-frame horizontal velocity into the world frame.
	v.pose.X += (cmd.VX*math.Cos(yaw) - cmd.VY*math.Sin(yaw)) * dt
	v.pose.Y += (cmd.VX*math.Sin(yaw) + cmd.VY*math.Cos(yaw)) * dt
	v.pose.Z += cmd.VZ * dt
	if v.pose.Z > 0 {
		v.pose.Z = 0
	}

	v.pose.Yaw += cmd.YawRate * dt
	for v.pose.Yaw >= 180 {
		v.pose.Yaw -= 360
	}
	for v.pose.Yaw < -180 {
		v.pose.Yaw += 360
	}
	return nil
}

// Pose returns the current pose of the named vehicle.
func (b *Backend) Pose(name string) Pose {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.get(name).pose
}

// Airborne reports whether the named vehicle is in the air.
func (b *Backend) Airborne(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.get(name).airborne
}

// LastCommand returns the most recent velocity command for the vehicle.
func (b *Backend) LastCommand(name string) sink.VelocityCommand {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.get(name).lastCmd
}

// Armed reports whether the named vehicle is armed.
func (b *Backend) Armed(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.get(name).armed
}
