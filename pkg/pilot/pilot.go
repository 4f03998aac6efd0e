// Package pilot runs the teleoperation session: lifecycle state machine,
// fixed-rate control loop, and the landing failure-safety sequence.
package pilot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/skylab-uav/skyleader/pkg/input"
	"github.com/skylab-uav/skyleader/pkg/shaper"
	"github.com/skylab-uav/skyleader/pkg/sink"
)

// State is a session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnected
	StateArmed
	StateFlying
	StateLanding
	StateGrounded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateArmed:
		return "armed"
	case StateFlying:
		return "flying"
	case StateLanding:
		return "landing"
	case StateGrounded:
		return "grounded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is one tick's worth of session output, published for the UI.
type Status struct {
	State     State
	VX        float64
	VY        float64
	VZ        float64
	YawRate   float64
	Timestamp time.Time
}

// AxisTuning holds shaping limits for one axis family.
type AxisTuning struct {
	Max   float64
	Accel float64
	Decel float64
}

// Config holds configuration for a session.
type Config struct {
	Vehicle string
	Tick    time.Duration

	XY  AxisTuning
	Z   AxisTuning
	Yaw AxisTuning

	AlphaXY  float64
	AlphaYaw float64

	// SettlePause is the hover-to-land pause in the cleanup sequence.
	SettlePause time.Duration
}

// Session owns the four command channels and drives one vehicle from
// takeoff to grounded. Create with NewSession, run once with Run.
type Session struct {
	cfg Config
	snk sink.Sink
	in  input.Provider

	// Channels are owned exclusively by the control loop.
	vx, vy, vz, yaw shaper.Channel

	mu     sync.RWMutex
	state  State
	states []State // transition history, in order

	statusCh chan Status
	logCh    chan string

	cleanupOnce sync.Once
}

// NewSession creates a session over the given backend and input provider.
func NewSession(cfg Config, snk sink.Sink, in input.Provider) *Session {
	if cfg.Tick <= 0 {
		cfg.Tick = 50 * time.Millisecond
	}
	if cfg.SettlePause <= 0 {
		cfg.SettlePause = 500 * time.Millisecond
	}
	if cfg.Vehicle == "" {
		cfg.Vehicle = "Leader"
	}
	return &Session{
		cfg:      cfg,
		snk:      snk,
		in:       in,
		vx:       shaper.Channel{MaxMag: cfg.XY.Max, Accel: cfg.XY.Accel, Decel: cfg.XY.Decel, Alpha: cfg.AlphaXY},
		vy:       shaper.Channel{MaxMag: cfg.XY.Max, Accel: cfg.XY.Accel, Decel: cfg.XY.Decel, Alpha: cfg.AlphaXY},
		vz:       shaper.Channel{MaxMag: cfg.Z.Max, Accel: cfg.Z.Accel, Decel: cfg.Z.Decel, Alpha: cfg.AlphaXY},
		yaw:      shaper.Channel{MaxMag: cfg.Yaw.Max, Accel: cfg.Yaw.Accel, Decel: cfg.Yaw.Decel, Alpha: cfg.AlphaYaw},
		state:    StateIdle,
		statusCh: make(chan Status, 1),
		logCh:    make(chan string, 10),
	}
}

// Statuses returns a channel that receives per-tick status updates.
func (s *Session) Statuses() <-chan Status {
	return s.statusCh
}

// Logs returns a channel that receives log messages.
func (s *Session) Logs() <-chan string {
	return s.logCh
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Tick returns the nominal control period.
func (s *Session) Tick() time.Duration {
	return s.cfg.Tick
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.states = append(s.states, st)
	s.mu.Unlock()
}

func (s *Session) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case s.logCh <- msg:
	default:
		// Drop if channel full
	}
}

func (s *Session) publish(st Status) {
	select {
	case s.statusCh <- st:
	default:
		// Drop old status if channel full, replace with new
		select {
		case <-s.statusCh:
		default:
		}
		s.statusCh <- st
	}
}

// Run drives the full session lifecycle: connect, arm, take off, fly, and
// land. Connect, arm and takeoff failures abort the session before flight
// and are returned as-is; once flying, the landing sequence runs exactly
// once no matter how the loop exits.
func (s *Session) Run(ctx context.Context) error {
	v := s.cfg.Vehicle

	if err := s.snk.Connect(ctx); err != nil {
		return fmt.Errorf("connect to flight backend: %w", err)
	}
	s.setState(StateConnected)
	s.log("connected to flight backend")

	if err := s.snk.EnableControl(ctx, v); err != nil {
		return fmt.Errorf("enable control: %w", err)
	}
	if err := s.snk.Arm(ctx, v); err != nil {
		return fmt.Errorf("arm: %w", err)
	}
	s.setState(StateArmed)
	s.log("%s: control enabled & armed", v)

	s.log("taking off %s...", v)
	if err := s.snk.Takeoff(ctx, v); err != nil {
		return fmt.Errorf("takeoff: %w", err)
	}
	s.log("%s takeoff done", v)
	s.setState(StateFlying)

	// From here on the cleanup sequence always runs, even if the loop
	// exits by error or panic.
	defer s.cleanup()

	return s.fly(ctx)
}

// fly is the fixed-rate control loop. Each tick reads the held-key state,
// integrates the four targets, smooths them, and dispatches one combined
// velocity command. A tick that overruns the period starts the next tick
// immediately; there is no catch-up.
func (s *Session) fly(ctx context.Context) error {
	v := s.cfg.Vehicle
	dt := s.cfg.Tick.Seconds()
	airborne := true

	for {
		start := time.Now()

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if s.in.Pressed(input.Exit) {
			s.log("exit requested")
			return nil
		}

		s.vx.Integrate(s.in.Pressed(input.Forward), s.in.Pressed(input.Backward), dt)
		s.vy.Integrate(s.in.Pressed(input.Right), s.in.Pressed(input.Left), dt)
		// NED: positive VZ is down.
		s.vz.Integrate(s.in.Pressed(input.Down), s.in.Pressed(input.Up), dt)
		s.yaw.Integrate(s.in.Pressed(input.YawRight), s.in.Pressed(input.YawLeft), dt)
		if s.in.Pressed(input.ZeroYaw) {
			s.yaw.Zero()
		}

		if airborne && s.in.Pressed(input.Land) {
			s.log("landing %s...", v)
			if err := s.snk.Land(ctx, v); err != nil {
				return fmt.Errorf("land: %w", err)
			}
			airborne = false
			s.log("%s landing done", v)
		}

		cmd := sink.VelocityCommand{
			VX:       s.vx.Smooth(),
			VY:       s.vy.Smooth(),
			VZ:       s.vz.Smooth(),
			YawRate:  s.yaw.Smooth(),
			Duration: s.cfg.Tick,
		}
		if err := s.snk.SendVelocity(ctx, v, cmd); err != nil {
			return fmt.Errorf("send velocity: %w", err)
		}

		s.publish(Status{
			State:     StateFlying,
			VX:        cmd.VX,
			VY:        cmd.VY,
			VZ:        cmd.VZ,
			YawRate:   cmd.YawRate,
			Timestamp: start,
		})

		if remaining := s.cfg.Tick - time.Since(start); remaining > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(remaining):
			}
		}
	}
}
