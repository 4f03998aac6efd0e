// Package tello adapts a DJI Tello drone, driven through gobot, to the
// sink contract. The Tello takes stick deflections in percent rather than
// velocities, so setpoints are scaled against the configured maxima.
//
// The Tello protocol serves a single drone per WiFi link; the vehicle name
// is carried through for logging only.
package tello

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/pkg/errors"
	"gobot.io/x/gobot/platforms/dji/tello"

	"github.com/skylab-uav/skyleader/pkg/sink"
)

const (
	// DefaultPort is the local UDP port the Tello driver listens on.
	DefaultPort = "8888"

	connectTimeout = 10 * time.Second

	// Fallback maneuver settle times, used when the drone never reports
	// the matching event (older firmware drops them occasionally).
	takeoffSettle = 5 * time.Second
	landSettle    = 4 * time.Second
)

// Config holds the scaling limits used to map velocities to stick percent.
type Config struct {
	Port       string
	MaxXY      float64 // m/s mapped to 100% horizontal stick
	MaxZ       float64 // m/s mapped to 100% vertical stick
	MaxYawRate float64 // deg/s mapped to 100% yaw stick
}

// Backend drives a Tello through the gobot driver.
type Backend struct {
	cfg       Config
	driver    *tello.Driver
	connected chan struct{}
	takeoffs  chan struct{}
	landings  chan struct{}
	log       *slog.Logger
}

var _ sink.Sink = (*Backend)(nil)

// New creates a Tello backend. Connect must be called before any vehicle
// operation.
func New(cfg Config) *Backend {
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	return &Backend{
		cfg:       cfg,
		driver:    tello.NewDriver(cfg.Port),
		connected: make(chan struct{}, 1),
		takeoffs:  make(chan struct{}, 1),
		landings:  make(chan struct{}, 1),
		log:       slog.Default().With("backend", "tello"),
	}
}

// Connect starts the driver and waits for the drone to report in.
func (b *Backend) Connect(ctx context.Context) error {
	b.driver.On(tello.ConnectedEvent, func(data interface{}) {
		select {
		case b.connected <- struct{}{}:
		default:
		}
	})
	b.driver.On(tello.TakeoffEvent, func(data interface{}) {
		select {
		case b.takeoffs <- struct{}{}:
		default:
		}
	})
	b.driver.On(tello.LandingEvent, func(data interface{}) {
		select {
		case b.landings <- struct{}{}:
		default:
		}
	})

	if err := b.driver.Start(); err != nil {
		return errors.Wrap(err, "start tello driver")
	}

	select {
	case <-b.connected:
		b.log.Info("drone connected", "port", b.cfg.Port)
		return nil
	case <-time.After(connectTimeout):
		b.driver.Halt()
		return errors.New("timed out waiting for drone")
	case <-ctx.Done():
		b.driver.Halt()
		return ctx.Err()
	}
}

func (b *Backend) Close() error {
	return errors.Wrap(b.driver.Halt(), "halt tello driver")
}

// EnableControl is a no-op: the Tello grants control to whoever holds the
// WiFi link.
func (b *Backend) EnableControl(ctx context.Context, vehicle string) error {
	b.log.Debug("control enabled", "vehicle", vehicle)
	return nil
}

func (b *Backend) ReleaseControl(ctx context.Context, vehicle string) error {
	b.driver.Hover()
	b.log.Debug("control released", "vehicle", vehicle)
	return nil
}

// Arm is a no-op: the Tello arms implicitly on takeoff.
func (b *Backend) Arm(ctx context.Context, vehicle string) error {
	return nil
}

func (b *Backend) Disarm(ctx context.Context, vehicle string) error {
	b.driver.Hover()
	return nil
}

// Takeoff issues the takeoff command and blocks until the drone reports
// airborne, with a settle-time fallback.
func (b *Backend) Takeoff(ctx context.Context, vehicle string) error {
	if err := b.driver.TakeOff(); err != nil {
		return errors.Wrap(err, "takeoff")
	}
	select {
	case <-b.takeoffs:
		return nil
	case <-time.After(takeoffSettle):
		b.log.Warn("no takeoff event, assuming airborne", "vehicle", vehicle)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Land issues the land command and blocks until the drone reports down.
func (b *Backend) Land(ctx context.Context, vehicle string) error {
	if err := b.driver.Land(); err != nil {
		return errors.Wrap(err, "land")
	}
	select {
	case <-b.landings:
		return nil
	case <-time.After(landSettle):
		b.log.Warn("no landing event, assuming landed", "vehicle", vehicle)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Backend) Hover(ctx context.Context, vehicle string) error {
	b.driver.Hover()
	return nil
}

// SendVelocity maps the body-frame setpoint onto stick deflections. The
// driver streams sticks to the drone continuously, so the command stays in
// effect until the next one; Duration is not needed.
func (b *Backend) SendVelocity(ctx context.Context, vehicle string, cmd sink.VelocityCommand) error {
	fwd := stickPct(cmd.VX, b.cfg.MaxXY)
	right := stickPct(cmd.VY, b.cfg.MaxXY)
	down := stickPct(cmd.VZ, b.cfg.MaxZ)
	cw := stickPct(cmd.YawRate, b.cfg.MaxYawRate)

	var err error
	set := func(e error) {
		if err == nil {
			err = e
		}
	}

	if fwd >= 0 {
		set(b.driver.Forward(fwd))
	} else {
		set(b.driver.Backward(-fwd))
	}
	if right >= 0 {
		set(b.driver.Right(right))
	} else {
		set(b.driver.Left(-right))
	}
	// NED: positive VZ is down.
	if down >= 0 {
		set(b.driver.Down(down))
	} else {
		set(b.driver.Up(-down))
	}
	if cw >= 0 {
		set(b.driver.Clockwise(cw))
	} else {
		set(b.driver.CounterClockwise(-cw))
	}
	return errors.Wrap(err, "set sticks")
}

// stickPct scales a setpoint to a stick deflection in [-100, 100].
func stickPct(v, max float64) int {
	if max <= 0 {
		return 0
	}
	pct := v / max * 100
	return int(math.Round(math.Max(-100, math.Min(100, pct))))
}
