package pilot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skylab-uav/skyleader/pkg/input"
	"github.com/skylab-uav/skyleader/pkg/sink"
)

// fakeSink records every backend call in order and can be scripted to fail
// at specific points.
type fakeSink struct {
	mu        sync.Mutex
	calls     []string
	sendTimes []time.Time
	sent      []sink.VelocityCommand

	connectErr error
	takeoffErr error
	landErr    error
	landPanic  bool
	sendErr    error
	failSendAt int // 1-based SendVelocity call that fails; 0 = never
	sendDelay  time.Duration
}

func (f *fakeSink) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeSink) Connect(ctx context.Context) error {
	f.record("connect")
	return f.connectErr
}

func (f *fakeSink) Close() error {
	f.record("close")
	return nil
}

func (f *fakeSink) EnableControl(ctx context.Context, v string) error {
	f.record("enable_control")
	return nil
}

func (f *fakeSink) ReleaseControl(ctx context.Context, v string) error {
	f.record("release_control")
	return nil
}

func (f *fakeSink) Arm(ctx context.Context, v string) error {
	f.record("arm")
	return nil
}

func (f *fakeSink) Disarm(ctx context.Context, v string) error {
	f.record("disarm")
	return nil
}

func (f *fakeSink) Takeoff(ctx context.Context, v string) error {
	f.record("takeoff")
	return f.takeoffErr
}

func (f *fakeSink) Land(ctx context.Context, v string) error {
	f.record("land")
	if f.landPanic {
		panic("backend gone")
	}
	return f.landErr
}

func (f *fakeSink) Hover(ctx context.Context, v string) error {
	f.record("hover")
	return nil
}

func (f *fakeSink) SendVelocity(ctx context.Context, v string, cmd sink.VelocityCommand) error {
	f.mu.Lock()
	f.calls = append(f.calls, "send_velocity")
	f.sendTimes = append(f.sendTimes, time.Now())
	f.sent = append(f.sent, cmd)
	n := len(f.sent)
	f.mu.Unlock()

	if f.sendDelay > 0 {
		time.Sleep(f.sendDelay)
	}
	if f.failSendAt > 0 && n >= f.failSendAt {
		return f.sendErr
	}
	return nil
}

func (f *fakeSink) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeSink) sequence() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.calls, ",")
}

// scriptedInput answers Pressed from a script indexed by tick number. The
// loop queries Exit first each tick, which is used to advance the counter.
type scriptedInput struct {
	mu     sync.Mutex
	tick   int
	script func(tick int, cmd input.Command) bool
}

func (s *scriptedInput) Pressed(cmd input.Command) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cmd == input.Exit {
		s.tick++
	}
	return s.script(s.tick, cmd)
}

func exitAfter(n int) *scriptedInput {
	return &scriptedInput{script: func(tick int, cmd input.Command) bool {
		return cmd == input.Exit && tick > n
	}}
}

func testConfig() Config {
	return Config{
		Vehicle:     "Leader",
		Tick:        5 * time.Millisecond,
		XY:          AxisTuning{Max: 4.0, Accel: 3.0, Decel: 3.5},
		Z:           AxisTuning{Max: 2.0, Accel: 2.0, Decel: 2.5},
		Yaw:         AxisTuning{Max: 90, Accel: 180, Decel: 220},
		AlphaXY:     0.2,
		AlphaYaw:    0.2,
		SettlePause: time.Millisecond,
	}
}

func TestRunLifecycle(t *testing.T) {
	snk := &fakeSink{}
	s := NewSession(testConfig(), snk, exitAfter(0))

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := "connect,enable_control,arm,takeoff,hover,land,disarm,release_control"
	if got := snk.sequence(); got != want {
		t.Errorf("call sequence = %s, want %s", got, want)
	}
	if s.State() != StateGrounded {
		t.Errorf("final state = %v, want grounded", s.State())
	}

	wantStates := []State{StateConnected, StateArmed, StateFlying, StateLanding, StateGrounded}
	if len(s.states) != len(wantStates) {
		t.Fatalf("state history = %v, want %v", s.states, wantStates)
	}
	for i, st := range wantStates {
		if s.states[i] != st {
			t.Errorf("state[%d] = %v, want %v", i, s.states[i], st)
		}
	}
}

func TestExitKeyLandsThenGrounds(t *testing.T) {
	snk := &fakeSink{}
	s := NewSession(testConfig(), snk, exitAfter(3))

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if n := snk.count("send_velocity"); n != 3 {
		t.Errorf("dispatched %d commands before exit, want 3", n)
	}
	// The first state after Flying must be Landing, then Grounded.
	for i, st := range s.states {
		if st == StateFlying {
			rest := s.states[i+1:]
			if len(rest) != 2 || rest[0] != StateLanding || rest[1] != StateGrounded {
				t.Errorf("states after flying = %v, want [landing grounded]", rest)
			}
		}
	}
}

func TestCleanupStillDisarmsWhenLandFails(t *testing.T) {
	snk := &fakeSink{landErr: errors.New("link lost")}
	s := NewSession(testConfig(), snk, exitAfter(0))

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if n := snk.count("disarm"); n != 1 {
		t.Errorf("disarm called %d times, want 1", n)
	}
	if n := snk.count("release_control"); n != 1 {
		t.Errorf("release_control called %d times, want 1", n)
	}
	if s.State() != StateGrounded {
		t.Errorf("final state = %v, want grounded", s.State())
	}
}

func TestCleanupSurvivesPanickingStep(t *testing.T) {
	snk := &fakeSink{landPanic: true}
	s := NewSession(testConfig(), snk, exitAfter(0))

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := snk.count("disarm"); n != 1 {
		t.Errorf("disarm called %d times after land panic, want 1", n)
	}
	if n := snk.count("release_control"); n != 1 {
		t.Errorf("release_control called %d times after land panic, want 1", n)
	}
}

func TestInFlightLandKeepsSessionAlive(t *testing.T) {
	in := &scriptedInput{script: func(tick int, cmd input.Command) bool {
		switch cmd {
		case input.Land:
			return tick == 2
		case input.Exit:
			return tick > 4
		default:
			return false
		}
	}}
	snk := &fakeSink{}
	s := NewSession(testConfig(), snk, in)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// One in-flight landing plus the unconditional cleanup landing.
	if n := snk.count("land"); n != 2 {
		t.Errorf("land called %d times, want 2", n)
	}
	// The loop kept dispatching after the in-flight landing.
	if n := snk.count("send_velocity"); n != 4 {
		t.Errorf("dispatched %d commands, want 4", n)
	}
	if n := snk.count("disarm"); n != 1 {
		t.Errorf("disarm called %d times, want 1", n)
	}
}

func TestDispatchErrorForcesLanding(t *testing.T) {
	snk := &fakeSink{sendErr: errors.New("rpc timeout"), failSendAt: 3}
	s := NewSession(testConfig(), snk, exitAfter(100))

	err := s.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "send velocity") {
		t.Fatalf("Run error = %v, want send velocity failure", err)
	}
	if n := snk.count("send_velocity"); n != 3 {
		t.Errorf("dispatched %d commands, want 3", n)
	}
	if n := snk.count("disarm"); n != 1 {
		t.Errorf("disarm called %d times, want 1", n)
	}
	if s.State() != StateGrounded {
		t.Errorf("final state = %v, want grounded", s.State())
	}
}

func TestConnectFailureIsFatal(t *testing.T) {
	snk := &fakeSink{connectErr: errors.New("backend unreachable")}
	s := NewSession(testConfig(), snk, exitAfter(0))

	if err := s.Run(context.Background()); err == nil {
		t.Fatal("Run succeeded with unreachable backend")
	}
	if got := snk.sequence(); got != "connect" {
		t.Errorf("call sequence = %s, want connect only", got)
	}
	if s.State() != StateIdle {
		t.Errorf("state = %v, want idle", s.State())
	}
}

func TestTakeoffFailureIsFatal(t *testing.T) {
	snk := &fakeSink{takeoffErr: errors.New("no GPS lock")}
	s := NewSession(testConfig(), snk, exitAfter(0))

	if err := s.Run(context.Background()); err == nil {
		t.Fatal("Run succeeded with failing takeoff")
	}
	// Aborted before flight: no commands, no cleanup sequence.
	if n := snk.count("send_velocity"); n != 0 {
		t.Errorf("dispatched %d commands after failed takeoff", n)
	}
	if n := snk.count("land"); n != 0 {
		t.Errorf("land called %d times after failed takeoff", n)
	}
	if s.State() != StateArmed {
		t.Errorf("state = %v, want armed", s.State())
	}
}

func TestCancellationTriggersCleanup(t *testing.T) {
	snk := &fakeSink{}
	s := NewSession(testConfig(), snk, exitAfter(1000))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if n := snk.count("disarm"); n != 1 {
		t.Errorf("disarm called %d times, want 1", n)
	}
	if s.State() != StateGrounded {
		t.Errorf("final state = %v, want grounded", s.State())
	}
}

func TestForwardRampIsBoundedAndMonotone(t *testing.T) {
	in := &scriptedInput{script: func(tick int, cmd input.Command) bool {
		switch cmd {
		case input.Forward:
			return true
		case input.Exit:
			return tick > 30
		default:
			return false
		}
	}}
	snk := &fakeSink{}
	cfg := testConfig()
	s := NewSession(cfg, snk, in)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	prev := 0.0
	for i, cmd := range snk.sent {
		if cmd.VX < prev {
			t.Fatalf("command %d: VX %f dropped below previous %f while key held", i, cmd.VX, prev)
		}
		if cmd.VX > cfg.XY.Max {
			t.Fatalf("command %d: VX %f exceeds max %f", i, cmd.VX, cfg.XY.Max)
		}
		if cmd.VY != 0 || cmd.VZ != 0 || cmd.YawRate != 0 {
			t.Fatalf("command %d: unheld axes nonzero: %+v", i, cmd)
		}
		prev = cmd.VX
	}
	if last := snk.sent[len(snk.sent)-1].VX; last <= 0 {
		t.Errorf("final VX = %f, want positive after holding forward", last)
	}
}

func TestZeroYawOverride(t *testing.T) {
	in := &scriptedInput{script: func(tick int, cmd input.Command) bool {
		switch cmd {
		case input.YawRight:
			return tick <= 10
		case input.ZeroYaw:
			return tick > 10
		case input.Exit:
			return tick > 40
		default:
			return false
		}
	}}
	snk := &fakeSink{}
	s := NewSession(testConfig(), snk, in)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	mid := snk.sent[9].YawRate
	if mid <= 0 {
		t.Fatalf("yaw rate = %f after holding yaw-right, want positive", mid)
	}
	// With the target forced to zero the filtered output decays toward
	// zero; after 30 ticks at alpha 0.2 it is essentially gone.
	last := snk.sent[len(snk.sent)-1].YawRate
	if last > mid*0.01 {
		t.Errorf("yaw rate = %f long after zero-yaw, want near zero", last)
	}
}

func TestSchedulerSpacing(t *testing.T) {
	snk := &fakeSink{}
	cfg := testConfig()
	cfg.Tick = 10 * time.Millisecond
	s := NewSession(cfg, snk, exitAfter(10))

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	times := snk.sendTimes
	if len(times) != 10 {
		t.Fatalf("got %d dispatches, want 10", len(times))
	}
	// With a near-instant step, total span should be close to 9 ticks.
	// The upper bound allows scheduler jitter.
	span := times[len(times)-1].Sub(times[0])
	if span < 8*cfg.Tick {
		t.Errorf("span over 10 dispatches = %v, want >= %v", span, 8*cfg.Tick)
	}
	if span > 30*cfg.Tick {
		t.Errorf("span over 10 dispatches = %v, want well under %v", span, 30*cfg.Tick)
	}
}

func TestSchedulerOverrunDoesNotCompensate(t *testing.T) {
	cfg := testConfig()
	cfg.Tick = 5 * time.Millisecond
	snk := &fakeSink{sendDelay: 3 * cfg.Tick}
	s := NewSession(cfg, snk, exitAfter(5))

	start := time.Now()
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	elapsed := time.Since(start)

	// Every tick overruns, so each subsequent tick starts immediately and
	// the schedule slips by the overrun: 5 dispatches take at least
	// 5*sendDelay, with no sleep added on top.
	if min := 5 * snk.sendDelay; elapsed < min {
		t.Errorf("elapsed %v, want >= %v", elapsed, min)
	}
	for i := 1; i < len(snk.sendTimes); i++ {
		gap := snk.sendTimes[i].Sub(snk.sendTimes[i-1])
		if gap < snk.sendDelay {
			t.Errorf("dispatch gap %d = %v, shorter than processing time %v", i, gap, snk.sendDelay)
		}
	}
}
