package pilot

import (
	"context"
	"time"
)

// cleanupStep is one entry in the landing sequence.
type cleanupStep struct {
	name string
	fn   func() error
}

// cleanup runs the Landing -> Grounded sequence: hover, a brief pause,
// land, disarm, and control release. It runs at most once per session.
// Every step is best-effort: a failing or panicking step is logged and the
// sequence proceeds to the next one, so a dead backend can never keep the
// vehicle armed or the session from terminating cleanly.
func (s *Session) cleanup() {
	s.cleanupOnce.Do(func() {
		v := s.cfg.Vehicle
		s.setState(StateLanding)
		s.log("stopping, landing %s...", v)

		// The session context may already be cancelled; cleanup gets
		// its own.
		ctx := context.Background()

		steps := []cleanupStep{
			{"hover", func() error { return s.snk.Hover(ctx, v) }},
			{"settle", func() error { time.Sleep(s.cfg.SettlePause); return nil }},
			{"land", func() error { return s.snk.Land(ctx, v) }},
			{"disarm", func() error { return s.snk.Disarm(ctx, v) }},
			{"release control", func() error { return s.snk.ReleaseControl(ctx, v) }},
		}
		for _, step := range steps {
			s.runCleanupStep(step)
		}

		s.setState(StateGrounded)
		s.log("%s grounded", v)
		s.publish(Status{State: StateGrounded, Timestamp: time.Now()})
	})
}

func (s *Session) runCleanupStep(step cleanupStep) {
	defer func() {
		if r := recover(); r != nil {
			s.log("cleanup %s panicked: %v", step.name, r)
		}
	}()
	if err := step.fn(); err != nil {
		s.log("cleanup %s: %v", step.name, err)
	}
}
