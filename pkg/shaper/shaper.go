// Package shaper turns discrete held/released direction input into smooth,
// bounded velocity setpoints.
//
// Each command axis is shaped in two stages. The target integrator
// accelerates toward the held direction and decelerates toward zero when no
// direction is held, clamped to a configured maximum. The smoother then
// removes residual jitter from the discretized input sampling with a
// first-order low-pass filter. A slew-rate limiter is available as an
// alternative smoothing stage with the same contract.
package shaper

// Clamp limits x to the range [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Integrate advances an axis target by one tick of duration dt seconds.
//
// While exactly one direction is held the target ramps toward that direction
// at accel, clamped to ±maxMag. Otherwise (neither held, or both held, which
// ties resolve to neither) the target decays toward zero at decel without
// crossing zero.
//
// dt must be positive and accel, decel, maxMag non-negative; these are
// configuration preconditions, not runtime checks.
func Integrate(target float64, posHeld, negHeld bool, accel, decel, maxMag, dt float64) float64 {
	switch {
	case posHeld && !negHeld:
		return Clamp(target+accel*dt, -maxMag, maxMag)
	case negHeld && !posHeld:
		return Clamp(target-accel*dt, -maxMag, maxMag)
	case target > 0:
		return max(0, target-decel*dt)
	case target < 0:
		return min(0, target+decel*dt)
	default:
		return 0
	}
}

// LowPass blends current toward target with coefficient alpha in (0, 1].
// Lower alpha is smoother; alpha of 1 passes the target through unchanged.
func LowPass(target, current, alpha float64) float64 {
	return current + alpha*(target-current)
}

// SlewLimit moves current toward target by at most maxRate*dt.
func SlewLimit(target, current, maxRate, dt float64) float64 {
	delta := Clamp(target-current, -maxRate*dt, maxRate*dt)
	return current + delta
}

// Channel holds the shaping state for one command axis. The control loop
// owns its channels exclusively; nothing else mutates them.
type Channel struct {
	Target   float64 // integrated setpoint
	Smoothed float64 // last value sent downstream

	MaxMag float64
	Accel  float64
	Decel  float64
	Alpha  float64
}

// Integrate updates the channel target from the current held state.
func (c *Channel) Integrate(posHeld, negHeld bool, dt float64) {
	c.Target = Integrate(c.Target, posHeld, negHeld, c.Accel, c.Decel, c.MaxMag, dt)
}

// Zero forces the target to zero immediately, bypassing deceleration.
// Used by the yaw channel's center-yaw override.
func (c *Channel) Zero() {
	c.Target = 0
}

// Smooth advances the smoothed output toward the target and returns it.
func (c *Channel) Smooth() float64 {
	c.Smoothed = LowPass(c.Target, c.Smoothed, c.Alpha)
	return c.Smoothed
}
