// Package skyleader provides keyboard teleoperation for a single multirotor.
//
// It turns noisy key held / not held input into a smooth, bounded body-frame
// velocity and yaw-rate command stream, dispatched to a flight backend at a
// fixed rate (20 Hz by default).
//
// # Installation
//
//	go install github.com/skylab-uav/skyleader/cmd/skyleader@latest
//
// # Usage
//
// Write a default configuration file, then start flying:
//
//	skyleader init
//	skyleader fly --sim
//
// Drop --sim to control a real Tello drone over WiFi.
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/skyleader: CLI with init and fly commands
//   - pkg/shaper: target integration and command smoothing
//   - pkg/pilot: session state machine and fixed-rate control loop
//   - pkg/input: logical command input and held-key tracking
//   - pkg/sink: flight backend contract, with simulator and Tello backends
//   - pkg/config: tuning constants and key bindings
package skyleader
