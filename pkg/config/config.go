// Package config holds the tuning constants and key bindings for a
// teleoperation session, persisted as a JSON file.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/skylab-uav/skyleader/pkg/input"
)

const DefaultConfigFile = "skyleader.json"

// Axis holds the shaping limits for one axis family, in the axis's own
// units (m/s and m/s^2 for translation, deg/s and deg/s^2 for yaw).
type Axis struct {
	Max   float64 `json:"max"`
	Accel float64 `json:"accel"`
	Decel float64 `json:"decel"`
}

// Smoothing holds the smoother coefficients. Alphas are per axis family.
type Smoothing struct {
	AlphaXY  float64 `json:"alpha_xy"`
	AlphaYaw float64 `json:"alpha_yaw"`
}

// Config is the full session configuration.
type Config struct {
	Vehicle string `json:"vehicle"`
	TickMS  int    `json:"tick_ms"`

	XY  Axis `json:"xy"`
	Z   Axis `json:"z"`
	Yaw Axis `json:"yaw"`

	Smoothing Smoothing `json:"smoothing"`

	// Keys maps terminal key names to logical commands.
	Keys map[string]input.Command `json:"keys"`
}

// Default returns the stock tuning: a 20 Hz loop with moderate acceleration
// and WSAD-style bindings.
func Default() *Config {
	return &Config{
		Vehicle: "Leader",
		TickMS:  50,
		XY:      Axis{Max: 4.0, Accel: 3.0, Decel: 3.5},
		Z:       Axis{Max: 2.0, Accel: 2.0, Decel: 2.5},
		Yaw:     Axis{Max: 90.0, Accel: 180.0, Decel: 220.0},
		Smoothing: Smoothing{
			AlphaXY:  0.2,
			AlphaYaw: 0.2,
		},
		Keys: map[string]input.Command{
			"w":   input.Forward,
			"s":   input.Backward,
			"a":   input.Left,
			"d":   input.Right,
			"u":   input.Up,
			"i":   input.Down,
			"j":   input.YawLeft,
			"l":   input.YawRight,
			"k":   input.ZeroYaw,
			"p":   input.Land,
			"esc": input.Exit,
		},
	}
}

// Validate checks the shaping preconditions. A config that fails here is a
// configuration error; the control loop assumes these hold.
func (c *Config) Validate() error {
	if c.TickMS <= 0 {
		return fmt.Errorf("tick_ms must be positive, got %d", c.TickMS)
	}
	for name, a := range map[string]Axis{"xy": c.XY, "z": c.Z, "yaw": c.Yaw} {
		if a.Max < 0 || a.Accel < 0 || a.Decel < 0 {
			return fmt.Errorf("%s axis limits must be non-negative: %+v", name, a)
		}
	}
	for name, alpha := range map[string]float64{
		"alpha_xy":  c.Smoothing.AlphaXY,
		"alpha_yaw": c.Smoothing.AlphaYaw,
	} {
		if alpha <= 0 || alpha > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %f", name, alpha)
		}
	}
	if c.Vehicle == "" {
		return fmt.Errorf("vehicle name must not be empty")
	}
	return nil
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom loads and validates configuration from a specific file.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save saves configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Exists returns true if the default config file exists.
func Exists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}
