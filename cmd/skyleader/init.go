package main

import (
	"fmt"

	"github.com/skylab-uav/skyleader/pkg/config"
)

type InitCommand struct {
	Force bool `long:"force" description:"Overwrite an existing configuration file"`
}

func (c *InitCommand) Execute(args []string) error {
	if config.Exists() && !c.Force {
		return fmt.Errorf("%s already exists, use --force to overwrite", config.DefaultConfigFile)
	}

	cfg := config.Default()
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("Wrote default configuration to %s\n", config.DefaultConfigFile)
	fmt.Println("Start a simulated flight with: skyleader fly --sim")
	return nil
}
