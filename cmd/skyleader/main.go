package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Init InitCommand `command:"init" description:"Write a default configuration file"`
	Fly  FlyCommand  `command:"fly" description:"Start a teleoperation flight session"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "Skyleader - keyboard teleoperation for a single multirotor"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
