package main

import (
	"os"

	"github.com/dyluth/blueprints/cmd/blueprints/commands"
	"github.com/golang/glog"
)

// Version information - set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	// Errors are printed directly by the printer package with color formatting
	err := commands.Execute()
	glog.Flush()
	if err != nil {
		os.Exit(1)
	}
}
