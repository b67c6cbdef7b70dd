package main

import (
	"testing"

	"github.com/latticelabs/lattice/cmd"
	"github.com/urfave/cli/v2"
)

func TestAllFlagsExistInHelp(t *testing.T) {
	// Every flag the app accepts must be listed in a usage group, and every
	// flag in a usage group must be accepted by the app.
	var helpFlags []cli.Flag
	for _, group := range appHelpFlagGroups {
		helpFlags = append(helpFlags, group.Flags...)
	}
	helpFlags = cmd.WrapFlags(helpFlags)

	for _, f := range appFlags {
		if !doesFlagExist(f, helpFlags) {
			t.Errorf("Flag %s does not exist in help/usage flags.", f.Names()[0])
		}
	}
	for _, f := range helpFlags {
		if !doesFlagExist(f, appFlags) {
			t.Errorf("Flag %s does not exist in main.go, but exists in help flags.", f.Names()[0])
		}
	}
}

func doesFlagExist(fl cli.Flag, flags []cli.Flag) bool {
	for _, f := range flags {
		if f.String() == fl.String() {
			return true
		}
	}
	return false
}
