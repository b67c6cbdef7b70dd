package cmd

import (
	"path/filepath"
	"runtime"

	"github.com/latticelabs/lattice/io/file"
)

// DefaultDataDir is the default data directory to use for node-owned
// persistence requirements.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir.
	home := file.HomeDir()
	if home != "" {
		switch runtime.GOOS {
		case "darwin":
			return filepath.Join(home, "Library", "Lattice")
		case "windows":
			return filepath.Join(home, "AppData", "Local", "Lattice")
		default:
			return filepath.Join(home, ".lattice")
		}
	}
	// As we cannot guess a stable location, return empty and handle later.
	return ""
}
