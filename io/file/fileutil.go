// Package file provides the filesystem helpers the node uses for anything
// it persists outside the database: quarantined bundle payloads, auth
// secrets, and log files. Directories are created 0700 and files 0600 so
// key material never leaks through permissive modes.
package file

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	// DirPerms is the mode for node-owned directories.
	DirPerms = os.FileMode(0700)
	// FilePerms is the mode for node-written files.
	FilePerms = os.FileMode(0600)
)

// MkdirAll creates a directory and any missing parents with owner-only
// permissions. A directory that already exists with a wider mode is
// refused rather than silently reused.
func MkdirAll(dirPath string) error {
	info, err := os.Stat(dirPath)
	if err == nil {
		if !info.IsDir() {
			return errors.Errorf("%s exists and is not a directory", dirPath)
		}
		if info.Mode().Perm() != DirPerms {
			return errors.Errorf("dir already exists without proper 0700 permissions: %s", dirPath)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dirPath, DirPerms)
}

// WriteFile writes data to path with owner-only permissions. An existing
// file with a wider mode is refused.
func WriteFile(path string, data []byte) error {
	if Exists(path) {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Mode() != FilePerms {
			return errors.Errorf("file already exists without proper 0600 permissions: %s", path)
		}
	}
	return os.WriteFile(path, data, FilePerms)
}

// Exists reports whether path names an existing file or directory.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ExpandPath expands a leading ~ and any environment variables, then
// returns the cleaned absolute form.
func ExpandPath(p string) (string, error) {
	if strings.HasPrefix(p, "~/") || strings.HasPrefix(p, "~\\") {
		if home := HomeDir(); home != "" {
			p = home + p[1:]
		}
	}
	return filepath.Abs(filepath.Clean(os.ExpandEnv(p)))
}

// HomeDir returns the current user's home directory, preferring $HOME.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}
