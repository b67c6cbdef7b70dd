package file_test

import (
	"os"
	"os/user"
	"path/filepath"
	"testing"

	"github.com/latticelabs/lattice/io/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathExpansion(t *testing.T) {
	usr, err := user.Current()
	require.NoError(t, err)
	require.NoError(t, os.Setenv("DDDXXX", "/tmp"))
	tests := map[string]string{
		"/home/someuser/tmp": "/home/someuser/tmp",
		"~/tmp":              usr.HomeDir + "/tmp",
		"$DDDXXX/a/b":        "/tmp/a/b",
		"/a/b/":              "/a/b",
	}
	for input, expected := range tests {
		expanded, err := file.ExpandPath(input)
		require.NoError(t, err)
		assert.Equal(t, expected, expanded)
	}
}

func TestMkdirAll(t *testing.T) {
	dirName := filepath.Join(t.TempDir(), "somedir")
	require.NoError(t, file.MkdirAll(dirName))

	info, err := os.Stat(dirName)
	require.NoError(t, err)
	assert.Equal(t, file.DirPerms, info.Mode().Perm())

	// Idempotent when the mode is right.
	require.NoError(t, file.MkdirAll(dirName))
}

func TestMkdirAllRefusesWrongPermissions(t *testing.T) {
	dirName := filepath.Join(t.TempDir(), "somedir")
	require.NoError(t, os.MkdirAll(dirName, os.ModePerm))

	err := file.MkdirAll(dirName)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without proper 0700 permissions")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, file.WriteFile(path, []byte("data")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, file.FilePerms, info.Mode())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)
}

func TestWriteFileRefusesWrongPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))

	err := file.WriteFile(path, []byte("update"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without proper 0600 permissions")
}
