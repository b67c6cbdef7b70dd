package authsecret

import (
	"path/filepath"
	"testing"

	"github.com/latticelabs/lattice/proposer/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestGenerateAuthSecret(t *testing.T) {
	require.Equal(t, "generate-auth-secret", Commands.Name)

	path := filepath.Join(t.TempDir(), "auth.secret")
	app := &cli.App{Commands: []*cli.Command{Commands}}
	require.NoError(t, app.Run([]string{"proposer", "generate-auth-secret", "--output-file", path}))

	// The written secret must load through the same path the node uses.
	secret, err := rpc.LoadAuthSecret(path)
	require.NoError(t, err)
	assert.Len(t, secret, 32)
}

func TestGenerateAuthSecretMissingParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-parent", "auth.secret")
	_, err := generateAuthSecretInFile(path)
	require.Error(t, err)
}
