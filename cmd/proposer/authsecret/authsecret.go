// Package authsecret defines the subcommand generating the shared secret
// that guards the proposer's mutating HTTP routes.
package authsecret

import (
	"crypto/rand"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/latticelabs/lattice/cmd"
	"github.com/latticelabs/lattice/io/file"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var log = logrus.WithField("prefix", "authsecret")

var outputFileFlag = &cli.StringFlag{
	Name:  "output-file",
	Usage: "Path of the plaintext file the hex-encoded secret is written to.",
	Value: "auth.secret",
}

// Commands is the generate-auth-secret subcommand. It writes a random
// 32 byte hex string to a plaintext file, which the node reads through
// --rpc-auth-secret-file and API clients use to mint bearer tokens.
var Commands = &cli.Command{
	Name:  "generate-auth-secret",
	Usage: "creates a random 32 byte hex string in a plaintext file, used to authorize intention submissions",
	Flags: cmd.WrapFlags([]cli.Flag{
		outputFileFlag,
	}),
	Action: func(cliCtx *cli.Context) error {
		path, err := generateAuthSecretInFile(cliCtx.String(outputFileFlag.Name))
		if err != nil {
			return errors.Wrap(err, "could not generate auth secret")
		}
		log.WithField("path", path).Info("Wrote auth secret")
		return nil
	},
}

func generateAuthSecretInFile(path string) (string, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if err := file.WriteFile(absPath, []byte(hexutil.Encode(secret)[2:])); err != nil {
		return "", err
	}
	return absPath, nil
}
