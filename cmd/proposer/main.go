// Package main defines the lattice proposer node binary. A proposer accepts
// signed intentions over HTTP, batches them into content-addressed bundles,
// and anchors each bundle on the canonical chain.
package main

import (
	"fmt"
	"os"
	"runtime"

	joonix "github.com/joonix/log"
	"github.com/latticelabs/lattice/cmd"
	"github.com/latticelabs/lattice/cmd/proposer/authsecret"
	"github.com/latticelabs/lattice/cmd/proposer/flags"
	"github.com/latticelabs/lattice/io/logs"
	"github.com/latticelabs/lattice/proposer/node"
	"github.com/latticelabs/lattice/runtime/debug"
	"github.com/latticelabs/lattice/runtime/version"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var log = logrus.WithField("prefix", "main")

func startNode(cliCtx *cli.Context) error {
	verbosity := cliCtx.String(cmd.VerbosityFlag.Name)
	level, err := logrus.ParseLevel(verbosity)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	proposer, err := node.New(cliCtx)
	if err != nil {
		return err
	}
	proposer.Start()
	return nil
}

var appFlags = []cli.Flag{
	flags.ProposerAddressFlag,
	flags.ProposerKeyFlag,
	flags.ProposerKeystoreFlag,
	flags.KeystorePasswordFileFlag,
	flags.BundleTrackerAddressFlag,
	flags.VaultTrackerAddressFlag,
	flags.ChainEndpointFlag,
	flags.ChainAPIKeyFlag,
	flags.ChainIDFlag,
	flags.NameRegistryAddressFlag,
	flags.StoreURLFlag,
	flags.DBURLFlag,
	flags.BundleIntervalFlag,
	flags.BundleTimeoutFlag,
	flags.NameCacheTTLFlag,
	flags.QueueCapFlag,
	flags.DepositScanIntervalFlag,
	flags.DepositStartBlockFlag,
	flags.WebhookURLFlag,
	flags.WebhookSecretFlag,
	flags.PinEnabledFlag,
	flags.HTTPHostFlag,
	flags.HTTPPortFlag,
	flags.HTTPCorsDomainFlag,
	flags.RPCAuthSecretFileFlag,
	flags.RPCSubmissionRateFlag,
	cmd.VerbosityFlag,
	cmd.DataDirFlag,
	cmd.EnableTracingFlag,
	cmd.TracingProcessNameFlag,
	cmd.TracingEndpointFlag,
	cmd.TraceSampleFractionFlag,
	cmd.MonitoringHostFlag,
	cmd.MonitoringPortFlag,
	cmd.DisableMonitoringFlag,
	cmd.LogFileName,
	cmd.LogFormat,
	cmd.ConfigFileFlag,
	debug.PProfFlag,
	debug.PProfAddrFlag,
	debug.PProfPortFlag,
	debug.MemProfileRateFlag,
	debug.BlockProfileRateFlag,
	debug.MutexProfileFractionFlag,
	debug.CPUProfileFlag,
	debug.TraceFlag,
}

func init() {
	appFlags = cmd.WrapFlags(appFlags)
}

func main() {
	app := cli.App{}
	app.Name = "proposer"
	app.Usage = "launches a lattice proposer node that batches signed intentions into anchored bundles"
	app.Version = version.Version()
	app.Flags = appFlags
	app.Action = startNode
	app.Commands = []*cli.Command{
		authsecret.Commands,
	}
	app.Before = func(ctx *cli.Context) error {
		// Load any flags from file, if specified.
		if ctx.IsSet(cmd.ConfigFileFlag.Name) {
			if err := altsrc.InitInputSourceWithContext(
				appFlags,
				altsrc.NewYamlSourceFromFlagFunc(
					cmd.ConfigFileFlag.Name))(ctx); err != nil {
				return err
			}
		}

		format := ctx.String(cmd.LogFormat.Name)
		switch format {
		case "text":
			formatter := new(prefixed.TextFormatter)
			formatter.TimestampFormat = "2006-01-02 15:04:05"
			formatter.FullTimestamp = true
			// If persistent log files are written - we disable the log messages coloring because
			// the colors are ANSI codes and seen as Gibberish in the log files.
			formatter.DisableColors = ctx.String(cmd.LogFileName.Name) != ""
			logrus.SetFormatter(formatter)
		case "fluentd":
			logrus.SetFormatter(joonix.NewFormatter())
		case "json":
			logrus.SetFormatter(&logrus.JSONFormatter{})
		default:
			return fmt.Errorf("unknown log format %s", format)
		}

		logFileName := ctx.String(cmd.LogFileName.Name)
		if logFileName != "" {
			if err := logs.ConfigurePersistentLogging(logFileName); err != nil {
				log.WithError(err).Error("Failed to configuring logging to disk.")
			}
		}

		runtime.GOMAXPROCS(runtime.NumCPU())
		return debug.Setup(ctx)
	}

	app.After = func(ctx *cli.Context) error {
		debug.Exit(ctx)
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
