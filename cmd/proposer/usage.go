// This code was adapted from https://github.com/ethereum/go-ethereum/blob/master/cmd/geth/usage.go
package main

import (
	"io"
	"sort"

	"github.com/latticelabs/lattice/cmd"
	"github.com/latticelabs/lattice/cmd/proposer/flags"
	"github.com/latticelabs/lattice/runtime/debug"
	"github.com/urfave/cli/v2"
)

var appHelpTemplate = `NAME:
   {{.App.Name}} - {{.App.Usage}}
USAGE:
   {{.App.HelpName}} [options]{{if .App.Commands}} command [command options]{{end}} {{if .App.ArgsUsage}}{{.App.ArgsUsage}}{{else}}[arguments...]{{end}}
   {{if .App.Version}}
AUTHOR:
   {{range .App.Authors}}{{ . }}{{end}}
   {{end}}{{if .App.Commands}}
GLOBAL OPTIONS:
   {{range .App.Commands}}{{join .Names ", "}}{{ "\t" }}{{.Usage}}
   {{end}}{{end}}{{if .FlagGroups}}
{{range .FlagGroups}}{{.Name}} OPTIONS:
   {{range .Flags}}{{.}}
   {{end}}
{{end}}{{end}}{{if .App.Copyright }}
COPYRIGHT:
   {{.App.Copyright}}
VERSION:
   {{.App.Version}}
   {{end}}{{if len .App.Authors}}
   {{end}}
`

type flagGroup struct {
	Name  string
	Flags []cli.Flag
}

var appHelpFlagGroups = []flagGroup{
	{
		Name: "cmd",
		Flags: []cli.Flag{
			cmd.VerbosityFlag,
			cmd.DataDirFlag,
			cmd.EnableTracingFlag,
			cmd.TracingProcessNameFlag,
			cmd.TracingEndpointFlag,
			cmd.TraceSampleFractionFlag,
			cmd.MonitoringHostFlag,
			cmd.MonitoringPortFlag,
			cmd.DisableMonitoringFlag,
			cmd.ConfigFileFlag,
		},
	},
	{
		Name: "debug",
		Flags: []cli.Flag{
			debug.PProfFlag,
			debug.PProfAddrFlag,
			debug.PProfPortFlag,
			debug.MemProfileRateFlag,
			debug.BlockProfileRateFlag,
			debug.MutexProfileFractionFlag,
			debug.CPUProfileFlag,
			debug.TraceFlag,
		},
	},
	{
		Name: "log",
		Flags: []cli.Flag{
			cmd.LogFormat,
			cmd.LogFileName,
		},
	},
	{
		Name: "proposer",
		Flags: []cli.Flag{
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
		},
	},
}

func init() {
	cli.AppHelpTemplate = appHelpTemplate

	type helpData struct {
		App        interface{}
		FlagGroups []flagGroup
	}

	originalHelpPrinter := cli.HelpPrinter
	cli.HelpPrinter = func(w io.Writer, tmpl string, data interface{}) {
		if tmpl == appHelpTemplate {
			for _, group := range appHelpFlagGroups {
				sort.Sort(cli.FlagsByName(group.Flags))
			}
			originalHelpPrinter(w, tmpl, helpData{data, appHelpFlagGroups})
		} else {
			originalHelpPrinter(w, tmpl, data)
		}
	}
}
