package node

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/latticelabs/lattice/cmd"
	"github.com/latticelabs/lattice/cmd/proposer/flags"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

// Config is the node's flag-derived configuration. The validate tags are
// enforced before any service is constructed, so a bad value fails the
// process instead of a service mid-flight.
type Config struct {
	ProposerAddress      string `validate:"required,eth_addr"`
	ProposerKey          string `validate:"required_without=ProposerKeystore,excluded_with=ProposerKeystore"`
	ProposerKeystore     string
	KeystorePasswordFile string `validate:"required_with=ProposerKeystore"`
	BundleTracker        string `validate:"required,eth_addr"`
	VaultTracker         string `validate:"required,eth_addr"`
	NameRegistry         string `validate:"omitempty,eth_addr"`
	ChainEndpoint        string `validate:"required,url"`
	ChainAPIKey          string
	ChainID              uint64
	StoreURL             string `validate:"required,url"`
	DBURL                string `validate:"required"`

	BundleInterval      time.Duration `validate:"gt=0"`
	BundleTimeout       time.Duration `validate:"gt=0"`
	NameCacheTTL        time.Duration `validate:"gt=0"`
	QueueCap            int           `validate:"gte=0"`
	DepositScanInterval time.Duration `validate:"gt=0"`
	DepositStartBlock   uint64

	WebhookURL    string `validate:"omitempty,url"`
	WebhookSecret string
	PinEnabled    bool

	HTTPHost       string   `validate:"required"`
	HTTPPort       int      `validate:"gt=0,lte=65535"`
	CorsDomains    []string `validate:"required,dive,required"`
	AuthSecretFile string
	SubmissionRate float64 `validate:"gte=0"`

	DataDir string `validate:"required"`
}

// newConfig reads every proposer flag off the CLI context.
func newConfig(cliCtx *cli.Context) *Config {
	return &Config{
		ProposerAddress:      cliCtx.String(flags.ProposerAddressFlag.Name),
		ProposerKey:          cliCtx.String(flags.ProposerKeyFlag.Name),
		ProposerKeystore:     cliCtx.String(flags.ProposerKeystoreFlag.Name),
		KeystorePasswordFile: cliCtx.String(flags.KeystorePasswordFileFlag.Name),
		BundleTracker:        cliCtx.String(flags.BundleTrackerAddressFlag.Name),
		VaultTracker:         cliCtx.String(flags.VaultTrackerAddressFlag.Name),
		NameRegistry:         cliCtx.String(flags.NameRegistryAddressFlag.Name),
		ChainEndpoint:        cliCtx.String(flags.ChainEndpointFlag.Name),
		ChainAPIKey:          cliCtx.String(flags.ChainAPIKeyFlag.Name),
		ChainID:              cliCtx.Uint64(flags.ChainIDFlag.Name),
		StoreURL:             cliCtx.String(flags.StoreURLFlag.Name),
		DBURL:                cliCtx.String(flags.DBURLFlag.Name),
		BundleInterval:       cliCtx.Duration(flags.BundleIntervalFlag.Name),
		BundleTimeout:        cliCtx.Duration(flags.BundleTimeoutFlag.Name),
		NameCacheTTL:         cliCtx.Duration(flags.NameCacheTTLFlag.Name),
		QueueCap:             cliCtx.Int(flags.QueueCapFlag.Name),
		DepositScanInterval:  cliCtx.Duration(flags.DepositScanIntervalFlag.Name),
		DepositStartBlock:    cliCtx.Uint64(flags.DepositStartBlockFlag.Name),
		WebhookURL:           cliCtx.String(flags.WebhookURLFlag.Name),
		WebhookSecret:        cliCtx.String(flags.WebhookSecretFlag.Name),
		PinEnabled:           cliCtx.Bool(flags.PinEnabledFlag.Name),
		HTTPHost:             cliCtx.String(flags.HTTPHostFlag.Name),
		HTTPPort:             cliCtx.Int(flags.HTTPPortFlag.Name),
		CorsDomains:          splitCommaSeparated(cliCtx.String(flags.HTTPCorsDomainFlag.Name)),
		AuthSecretFile:       cliCtx.String(flags.RPCAuthSecretFileFlag.Name),
		SubmissionRate:       cliCtx.Float64(flags.RPCSubmissionRateFlag.Name),
		DataDir:              cliCtx.String(cmd.DataDirFlag.Name),
	}
}

// validateConfig enforces the struct tags. Cross-field rules the tags
// cannot express (wallet address equality, chain id) are checked where the
// respective handle is constructed.
func validateConfig(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

// keySpec returns the wallet key argument: the raw hex key when given,
// otherwise the keystore path.
func (c *Config) keySpec() string {
	if c.ProposerKey != "" {
		return c.ProposerKey
	}
	return c.ProposerKeystore
}

func splitCommaSeparated(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
