// Package flags contains all configuration runtime flags for the proposer
// node.
package flags

import (
	"time"

	"github.com/urfave/cli/v2"
)

var (
	// Identity and chain flags.

	// ProposerAddressFlag is the address bundles are proposed under. It
	// must match the address recovered from the proposer key.
	ProposerAddressFlag = &cli.StringFlag{
		Name:  "proposer-address",
		Usage: "Address the node proposes bundles under (checksummed or lowercase hex)",
	}
	// ProposerKeyFlag is the proposer's signing key as raw hex.
	ProposerKeyFlag = &cli.StringFlag{
		Name:  "proposer-key",
		Usage: "Hex-encoded secp256k1 private key used to sign bundles. Mutually exclusive with --proposer-keystore",
	}
	// ProposerKeystoreFlag is the proposer's signing key as a keystore file.
	ProposerKeystoreFlag = &cli.StringFlag{
		Name:  "proposer-keystore",
		Usage: "Path to a geth keystore file holding the proposer key. Requires --keystore-password-file",
	}
	// KeystorePasswordFileFlag names the file with the keystore password.
	KeystorePasswordFileFlag = &cli.StringFlag{
		Name:  "keystore-password-file",
		Usage: "Path to a plaintext file holding the keystore decryption password",
	}
	// BundleTrackerAddressFlag is the bundle tracker contract.
	BundleTrackerAddressFlag = &cli.StringFlag{
		Name:  "bundle-tracker-address",
		Usage: "Address of the on-chain bundle tracker contract",
	}
	// VaultTrackerAddressFlag is the vault tracker contract.
	VaultTrackerAddressFlag = &cli.StringFlag{
		Name:  "vault-tracker-address",
		Usage: "Address of the on-chain vault tracker contract",
	}
	// ChainEndpointFlag is the JSON-RPC endpoint of the settlement chain.
	ChainEndpointFlag = &cli.StringFlag{
		Name:  "chain-endpoint",
		Usage: "HTTP JSON-RPC endpoint of the settlement chain provider",
	}
	// ChainAPIKeyFlag is appended to the endpoint as the provider expects.
	ChainAPIKeyFlag = &cli.StringFlag{
		Name:  "chain-api-key",
		Usage: "Provider API key, appended to the chain endpoint as its final path segment",
	}
	// ChainIDFlag pins the expected chain id of the endpoint.
	ChainIDFlag = &cli.Uint64Flag{
		Name:  "chain-id",
		Usage: "Expected chain id of the endpoint. 0 accepts whatever the endpoint serves",
	}
	// NameRegistryAddressFlag is the name registry contract.
	NameRegistryAddressFlag = &cli.StringFlag{
		Name:  "name-registry-address",
		Usage: "Address of the name registry contract. Empty disables name lookups; literal addresses still resolve",
	}

	// Storage flags.

	// StoreURLFlag is the content store API endpoint.
	StoreURLFlag = &cli.StringFlag{
		Name:  "store-url",
		Usage: "Base URL of the IPFS HTTP API used as the bundle content store",
	}
	// DBURLFlag is the Postgres connection string.
	DBURLFlag = &cli.StringFlag{
		Name:  "db-url",
		Usage: "Postgres connection URL for the proposer database",
	}

	// Bundling flags.

	// BundleIntervalFlag is the tick cadence.
	BundleIntervalFlag = &cli.DurationFlag{
		Name:  "bundle-interval",
		Usage: "Interval between bundle ticks",
		Value: 10 * time.Second,
	}
	// BundleTimeoutFlag bounds a single tick.
	BundleTimeoutFlag = &cli.DurationFlag{
		Name:  "bundle-timeout",
		Usage: "Deadline for a single bundle tick. A tick past the deadline is aborted and its snapshot discarded",
		Value: 2 * time.Minute,
	}
	// NameCacheTTLFlag bounds name resolution caching.
	NameCacheTTLFlag = &cli.DurationFlag{
		Name:  "name-cache-ttl",
		Usage: "How long resolved names are memoized before the registry is consulted again",
		Value: time.Hour,
	}
	// QueueCapFlag caps the pending queue.
	QueueCapFlag = &cli.IntFlag{
		Name:  "queue-cap",
		Usage: "Maximum pending intentions before submissions are rejected. 0 means unlimited",
	}

	// Deposit discovery flags.

	// DepositScanIntervalFlag is the discovery cadence.
	DepositScanIntervalFlag = &cli.DurationFlag{
		Name:  "deposit-scan-interval",
		Usage: "Interval between deposit discovery scans",
		Value: time.Minute,
	}
	// DepositStartBlockFlag skips history on the first scan.
	DepositStartBlockFlag = &cli.Uint64Flag{
		Name:  "deposit-start-block",
		Usage: "Block the first deposit scan starts from. 0 scans from the provider's earliest block",
	}

	// Fan-out flags.

	// WebhookURLFlag is the bundle webhook subscriber.
	WebhookURLFlag = &cli.StringFlag{
		Name:  "webhook-url",
		Usage: "URL that receives a signed webhook for each committed bundle. Empty disables webhooks",
	}
	// WebhookSecretFlag signs webhook deliveries.
	WebhookSecretFlag = &cli.StringFlag{
		Name:  "webhook-secret",
		Usage: "Shared secret for the webhook HMAC signature header",
	}
	// PinEnabledFlag turns on long-term pinning.
	PinEnabledFlag = &cli.BoolFlag{
		Name:  "pin-enabled",
		Usage: "Pin each committed bundle in the content store",
	}

	// HTTP API flags.

	// HTTPHostFlag is the API bind host.
	HTTPHostFlag = &cli.StringFlag{
		Name:  "http-host",
		Usage: "Host on which the HTTP API listens",
		Value: "127.0.0.1",
	}
	// HTTPPortFlag is the API bind port.
	HTTPPortFlag = &cli.IntFlag{
		Name:  "http-port",
		Usage: "Port on which the HTTP API listens",
		Value: 4000,
	}
	// HTTPCorsDomainFlag configures allowed origins.
	HTTPCorsDomainFlag = &cli.StringFlag{
		Name:  "http-cors-domain",
		Usage: "Comma separated list of domains from which to accept cross origin requests (browser enforced)",
		Value: "*",
	}
	// RPCAuthSecretFileFlag enables bearer auth on mutating routes.
	RPCAuthSecretFileFlag = &cli.StringFlag{
		Name:  "rpc-auth-secret-file",
		Usage: "Path to a 32-byte hex secret. When set, submissions require an HS256 bearer token. Empty disables auth",
	}
	// RPCSubmissionRateFlag limits submissions per client.
	RPCSubmissionRateFlag = &cli.Float64Flag{
		Name:  "rpc-submission-rate",
		Usage: "Sustained intention submissions allowed per second per client IP",
		Value: 100,
	}
)
