package chain

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "chain")

// Config holds the connection and contract parameters for the chain
// service.
type Config struct {
	Endpoint        string
	APIKey          string
	ExpectedChainID uint64
	Wallet          *Wallet
	BundleTracker   common.Address
	VaultTracker    common.Address
}

// Service owns the chain connection for the node's lifetime. Construction
// fails fast when the endpoint is unreachable or serves the wrong chain, so
// a misconfigured node exits non-zero instead of limping.
type Service struct {
	ctx       context.Context
	cancel    context.CancelFunc
	cfg       *Config
	rpcClient *rpc.Client
	client    *ethclient.Client
	gateway   *Gateway
}

// NewService dials the configured endpoint, verifies the chain id, and
// binds the tracker contracts.
func NewService(ctx context.Context, cfg *Config) (*Service, error) {
	ctx, cancel := context.WithCancel(ctx)
	rpcClient, err := rpc.DialContext(ctx, Endpoint(cfg.Endpoint, cfg.APIKey))
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "could not dial chain endpoint")
	}
	client := ethclient.NewClient(rpcClient)
	chainID, err := client.ChainID(ctx)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "could not fetch chain id")
	}
	if cfg.ExpectedChainID != 0 && chainID.Uint64() != cfg.ExpectedChainID {
		cancel()
		return nil, errors.Errorf("endpoint serves chain %d, want %d", chainID.Uint64(), cfg.ExpectedChainID)
	}
	gateway, err := NewGateway(client, rpcClient, cfg.Wallet, chainID, cfg.BundleTracker, cfg.VaultTracker)
	if err != nil {
		cancel()
		return nil, err
	}
	return &Service{
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
		rpcClient: rpcClient,
		client:    client,
		gateway:   gateway,
	}, nil
}

// Start implements the service interface.
func (s *Service) Start() {
	log.WithFields(logrus.Fields{
		"chainID":       s.gateway.ChainID(),
		"bundleTracker": s.cfg.BundleTracker.Hex(),
		"vaultTracker":  s.cfg.VaultTracker.Hex(),
	}).Info("Connected to chain")
}

// Stop closes the underlying connection.
func (s *Service) Stop() error {
	s.cancel()
	s.rpcClient.Close()
	return nil
}

// Status implements the service interface. The connection is verified at
// construction; per-call failures surface on the operations themselves.
func (s *Service) Status() error {
	return nil
}

// Gateway returns the bound contract surface.
func (s *Service) Gateway() *Gateway {
	return s.gateway
}

// Client exposes the underlying ethclient for read-only contract binding.
func (s *Service) Client() *ethclient.Client {
	return s.client
}

// Endpoint appends the provider API key as the final path segment, the
// form hosted providers expect.
func Endpoint(base, apiKey string) string {
	if apiKey == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + apiKey
}
