// Package intentions implements the admission pipeline for signed
// intentions and the pending queue that feeds the bundle proposer. A
// submission is verified against its controller's signature, name
// resolved, validated, authorized, and admitted against local balances
// before the execution it implies is queued for the next bundle.
package intentions

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/latticelabs/lattice/proposer/db/iface"
	"github.com/latticelabs/lattice/proposer/types"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "intentions")

// Store is the database slice the pipeline reads for admission and writes
// for vault creation.
type Store interface {
	Balance(ctx context.Context, vault uint64, token string) (*types.Wei, error)
	Controllers(ctx context.Context, vault uint64) ([]string, error)
	VaultsByController(ctx context.Context, controller string) ([]uint64, error)
	DepositsWithRemaining(ctx context.Context, depositor, token string, chainID uint64) ([]iface.DepositBalance, error)
	CreateVault(ctx context.Context, vault uint64, controller string) error
}

// ChainCaller is the gateway slice vault handling needs: the on-chain
// vault horizon and the creation transaction.
type ChainCaller interface {
	NextVaultID(ctx context.Context) (uint64, error)
	CreateVault(ctx context.Context, controller common.Address) (common.Hash, error)
}

// Resolver rewrites names inside an intention to canonical addresses.
type Resolver interface {
	ResolveIntention(ctx context.Context, in *types.Intention) error
}

// Config holds the pipeline dependencies.
type Config struct {
	Store    Store
	Resolver Resolver
	Chain    ChainCaller
	QueueCap int
}

// Service admits signed intentions into the pending queue. Submissions
// are driven by the RPC front-end calling Submit; the service itself runs
// no goroutine.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *Config
	queue  *Queue
}

// NewService builds the admission service and its queue.
func NewService(ctx context.Context, cfg *Config) *Service {
	ctx, cancel := context.WithCancel(ctx)
	return &Service{ctx: ctx, cancel: cancel, cfg: cfg, queue: NewQueue(cfg.QueueCap)}
}

// Start implements the node service interface.
func (s *Service) Start() {
	if s.cfg.QueueCap > 0 {
		log.WithField("cap", s.cfg.QueueCap).Info("Pending queue is bounded")
	}
}

// Stop implements the node service interface.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status is always healthy. Backpressure surfaces per submission as a
// queue-full rejection, not as node ill health.
func (s *Service) Status() error {
	return nil
}

// Queue exposes the pending queue to the bundle proposer.
func (s *Service) Queue() *Queue {
	return s.queue
}
