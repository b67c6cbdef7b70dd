package deposits

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/latticelabs/lattice/async"
	"github.com/latticelabs/lattice/proposer/chain"
	"github.com/latticelabs/lattice/proposer/types"
	"github.com/paulbellamy/ratecounter"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "deposits")

// defaultCategories are the provider transfer categories scanned for
// deposits into the vault tracker.
var defaultCategories = []string{"external", "erc20"}

// TransferSource lists asset transfers and identifies the scan target.
// *chain.Gateway satisfies it.
type TransferSource interface {
	ListTransfers(ctx context.Context, q chain.TransferQuery) ([]*chain.Transfer, error)
	BlockNumber(ctx context.Context) (uint64, error)
	VaultTracker() common.Address
}

// DepositRecorder is the slice of the store discovery writes to.
type DepositRecorder interface {
	InsertDepositIfMissing(ctx context.Context, d *types.Deposit) (uint64, error)
}

// Config holds the discovery service parameters.
type Config struct {
	Source     TransferSource
	Store      DepositRecorder
	Interval   time.Duration
	Categories []string
	// StartBlock skips history before the given block on the first scan.
	// Zero means scan from the provider's earliest available block.
	StartBlock uint64
}

// Service periodically scans the chain for transfers into the vault
// tracker and records them as deposits. The cursor lives in memory;
// rescans after a restart are harmless because inserts are idempotent on
// the transfer uid.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *Config
	rate   *ratecounter.RateCounter

	mu         sync.Mutex
	nextBlock  uint64
	lastScan   error
	haveCursor bool
}

// NewService configures deposit discovery.
func NewService(ctx context.Context, cfg *Config) *Service {
	ctx, cancel := context.WithCancel(ctx)
	if len(cfg.Categories) == 0 {
		cfg.Categories = defaultCategories
	}
	s := &Service{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		rate:   ratecounter.NewRateCounter(time.Minute),
	}
	if cfg.StartBlock > 0 {
		s.nextBlock = cfg.StartBlock
		s.haveCursor = true
	}
	return s
}

// Start launches the scan loop, scanning once immediately.
func (s *Service) Start() {
	log.WithField("interval", s.cfg.Interval).Info("Starting deposit discovery")
	async.RunEveryNow(s.ctx, s.cfg.Interval, s.scan)
}

// Stop halts the scan loop.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status reports the outcome of the last scan. A transient provider
// failure clears on the next successful pass.
func (s *Service) Status() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastScan
}

func (s *Service) scan() {
	start := time.Now()
	head, err := s.cfg.Source.BlockNumber(s.ctx)
	if err != nil {
		s.finishScan(err)
		return
	}
	s.mu.Lock()
	from := s.nextBlock
	haveCursor := s.haveCursor
	s.mu.Unlock()
	if haveCursor && from > head {
		s.finishScan(nil)
		return
	}
	q := chain.TransferQuery{
		To:         strings.ToLower(s.cfg.Source.VaultTracker().Hex()),
		Categories: s.cfg.Categories,
		ToBlock:    hexutil.EncodeUint64(head),
	}
	if haveCursor {
		q.FromBlock = hexutil.EncodeUint64(from)
	}
	transfers, err := s.cfg.Source.ListTransfers(s.ctx, q)
	if err != nil {
		s.finishScan(err)
		return
	}
	inserted := 0
	for _, t := range transfers {
		if t.Amount.Sign() <= 0 {
			continue
		}
		if _, err := s.cfg.Store.InsertDepositIfMissing(s.ctx, &types.Deposit{
			TxHash:      t.TxHash,
			TransferUID: t.UID,
			ChainID:     t.ChainID,
			Depositor:   t.From,
			Token:       t.Token,
			Amount:      t.Amount,
		}); err != nil {
			s.finishScan(err)
			return
		}
		inserted++
	}
	s.rate.Incr(int64(len(transfers)))
	transfersScannedCount.Add(float64(len(transfers)))

	s.mu.Lock()
	s.nextBlock = head + 1
	s.haveCursor = true
	s.mu.Unlock()
	s.finishScan(nil)

	log.WithFields(logrus.Fields{
		"transfers":    len(transfers),
		"recorded":     inserted,
		"head":         head,
		"transfersMin": s.rate.Rate(),
		"took":         time.Since(start),
	}).Debug("Deposit scan complete")
}

func (s *Service) finishScan(err error) {
	if err != nil && s.ctx.Err() == nil {
		scanFailureCount.Inc()
		log.WithError(err).Error("Deposit scan failed")
	}
	s.mu.Lock()
	s.lastScan = err
	s.mu.Unlock()
}
