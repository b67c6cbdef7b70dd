// Package bundler drains the pending queue on a fixed interval and turns
// each non-empty snapshot into a published bundle: signed, compressed,
// uploaded to the content store, anchored on the bundle tracker, and
// committed to the database in one transaction.
package bundler

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/latticelabs/lattice/io/file"
	"github.com/latticelabs/lattice/proposer/db/iface"
	"github.com/latticelabs/lattice/proposer/intentions"
	"github.com/latticelabs/lattice/proposer/types"
	"github.com/latticelabs/lattice/proposer/validation"
	"github.com/latticelabs/lattice/runtime/logging"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"
)

var log = logrus.WithField("prefix", "bundler")

// Store is the database slice the tick loop uses.
type Store interface {
	NextBundleNonce(ctx context.Context) (uint64, error)
	PublishBundle(ctx context.Context, plan *iface.PublishPlan) error
	MarkProposerSeen(ctx context.Context, proposer string) error
}

// Signer produces the proposer's personal-sign signatures.
type Signer interface {
	SignPersonal(payload []byte) (string, error)
	Address() common.Address
}

// Anchor submits bundle content ids to the tracker contract.
type Anchor interface {
	Propose(ctx context.Context, cid string) (common.Hash, error)
}

// Uploader stores bundle payloads and returns their content ids.
type Uploader interface {
	Put(ctx context.Context, data []byte) (string, error)
}

// Config holds the tick loop dependencies.
type Config struct {
	Queue    *intentions.Queue
	Store    Store
	Signer   Signer
	Anchor   Anchor
	Uploader Uploader
	Interval time.Duration
	Timeout  time.Duration
	DataDir  string
}

// Service runs the bundle tick. A single worker goroutine consumes ticker
// fires, so at most one tick is in flight; fires arriving mid-tick are
// counted and dropped.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *Config
	feed   event.Feed

	mu       sync.RWMutex
	orphaned error
}

// NewService builds the bundle proposer.
func NewService(ctx context.Context, cfg *Config) *Service {
	ctx, cancel := context.WithCancel(ctx)
	return &Service{ctx: ctx, cancel: cancel, cfg: cfg}
}

// Start launches the tick loop.
func (s *Service) Start() {
	proposer := strings.ToLower(s.cfg.Signer.Address().Hex())
	if err := s.cfg.Store.MarkProposerSeen(s.ctx, proposer); err != nil {
		log.WithError(err).Warn("Could not mark proposer seen")
	}
	log.WithFields(logrus.Fields{
		"proposer": proposer,
		"interval": s.cfg.Interval,
	}).Info("Starting bundle proposer")
	go s.run()
}

// Stop implements the node service interface.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status is unhealthy once a bundle has been anchored on chain without a
// matching database commit. The condition does not clear on its own: the
// operator replays the quarantined payload and restarts.
func (s *Service) Status() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orphaned
}

// SubscribeBundles delivers an event per committed bundle to ch until the
// returned subscription is unsubscribed.
func (s *Service) SubscribeBundles(ch chan<- *types.BundleEvent) event.Subscription {
	return s.feed.Subscribe(ch)
}

func (s *Service) run() {
	work := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-work:
				s.tick()
			case <-s.ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			select {
			case work <- struct{}{}:
			default:
				skippedTickCount.Inc()
				log.Debug("Previous tick still in flight, skipping")
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) tick() {
	ctx := s.ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	if err := s.propose(ctx); err != nil {
		tickFailureCount.Inc()
		log.WithError(err).Error("Bundle tick failed, snapshot discarded")
	}
}

// propose drains the queue and publishes one bundle. Failures before the
// on-chain anchor discard the snapshot; submitters resubmit. Failures
// after the anchor escalate through escalate.
func (s *Service) propose(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "bundler.propose")
	defer span.End()

	snapshot := s.cfg.Queue.Drain()
	if len(snapshot) == 0 {
		return nil
	}

	nonce, err := s.cfg.Store.NextBundleNonce(ctx)
	if err != nil {
		return errors.Wrap(err, "could not compute bundle nonce")
	}
	bundle := &types.Bundle{Executions: snapshot, Nonce: nonce}
	if err := validation.ValidateBundle(bundle); err != nil {
		return err
	}
	enc, err := EncodeBundle(bundle)
	if err != nil {
		return err
	}
	sig, err := s.cfg.Signer.SignPersonal(enc.JSON)
	if err != nil {
		return errors.Wrap(err, "could not sign bundle")
	}
	cid, err := s.cfg.Uploader.Put(ctx, enc.Base64)
	if err != nil {
		return errors.Wrap(err, "could not upload bundle")
	}
	txHash, err := s.cfg.Anchor.Propose(ctx, cid)
	if err != nil {
		return errors.Wrapf(err, "could not anchor cid %s", cid)
	}

	plan := &iface.PublishPlan{
		Nonce:      nonce,
		Body:       enc.JSON,
		Proposer:   strings.ToLower(s.cfg.Signer.Address().Hex()),
		Signature:  sig,
		CID:        cid,
		Executions: snapshot,
	}
	if err := s.cfg.Store.PublishBundle(ctx, plan); err != nil {
		s.escalate(nonce, cid, enc, err)
		return errors.Wrapf(err, "anchored bundle %d did not commit", nonce)
	}

	bundlesProposedCount.Inc()
	executionsBundledCount.Add(float64(len(snapshot)))
	bundleGzipBytes.Observe(float64(len(enc.Gzip)))

	ev := &types.BundleEvent{
		Bundle:    bundle,
		Nonce:     nonce,
		CID:       cid,
		Gzip:      enc.Gzip,
		CreatedAt: time.Now().UTC(),
	}
	log.WithFields(logging.BundleEventFields(ev)).WithField("txHash", txHash.Hex()).Info("Published bundle")
	s.feed.Send(ev)
	return nil
}

// escalate handles the one failure the node cannot absorb: the chain
// anchors a bundle the local database does not reflect. The payload is
// spooled for operator replay and the service reports unhealthy from here
// on.
func (s *Service) escalate(nonce uint64, cid string, enc *Encoded, cause error) {
	anchorOrphanedCount.Inc()
	entry := log.WithError(cause).WithFields(logrus.Fields{"nonce": nonce, "cid": cid})
	path, spoolErr := s.quarantine(nonce, cid, enc)
	if spoolErr != nil {
		entry = entry.WithField("spoolError", spoolErr.Error())
	} else {
		entry = entry.WithField("quarantine", path)
	}
	entry.Log(logrus.FatalLevel, "Anchored bundle failed to commit, operator replay required")

	s.mu.Lock()
	s.orphaned = errors.Errorf("bundle %d anchored at cid %s but not committed", nonce, cid)
	s.mu.Unlock()
}

// quarantine writes the anchored payload under the node's data directory
// so the operator can replay the commit once the database recovers.
func (s *Service) quarantine(nonce uint64, cid string, enc *Encoded) (string, error) {
	dir := filepath.Join(s.cfg.DataDir, "quarantine")
	if err := file.MkdirAll(dir); err != nil {
		return "", errors.Wrap(err, "could not create quarantine dir")
	}
	path := filepath.Join(dir, fmt.Sprintf("bundle-%d-%s.json.gz", nonce, cid))
	if err := file.WriteFile(path, enc.Gzip); err != nil {
		return "", errors.Wrap(err, "could not spool bundle")
	}
	return path, nil
}
