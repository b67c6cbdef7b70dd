// Package notify fans out committed bundles: long-term pinning through
// the content store and an HMAC-signed webhook to a configured
// subscriber. Both paths are best effort and at most once; a failure is
// logged and counted, never retried, and never reaches the tick loop.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/google/uuid"
	"github.com/latticelabs/lattice/proposer/types"
	"github.com/latticelabs/lattice/runtime/logging"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "notify")

// EventBundleProposed is the webhook event name for a committed bundle.
const EventBundleProposed = "BUNDLE_PROPOSED"

const deliveryTimeout = 15 * time.Second

// Pinner is the content-store slice used for long-term pinning.
type Pinner interface {
	Pin(ctx context.Context, cid string) error
}

// BundleSource is where committed bundles are announced.
type BundleSource interface {
	SubscribeBundles(ch chan<- *types.BundleEvent) event.Subscription
}

// Config holds the fan-out targets. Empty WebhookURL disables webhooks;
// PinEnabled false disables pinning.
type Config struct {
	Source        BundleSource
	Pinner        Pinner
	PinEnabled    bool
	WebhookURL    string
	WebhookSecret string
}

// Service consumes the bundle feed and fans each event out.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *Config
	client *http.Client
	events chan *types.BundleEvent
	sub    event.Subscription
}

// NewService builds the notify service.
func NewService(ctx context.Context, cfg *Config) *Service {
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		client: &http.Client{Timeout: deliveryTimeout},
		events: make(chan *types.BundleEvent, 16),
	}
}

// Start subscribes to the bundle feed and launches the fan-out loop.
func (s *Service) Start() {
	s.sub = s.cfg.Source.SubscribeBundles(s.events)
	log.WithFields(logrus.Fields{
		"pin":     s.cfg.PinEnabled,
		"webhook": s.cfg.WebhookURL != "",
	}).Info("Starting bundle fan-out")
	go s.run()
}

// Stop implements the node service interface.
func (s *Service) Stop() error {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	s.cancel()
	return nil
}

// Status is always healthy: fan-out failures are counted, not escalated.
func (s *Service) Status() error {
	return nil
}

func (s *Service) run() {
	for {
		select {
		case ev := <-s.events:
			s.handle(ev)
		case err := <-s.sub.Err():
			if err != nil {
				log.WithError(err).Error("Bundle subscription ended")
			}
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) handle(ev *types.BundleEvent) {
	var wg sync.WaitGroup
	if s.cfg.PinEnabled && s.cfg.Pinner != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.pin(ev)
		}()
	}
	if s.cfg.WebhookURL != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.post(ev)
		}()
	}
	wg.Wait()
}

func (s *Service) pin(ev *types.BundleEvent) {
	ctx, cancel := context.WithTimeout(s.ctx, deliveryTimeout)
	defer cancel()
	if err := s.cfg.Pinner.Pin(ctx, ev.CID); err != nil {
		pinFailureCount.Inc()
		log.WithError(err).WithField("cid", ev.CID).Warn("Could not pin bundle")
		return
	}
	pinsCompletedCount.Inc()
	log.WithFields(logging.BundleEventFields(ev)).Debug("Pinned bundle")
}

type webhookPayload struct {
	Type      string        `json:"type"`
	Bundle    *types.Bundle `json:"bundle"`
	CID       string        `json:"cid"`
	Nonce     uint64        `json:"nonce"`
	CreatedAt time.Time     `json:"createdAt"`
}

func (s *Service) post(ev *types.BundleEvent) {
	if err := s.deliver(ev); err != nil {
		webhookFailureCount.Inc()
		log.WithError(err).WithField("nonce", ev.Nonce).Warn("Could not deliver webhook")
		return
	}
	webhooksDeliveredCount.Inc()
	log.WithFields(logging.BundleEventFields(ev)).Debug("Delivered webhook")
}

func (s *Service) deliver(ev *types.BundleEvent) error {
	body, err := json.Marshal(&webhookPayload{
		Type:      EventBundleProposed,
		Bundle:    ev.Bundle,
		CID:       ev.CID,
		Nonce:     ev.Nonce,
		CreatedAt: ev.CreatedAt,
	})
	if err != nil {
		return errors.Wrap(err, "could not encode payload")
	}
	ctx, cancel := context.WithTimeout(s.ctx, deliveryTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "could not build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Lattice-Event", EventBundleProposed)
	req.Header.Set("X-Lattice-Delivery", uuid.New().String())
	if s.cfg.WebhookSecret != "" {
		req.Header.Set("X-Lattice-Signature", Signature([]byte(s.cfg.WebhookSecret), body))
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.WithError(err).Debug("Could not close webhook response")
		}
	}()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return errors.Errorf("subscriber answered %s", resp.Status)
	}
	return nil
}

// Signature computes the webhook signature header value: the hex
// HMAC-SHA256 of the exact request body, prefixed with the scheme.
func Signature(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
