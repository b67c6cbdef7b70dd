package content

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "content")

// Service wraps the store client in the node's service lifecycle and
// surfaces reachability on the health endpoint.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	client *Client
}

// NewService verifies the store is reachable and returns the service.
func NewService(ctx context.Context, storeURL string) (*Service, error) {
	ctx, cancel := context.WithCancel(ctx)
	client := NewClient(storeURL)
	checkCtx, checkCancel := context.WithTimeout(ctx, 10*time.Second)
	defer checkCancel()
	if err := client.Initialized(checkCtx); err != nil {
		cancel()
		return nil, err
	}
	return &Service{ctx: ctx, cancel: cancel, client: client}, nil
}

// Start implements the service interface.
func (s *Service) Start() {
	log.Info("Content store reachable")
}

// Stop implements the service interface.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status implements the service interface. Reachability is verified at
// construction; per-call failures surface on the operations themselves.
func (s *Service) Status() error {
	return nil
}

// Client returns the underlying store client.
func (s *Service) Client() *Client {
	return s.client
}
