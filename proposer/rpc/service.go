// Package rpc exposes the proposer's HTTP API: intention submission and
// the read-only query surface over bundles, vaults, and the content store.
package rpc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/kevinms/leakybucket-go"
	"github.com/latticelabs/lattice/proposer/content"
	"github.com/latticelabs/lattice/proposer/db/iface"
	"github.com/latticelabs/lattice/proposer/intentions"
	"github.com/latticelabs/lattice/proposer/types"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "rpc")

// shutdownTimeout bounds how long Stop waits for in-flight requests.
const shutdownTimeout = 2 * time.Second

// Submitter runs a submission through the admission pipeline.
// *intentions.Service satisfies it.
type Submitter interface {
	Submit(ctx context.Context, sub *intentions.Submission) (*types.ExecutionObject, error)
}

// ContentReader reports content-store state for anchored payloads.
// *content.Client satisfies it.
type ContentReader interface {
	Stat(ctx context.Context, cid string) (*content.BlockStat, error)
}

// Config holds the HTTP API parameters.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
	AuthSecret     []byte
	SubmissionRate float64
	Submitter      Submitter
	Store          iface.ReadOnlyStore
	Content        ContentReader
}

// Service serves the HTTP API.
type Service struct {
	ctx          context.Context
	cancel       context.CancelFunc
	cfg          *Config
	handler      http.Handler
	server       *http.Server
	limiter      *leakybucket.Collector
	startFailure error
}

// NewService assembles the router and its middleware chain. The chain runs
// request id and access logging first, then CORS, then per-route auth and
// rate limiting.
func NewService(ctx context.Context, cfg *Config) *Service {
	ctx, cancel := context.WithCancel(ctx)
	s := &Service{ctx: ctx, cancel: cancel, cfg: cfg}
	if cfg.SubmissionRate > 0 {
		// Burst capacity matches one second of sustained rate.
		s.limiter = leakybucket.NewCollector(cfg.SubmissionRate, int64(cfg.SubmissionRate), true)
	}

	router := mux.NewRouter()
	v1 := router.PathPrefix("/lattice/v1").Subrouter()
	v1.HandleFunc("/intentions", s.requireAuth(s.rateLimited(s.submitIntention))).Methods(http.MethodPost)
	v1.HandleFunc("/bundles", s.listBundles).Methods(http.MethodGet)
	v1.HandleFunc("/bundles/{nonce}", s.getBundle).Methods(http.MethodGet)
	v1.HandleFunc("/bundles/{nonce}/cid", s.getBundleCID).Methods(http.MethodGet)
	v1.HandleFunc("/vaults/{vault}/balances", s.listBalances).Methods(http.MethodGet)
	v1.HandleFunc("/vaults/{vault}/balances/{token}", s.getBalance).Methods(http.MethodGet)
	v1.HandleFunc("/vaults/{vault}/nonce", s.getVaultNonce).Methods(http.MethodGet)
	v1.HandleFunc("/vaults/{vault}/controllers", s.getControllers).Methods(http.MethodGet)
	v1.HandleFunc("/vaults/{vault}/rules", s.getVaultRules).Methods(http.MethodGet)
	v1.HandleFunc("/controllers/{address}/vaults", s.listControllerVaults).Methods(http.MethodGet)
	v1.HandleFunc("/deposits/{id}", s.getDeposit).Methods(http.MethodGet)
	v1.HandleFunc("/depositors/{address}/deposits", s.listOpenDeposits).Methods(http.MethodGet)
	v1.HandleFunc("/depositors/{address}/deposits/next", s.getNextDeposit).Methods(http.MethodGet)
	v1.HandleFunc("/content/{cid}", s.getContentStatus).Methods(http.MethodGet)
	v1.HandleFunc("/node/version", s.getVersion).Methods(http.MethodGet)

	s.handler = withAccessLog(s.corsMiddleware(router))
	return s
}

// Start begins serving in the background. A bind failure surfaces through
// Status rather than aborting the node.
func (s *Service) Start() {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.server = &http.Server{Addr: addr, Handler: s.handler}
	go func() {
		log.WithField("address", addr).Info("Serving HTTP API")
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Error("Could not serve HTTP API")
			s.startFailure = err
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Service) Stop() error {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(s.ctx, shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				log.Warn("Existing connections terminated")
			} else {
				log.WithError(err).Error("Could not gracefully shut down server")
			}
		}
	}
	s.cancel()
	return nil
}

// Status implements the service interface.
func (s *Service) Status() error {
	return s.startFailure
}

func (s *Service) corsMiddleware(h http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodPost, http.MethodGet, http.MethodOptions},
		AllowCredentials: true,
		MaxAge:           600,
		AllowedHeaders:   []string{"*"},
	})
	return c.Handler(h)
}
