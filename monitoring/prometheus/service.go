// Package prometheus serves the node's operational surface: Prometheus
// metrics, the aggregated health check, and a goroutine dump.
package prometheus

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"runtime/pprof"
	"sort"
	"time"

	"github.com/latticelabs/lattice/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "prometheus")

// Service provides Prometheus metrics via the /metrics route. This route
// shows all the metrics registered with the Prometheus DefaultRegisterer.
type Service struct {
	server      *http.Server
	svcRegistry *runtime.ServiceRegistry
	failStatus  error
}

// serviceStatus is one registry entry in the JSON rendering of /healthz.
type serviceStatus struct {
	Name    string `json:"service"`
	Healthy bool   `json:"healthy"`
	Err     string `json:"error,omitempty"`
}

// NewService sets up a new instance for a given address host:port. An empty
// host will match with any IP, so an address like ":8080" is perfectly
// acceptable.
func NewService(addr string, svcRegistry *runtime.ServiceRegistry) *Service {
	s := &Service{svcRegistry: svcRegistry}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.healthzHandler)
	mux.HandleFunc("/goroutinez", s.goroutinezHandler)

	s.server = &http.Server{Addr: addr, Handler: mux}

	return s
}

func (s *Service) healthzHandler(w http.ResponseWriter, r *http.Request) {
	// Call all services in the registry. If any are not OK, write 500 and
	// print the statuses of all services.
	statuses := s.svcRegistry.Statuses()
	names := make([]string, 0, len(statuses))
	byName := make(map[string]error, len(statuses))
	for kind, status := range statuses {
		name := kind.String()
		names = append(names, name)
		byName[name] = status
	}
	sort.Strings(names)

	hasError := false
	var buf bytes.Buffer
	entries := make([]serviceStatus, 0, len(names))
	for _, name := range names {
		status := byName[name]
		entry := serviceStatus{Name: name, Healthy: status == nil}
		text := "OK"
		if status != nil {
			hasError = true
			entry.Err = status.Error()
			text = "ERROR " + entry.Err
		}
		entries = append(entries, entry)
		if _, err := buf.WriteString(fmt.Sprintf("%s: %s\n", name, text)); err != nil {
			hasError = true
		}
	}

	if hasError {
		w.WriteHeader(http.StatusInternalServerError)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if err := writeNegotiated(w, r, buf, entries); err != nil {
		log.WithError(err).Error("Could not write healthz body")
	}
}

func (s *Service) goroutinezHandler(w http.ResponseWriter, _ *http.Request) {
	stack := debug.Stack()
	// #nosec G104
	w.Write(stack)
	// #nosec G104
	pprof.Lookup("goroutine").WriteTo(w, 2)
}

// Start the prometheus service.
func (s *Service) Start() {
	log.WithField("endpoint", s.server.Addr).Info("Starting service")
	go func() {
		err := s.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Errorf("Could not listen to host:port :%s: %v", s.server.Addr, err)
			s.failStatus = err
		}
	}()
}

// Stop the service gracefully.
func (s *Service) Stop() error {
	log.Info("Stopping service")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Status checks for any service failure conditions.
func (s *Service) Status() error {
	if s.failStatus != nil {
		return s.failStatus
	}
	return nil
}
