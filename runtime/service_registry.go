// Package runtime holds the lifecycle plumbing shared by every
// long-running part of the proposer node: the registry that starts,
// stops, and health-checks services in a deterministic order.
package runtime

import (
	"fmt"
	"reflect"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "registry")

// Service is a long-running component of the node, registered once during
// node construction and driven by the registry afterwards.
type Service interface {
	// Start spawns the service's goroutines. It must not block.
	Start()
	// Stop terminates the service's goroutines, blocking until they
	// have all exited.
	Stop() error
	// Status returns nil while the service considers itself healthy.
	Status() error
}

// ServiceRegistry keeps one instance per concrete service type and
// remembers registration order. Startup runs in that order, so a service
// can rely on everything registered before it; shutdown runs in reverse.
type ServiceRegistry struct {
	services map[reflect.Type]Service
	order    []reflect.Type
}

// NewServiceRegistry returns an empty registry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{services: make(map[reflect.Type]Service)}
}

// RegisterService stores service under its concrete type. A second
// registration of the same type is a wiring mistake and is rejected.
func (s *ServiceRegistry) RegisterService(service Service) error {
	kind := reflect.TypeOf(service)
	if _, exists := s.services[kind]; exists {
		return fmt.Errorf("service already exists: %v", kind)
	}
	s.services[kind] = service
	s.order = append(s.order, kind)
	return nil
}

// FetchService sets the pointer target of service to the registered
// instance of its type, so dependents hold the same reference the
// registry drives.
func (s *ServiceRegistry) FetchService(service interface{}) error {
	if reflect.TypeOf(service).Kind() != reflect.Ptr {
		return fmt.Errorf("input must be of pointer type, received value type instead: %T", service)
	}
	element := reflect.ValueOf(service).Elem()
	if registered, ok := s.services[element.Type()]; ok {
		element.Set(reflect.ValueOf(registered))
		return nil
	}
	return fmt.Errorf("unknown service: %T", service)
}

// StartAll launches every service in registration order.
func (s *ServiceRegistry) StartAll() {
	log.Debugf("Starting %d services: %v", len(s.order), s.order)
	for _, kind := range s.order {
		log.Debugf("Starting service type %v", kind)
		go s.services[kind].Start()
	}
}

// StopAll stops every service in reverse registration order, so dependents
// shut down before the services they depend on.
func (s *ServiceRegistry) StopAll() {
	for i := len(s.order) - 1; i >= 0; i-- {
		kind := s.order[i]
		if err := s.services[kind].Stop(); err != nil {
			log.WithError(err).Errorf("Could not stop the following service: %v", kind)
		}
	}
}

// Statuses reports the health of every registered service by type.
func (s *ServiceRegistry) Statuses() map[reflect.Type]error {
	m := make(map[reflect.Type]error, len(s.order))
	for _, kind := range s.order {
		m[kind] = s.services[kind].Status()
	}
	return m
}
