package prometheus

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/latticelabs/lattice/runtime"
	"github.com/pkg/errors"
	logTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type healthyService struct{}

func (_ *healthyService) Start()        {}
func (_ *healthyService) Stop() error   { return nil }
func (_ *healthyService) Status() error { return nil }

type failingService struct{}

func (_ *failingService) Start()      {}
func (_ *failingService) Stop() error { return nil }
func (_ *failingService) Status() error {
	return errors.New("bundle 3 anchored but not committed")
}

func TestHealthzAllServicesHealthy(t *testing.T) {
	registry := runtime.NewServiceRegistry()
	require.NoError(t, registry.RegisterService(&healthyService{}))
	s := NewService("127.0.0.1:0", registry)

	rec := httptest.NewRecorder()
	s.healthzHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "OK")
}

func TestHealthzReportsFailingService(t *testing.T) {
	registry := runtime.NewServiceRegistry()
	require.NoError(t, registry.RegisterService(&healthyService{}))
	require.NoError(t, registry.RegisterService(&failingService{}))
	s := NewService("127.0.0.1:0", registry)

	rec := httptest.NewRecorder()
	s.healthzHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERROR bundle 3 anchored but not committed")
	assert.Contains(t, rec.Body.String(), "OK")
}

func TestHealthzNegotiatesJSON(t *testing.T) {
	registry := runtime.NewServiceRegistry()
	require.NoError(t, registry.RegisterService(&failingService{}))
	s := NewService("127.0.0.1:0", registry)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	s.healthzHandler(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body struct {
		Err  string          `json:"error"`
		Data []serviceStatus `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data, 1)
	assert.Contains(t, body.Data[0].Name, "failingService")
	assert.False(t, body.Data[0].Healthy)
	assert.Contains(t, body.Data[0].Err, "anchored")
}

func TestGoroutinezDumpsStacks(t *testing.T) {
	s := NewService("127.0.0.1:0", runtime.NewServiceRegistry())

	rec := httptest.NewRecorder()
	s.goroutinezHandler(rec, httptest.NewRequest(http.MethodGet, "/goroutinez", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goroutine")
}

func TestLifecycle(t *testing.T) {
	hook := logTest.NewGlobal()
	s := NewService("127.0.0.1:0", runtime.NewServiceRegistry())

	s.Start()
	require.NoError(t, s.Stop())

	var messages []string
	for _, entry := range hook.AllEntries() {
		messages = append(messages, entry.Message)
	}
	assert.Contains(t, messages, "Starting service")
	assert.Contains(t, messages, "Stopping service")
	assert.NoError(t, s.Status())
}
