package notify

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/google/uuid"
	"github.com/latticelabs/lattice/proposer/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinner struct {
	mu   sync.Mutex
	cids []string
	err  error
}

func (f *fakePinner) Pin(_ context.Context, cid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.cids = append(f.cids, cid)
	return nil
}

type fakeSource struct{ feed event.Feed }

func (f *fakeSource) SubscribeBundles(ch chan<- *types.BundleEvent) event.Subscription {
	return f.feed.Subscribe(ch)
}

func sampleEvent() *types.BundleEvent {
	return &types.BundleEvent{
		Bundle:    &types.Bundle{Executions: []*types.ExecutionObject{}, Nonce: 4},
		Nonce:     4,
		CID:       "bafytest",
		Gzip:      []byte{0x1f, 0x8b},
		CreatedAt: time.Unix(1700000000, 0).UTC(),
	}
}

type capturedRequest struct {
	body   []byte
	header http.Header
}

func captureServer(t *testing.T, status int) (*httptest.Server, chan capturedRequest) {
	got := make(chan capturedRequest, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		got <- capturedRequest{body: body, header: r.Header.Clone()}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestWebhookDelivery(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK)
	svc := NewService(context.Background(), &Config{
		Source:        &fakeSource{},
		WebhookURL:    srv.URL,
		WebhookSecret: "opensesame",
	})
	svc.handle(sampleEvent())

	req := <-got
	assert.Equal(t, EventBundleProposed, req.header.Get("X-Lattice-Event"))
	_, err := uuid.Parse(req.header.Get("X-Lattice-Delivery"))
	assert.NoError(t, err)
	assert.Equal(t, "application/json", req.header.Get("Content-Type"))

	// The signature covers the exact body bytes.
	want := Signature([]byte("opensesame"), req.body)
	assert.True(t, hmac.Equal([]byte(want), []byte(req.header.Get("X-Lattice-Signature"))))

	var payload struct {
		Type      string    `json:"type"`
		CID       string    `json:"cid"`
		Nonce     uint64    `json:"nonce"`
		CreatedAt time.Time `json:"createdAt"`
	}
	require.NoError(t, json.Unmarshal(req.body, &payload))
	assert.Equal(t, EventBundleProposed, payload.Type)
	assert.Equal(t, "bafytest", payload.CID)
	assert.Equal(t, uint64(4), payload.Nonce)
	assert.Equal(t, sampleEvent().CreatedAt, payload.CreatedAt)
}

func TestWebhookSignatureOmittedWithoutSecret(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK)
	svc := NewService(context.Background(), &Config{Source: &fakeSource{}, WebhookURL: srv.URL})
	svc.handle(sampleEvent())

	req := <-got
	assert.Empty(t, req.header.Get("X-Lattice-Signature"))
}

func TestWebhookFailureIsSwallowed(t *testing.T) {
	srv, got := captureServer(t, http.StatusInternalServerError)
	svc := NewService(context.Background(), &Config{Source: &fakeSource{}, WebhookURL: srv.URL})

	// A refusing subscriber must not panic or propagate anywhere.
	svc.handle(sampleEvent())
	<-got
}

func TestPinOnEvent(t *testing.T) {
	pinner := &fakePinner{}
	svc := NewService(context.Background(), &Config{
		Source:     &fakeSource{},
		Pinner:     pinner,
		PinEnabled: true,
	})
	svc.handle(sampleEvent())
	assert.Equal(t, []string{"bafytest"}, pinner.cids)

	// Pin failures are also best effort.
	pinner.err = errors.New("pin service down")
	svc.handle(sampleEvent())
}

func TestPinDisabled(t *testing.T) {
	pinner := &fakePinner{}
	svc := NewService(context.Background(), &Config{Source: &fakeSource{}, Pinner: pinner})
	svc.handle(sampleEvent())
	assert.Empty(t, pinner.cids)
}

func TestServiceConsumesFeed(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK)
	source := &fakeSource{}
	svc := NewService(context.Background(), &Config{Source: source, WebhookURL: srv.URL})
	svc.Start()
	defer func() { require.NoError(t, svc.Stop()) }()

	require.Eventually(t, func() bool {
		return source.feed.Send(sampleEvent()) == 1
	}, time.Second, 10*time.Millisecond)

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered")
	}
	assert.NoError(t, svc.Status())
}
