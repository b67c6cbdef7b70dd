package rpc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proposer_http_requests_total",
		Help: "Requests served by the HTTP API, by method and status code.",
	}, []string{"method", "code"})
	authFailureCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposer_http_auth_failures_total",
		Help: "Requests rejected by bearer-token auth.",
	})
	rateLimitedCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposer_http_rate_limited_total",
		Help: "Submissions rejected by the per-client rate limiter.",
	})
)
