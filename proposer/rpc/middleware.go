package rpc

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/latticelabs/lattice/proposer/types"
	"github.com/sirupsen/logrus"
)

// statusRecorder captures the status a handler writes so the access log
// and request counter can report it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withAccessLog tags every request with an id, logs it on completion, and
// feeds the request counter.
func withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.New().String()
		w.Header().Set("X-Request-Id", requestID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequestCount.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		log.WithFields(logrus.Fields{
			"requestId": requestID,
			"method":    r.Method,
			"path":      r.URL.Path,
			"remote":    clientIP(r),
			"status":    rec.status,
			"duration":  time.Since(start),
		}).Debug("Served request")
	})
}

// rateLimited applies the per-client leaky bucket to a handler. Overflow is
// reported like queue backpressure so submitters handle both the same way.
func (s *Service) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && s.limiter.Add(clientIP(r), 1) == 0 {
			rateLimitedCount.Inc()
			writeError(w, types.ErrKind(types.KindQueueFull, "submission rate exceeded, slow down"))
			return
		}
		next(w, r)
	}
}

// clientIP is the remote address without its port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
