package names

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposer_name_cache_hits_total",
		Help: "Name resolutions served from the cache, including cached misses.",
	})
	lookupCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposer_name_registry_lookups_total",
		Help: "Name resolutions that reached the registry contract.",
	})
)
