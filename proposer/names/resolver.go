// Package names resolves human-readable names submitted in intentions to
// canonical addresses through an on-chain registry, memoizing results with
// a bounded TTL.
package names

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/latticelabs/lattice/proposer/types"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

// Registry is a name lookup backend. Lookup returns the empty string when
// the name has no entry.
type Registry interface {
	Lookup(ctx context.Context, name string) (string, error)
}

// Resolver memoizes registry lookups. Hits and explicit not-found results
// are cached separately for the same TTL, so a missing name does not hammer
// the registry but is retried once the window passes.
type Resolver struct {
	registry Registry
	hits     *cache.Cache
	misses   *cache.Cache
}

// NewResolver builds a resolver over a registry with the given cache TTL.
func NewResolver(registry Registry, ttl time.Duration) *Resolver {
	return &Resolver{
		registry: registry,
		hits:     cache.New(ttl, ttl),
		misses:   cache.New(ttl, ttl),
	}
}

// Resolve maps a name to its lowercase registered address. Strings that
// already parse as addresses are normalized locally without a registry
// roundtrip. Names are case-insensitive.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	if common.IsHexAddress(name) {
		return strings.ToLower(common.HexToAddress(name).Hex()), nil
	}
	key := strings.ToLower(name)
	if v, ok := r.hits.Get(key); ok {
		cacheHitCount.Inc()
		return v.(string), nil
	}
	if _, ok := r.misses.Get(key); ok {
		cacheHitCount.Inc()
		return "", unresolved(name)
	}
	lookupCount.Inc()
	addr, err := r.registry.Lookup(ctx, key)
	if err != nil {
		return "", errors.Wrapf(err, "could not look up name %q", name)
	}
	if addr == "" {
		r.misses.Set(key, true, cache.DefaultExpiration)
		return "", unresolved(name)
	}
	addr = strings.ToLower(addr)
	r.hits.Set(key, addr, cache.DefaultExpiration)
	return addr, nil
}

// ResolveIntention replaces every name in the intention's external
// destinations with its resolved address, mutating in place. Callers
// verify signatures over the original serialization before this runs.
func (r *Resolver) ResolveIntention(ctx context.Context, in *types.Intention) error {
	for i := range in.Outputs {
		o := &in.Outputs[i]
		if o.ToExternal == "" {
			continue
		}
		addr, err := r.Resolve(ctx, o.ToExternal)
		if err != nil {
			return err
		}
		o.ToExternal = addr
	}
	return nil
}

func unresolved(name string) error {
	return &types.Error{Kind: types.KindNameUnresolved, Field: "to_external", Value: name, Context: "no registry entry"}
}
