// Package guard decides whether a connection may proceed based on the
// banned subnets of a Checker, caching answers per subnet.
package guard

import (
	"log/slog"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/caasmo/banlog/addr"
	"github.com/caasmo/banlog/cache"
	"github.com/caasmo/banlog/topk"
)

const (
	defaultCost = 1
	// Entries of older generations are unreachable; the TTL only bounds how
	// long they occupy the cache.
	cacheTTL = 10 * time.Minute
)

// Checker is the banned-subnet source, typically *banlog.Banlog.
type Checker interface {
	Identify(k addr.Key) bool
	// Generation must change whenever the answer of Identify may change.
	Generation() uint64
}

type Guard struct {
	checker Checker
	cache   cache.Cache[uint64, bool]
	sketch  *topk.Sketch
	logger  *slog.Logger

	allowed  atomic.Uint64
	rejected atomic.Uint64
}

// New panics if checker, c or sketch is nil.
func New(checker Checker, c cache.Cache[uint64, bool], sketch *topk.Sketch, logger *slog.Logger) *Guard {
	if checker == nil || c == nil || sketch == nil {
		panic("guard: checker, cache and sketch are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{checker: checker, cache: c, sketch: sketch, logger: logger}
}

// cacheKey places the generation above the 24 key bits so a mutation of the
// banlog moves every lookup to fresh keys.
func cacheKey(gen uint64, k addr.Key) uint64 {
	return gen<<24 | uint64(k)
}

// Banned reports whether the subnet of k is banned.
func (g *Guard) Banned(k addr.Key) bool {
	// read before the lookup: a mutation in between files the answer
	// under a generation nobody asks for again
	gen := g.checker.Generation()
	key := cacheKey(gen, k)
	if banned, ok := g.cache.Get(key); ok {
		return banned
	}
	banned := g.checker.Identify(k)
	g.cache.SetWithTTL(key, banned, defaultCost, cacheTTL)
	return banned
}

// Allow reports whether ip may connect. Addresses that are not IPv4 are
// always allowed.
func (g *Guard) Allow(ip netip.Addr) bool {
	k, ok := addr.FromAddr(ip)
	if !ok || !g.Banned(k) {
		g.allowed.Add(1)
		return true
	}
	g.rejected.Add(1)
	g.sketch.Observe(k.String())
	g.logger.Debug("connection rejected", "ip", ip, "subnet", k)
	return false
}

// Top returns the most rejected subnets in the current window.
func (g *Guard) Top() []topk.Item {
	return g.sketch.Top()
}

// Stats returns the allowed and rejected counts since creation.
func (g *Guard) Stats() (allowed, rejected uint64) {
	return g.allowed.Load(), g.rejected.Load()
}
