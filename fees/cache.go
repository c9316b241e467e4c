package fees

import (
	"sync"

	"github.com/Mukisa95/Trinity-Family-school-sub002/generic"
)

// =============================================================================
// RESOLUTION CACHE - Memoized amounts keyed by ledger version
// =============================================================================

type cacheKey struct {
	FeeID  FeeID
	YearID generic.YearID
}

// ResolutionCache memoizes resolved amounts for one ledger version at a time.
// Seeing a newer version drops everything cached for older ones; lookups
// with an older version bypass the cache. Safe for concurrent use.
type ResolutionCache struct {
	mu      sync.RWMutex
	version int64
	amounts map[cacheKey]generic.Money

	hits   int64
	misses int64
}

func NewResolutionCache() *ResolutionCache {
	return &ResolutionCache{amounts: make(map[cacheKey]generic.Money)}
}

// Amount returns the resolved amount of fee in target for the snapshot's
// version, computing and storing it on a miss.
func (c *ResolutionCache) Amount(s *Snapshot, fee FeeItem, target generic.YearID) generic.Money {
	k := cacheKey{FeeID: fee.ID, YearID: target}

	c.mu.RLock()
	if c.version == s.Version {
		if m, ok := c.amounts[k]; ok {
			c.mu.RUnlock()
			c.mu.Lock()
			c.hits++
			c.mu.Unlock()
			return m
		}
	}
	c.mu.RUnlock()

	m := s.ResolveAmount(fee, target)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses++
	switch {
	case s.Version > c.version:
		c.version = s.Version
		c.amounts = make(map[cacheKey]generic.Money)
		c.amounts[k] = m
	case s.Version == c.version:
		c.amounts[k] = m
	}
	return m
}

// Stats returns hit and miss counts.
func (c *ResolutionCache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Len returns the number of cached amounts.
func (c *ResolutionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.amounts)
}
