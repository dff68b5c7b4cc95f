package rules

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateMeter tracks per-(resource, agent) usage with token buckets. Limit
// parameters come from the governance rule itself, so buckets are created
// lazily on first sight of a pair and refreshed if the rule changes.
type RateMeter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	clock   func() time.Time
}

type bucket struct {
	limiter      *rate.Limiter
	maxPerWindow int
	windowSecs   int
}

func NewRateMeter() *RateMeter {
	return &RateMeter{
		buckets: make(map[string]*bucket),
		clock:   time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (m *RateMeter) WithClock(clock func() time.Time) *RateMeter {
	m.clock = clock
	return m
}

func meterKey(resourceID, agentID string) string {
	return resourceID + "|" + agentID
}

func (m *RateMeter) bucketFor(resourceID, agentID string, maxPerWindow, windowSeconds int) *bucket {
	key := meterKey(resourceID, agentID)
	b, ok := m.buckets[key]
	if !ok || b.maxPerWindow != maxPerWindow || b.windowSecs != windowSeconds {
		refill := rate.Limit(float64(maxPerWindow) / float64(windowSeconds))
		b = &bucket{
			limiter:      rate.NewLimiter(refill, maxPerWindow),
			maxPerWindow: maxPerWindow,
			windowSecs:   windowSeconds,
		}
		m.buckets[key] = b
	}
	return b
}

// Allowance reports remaining tokens without consuming any.
func (m *RateMeter) Allowance(resourceID, agentID string, maxPerWindow, windowSeconds int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bucketFor(resourceID, agentID, maxPerWindow, windowSeconds)
	return b.limiter.TokensAt(m.clock())
}

// Record consumes one token after the engine approves the action.
func (m *RateMeter) Record(resourceID, agentID string, maxPerWindow, windowSeconds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bucketFor(resourceID, agentID, maxPerWindow, windowSeconds)
	b.limiter.AllowN(m.clock(), 1)
}
