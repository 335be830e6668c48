package resilience

import (
	"sort"
	"sync"
)

// Breakers hands out one Breaker per key, created on first use.
type Breakers struct {
	cfg Config

	mu sync.Mutex
	m  map[string]*Breaker
}

// NewBreakers creates an empty set sharing cfg.
func NewBreakers(cfg Config) *Breakers {
	return &Breakers{cfg: cfg, m: make(map[string]*Breaker)}
}

// For returns the breaker for key.
func (bs *Breakers) For(key string) *Breaker {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	b, ok := bs.m[key]
	if !ok {
		b = NewBreaker(key, bs.cfg)
		bs.m[key] = b
	}
	return b
}

// Snapshot returns stats for every breaker, ordered by key.
func (bs *Breakers) Snapshot() []Stats {
	bs.mu.Lock()
	all := make([]*Breaker, 0, len(bs.m))
	for _, b := range bs.m {
		all = append(all, b)
	}
	bs.mu.Unlock()

	out := make([]Stats, len(all))
	for i, b := range all {
		out[i] = b.Stats()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Tripped returns stats for breakers that are not closed.
func (bs *Breakers) Tripped() []Stats {
	var out []Stats
	for _, s := range bs.Snapshot() {
		if s.State != Closed {
			out = append(out, s)
		}
	}
	return out
}

// Reset closes every breaker.
func (bs *Breakers) Reset() {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	for _, b := range bs.m {
		b.Reset()
	}
}
