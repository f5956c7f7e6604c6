// Package security holds the small request-hardening pieces shared by the
// HTTP layer: an in-process rate limiter and Discord id validation.
package security

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LimiterStore keeps one token bucket per client key. It backs the API when
// the redis sliding window is unavailable, so limits here are deliberately
// tighter than the redis ones.
type LimiterStore struct {
	mu        sync.Mutex
	clients   map[string]*client
	rps       rate.Limit
	burst     int
	idleTTL   time.Duration
	lastPrune time.Time
}

type client struct {
	bucket  *rate.Limiter
	lastHit time.Time
}

func NewLimiterStore(rps rate.Limit, burst int, idleTTL time.Duration) *LimiterStore {
	return &LimiterStore{
		clients: make(map[string]*client),
		rps:     rps,
		burst:   burst,
		idleTTL: idleTTL,
	}
}

// Allow reports whether the keyed client may make a request now. Unknown or
// empty keys share one bucket.
func (s *LimiterStore) Allow(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}

	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// prune idle clients at most once a minute
	if now.Sub(s.lastPrune) > time.Minute {
		for k, c := range s.clients {
			if now.Sub(c.lastHit) > s.idleTTL {
				delete(s.clients, k)
			}
		}
		s.lastPrune = now
	}

	c, ok := s.clients[key]
	if !ok {
		c = &client{bucket: rate.NewLimiter(s.rps, s.burst)}
		s.clients[key] = c
	}
	c.lastHit = now

	return c.bucket.Allow()
}
