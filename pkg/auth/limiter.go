package auth

import (
	"sync"

	"golang.org/x/time/rate"
)

// maxLimiterEntries caps the limiter map so an address-scanning client cannot
// grow it without bound; past the cap the map is reset wholesale, which only
// refills a few buckets.
const maxLimiterEntries = 4096

// limiterPool hands out one token bucket per caller identity: the api key
// when present, otherwise the client ip.
type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   rate.Limit
	burst int
}

func newLimiterPool(cfg SecConfig) *limiterPool {
	rps := cfg.RPS
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 10
	}
	return &limiterPool{m: make(map[string]*rate.Limiter), rps: rate.Limit(rps), burst: burst}
}

// Allow reports whether the caller identified by key may proceed now.
func (p *limiterPool) Allow(key string) bool {
	p.mu.Lock()
	l, ok := p.m[key]
	if !ok {
		if len(p.m) >= maxLimiterEntries {
			p.m = make(map[string]*rate.Limiter)
		}
		l = rate.NewLimiter(p.rps, p.burst)
		p.m[key] = l
	}
	p.mu.Unlock()
	return l.Allow()
}
