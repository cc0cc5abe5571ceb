// Package ratelimit implements a token bucket limiter for per-subject export admission.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter manages per-subject rate limits. Every admitted export pays a
// full browser launch, so admission is checked, not queued: a caller over
// budget is told to come back rather than held on a waiting engine slot.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// Config holds rate limiter configuration.
type Config struct {
	RPS   float64
	Burst int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
	}
}

// Allow reports whether the subject may start an export now.
func (l *Limiter) Allow(subjectID string) bool {
	if subjectID == "" {
		subjectID = "anonymous"
	}
	l.mu.Lock()
	limiter, exists := l.limiters[subjectID]
	if !exists {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[subjectID] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}
