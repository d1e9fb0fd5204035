// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ratelimit throttles inbound links and surface reports before they
// reach the playback controller.
package ratelimit

import (
	"sync"
	"time"

	"github.com/ManuGH/chatdj/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var (
	rateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatdj",
			Name:      "ingress_limited_total",
			Help:      "Inbound units rejected by the ingress limiter",
		},
		[]string{"class", "scope"},
	)
)

// Class groups inbound traffic that shares a budget.
type Class string

const (
	ClassLinks   Class = "links"   // chat links, one token per address
	ClassReports Class = "reports" // surface metadata and end reports
)

// Budget is a token bucket definition.
type Budget struct {
	Rate  rate.Limit
	Burst int
}

// Config holds ingress limits. Each class has a global budget and the same
// budget again per source (client IP or surface id).
type Config struct {
	Classes map[Class]Budget

	// Cleanup interval for per-source limiters
	CleanupInterval time.Duration
}

// ConfigFromApp maps the ingress section of the app config.
func ConfigFromApp(cfg config.IngressConfig) Config {
	return Config{
		Classes: map[Class]Budget{
			ClassLinks:   {Rate: rate.Limit(cfg.LinksPerSecond), Burst: cfg.LinksBurst},
			ClassReports: {Rate: rate.Limit(cfg.ReportsPerSecond), Burst: cfg.ReportsBurst},
		},
		CleanupInterval: 5 * time.Minute,
	}
}

// Limiter enforces Config. A nil *Limiter allows everything.
type Limiter struct {
	mu          sync.Mutex
	config      Config
	global      map[Class]*rate.Limiter
	perSource   map[Class]map[string]*rate.Limiter
	lastCleanup time.Time
}

// New creates a limiter for config.
func New(cfg Config) *Limiter {
	l := &Limiter{lastCleanup: time.Now()}
	l.apply(cfg)
	return l
}

// SetConfig swaps budgets in place. Per-source state is discarded.
func (l *Limiter) SetConfig(cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.apply(cfg)
}

func (l *Limiter) apply(cfg Config) {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	l.config = cfg
	l.global = make(map[Class]*rate.Limiter, len(cfg.Classes))
	l.perSource = make(map[Class]map[string]*rate.Limiter, len(cfg.Classes))
	for class, b := range cfg.Classes {
		if b.Rate <= 0 {
			continue
		}
		l.global[class] = rate.NewLimiter(b.Rate, b.Burst)
		l.perSource[class] = make(map[string]*rate.Limiter)
	}
}

// AllowN reports whether n units of class from source may pass. n is capped
// at the burst so a single large batch is not rejected forever. Classes
// without a budget always pass.
func (l *Limiter) AllowN(class Class, source string, n int) bool {
	if l == nil || n <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	global, ok := l.global[class]
	if !ok {
		return true
	}
	n = min(n, max(global.Burst(), 1))

	now := time.Now()
	if !global.AllowN(now, n) {
		rateLimitExceeded.WithLabelValues(string(class), "global").Add(float64(n))
		return false
	}

	if source != "" && !l.sourceLimiter(class, source).AllowN(now, n) {
		rateLimitExceeded.WithLabelValues(string(class), "source").Add(float64(n))
		return false
	}

	l.maybeCleanup(now)
	return true
}

// Allow is AllowN with n=1.
func (l *Limiter) Allow(class Class, source string) bool {
	return l.AllowN(class, source, 1)
}

// sourceLimiter returns the per-source limiter. Caller holds mu.
func (l *Limiter) sourceLimiter(class Class, source string) *rate.Limiter {
	m := l.perSource[class]
	lim, ok := m[source]
	if !ok {
		b := l.config.Classes[class]
		lim = rate.NewLimiter(b.Rate, b.Burst)
		m[source] = lim
	}
	return lim
}

// maybeCleanup drops all per-source limiters once the interval has passed.
// Caller holds mu.
func (l *Limiter) maybeCleanup(now time.Time) {
	if now.Sub(l.lastCleanup) < l.config.CleanupInterval {
		return
	}
	for class := range l.perSource {
		l.perSource[class] = make(map[string]*rate.Limiter)
	}
	l.lastCleanup = now
}
