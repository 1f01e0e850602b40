package scrape

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// circuitBreaker tracks consecutive failures to skip a flaky platform.
type circuitBreaker struct {
	mu          sync.Mutex
	name        string
	failures    int
	lastFailure time.Time
	openUntil   time.Time
	threshold   int           // consecutive failures to trip
	window      time.Duration // failures must occur within this window
	cooldown    time.Duration // how long the circuit stays open
}

func newCircuitBreaker(name string, threshold int, window, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{
		name:      name,
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
	}
}

func (cb *circuitBreaker) isOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return time.Now().Before(cb.openUntil)
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	now := time.Now()
	if now.Sub(cb.lastFailure) > cb.window {
		cb.failures = 0
	}
	cb.failures++
	cb.lastFailure = now
	if cb.failures >= cb.threshold {
		cb.openUntil = now.Add(cb.cooldown)
		zap.L().Warn("scrape: circuit breaker opened",
			zap.String("platform", cb.name),
			zap.Int("failures", cb.failures),
			zap.Duration("cooldown", cb.cooldown),
		)
	}
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
}

// defaultBreaker trips after 3 consecutive failures within 30s and stays
// open for 60s. While open, scrapes fail fast with a transient error so
// the job is requeued instead of hammering the platform.
func defaultBreaker(platform string) *circuitBreaker {
	return newCircuitBreaker(platform, 3, 30*time.Second, 60*time.Second)
}
