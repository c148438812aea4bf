// Package ratelimit throttles repeated credential attempts against the same
// account identifier.
package ratelimit

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Limiter counts attempts per key inside a one-minute window.
type Limiter struct {
	mu           sync.Mutex
	keys         map[string]*keyInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	now          func() time.Time
	rejected     atomic.Int64

	attemptsPerMinute int
	cleanupInterval   time.Duration
}

type keyInfo struct {
	windowStart time.Time
	lastAttempt time.Time
	attempts    int
}

// Config holds limiter configuration
type Config struct {
	AttemptsPerMinute int
	CleanupInterval   time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		AttemptsPerMinute: 5,
		CleanupInterval:   5 * time.Minute,
	}
}

// NewLimiter creates a limiter and starts its cleanup goroutine. Call Stop
// when done.
func NewLimiter(config Config) *Limiter {
	if config.AttemptsPerMinute <= 0 {
		config.AttemptsPerMinute = DefaultConfig().AttemptsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}
	rl := &Limiter{
		keys:              make(map[string]*keyInfo),
		stopCleanup:       make(chan struct{}),
		now:               time.Now,
		attemptsPerMinute: config.AttemptsPerMinute,
		cleanupInterval:   config.CleanupInterval,
	}
	go rl.startCleanup()
	return rl
}

// WithClock replaces the time source. Tests only.
func (rl *Limiter) WithClock(now func() time.Time) *Limiter {
	rl.mu.Lock()
	rl.now = now
	rl.mu.Unlock()
	return rl
}

func normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Allow records one attempt for key and reports whether it is within the
// limit. Keys are compared case-insensitively, like emails.
func (rl *Limiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key = normalize(key)
	now := rl.now()
	info, ok := rl.keys[key]
	if !ok || now.Sub(info.windowStart) >= time.Minute {
		rl.keys[key] = &keyInfo{windowStart: now, lastAttempt: now, attempts: 1}
		return true
	}

	info.attempts++
	info.lastAttempt = now
	if info.attempts > rl.attemptsPerMinute {
		rl.rejected.Add(1)
		return false
	}
	return true
}

// Reset forgets key, typically after a successful login.
func (rl *Limiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.keys, normalize(key))
}

func (rl *Limiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries drops keys idle for more than ten minutes.
func (rl *Limiter) cleanupStaleEntries() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-10 * time.Minute)
	removed := 0
	for key, info := range rl.keys {
		if info.lastAttempt.Before(cutoff) {
			delete(rl.keys, key)
			removed++
		}
	}
	return removed
}

// ActiveKeys returns the number of currently tracked keys
func (rl *Limiter) ActiveKeys() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.keys)
}

// Rejected returns how many attempts were refused so far.
func (rl *Limiter) Rejected() int64 {
	return rl.rejected.Load()
}

// Stop shuts down the cleanup goroutine. Safe to call more than once.
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}
