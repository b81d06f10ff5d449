// Package ratelimit throttles both HTTP requests and WebSocket game actions
// per client, so one connection can't starve a table or the REST API.
// Adapted from the teacher's internal/middleware/ratelimit.go.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Config tunes a Limiter.
type Config struct {
	RequestsPerSecond float64
	BurstSize         int
	CleanupInterval   time.Duration
}

// DefaultHTTPConfig matches the teacher's REST default.
func DefaultHTTPConfig() Config {
	return Config{RequestsPerSecond: 10, BurstSize: 20, CleanupInterval: 5 * time.Minute}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is a per-client token bucket, keyed by caller-chosen string (IP
// for HTTP, user id for WS actions), with idle entries evicted periodically
// so the map doesn't grow without bound.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*clientLimiter
	cfg      Config
	stop     chan struct{}
}

func NewLimiter(cfg Config) *Limiter {
	l := &Limiter{
		limiters: make(map[string]*clientLimiter),
		cfg:      cfg,
		stop:     make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// WebSocketActionConfig is the tighter budget applied to in-game actions
// (pass_cards / play_card), separate from the REST limiter.
func WebSocketActionConfig() Config {
	return Config{RequestsPerSecond: 5, BurstSize: 10, CleanupInterval: 5 * time.Minute}
}

func (l *Limiter) getOrCreate(key string) *rate.Limiter {
	l.mu.RLock()
	c, ok := l.limiters[key]
	l.mu.RUnlock()
	if ok {
		l.mu.Lock()
		c.lastSeen = time.Now()
		l.mu.Unlock()
		return c.limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.limiters[key]; ok {
		c.lastSeen = time.Now()
		return c.limiter
	}
	limiter := rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.BurstSize)
	l.limiters[key] = &clientLimiter{limiter: limiter, lastSeen: time.Now()}
	return limiter
}

// Allow reports whether a single request from key is allowed right now.
func (l *Limiter) Allow(key string) bool {
	return l.getOrCreate(key).Allow()
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-l.cfg.CleanupInterval)
	for key, c := range l.limiters {
		if c.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
		}
	}
}

// Stop ends the background cleanup goroutine.
func (l *Limiter) Stop() {
	close(l.stop)
}

// HTTPMiddleware rejects requests over budget with 429, keyed by client IP.
func (l *Limiter) HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// AllowAction is called by the coordinator before applying a pass_cards or
// play_card message, keyed by user id rather than IP since one user's
// abusive client shouldn't throttle every other seat at the table.
func (l *Limiter) AllowAction(userID string) bool {
	return l.Allow(userID)
}
