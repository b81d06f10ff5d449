package ratelimit

import (
	"testing"
	"time"
)

func TestAllowRespectsBurst(t *testing.T) {
	l := NewLimiter(Config{RequestsPerSecond: 1, BurstSize: 2, CleanupInterval: time.Hour})
	defer l.Stop()

	if !l.Allow("user-1") {
		t.Fatalf("expected first request to be allowed")
	}
	if !l.Allow("user-1") {
		t.Fatalf("expected second request (within burst) to be allowed")
	}
	if l.Allow("user-1") {
		t.Fatalf("expected third request to be rate limited")
	}
}

func TestAllowTracksClientsIndependently(t *testing.T) {
	l := NewLimiter(Config{RequestsPerSecond: 1, BurstSize: 1, CleanupInterval: time.Hour})
	defer l.Stop()

	if !l.Allow("user-1") {
		t.Fatalf("expected user-1 first request to be allowed")
	}
	if !l.Allow("user-2") {
		t.Fatalf("expected user-2 first request to be allowed, independent budget")
	}
}
