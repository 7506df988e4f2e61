package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinWindow(t *testing.T) {
	l := New(Config{
		WindowSize: time.Minute, WindowLimit: 5,
		BurstSize: time.Second, BurstLimit: 100,
		BlockFor: time.Second, CleanupEvery: time.Hour, MaxIdle: time.Hour,
	})
	defer l.Stop()

	now := time.Now()
	for i := 0; i < 5; i++ {
		if !l.Allow("1.2.3.4", now) {
			t.Fatalf("request %d denied, want allowed", i)
		}
	}
	if l.Allow("1.2.3.4", now) {
		t.Fatal("6th request within window allowed, want denied")
	}
}

func TestBlockedUntilHoldsAcrossInterleaving(t *testing.T) {
	l := New(Config{
		WindowSize: time.Minute, WindowLimit: 1,
		BurstSize: time.Minute, BurstLimit: 100,
		BlockFor: 5 * time.Second, CleanupEvery: time.Hour, MaxIdle: time.Hour,
	})
	defer l.Stop()

	now := time.Now()
	if !l.Allow("9.9.9.9", now) {
		t.Fatal("first request denied, want allowed")
	}
	if l.Allow("9.9.9.9", now.Add(time.Second)) {
		t.Fatal("request during block window allowed, want denied")
	}
	if l.Allow("9.9.9.9", now.Add(4999*time.Millisecond)) {
		t.Fatal("request just before block expiry allowed, want denied")
	}
}

func TestBurstLimitIndependentOfWindow(t *testing.T) {
	l := New(Config{
		WindowSize: time.Minute, WindowLimit: 1000,
		BurstSize: time.Second, BurstLimit: 2,
		BlockFor: time.Second, CleanupEvery: time.Hour, MaxIdle: time.Hour,
	})
	defer l.Stop()

	now := time.Now()
	if !l.Allow("5.5.5.5", now) || !l.Allow("5.5.5.5", now) {
		t.Fatal("first two requests denied, want allowed")
	}
	if l.Allow("5.5.5.5", now) {
		t.Fatal("third request within burst window allowed, want denied")
	}
}

func TestBurstViolationDoesNotExtendBlock(t *testing.T) {
	l := New(Config{
		WindowSize: time.Minute, WindowLimit: 1000,
		BurstSize: time.Second, BurstLimit: 1,
		BlockFor: time.Minute, CleanupEvery: time.Hour, MaxIdle: time.Hour,
	})
	defer l.Stop()

	now := time.Now()
	if !l.Allow("6.6.6.6", now) {
		t.Fatal("first request denied, want allowed")
	}
	if l.Allow("6.6.6.6", now) {
		t.Fatal("second request within burst window allowed, want denied")
	}
	// The burst violation must not have set blockUntil: once the burst
	// window has rolled forward, the request should be allowed again
	// rather than still serving out BlockFor.
	if !l.Allow("6.6.6.6", now.Add(2*time.Second)) {
		t.Fatal("request after burst window rolled forward denied, want allowed (burst violation must not extend block)")
	}
}

func TestDifferentIPsAreIndependent(t *testing.T) {
	l := New(Config{
		WindowSize: time.Minute, WindowLimit: 1,
		BurstSize: time.Minute, BurstLimit: 1,
		BlockFor: time.Minute, CleanupEvery: time.Hour, MaxIdle: time.Hour,
	})
	defer l.Stop()

	now := time.Now()
	if !l.Allow("1.1.1.1", now) {
		t.Fatal("first IP's first request denied")
	}
	if !l.Allow("2.2.2.2", now) {
		t.Fatal("second IP's first request denied, should be independent of first IP")
	}
}
