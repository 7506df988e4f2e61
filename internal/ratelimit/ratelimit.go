// Package ratelimit implements a per-IP sliding-window admission check: a
// request window and a shorter burst window, each a time-ordered deque of
// timestamps, plus a block-until timestamp set once either window trips.
// State lives in a sync.Map keyed by client IP, with a background
// goroutine evicting entries idle past MaxIdle. The deques use
// container/list: no dependency offers a ready-made sliding-window
// counter, and container/list is exactly the doubly-linked queue the
// algorithm needs for O(1) eviction of expired timestamps.
package ratelimit

import (
	"container/list"
	"sync"
	"time"
)

// Config controls the limiter's window, burst, and blocking thresholds.
type Config struct {
	WindowSize   time.Duration // sliding window duration
	WindowLimit  int           // max requests allowed in WindowSize
	BurstSize    time.Duration // short burst window duration
	BurstLimit   int           // max requests allowed in BurstSize
	BlockFor     time.Duration // how long a violator is blocked once tripped
	CleanupEvery time.Duration
	MaxIdle      time.Duration // entries idle longer than this are evicted
}

// DefaultConfig is a reasonable starting policy: 100 requests per 10
// seconds, with a 20-request-per-second burst ceiling and a 5-second
// block on violation.
func DefaultConfig() Config {
	return Config{
		WindowSize:   10 * time.Second,
		WindowLimit:  100,
		BurstSize:    1 * time.Second,
		BurstLimit:   20,
		BlockFor:     5 * time.Second,
		CleanupEvery: time.Minute,
		MaxIdle:      10 * time.Minute,
	}
}

type entry struct {
	mu         sync.Mutex
	window     *list.List // timestamps within WindowSize
	burst      *list.List // timestamps within BurstSize
	blockUntil time.Time
	lastAccess time.Time
}

// Limiter tracks one sliding-window-and-burst state per client IP.
type Limiter struct {
	cfg     Config
	clients sync.Map // string (IP) -> *entry

	stopOnce sync.Once
	stop     chan struct{}
}

// New starts a Limiter and its background cleanup goroutine.
func New(cfg Config) *Limiter {
	l := &Limiter{cfg: cfg, stop: make(chan struct{})}
	go l.cleanupLoop()
	return l
}

// Stop halts the cleanup goroutine. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Allow reports whether a request from ip at time now should proceed. A
// false return means the caller should respond 403: this server predates
// 429's standardization in its status-code choices and keeps using 403
// for rate-limit rejections.
func (l *Limiter) Allow(ip string, now time.Time) bool {
	v, _ := l.clients.LoadOrStore(ip, &entry{window: list.New(), burst: list.New()})
	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastAccess = now

	if now.Before(e.blockUntil) {
		return false
	}

	evictBefore(e.window, now.Add(-l.cfg.WindowSize))
	evictBefore(e.burst, now.Add(-l.cfg.BurstSize))

	if e.window.Len() >= l.cfg.WindowLimit {
		e.blockUntil = now.Add(l.cfg.BlockFor)
		return false
	}

	if e.burst.Len() >= l.cfg.BurstLimit {
		// A burst violation denies this request without extending the
		// block: the caller may still be within its window budget.
		return false
	}

	e.window.PushBack(now)
	e.burst.PushBack(now)
	return true
}

func evictBefore(l *list.List, cutoff time.Time) {
	for front := l.Front(); front != nil; front = l.Front() {
		if front.Value.(time.Time).Before(cutoff) {
			l.Remove(front)
			continue
		}
		break
	}
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cfg.CleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.clients.Range(func(key, value any) bool {
				e := value.(*entry)
				e.mu.Lock()
				idle := now.Sub(e.lastAccess) > l.cfg.MaxIdle
				e.mu.Unlock()
				if idle {
					l.clients.Delete(key)
				}
				return true
			})
		}
	}
}
