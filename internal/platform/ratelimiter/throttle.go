package ratelimiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// FrameThrottle limits how often each user may submit frames for analysis.
// A nil *FrameThrottle lets everything through.
type FrameThrottle struct {
	perSecond rate.Limit
	burst     int
	// pruneEvery is the minimum time between scans for full buckets
	pruneEvery time.Duration

	mu        sync.Mutex
	users     map[string]*rate.Limiter
	lastPrune time.Time
}

// NewFrameThrottle allows perSecond frames per user with bursts up to burst.
// It returns nil, disabling throttling, when either is not positive.
func NewFrameThrottle(perSecond float64, burst int) *FrameThrottle {
	if perSecond <= 0 || burst <= 0 {
		return nil
	}
	return &FrameThrottle{
		perSecond:  rate.Limit(perSecond),
		burst:      burst,
		pruneEvery: time.Minute,
		users:      make(map[string]*rate.Limiter),
	}
}

// Allow takes one frame token from userID's bucket at now
func (t *FrameThrottle) Allow(userID string, now time.Time) bool {
	if t == nil || userID == "" {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.lastPrune) >= t.pruneEvery {
		t.pruneFull(now)
		t.lastPrune = now
	}

	lim := t.users[userID]
	if lim == nil {
		lim = rate.NewLimiter(t.perSecond, t.burst)
		t.users[userID] = lim
	}
	return lim.AllowN(now, 1)
}

// Release drops userID's bucket, e.g. once their last connection is gone
func (t *FrameThrottle) Release(userID string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	delete(t.users, userID)
	t.mu.Unlock()
}

// Tracked returns how many users currently hold a bucket
func (t *FrameThrottle) Tracked() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.users)
}

// pruneFull forgets buckets that have refilled completely. A full bucket
// behaves exactly like a fresh one, so nothing is lost.
func (t *FrameThrottle) pruneFull(now time.Time) {
	for id, lim := range t.users {
		if lim.TokensAt(now) >= float64(t.burst) {
			delete(t.users, id)
		}
	}
}
