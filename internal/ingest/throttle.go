package ingest

import (
	"context"
	"sync"
	"time"
)

// HostThrottle spaces requests to the same host by at least delay. Each
// caller reserves its slot under the lock, then sleeps outside it, so
// concurrent workers aimed at one host queue up instead of racing.
type HostThrottle struct {
	mu    sync.Mutex
	delay time.Duration
	next  map[string]time.Time
	now   func() time.Time
}

func NewHostThrottle(delay time.Duration) *HostThrottle {
	return &HostThrottle{delay: delay, next: map[string]time.Time{}, now: time.Now}
}

// Wait blocks until a request to host may start or ctx is done.
func (h *HostThrottle) Wait(ctx context.Context, host string) error {
	if h.delay <= 0 {
		return ctx.Err()
	}
	h.mu.Lock()
	now := h.now()
	at := now
	if n, ok := h.next[host]; ok && n.After(now) {
		at = n
	}
	h.next[host] = at.Add(h.delay)
	h.mu.Unlock()

	wait := at.Sub(now)
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
