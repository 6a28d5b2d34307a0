// Package fetch implements the rate-limited page retrieval and binary
// download layer.
package fetch

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
)

// RateLimited wraps a fetcher with per-host request spacing. A caller whose
// host fetched less than the configured delay ago is suspended until the
// delay has elapsed; different hosts proceed in parallel. This is the
// system's only intentional per-host serialization point.
type RateLimited struct {
	inner rfp.Fetcher
	delay time.Duration

	mu   sync.Mutex
	next map[string]time.Time
}

// NewRateLimited wraps inner with a per-host delay.
func NewRateLimited(inner rfp.Fetcher, delay time.Duration) *RateLimited {
	return &RateLimited{
		inner: inner,
		delay: delay,
		next:  make(map[string]time.Time),
	}
}

// FetchPage waits for the host's slot, then delegates to the wrapped
// fetcher. A canceled wait yields a zero-status result like any other
// fetch failure.
func (r *RateLimited) FetchPage(ctx context.Context, rawURL string, timeout time.Duration) rfp.FetchResult {
	if ok := r.wait(ctx, hostOf(rawURL)); !ok {
		return rfp.FetchResult{URL: rawURL, FinalURL: rawURL, Status: 0}
	}
	return r.inner.FetchPage(ctx, rawURL, timeout)
}

// wait reserves the next fetch slot for host and sleeps until it arrives.
// Reservation happens under the lock so concurrent callers to one host
// queue up delay-spaced slots instead of stampeding.
func (r *RateLimited) wait(ctx context.Context, host string) bool {
	if r.delay <= 0 || host == "" {
		return ctx.Err() == nil
	}

	r.mu.Lock()
	now := time.Now()
	slot := r.next[host]
	if slot.Before(now) {
		slot = now
	}
	r.next[host] = slot.Add(r.delay)
	r.mu.Unlock()

	pause := time.Until(slot)
	if pause <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(pause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
