package fetch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
)

type recordingFetcher struct {
	mu    sync.Mutex
	times map[string][]time.Time
}

func newRecordingFetcher() *recordingFetcher {
	return &recordingFetcher{times: make(map[string][]time.Time)}
}

func (f *recordingFetcher) FetchPage(_ context.Context, url string, _ time.Duration) rfp.FetchResult {
	f.mu.Lock()
	f.times[hostOf(url)] = append(f.times[hostOf(url)], time.Now())
	f.mu.Unlock()
	return rfp.FetchResult{URL: url, FinalURL: url, Status: 200}
}

func TestRateLimitedSpacesSameHost(t *testing.T) {
	t.Parallel()

	inner := newRecordingFetcher()
	limited := NewRateLimited(inner, 50*time.Millisecond)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			limited.FetchPage(ctx, "https://slow.example.org/page", time.Second)
		}()
	}
	wg.Wait()

	stamps := inner.times["slow.example.org"]
	require.Len(t, stamps, 3)
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		if gap < 0 {
			gap = -gap
		}
		// Reserved slots are delay-spaced; allow scheduler slop.
		require.GreaterOrEqual(t, gap, 35*time.Millisecond)
	}
}

func TestRateLimitedHostsIndependent(t *testing.T) {
	t.Parallel()

	inner := newRecordingFetcher()
	limited := NewRateLimited(inner, 200*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	var wg sync.WaitGroup
	for _, u := range []string{"https://a.example.org/", "https://b.example.org/", "https://c.example.org/"} {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			limited.FetchPage(ctx, u, time.Second)
		}(u)
	}
	wg.Wait()

	// Distinct hosts never wait on one another's slots.
	require.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestRateLimitedCanceledWaitYieldsZeroStatus(t *testing.T) {
	t.Parallel()

	inner := newRecordingFetcher()
	limited := NewRateLimited(inner, time.Minute)
	ctx := context.Background()

	// Burn the first slot so the next caller must wait.
	limited.FetchPage(ctx, "https://busy.example.org/", time.Second)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	got := limited.FetchPage(canceled, "https://busy.example.org/again", time.Second)
	require.Equal(t, 0, got.Status)
	require.Len(t, inner.times["busy.example.org"], 1)
}
