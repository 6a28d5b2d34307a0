// Package frontier implements the deduplicated priority queue of URLs
// awaiting processing.
package frontier

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
)

// DefaultPriority is used when a caller does not care about ordering.
const DefaultPriority = 5

// Memory is an in-process frontier for development and tests. The seen-set
// guarantee only lasts the lifetime of the process; production deployments
// use the Redis backend.
type Memory struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	items itemHeap
	seq   int64
	clock rfp.Clock
}

// NewMemory constructs an empty in-memory frontier.
func NewMemory(clock rfp.Clock) *Memory {
	return &Memory{
		seen:  make(map[string]struct{}),
		clock: clock,
	}
}

// Add enqueues url unless it has ever been seen. The seen mark and the
// enqueue happen under one lock, so concurrent adds of the same URL cannot
// both succeed.
func (m *Memory) Add(_ context.Context, rawURL string, priority int, depth int, meta map[string]string) (bool, error) {
	canonical, err := canonicalURL(rawURL)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seen[canonical]; ok {
		return false, nil
	}
	m.seen[canonical] = struct{}{}
	m.seq++
	heap.Push(&m.items, queuedItem{
		item: rfp.FrontierItem{
			URL:        canonical,
			Priority:   priority,
			Depth:      depth,
			Meta:       meta,
			EnqueuedAt: m.now(),
		},
		seq: m.seq,
	})
	return true, nil
}

// Pop removes and returns the highest-priority item. Among equal priorities
// the most recently enqueued item wins.
func (m *Memory) Pop(_ context.Context) (rfp.FrontierItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.items.Len() == 0 {
		return rfp.FrontierItem{}, rfp.ErrFrontierEmpty
	}
	top := heap.Pop(&m.items).(queuedItem)
	return top.item, nil
}

// Size returns the current queue length.
func (m *Memory) Size(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(m.items.Len()), nil
}

func (m *Memory) now() time.Time {
	if m.clock != nil {
		return m.clock.Now()
	}
	return time.Now().UTC()
}

type queuedItem struct {
	item rfp.FrontierItem
	seq  int64
}

type itemHeap []queuedItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].item.Priority != h[j].item.Priority {
		return h[i].item.Priority > h[j].item.Priority
	}
	// Last pushed wins on priority ties.
	return h[i].seq > h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(queuedItem)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	top := old[n-1]
	*h = old[:n-1]
	return top
}
