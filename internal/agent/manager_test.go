package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/AaksharGarg/autorfp-crawler/internal/extract"
	"github.com/AaksharGarg/autorfp-crawler/internal/metrics"
	"github.com/AaksharGarg/autorfp-crawler/internal/normalize"
	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
	"github.com/AaksharGarg/autorfp-crawler/internal/validate"
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

type fixedIDs struct{ id string }

func (g fixedIDs) NewID() (string, error) { return g.id, nil }

type fakeFrontier struct {
	mu    sync.Mutex
	items []rfp.FrontierItem
	added []string
}

func (f *fakeFrontier) Add(_ context.Context, url string, _, _ int, _ map[string]string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, url)
	return true, nil
}

func (f *fakeFrontier) Pop(context.Context) (rfp.FrontierItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.items) == 0 {
		return rfp.FrontierItem{}, rfp.ErrFrontierEmpty
	}
	item := f.items[0]
	f.items = f.items[1:]
	return item, nil
}

func (f *fakeFrontier) Size(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.items)), nil
}

type fakeFetcher struct {
	pages map[string]rfp.FetchResult
}

func (f *fakeFetcher) FetchPage(_ context.Context, url string, _ time.Duration) rfp.FetchResult {
	if result, ok := f.pages[url]; ok {
		return result
	}
	return rfp.FetchResult{URL: url}
}

type fakePlanner struct {
	plan  rfp.Plan
	err   error
	calls int
	state string
}

func (p *fakePlanner) Plan(_ context.Context, _ string, stateSummary string) (rfp.Plan, error) {
	p.calls++
	p.state = stateSummary
	return p.plan, p.err
}

type fakeSink struct {
	mu    sync.Mutex
	saved []rfp.NormalizedRecord
}

func (s *fakeSink) SaveRecord(_ context.Context, record rfp.NormalizedRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, record)
	return "/records/" + record.ID + ".json", nil
}

type fakeStore struct {
	mu       sync.Mutex
	upserted []rfp.NormalizedRecord
	err      error
}

func (s *fakeStore) Upsert(_ context.Context, record rfp.NormalizedRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.upserted = append(s.upserted, record)
	return record.ID, nil
}

type fakePublisher struct {
	mu  sync.Mutex
	ids []string
}

func (p *fakePublisher) Publish(_ context.Context, recordID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, recordID)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type memBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: make(map[string][]byte)}
}

func (s *memBlobStore) PutObject(_ context.Context, path string, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = append([]byte(nil), data...)
	return "mem://" + path, nil
}

type failingTool struct {
	mu       sync.Mutex
	attempts int
	failures int
}

func (t *failingTool) Execute(context.Context, map[string]any) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts++
	if t.attempts <= t.failures || t.failures < 0 {
		return nil, errors.New("simulated tool failure")
	}
	return "recovered", nil
}

type testHarness struct {
	manager   *Manager
	frontier  *fakeFrontier
	planner   *fakePlanner
	sink      *fakeSink
	store     *fakeStore
	publisher *fakePublisher
	blobs     *memBlobStore
	sleeps    []time.Duration
}

func newHarness(t *testing.T, pages map[string]rfp.FetchResult) *testHarness {
	t.Helper()
	metrics.Init()

	h := &testHarness{
		frontier:  &fakeFrontier{},
		planner:   &fakePlanner{},
		sink:      &fakeSink{},
		store:     &fakeStore{},
		publisher: &fakePublisher{},
		blobs:     newMemBlobStore(),
	}
	logger := zaptest.NewLogger(t)
	clock := fixedClock{at: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	registry := NewRegistry(RegistryDeps{
		Frontier:  h.frontier,
		Fetcher:   &fakeFetcher{pages: pages},
		Extractor: extract.New(),
		Store:     h.store,
		Logger:    logger,
	})
	h.manager = NewManager(ManagerDeps{
		Frontier:   h.frontier,
		Planner:    h.planner,
		Tools:      registry,
		Normalizer: normalize.New(clock),
		Validator:  validate.New(),
		Sink:       h.sink,
		Store:      h.store,
		Publisher:  h.publisher,
		Blobs:      h.blobs,
		Clock:      clock,
		IDs:        fixedIDs{id: "0c7e"},
		Logger:     logger,
	}, ManagerConfig{Goal: "extract coating tenders", BatchSize: 5, MaxSteps: 50})
	h.manager.sleep = func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}
	return h
}

func TestRunOnceEmptyFrontierSkipsPlanning(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	n, err := h.manager.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Zero(t, h.planner.calls)
}

func TestRunOnceFetchExtractPersistFlow(t *testing.T) {
	t.Parallel()

	const pageURL = "https://tenders.example.gov/notice/41"
	page := "Epoxy Flooring Works at Depot\nRFQ: ABC-9 for epoxy coating closes 2025-10-01.\nContact buyer@agency.example\n"

	h := newHarness(t, map[string]rfp.FetchResult{
		pageURL: {URL: pageURL, FinalURL: pageURL, Status: 200, ContentType: "text/html", HTML: page},
	})
	h.frontier.items = []rfp.FrontierItem{{URL: pageURL, Priority: 5}}
	h.planner.plan = rfp.Plan{
		PlanID: "plan-1",
		Goal:   "extract coating tenders",
		Actions: []rfp.Action{
			{ID: "A", Tool: ToolFetchHTML, Args: map[string]any{"url": pageURL}},
			{ID: "B", Tool: ToolExtractAll, Args: map[string]any{"url": pageURL, "text": "{A.result.html}"}},
		},
		MaxSteps: 10,
	}

	n, err := h.manager.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, h.planner.calls)

	var state map[string]any
	require.NoError(t, json.Unmarshal([]byte(h.planner.state), &state))
	require.Contains(t, h.planner.state, pageURL)

	require.Len(t, h.sink.saved, 1)
	saved := h.sink.saved[0]
	require.Equal(t, pageURL, saved.SourceURL)
	require.NotNil(t, saved.RFPNumber)
	require.Equal(t, "ABC-9", *saved.RFPNumber)

	require.Len(t, h.store.upserted, 1)
	require.Equal(t, []string{saved.ID}, h.publisher.ids)

	var archived bool
	for path, data := range h.blobs.objects {
		if strings.HasPrefix(path, "pages/tenders.example.gov_") {
			archived = true
			require.Equal(t, page, string(data))
		}
	}
	require.True(t, archived, "fetched page should be archived to the blob store")
}

func TestRunOncePlanFailureReturnsError(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.frontier.items = []rfp.FrontierItem{{URL: "https://t.example/x"}}
	h.planner.err = &rfp.PlanError{Stage: rfp.PlanStageParse, Err: errors.New("no JSON object in model output")}

	_, err := h.manager.RunOnce(context.Background())
	require.Error(t, err)

	var planErr *rfp.PlanError
	require.ErrorAs(t, err, &planErr)
}

func TestRunOnceTruncatesActionsToMaxSteps(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.frontier.items = []rfp.FrontierItem{{URL: "https://t.example/x"}}

	counter := &failingTool{failures: 0}
	h.manager.deps.Tools.Register("test.count", counter)
	h.planner.plan = rfp.Plan{
		PlanID: "plan-2",
		Actions: []rfp.Action{
			{ID: "A", Tool: "test.count"},
			{ID: "B", Tool: "test.count"},
			{ID: "C", Tool: "test.count"},
		},
		MaxSteps: 2,
	}

	_, err := h.manager.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, counter.attempts)
}

func TestExecuteActionRetriesThenRecordsError(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	tool := &failingTool{failures: -1}
	h.manager.deps.Tools.Register("test.fail", tool)

	action := rfp.Action{
		ID:          "A",
		Tool:        "test.fail",
		RetryPolicy: rfp.RetryPolicy{Retries: 2, BackoffSeconds: 1},
	}
	out := h.manager.executeAction(context.Background(), action, map[string]any{})

	require.Equal(t, rfp.ActionStatusError, out.Status)
	require.Contains(t, out.Error, "simulated tool failure")
	require.Equal(t, 3, tool.attempts, "retries=2 means 1 initial + 2 retries")
	require.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, h.sleeps)
}

func TestExecuteActionRecoversWithinRetryBudget(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	tool := &failingTool{failures: 1}
	h.manager.deps.Tools.Register("test.flaky", tool)

	action := rfp.Action{
		ID:          "A",
		Tool:        "test.flaky",
		RetryPolicy: rfp.RetryPolicy{Retries: 2, BackoffSeconds: 1},
	}
	out := h.manager.executeAction(context.Background(), action, map[string]any{})

	require.Equal(t, rfp.ActionStatusOK, out.Status)
	require.Equal(t, "recovered", out.Result)
	require.Equal(t, 2, tool.attempts)
}

func TestExecuteActionUnknownToolIsTerminal(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	action := rfp.Action{
		ID:          "A",
		Tool:        "definitely.not.registered",
		RetryPolicy: rfp.RetryPolicy{Retries: 5, BackoffSeconds: 1},
	}
	out := h.manager.executeAction(context.Background(), action, map[string]any{})

	require.Equal(t, rfp.ActionStatusError, out.Status)
	require.Contains(t, out.Error, "unknown tool")
	require.Empty(t, h.sleeps, "unknown tool must not retry")
}

func TestPostProcessValidationFailureDivertsToRawLog(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)

	// Candidate without a source URL normalizes into a record that fails
	// the schema, so nothing may be persisted.
	raw := []any{
		map[string]any{"source_url": "", "title": "Broken Extraction"},
	}
	out := rfp.ActionResult{Status: rfp.ActionStatusOK, Result: raw}
	h.manager.postProcess(context.Background(), map[string]any{"url": "https://t.example/x"}, out)

	require.Empty(t, h.sink.saved)
	require.Empty(t, h.store.upserted)
	require.Contains(t, h.blobs.objects, "raw/raw_1773478800_0c7e.json")

	var payload map[string]any
	require.NoError(t, json.Unmarshal(h.blobs.objects["raw/raw_1773478800_0c7e.json"], &payload))
	require.Equal(t, "https://t.example/x", payload["url"])
	require.NotEmpty(t, payload["errors"])
}

func TestPostProcessIrrelevantRecordArchivedButNotStored(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)

	raw := []any{
		map[string]any{
			"source_url": "https://t.example/x",
			"title":      "Office Chairs Procurement",
			"rfp_number": "GEN-1",
		},
	}
	out := rfp.ActionResult{Status: rfp.ActionStatusOK, Result: raw}
	h.manager.postProcess(context.Background(), map[string]any{"url": "https://t.example/x"}, out)

	require.Len(t, h.sink.saved, 1)
	require.Empty(t, h.store.upserted)
	require.Empty(t, h.publisher.ids)
}

func TestPostProcessStoreFailureDoesNotPublish(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.store.err = fmt.Errorf("db down")

	raw := []any{
		map[string]any{
			"source_url":       "https://t.example/x",
			"title":            "Epoxy Coating Works",
			"rfp_number":       "EP-1",
			"matched_keywords": []any{"epoxy"},
		},
	}
	out := rfp.ActionResult{Status: rfp.ActionStatusOK, Result: raw}
	h.manager.postProcess(context.Background(), map[string]any{"url": "https://t.example/x"}, out)

	require.Len(t, h.sink.saved, 1)
	require.Empty(t, h.publisher.ids)
}
