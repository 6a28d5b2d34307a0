package planner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/AaksharGarg/autorfp-crawler/internal/metrics"
	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
)

const validPlanJSON = `{
	"plan_id": "plan-1",
	"goal": "extract tenders",
	"actions": [
		{"id": "A", "tool": "fetcher.fetch_html", "args": {"url": "https://t.example/x"}, "retry_policy": {"retries": 2, "backoff_seconds": 1}},
		{"id": "B", "tool": "extractor.extract_all", "args": {"url": "https://t.example/x", "text": "{A.result.html}"}}
	],
	"max_steps": 10
}`

type scriptedCompleter struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func (c *scriptedCompleter) Generate(_ context.Context, _ string, _ int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls >= len(c.responses) {
		return "", errors.New("no scripted response left")
	}
	out := c.responses[c.calls]
	c.calls++
	return out, nil
}

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

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

type fixedIDs struct{ id string }

func (g fixedIDs) NewID() (string, error) { return g.id, nil }

func newTestPlanner(t *testing.T, completer rfp.Completer, blobs rfp.BlobStore, repairs int) *LLM {
	t.Helper()
	metrics.Init()
	clock := fixedClock{at: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	ids := fixedIDs{id: "0c7e"}
	return New(completer, blobs, clock, ids, Config{MaxTokens: 1024, RepairAttempts: repairs}, zaptest.NewLogger(t))
}

func TestPlanValidFirstResponse(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{responses: []string{validPlanJSON}}
	p := newTestPlanner(t, completer, newMemBlobStore(), 2)

	plan, err := p.Plan(context.Background(), "extract tenders", `{"frontier_size":1}`)
	require.NoError(t, err)
	require.Equal(t, "plan-1", plan.PlanID)
	require.Len(t, plan.Actions, 2)
	require.Equal(t, 10, plan.MaxSteps)
	require.Equal(t, 2, plan.Actions[0].RetryPolicy.Retries)
	require.Equal(t, 1, completer.calls)
}

func TestPlanRepairsMalformedFirstResponse(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{responses: []string{
		"Sure! Here is a plan you could use... (no JSON though)",
		validPlanJSON,
	}}
	p := newTestPlanner(t, completer, newMemBlobStore(), 2)

	plan, err := p.Plan(context.Background(), "extract tenders", `{"frontier_size":1}`)
	require.NoError(t, err)
	require.Equal(t, "plan-1", plan.PlanID)
	require.Equal(t, 2, completer.calls, "expected exactly one repair round")
}

func TestPlanAcceptsObjectEmbeddedInProse(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{responses: []string{
		"Here is the plan:\n" + validPlanJSON + "\nLet me know if you need changes.",
	}}
	p := newTestPlanner(t, completer, newMemBlobStore(), 0)

	plan, err := p.Plan(context.Background(), "extract tenders", "{}")
	require.NoError(t, err)
	require.Equal(t, "plan-1", plan.PlanID)
	require.Equal(t, 1, completer.calls)
}

func TestPlanReassemblesChunkStream(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{responses: []string{
		`{"response":"{\"plan_id\":\"p9\",\"goal\":\"g\","}` + "\n" +
			`{"response":"\"actions\":[],\"max_steps\":1}"}` + "\n",
	}}
	p := newTestPlanner(t, completer, newMemBlobStore(), 0)

	plan, err := p.Plan(context.Background(), "g", "{}")
	require.NoError(t, err)
	require.Equal(t, "p9", plan.PlanID)
	require.Equal(t, 1, plan.MaxSteps)
}

func TestPlanExhaustedRepairsPersistsRawAndFails(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{responses: []string{
		"not json at all",
		"still not json",
	}}
	blobs := newMemBlobStore()
	p := newTestPlanner(t, completer, blobs, 1)

	_, err := p.Plan(context.Background(), "extract tenders", "{}")
	require.Error(t, err)

	var planErr *rfp.PlanError
	require.ErrorAs(t, err, &planErr)
	require.Equal(t, rfp.PlanStageParse, planErr.Stage)
	require.Equal(t, "mem://planner/planner_raw_1773478800_0c7e.txt", planErr.RawLocation)
	require.Equal(t, []byte("still not json"), blobs.objects["planner/planner_raw_1773478800_0c7e.txt"])
	require.Equal(t, 2, completer.calls)
}

func TestPlanSchemaViolationIsSchemaStage(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{responses: []string{
		`{"plan_id":"p1","goal":"g","actions":[{"id":"A"}]}`,
	}}
	p := newTestPlanner(t, completer, newMemBlobStore(), 0)

	_, err := p.Plan(context.Background(), "g", "{}")
	var planErr *rfp.PlanError
	require.ErrorAs(t, err, &planErr)
	require.Equal(t, rfp.PlanStageSchema, planErr.Stage)
}

func TestFirstBalancedObjectIgnoresBracesInStrings(t *testing.T) {
	t.Parallel()

	text := `prefix {"a": "brace } inside", "b": {"c": 1}} suffix`
	inner, ok := firstBalancedObject(text)
	require.True(t, ok)
	require.Equal(t, `{"a": "brace } inside", "b": {"c": 1}}`, inner)
}
