// Package agent runs the plan-execute loop: dequeue frontier items, ask the
// planner for a plan, execute its actions in order, and route extraction
// output through normalize, validate, and persist.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AaksharGarg/autorfp-crawler/internal/metrics"
	"github.com/AaksharGarg/autorfp-crawler/internal/normalize"
	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
)

// ManagerConfig controls one orchestrator instance.
type ManagerConfig struct {
	// Goal is passed verbatim to the planner.
	Goal string
	// BatchSize is the maximum number of frontier items consumed per cycle.
	BatchSize int
	// MaxSteps caps a plan's action list when the plan does not set its own.
	MaxSteps int
}

// ManagerDeps are the orchestrator's collaborators.
type ManagerDeps struct {
	Frontier   rfp.Frontier
	Planner    rfp.Planner
	Tools      *Registry
	Normalizer *normalize.Normalizer
	Validator  rfp.Validator
	Sink       rfp.RecordSink
	Store      rfp.RecordStore
	Publisher  rfp.Publisher
	Blobs      rfp.BlobStore
	Clock      rfp.Clock
	IDs        rfp.IDGenerator
	Logger     *zap.Logger
}

// Manager executes one plan per cycle. Action results are private to the
// cycle; the frontier is the only shared mutable state.
type Manager struct {
	deps  ManagerDeps
	cfg   ManagerConfig
	sleep func(ctx context.Context, d time.Duration) error
}

// NewManager builds an orchestrator.
func NewManager(deps ManagerDeps, cfg ManagerConfig) *Manager {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 50
	}
	return &Manager{
		deps:  deps,
		cfg:   cfg,
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type cycleState struct {
	FrontierSize int64              `json:"frontier_size"`
	URLsToGo     []rfp.FrontierItem `json:"urls_to_process"`
}

// RunOnce executes one cycle and returns the number of frontier items it
// consumed. A planning failure is returned as an error; individual action
// failures are not, since a failed action never aborts the rest of the plan.
func (m *Manager) RunOnce(ctx context.Context) (int, error) {
	items := m.dequeue(ctx)
	if len(items) == 0 {
		metrics.ObserveCycle("empty")
		return 0, nil
	}
	cycleID := m.newID()
	m.deps.Logger.Info("starting cycle",
		zap.String("cycle_id", cycleID),
		zap.Int("items", len(items)),
	)

	size, err := m.deps.Frontier.Size(ctx)
	if err != nil {
		m.deps.Logger.Warn("frontier size unavailable", zap.Error(err))
	} else {
		metrics.SetFrontierSize(size)
	}
	summary, err := json.Marshal(cycleState{FrontierSize: size, URLsToGo: items})
	if err != nil {
		return len(items), fmt.Errorf("encode cycle state: %w", err)
	}

	plan, err := m.deps.Planner.Plan(ctx, m.cfg.Goal, string(summary))
	if err != nil {
		metrics.ObserveCycle("plan_failed")
		return len(items), fmt.Errorf("plan cycle: %w", err)
	}
	m.deps.Logger.Info("received plan",
		zap.String("cycle_id", cycleID),
		zap.String("plan_id", plan.PlanID),
		zap.Int("actions", len(plan.Actions)),
	)

	maxSteps := plan.MaxSteps
	if maxSteps <= 0 || maxSteps > m.cfg.MaxSteps {
		maxSteps = m.cfg.MaxSteps
	}
	actions := plan.Actions
	if len(actions) > maxSteps {
		actions = actions[:maxSteps]
	}

	results := make(map[string]rfp.ActionResult, len(actions))
	for _, action := range actions {
		resolved := resolveArgs(action.Args, results)
		out := m.executeAction(ctx, action, resolved)
		results[action.ID] = out
		m.deps.Logger.Debug("action finished",
			zap.String("action_id", action.ID),
			zap.String("tool", action.Tool),
			zap.String("status", string(out.Status)),
		)
		switch {
		case action.Tool == ToolFetchHTML && out.Status == rfp.ActionStatusOK:
			m.archivePage(ctx, resolved, out)
		case action.Tool == ToolExtractAll && out.Status == rfp.ActionStatusOK:
			m.postProcess(ctx, resolved, out)
		}
	}

	metrics.ObserveCycle("ok")
	return len(items), nil
}

// dequeue pops up to BatchSize items. An empty frontier ends the batch;
// other pop errors are logged and end it too.
func (m *Manager) dequeue(ctx context.Context) []rfp.FrontierItem {
	var items []rfp.FrontierItem
	for len(items) < m.cfg.BatchSize {
		item, err := m.deps.Frontier.Pop(ctx)
		if errors.Is(err, rfp.ErrFrontierEmpty) {
			break
		}
		if err != nil {
			m.deps.Logger.Error("frontier pop failed", zap.Error(err))
			break
		}
		items = append(items, item)
	}
	return items
}

// executeAction runs one action to a terminal state. An unknown tool fails
// terminally with no retries; other failures retry per policy with linear
// backoff (sleep backoff * attempt between tries).
func (m *Manager) executeAction(ctx context.Context, action rfp.Action, resolved map[string]any) rfp.ActionResult {
	tool, ok := m.deps.Tools.Get(action.Tool)
	if !ok {
		return rfp.ActionResult{
			Status: rfp.ActionStatusError,
			Error:  fmt.Sprintf("%v: %s", rfp.ErrUnknownTool, action.Tool),
		}
	}

	retries := action.RetryPolicy.Retries
	backoff := action.RetryPolicy.BackoffSeconds
	if backoff <= 0 {
		backoff = 1
	}

	attempt := 0
	for {
		result, err := tool.Execute(ctx, resolved)
		if err == nil {
			return rfp.ActionResult{Status: rfp.ActionStatusOK, Result: result}
		}
		attempt++
		if attempt > retries {
			return rfp.ActionResult{
				Status: rfp.ActionStatusError,
				Error:  err.Error(),
				Trace:  fmt.Sprintf("tool %s failed on attempt %d/%d: %+v", action.Tool, attempt, retries+1, err),
			}
		}
		metrics.ObserveActionRetry(action.Tool)
		m.deps.Logger.Warn("action attempt failed; retrying",
			zap.String("action_id", action.ID),
			zap.String("tool", action.Tool),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if sleepErr := m.sleep(ctx, time.Duration(backoff*attempt)*time.Second); sleepErr != nil {
			return rfp.ActionResult{
				Status: rfp.ActionStatusError,
				Error:  err.Error(),
				Trace:  fmt.Sprintf("retry wait canceled: %v", sleepErr),
			}
		}
	}
}

// archivePage stores the rendered HTML of a successful fetch for offline
// re-extraction and debugging.
func (m *Manager) archivePage(ctx context.Context, resolvedArgs map[string]any, out rfp.ActionResult) {
	result, ok := out.Result.(map[string]any)
	if !ok {
		return
	}
	html, _ := result["html"].(string)
	if html == "" {
		return
	}
	sourceURL, _ := resolvedArgs["url"].(string)
	path := fmt.Sprintf("pages/%s_%d.html", metrics.SanitizeSite(sourceURL), m.deps.Clock.Now().UnixNano())
	if _, err := m.deps.Blobs.PutObject(ctx, path, "text/html; charset=utf-8", []byte(html)); err != nil {
		m.deps.Logger.Warn("page archive failed", zap.String("url", sourceURL), zap.Error(err))
	}
}

// postProcess normalizes and validates one successful extraction. Validation
// failure diverts the whole payload to the raw-failure log; nothing from the
// batch is persisted partially.
func (m *Manager) postProcess(ctx context.Context, resolvedArgs map[string]any, out rfp.ActionResult) {
	sourceURL, _ := resolvedArgs["url"].(string)

	candidates, err := decodeCandidates(out.Result)
	if err != nil {
		m.deps.Logger.Error("extraction result malformed", zap.String("url", sourceURL), zap.Error(err))
		return
	}
	if len(candidates) == 0 {
		return
	}

	records := make([]rfp.NormalizedRecord, 0, len(candidates))
	for _, candidate := range candidates {
		records = append(records, m.deps.Normalizer.Record(candidate))
	}

	validation := m.deps.Validator.ValidateBatch(records)
	if !validation.Valid {
		m.logValidationFailure(ctx, sourceURL, out.Result, records, validation)
		return
	}

	for _, record := range records {
		path, err := m.deps.Sink.SaveRecord(ctx, record)
		if err != nil {
			m.deps.Logger.Error("record archive failed", zap.String("record_id", record.ID), zap.Error(err))
			continue
		}
		metrics.ObserveRecordPersisted("archive")
		m.deps.Logger.Info("saved valid record", zap.String("record_id", record.ID), zap.String("path", path))

		if !IsDomainRelevant(record) {
			m.deps.Logger.Debug("record not domain relevant; skipping store",
				zap.String("record_id", record.ID),
			)
			continue
		}
		if m.deps.Store == nil {
			continue
		}
		id, err := m.deps.Store.Upsert(ctx, record)
		if err != nil {
			m.deps.Logger.Error("record upsert failed", zap.String("record_id", record.ID), zap.Error(err))
			continue
		}
		metrics.ObserveRecordPersisted("store")
		if m.deps.Publisher != nil {
			if err := m.deps.Publisher.Publish(ctx, id); err != nil {
				m.deps.Logger.Error("record publish failed", zap.String("record_id", id), zap.Error(err))
			}
		}
	}
}

func (m *Manager) logValidationFailure(ctx context.Context, sourceURL string, raw any, records []rfp.NormalizedRecord, validation rfp.ValidationResult) {
	payload, err := json.MarshalIndent(map[string]any{
		"url":        sourceURL,
		"raw":        raw,
		"normalized": records,
		"errors":     validation.Issues,
	}, "", "  ")
	if err != nil {
		m.deps.Logger.Error("encode validation failure payload", zap.Error(err))
		return
	}
	name := fmt.Sprintf("raw/raw_%d", m.deps.Clock.Now().Unix())
	if id := m.newID(); id != "" {
		name += "_" + id
	}
	path := name + ".json"
	location, err := m.deps.Blobs.PutObject(ctx, path, "application/json", payload)
	if err != nil {
		m.deps.Logger.Error("persist validation failure payload", zap.String("path", path), zap.Error(err))
		return
	}
	m.deps.Logger.Warn("validation failed for extracted records",
		zap.String("url", sourceURL),
		zap.Int("records", len(records)),
		zap.String("raw_location", location),
	)
}

func (m *Manager) newID() string {
	id, err := m.deps.IDs.NewID()
	if err != nil {
		m.deps.Logger.Warn("id generation failed", zap.Error(err))
		return ""
	}
	return id
}

func decodeCandidates(result any) ([]rfp.Candidate, error) {
	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode candidates: %w", err)
	}
	var candidates []rfp.Candidate
	if err := json.Unmarshal(encoded, &candidates); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	return candidates, nil
}
