// Package planner turns a goal and frontier state into a schema-valid plan,
// repairing malformed model output before giving up.
package planner

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/AaksharGarg/autorfp-crawler/internal/metrics"
	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
)

//go:embed plan_schema.json
var planSchemaText string

// Config controls planning.
type Config struct {
	// MaxTokens is the completion token budget per request.
	MaxTokens int
	// RepairAttempts is the number of extra model rounds allowed after a
	// malformed first response.
	RepairAttempts int
}

// LLM is the model-backed rfp.Planner.
type LLM struct {
	completer rfp.Completer
	blobs     rfp.BlobStore
	clock     rfp.Clock
	ids       rfp.IDGenerator
	schema    *jsonschema.Schema
	cfg       Config
	logger    *zap.Logger
}

// New builds a planner. It panics if the embedded plan schema does not
// compile, which can only happen on a broken build.
func New(completer rfp.Completer, blobs rfp.BlobStore, clock rfp.Clock, ids rfp.IDGenerator, cfg Config, logger *zap.Logger) *LLM {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.RepairAttempts < 0 {
		cfg.RepairAttempts = 0
	}
	return &LLM{
		completer: completer,
		blobs:     blobs,
		clock:     clock,
		ids:       ids,
		schema:    jsonschema.MustCompileString("plan_v1.json", planSchemaText),
		cfg:       cfg,
		logger:    logger,
	}
}

// Plan requests a plan for the goal and state summary. Malformed output
// triggers up to cfg.RepairAttempts repair rounds; on exhaustion the last
// raw output is persisted and a *rfp.PlanError is returned.
func (p *LLM) Plan(ctx context.Context, goal string, stateSummary string) (rfp.Plan, error) {
	raw, err := p.completer.Generate(ctx, buildPrompt(goal, stateSummary), p.cfg.MaxTokens)
	if err != nil {
		return rfp.Plan{}, fmt.Errorf("planner completion: %w", err)
	}

	var lastErr error
	stage := rfp.PlanStageParse
	for attempt := 0; ; attempt++ {
		plan, planStage, planErr := p.decodePlan(raw)
		if planErr == nil {
			if attempt > 0 {
				p.logger.Info("plan recovered by structural repair",
					zap.String("plan_id", plan.PlanID),
					zap.Int("repair_rounds", attempt),
				)
			}
			return plan, nil
		}
		lastErr = planErr
		stage = planStage

		if attempt >= p.cfg.RepairAttempts {
			break
		}
		metrics.ObservePlanRepair()
		p.logger.Warn("plan output malformed; requesting repair",
			zap.String("stage", string(planStage)),
			zap.Int("attempt", attempt+1),
			zap.Error(planErr),
		)
		raw, err = p.completer.Generate(ctx, buildRepairPrompt(raw, planSchemaText), p.cfg.MaxTokens)
		if err != nil {
			return rfp.Plan{}, fmt.Errorf("planner repair completion: %w", err)
		}
	}

	metrics.ObservePlanFailure(string(stage))
	location := p.persistRawFailure(ctx, raw)
	return rfp.Plan{}, &rfp.PlanError{Stage: stage, RawLocation: location, Err: lastErr}
}

// decodePlan parses and schema-checks one raw response.
func (p *LLM) decodePlan(raw string) (rfp.Plan, rfp.PlanStage, error) {
	obj, ok := parsePlanObject(raw)
	if !ok {
		return rfp.Plan{}, rfp.PlanStageParse, errors.New("no JSON object in model output")
	}
	if err := p.schema.Validate(any(obj)); err != nil {
		return rfp.Plan{}, rfp.PlanStageSchema, fmt.Errorf("plan schema: %w", err)
	}

	encoded, err := json.Marshal(obj)
	if err != nil {
		return rfp.Plan{}, rfp.PlanStageSchema, fmt.Errorf("re-encode plan: %w", err)
	}
	var plan rfp.Plan
	if err := json.Unmarshal(encoded, &plan); err != nil {
		return rfp.Plan{}, rfp.PlanStageSchema, fmt.Errorf("decode plan: %w", err)
	}
	return plan, "", nil
}

// persistRawFailure names objects with timestamp plus a fresh id so two
// failures within the same second never overwrite each other.
func (p *LLM) persistRawFailure(ctx context.Context, raw string) string {
	name := fmt.Sprintf("planner/planner_raw_%d", p.clock.Now().Unix())
	if id, err := p.ids.NewID(); err == nil {
		name += "_" + id
	} else {
		p.logger.Warn("id generation failed for raw planner output", zap.Error(err))
	}
	path := name + ".txt"
	location, err := p.blobs.PutObject(ctx, path, "text/plain; charset=utf-8", []byte(raw))
	if err != nil {
		p.logger.Error("failed to persist raw planner output", zap.String("path", path), zap.Error(err))
		return ""
	}
	return location
}
