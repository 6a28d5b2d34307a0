package rfp

import (
	"errors"
	"fmt"
)

// Sentinel errors for the frontier and tool registry.
var (
	// ErrInvalidURL marks a URL without a recognized scheme or host. It is
	// fatal only to the add call that produced it.
	ErrInvalidURL = errors.New("invalid url")

	// ErrFrontierEmpty is returned by Pop when nothing is queued.
	ErrFrontierEmpty = errors.New("frontier empty")

	// ErrUnknownTool marks an action naming an unregistered tool. Such
	// actions fail terminally with no retry.
	ErrUnknownTool = errors.New("unknown tool")
)

// PlanStage identifies where planning failed.
type PlanStage string

// Planning failure stages.
const (
	PlanStageParse  PlanStage = "parse"
	PlanStageSchema PlanStage = "schema"
)

// PlanError is a fatal planning failure for one cycle. RawLocation points at
// the persisted raw output for offline inspection.
type PlanError struct {
	Stage       PlanStage
	RawLocation string
	Err         error
}

func (e *PlanError) Error() string {
	if e.RawLocation != "" {
		return fmt.Sprintf("planning failed at %s stage (raw output at %s): %v", e.Stage, e.RawLocation, e.Err)
	}
	return fmt.Sprintf("planning failed at %s stage: %v", e.Stage, e.Err)
}

func (e *PlanError) Unwrap() error { return e.Err }
