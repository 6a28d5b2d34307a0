// Package rfp defines core types shared across subsystems.
package rfp

import "time"

// FrontierItem is one queued URL awaiting processing.
// Items are created by Add, consumed by Pop, and never mutated in place.
type FrontierItem struct {
	URL        string            `json:"url"`
	Priority   int               `json:"priority"`
	Depth      int               `json:"depth"`
	Meta       map[string]string `json:"meta,omitempty"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

// Seed is one entry from a seed descriptor file.
type Seed struct {
	URL      string            `json:"url"`
	Priority int               `json:"priority"`
	Depth    int               `json:"depth"`
	Meta     map[string]string `json:"meta,omitempty"`
}

// SeedResult reports the outcome of enqueueing one seed.
type SeedResult struct {
	URL   string
	Added bool
	Err   error
}

// RetryPolicy controls per-action retries with linear backoff.
type RetryPolicy struct {
	Retries        int `json:"retries"`
	BackoffSeconds int `json:"backoff_seconds"`
}

// Expectation is an optional planner hint about an action's outcome.
type Expectation struct {
	Type  string `json:"type,omitempty"`
	Value any    `json:"value,omitempty"`
}

// Action is one planned tool invocation. Args values may be literals or
// placeholder references of the form {action_id} or {action_id.field}.
type Action struct {
	ID          string         `json:"id"`
	Tool        string         `json:"tool"`
	Args        map[string]any `json:"args,omitempty"`
	RetryPolicy RetryPolicy    `json:"retry_policy,omitempty"`
	Expectation *Expectation   `json:"expectation,omitempty"`
}

// Plan is the ordered action list produced by the planner for one cycle.
// It is immutable once validated.
type Plan struct {
	PlanID   string   `json:"plan_id"`
	Goal     string   `json:"goal"`
	Actions  []Action `json:"actions"`
	MaxSteps int      `json:"max_steps"`
}

// ActionStatus is the terminal state of an executed action.
type ActionStatus string

// Terminal action states recorded in the result map.
const (
	ActionStatusOK    ActionStatus = "ok"
	ActionStatusError ActionStatus = "error"
)

// ActionResult is the terminal record of one executed action.
type ActionResult struct {
	Status ActionStatus `json:"status"`
	Result any          `json:"result,omitempty"`
	Error  string       `json:"error,omitempty"`
	Trace  string       `json:"trace,omitempty"`
}

// FetchResult is the outcome of a page fetch. Failures are represented as
// Status == 0, never as an error, so retry policies govern recovery.
type FetchResult struct {
	URL         string `json:"url"`
	FinalURL    string `json:"final_url"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	HTML        string `json:"html"`
}

// DocumentLink is a document reference found during extraction.
type DocumentLink struct {
	URL string `json:"url"`
}

// Candidate is raw extraction output. It exists only between extraction
// and normalization.
type Candidate struct {
	SourceURL       string         `json:"source_url"`
	Title           string         `json:"title,omitempty"`
	RFPNumber       string         `json:"rfp_number,omitempty"`
	Dates           []string       `json:"dates"`
	Budgets         []string       `json:"budgets"`
	ContactEmails   []string       `json:"contact_emails"`
	ContactPhones   []string       `json:"contact_phones"`
	Documents       []DocumentLink `json:"documents"`
	MatchedKeywords []string       `json:"matched_keywords"`
	RawText         string         `json:"raw_text,omitempty"`
}

// Location is the place a tender applies to.
type Location struct {
	Country *string `json:"country"`
	State   *string `json:"state"`
	City    *string `json:"city"`
}

// Contact holds contact channels for a tender.
type Contact struct {
	Emails []string `json:"contact_emails"`
	Phones []string `json:"contact_phones"`
	Person *string  `json:"contact_person"`
}

// Document is a normalized document attachment.
type Document struct {
	URL                  *string  `json:"url"`
	Filename             *string  `json:"filename"`
	Filetype             *string  `json:"filetype"`
	ExtractedTextSnippet *string  `json:"extracted_text_snippet"`
	OCRUsed              bool     `json:"ocr_used"`
	ExtractionConfidence *float64 `json:"extraction_confidence"`
}

// NormalizedRecord is the canonical, schema-valid tender record. The JSON
// form of this struct is the wire contract between normalizer, validator,
// and persistence sink (schema rfp_record_v1).
type NormalizedRecord struct {
	ID             string `json:"id"`
	SourceURL      string `json:"source_url"`
	SourceDomain   string `json:"source_domain"`
	CrawlTimestamp string `json:"crawl_timestamp"`

	Title              *string  `json:"title"`
	RFPNumber          *string  `json:"rfp_number"`
	DateOfPosting      *string  `json:"date_of_posting"`
	DeadlineDate       *string  `json:"deadline_date"`
	DurationDays       *int     `json:"duration_days"`
	EstimatedBudgetMin *float64 `json:"estimated_budget_min"`
	EstimatedBudgetMax *float64 `json:"estimated_budget_max"`
	Currency           *string  `json:"currency"`
	Agency             *string  `json:"agency"`
	Location           Location `json:"location"`

	Contact             Contact           `json:"contact"`
	Description         *string           `json:"description"`
	RequirementsSummary *string           `json:"requirements_summary"`
	CoatingFields       map[string]string `json:"coating_fields,omitempty"`
	Documents           []Document        `json:"documents"`
	Keywords            []string          `json:"keywords"`
	MatchedTerms        []string          `json:"matched_terms"`
	MatchSignals        map[string]any    `json:"match_signals"`
	Provenance          map[string]string `json:"provenance"`
}

// ValidationIssue lists the schema errors for one record in a batch.
type ValidationIssue struct {
	Index  int      `json:"index"`
	Errors []string `json:"errors"`
}

// ValidationResult reports batch validation. It is a report, not an error:
// validation never raises.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}
