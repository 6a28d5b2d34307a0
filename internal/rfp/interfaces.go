package rfp

import (
	"context"
	"time"
)

// Frontier is the durable, deduplicated, priority-ordered URL queue.
type Frontier interface {
	// Add enqueues a URL unless it was ever seen before. It returns true if
	// the URL was newly enqueued and ErrInvalidURL for malformed URLs.
	Add(ctx context.Context, url string, priority int, depth int, meta map[string]string) (bool, error)
	// Pop atomically removes and returns the highest-priority item, or
	// ErrFrontierEmpty when nothing is queued.
	Pop(ctx context.Context) (FrontierItem, error)
	// Size returns the current queue length.
	Size(ctx context.Context) (int64, error)
}

// Fetcher retrieves rendered page content. Fetch failures are expressed as
// zero-status results, not errors.
type Fetcher interface {
	FetchPage(ctx context.Context, url string, timeout time.Duration) FetchResult
}

// Downloader retrieves binary artifacts to local paths. It writes only on
// HTTP 200 and reports success as a boolean.
type Downloader interface {
	DownloadBinary(ctx context.Context, url string, dst string) bool
}

// Extractor turns raw page text into candidate records. Implementations
// must be pure and deterministic.
type Extractor interface {
	ExtractCandidates(url string, text string) []Candidate
}

// Completer requests a text completion for a prompt. Responses carry no
// structural guarantee and must be treated as untrusted text.
type Completer interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Planner produces a schema-valid plan for one orchestrator cycle.
type Planner interface {
	Plan(ctx context.Context, goal string, stateSummary string) (Plan, error)
}

// Validator checks records against the canonical schema. It reports, never
// raises.
type Validator interface {
	Validate(record NormalizedRecord) ValidationResult
	ValidateBatch(records []NormalizedRecord) ValidationResult
}

// RecordStore persists normalized records. Upsert must be idempotent under
// re-submission of the same identity.
type RecordStore interface {
	Upsert(ctx context.Context, record NormalizedRecord) (string, error)
}

// RecordSink archives every valid record regardless of relevance.
type RecordSink interface {
	SaveRecord(ctx context.Context, record NormalizedRecord) (string, error)
}

// BlobStore writes raw artifacts (failure logs, page snapshots) and returns
// a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher announces persisted relevant records downstream.
type Publisher interface {
	Publish(ctx context.Context, recordID string) error
	Close() error
}

// Tool is one capability the planner may invoke by name.
type Tool interface {
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique identifiers (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
