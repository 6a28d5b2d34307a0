package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/AaksharGarg/autorfp-crawler/internal/metrics"
	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
)

// Tool names the planner is allowed to reference.
const (
	ToolFrontierAdd    = "frontier.add"
	ToolFrontierPop    = "frontier.pop"
	ToolFetchHTML      = "fetcher.fetch_html"
	ToolExtractAll     = "extractor.extract_all"
	ToolDownloadBinary = "downloader.download_binary"
	ToolDBInsertRFP    = "db.insert_rfp"
	ToolLog            = "log"
	ToolNoop           = "noop"
)

// Registry maps tool names to capabilities. It is populated once at startup
// and read-only afterwards.
type Registry struct {
	tools map[string]rfp.Tool
}

// RegistryDeps are the collaborators behind the standard tool set.
type RegistryDeps struct {
	Frontier     rfp.Frontier
	Fetcher      rfp.Fetcher
	Extractor    rfp.Extractor
	Downloader   rfp.Downloader
	Store        rfp.RecordStore
	FetchTimeout time.Duration
	Logger       *zap.Logger
}

// NewRegistry builds the standard tool set. Store may be nil, in which case
// db.insert_rfp is not registered and plans referencing it fail terminally.
func NewRegistry(deps RegistryDeps) *Registry {
	r := &Registry{tools: make(map[string]rfp.Tool)}
	r.Register(ToolFrontierAdd, &frontierAddTool{frontier: deps.Frontier})
	r.Register(ToolFrontierPop, &frontierPopTool{frontier: deps.Frontier})
	r.Register(ToolFetchHTML, &fetchHTMLTool{fetcher: deps.Fetcher, timeout: deps.FetchTimeout})
	r.Register(ToolExtractAll, &extractAllTool{extractor: deps.Extractor})
	r.Register(ToolDownloadBinary, &downloadBinaryTool{downloader: deps.Downloader})
	if deps.Store != nil {
		r.Register(ToolDBInsertRFP, &dbInsertTool{store: deps.Store})
	}
	r.Register(ToolLog, &logTool{logger: deps.Logger})
	r.Register(ToolNoop, noopTool{})
	return r
}

// Register adds or replaces a named tool.
func (r *Registry) Register(name string, tool rfp.Tool) {
	r.tools[name] = tool
}

// Get returns the named tool.
func (r *Registry) Get(name string) (rfp.Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// jsonValue converts a typed result into the generic JSON shape placeholder
// resolution traverses.
func jsonValue(v any) (any, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	var out any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, fmt.Errorf("decode tool result: %w", err)
	}
	return out, nil
}

func stringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", fmt.Errorf("missing required arg %q", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("arg %q must be a string", key)
	}
	return s, nil
}

func intArg(args map[string]any, key string, fallback int) int {
	raw, ok := args[key]
	if !ok {
		return fallback
	}
	switch v := raw.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

type frontierAddTool struct {
	frontier rfp.Frontier
}

func (t *frontierAddTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	url, err := stringArg(args, "url")
	if err != nil {
		return nil, err
	}
	meta := map[string]string{}
	if rawMeta, ok := args["meta"].(map[string]any); ok {
		for k, v := range rawMeta {
			if s, ok := v.(string); ok {
				meta[k] = s
			}
		}
	}
	added, err := t.frontier.Add(ctx, url, intArg(args, "priority", 5), intArg(args, "depth", 0), meta)
	if err != nil {
		metrics.ObserveEnqueue("invalid")
		return nil, err
	}
	if added {
		metrics.ObserveEnqueue("added")
	} else {
		metrics.ObserveEnqueue("duplicate")
	}
	return map[string]any{"url": url, "added": added}, nil
}

type frontierPopTool struct {
	frontier rfp.Frontier
}

func (t *frontierPopTool) Execute(ctx context.Context, _ map[string]any) (any, error) {
	item, err := t.frontier.Pop(ctx)
	if errors.Is(err, rfp.ErrFrontierEmpty) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return jsonValue(item)
}

type fetchHTMLTool struct {
	fetcher rfp.Fetcher
	timeout time.Duration
}

func (t *fetchHTMLTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	url, err := stringArg(args, "url")
	if err != nil {
		return nil, err
	}
	timeout := t.timeout
	if secs := intArg(args, "timeout_seconds", 0); secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}
	result := t.fetcher.FetchPage(ctx, url, timeout)
	metrics.ObserveFetch(url, result.Status)
	return jsonValue(result)
}

type extractAllTool struct {
	extractor rfp.Extractor
}

func (t *extractAllTool) Execute(_ context.Context, args map[string]any) (any, error) {
	url, err := stringArg(args, "url")
	if err != nil {
		return nil, err
	}
	text, _ := args["text"].(string)
	candidates := t.extractor.ExtractCandidates(url, text)
	metrics.ObserveCandidates(len(candidates))
	if candidates == nil {
		candidates = []rfp.Candidate{}
	}
	return jsonValue(candidates)
}

type downloadBinaryTool struct {
	downloader rfp.Downloader
}

func (t *downloadBinaryTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	url, err := stringArg(args, "url")
	if err != nil {
		return nil, err
	}
	dest, err := stringArg(args, "dest")
	if err != nil {
		return nil, err
	}
	if !t.downloader.DownloadBinary(ctx, url, dest) {
		return nil, fmt.Errorf("download failed for %s", url)
	}
	return map[string]any{"url": url, "dest": dest, "ok": true}, nil
}

type dbInsertTool struct {
	store rfp.RecordStore
}

func (t *dbInsertTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	raw, ok := args["record"]
	if !ok || raw == nil {
		return nil, fmt.Errorf("missing required arg %q", "record")
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode record arg: %w", err)
	}
	var record rfp.NormalizedRecord
	if err := json.Unmarshal(encoded, &record); err != nil {
		return nil, fmt.Errorf("decode record arg: %w", err)
	}
	id, err := t.store.Upsert(ctx, record)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": id}, nil
}

type logTool struct {
	logger *zap.Logger
}

func (t *logTool) Execute(_ context.Context, args map[string]any) (any, error) {
	message, _ := args["message"].(string)
	t.logger.Info("plan log", zap.String("message", message))
	return "ok", nil
}

type noopTool struct{}

func (noopTool) Execute(context.Context, map[string]any) (any, error) {
	return nil, nil
}
