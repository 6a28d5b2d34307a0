// Package llm provides the completion-service client used by the planner.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// OllamaConfig controls the completion endpoint.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Ollama implements rfp.Completer against an Ollama-compatible
// /api/generate endpoint. Responses carry no structural guarantee; the
// planner treats them as untrusted text.
type Ollama struct {
	cfg    OllamaConfig
	client *http.Client
	logger *zap.Logger
}

// NewOllama builds a completion client.
func NewOllama(cfg OllamaConfig, logger *zap.Logger) *Ollama {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Ollama{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate requests a completion for prompt within the token budget. It
// returns the completion text whether the endpoint answered with a single
// JSON object or a newline-delimited chunk stream.
func (o *Ollama) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Model:   o.cfg.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: generateOptions{Temperature: 0, NumPredict: maxTokens},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	url := strings.TrimRight(o.cfg.BaseURL, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion API %d: %s", resp.StatusCode, truncate(string(body), 500))
	}

	var single generateResponse
	if err := json.Unmarshal(body, &single); err == nil && single.Response != "" {
		return single.Response, nil
	}

	// Some deployments stream newline-delimited chunks even with
	// stream=false; join their response fields in order.
	var parts []string
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var chunk generateResponse
		if err := json.Unmarshal([]byte(line), &chunk); err == nil && chunk.Response != "" {
			parts = append(parts, chunk.Response)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, ""), nil
	}

	o.logger.Debug("completion response had no response field; returning raw text",
		zap.Int("bytes", len(body)),
	)
	return string(body), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
