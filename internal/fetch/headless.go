package fetch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
)

// HeadlessConfig controls the behavior of the rendered fetcher.
type HeadlessConfig struct {
	MaxParallel int
	UserAgent   string
}

// Headless fetches pages through headless Chrome so JavaScript-driven
// tender portals resolve to their rendered DOM. Navigation failures and
// timeouts come back as zero-status results, never errors, so the caller's
// retry policy governs recovery.
type Headless struct {
	cfg         HeadlessConfig
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// NewHeadless creates a rendered fetcher backed by chromedp.
func NewHeadless(cfg HeadlessConfig, logger *zap.Logger) (*Headless, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Headless{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}, nil
}

// Close cancels the allocator context.
func (f *Headless) Close() {
	f.allocCancel()
}

// FetchPage navigates with a headless browser and returns the rendered DOM.
func (f *Headless) FetchPage(ctx context.Context, url string, timeout time.Duration) rfp.FetchResult {
	failed := rfp.FetchResult{URL: url, FinalURL: url, Status: 0}

	if err := f.acquire(ctx); err != nil {
		return failed
	}
	defer f.release()

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	taskCtx, cancel := context.WithTimeout(taskCtx, timeout)
	defer cancel()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		f.networkSetupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		f.logger.Debug("headless fetch failed", zap.String("url", url), zap.Error(err))
		return failed
	}

	status, contentType, responseURL := meta.snapshotWithFallbacks(url, finalURL)
	return rfp.FetchResult{
		URL:         url,
		FinalURL:    responseURL,
		Status:      status,
		ContentType: contentType,
		HTML:        html,
	}
}

func (f *Headless) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (f *Headless) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (f *Headless) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}

// responseMeta captures the document response (status, content type, URL)
// observed on the CDP event stream during navigation.
type responseMeta struct {
	mu          sync.RWMutex
	status      int
	contentType string
	url         string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	contentType := ""
	for key, value := range resp.Response.Headers {
		if http.CanonicalHeaderKey(key) == "Content-Type" {
			contentType = fmt.Sprint(value)
			break
		}
	}
	m.mu.Lock()
	m.status = int(resp.Response.Status)
	m.contentType = contentType
	m.url = resp.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, string, string) {
	m.mu.RLock()
	status, contentType, url := m.status, m.contentType, m.url
	m.mu.RUnlock()

	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}
	if status == 0 {
		// Navigation succeeded but no document event was observed.
		status = http.StatusOK
	}
	return status, contentType, url
}
