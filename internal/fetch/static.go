package fetch

import (
	"context"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
)

// StaticConfig controls the non-rendered collector.
type StaticConfig struct {
	UserAgent string
}

// Static fetches pages with a plain HTTP collector. It is the fallback for
// environments without a browser; JavaScript-driven pages come back
// unrendered. The failure contract matches Headless: zero-status results,
// no errors.
type Static struct {
	cfg    StaticConfig
	base   *colly.Collector
	logger *zap.Logger
}

// NewStatic builds a Static fetcher.
func NewStatic(cfg StaticConfig, logger *zap.Logger) *Static {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	return &Static{cfg: cfg, base: c, logger: logger}
}

// FetchPage executes a single HTTP GET using Colly.
func (f *Static) FetchPage(ctx context.Context, url string, timeout time.Duration) rfp.FetchResult {
	result := rfp.FetchResult{URL: url, FinalURL: url, Status: 0}
	if ctx.Err() != nil {
		return result
	}

	collector := f.base.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	collector.IgnoreRobotsTxt = true

	collector.OnResponse(func(r *colly.Response) {
		result = rfp.FetchResult{
			URL:         url,
			FinalURL:    r.Request.URL.String(),
			Status:      r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			HTML:        string(r.Body),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		f.logger.Debug("static fetch failed", zap.String("url", url), zap.Error(err))
		if r != nil && r.StatusCode > 0 {
			result.Status = r.StatusCode
			result.FinalURL = r.Request.URL.String()
		}
	})

	if err := collector.Visit(url); err != nil {
		f.logger.Debug("static visit failed", zap.String("url", url), zap.Error(err))
	}
	collector.Wait()
	return result
}
