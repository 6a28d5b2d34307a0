package fetch

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// HTTPDownloader retrieves binary artifacts (tender documents) to local
// paths. It writes only on HTTP 200; any other status or error yields false
// and leaves no partial file behind.
type HTTPDownloader struct {
	client *http.Client
	logger *zap.Logger
}

// NewHTTPDownloader builds a downloader with the given request timeout.
func NewHTTPDownloader(timeout time.Duration, logger *zap.Logger) *HTTPDownloader {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPDownloader{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// DownloadBinary fetches url into dst, reporting success as a boolean.
func (d *HTTPDownloader) DownloadBinary(ctx context.Context, url string, dst string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		d.logger.Debug("download request build failed", zap.String("url", url), zap.Error(err))
		return false
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Debug("download failed", zap.String("url", url), zap.Error(err))
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		d.logger.Debug("download skipped on non-200",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
		)
		return false
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		d.logger.Warn("download dir create failed", zap.String("dst", dst), zap.Error(err))
		return false
	}

	// Stage into a temp file and rename so a failed copy never leaves a
	// partial artifact at dst.
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		d.logger.Warn("download temp create failed", zap.String("dst", dst), zap.Error(err))
		return false
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		d.logger.Debug("download copy failed", zap.String("url", url), zap.Error(err))
		return false
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return false
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		d.logger.Warn("download rename failed", zap.String("dst", dst), zap.Error(err))
		return false
	}
	return true
}
