package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/AaksharGarg/autorfp-crawler/internal/metrics"
	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
)

type stubFrontier struct {
	size int64
	err  error
}

func (f *stubFrontier) Add(context.Context, string, int, int, map[string]string) (bool, error) {
	return false, nil
}

func (f *stubFrontier) Pop(context.Context) (rfp.FrontierItem, error) {
	return rfp.FrontierItem{}, rfp.ErrFrontierEmpty
}

func (f *stubFrontier) Size(context.Context) (int64, error) {
	return f.size, f.err
}

type stubTools struct{}

func (stubTools) Names() []string { return []string{"log", "noop"} }

func newTestServer(t *testing.T, frontier rfp.Frontier) *Server {
	t.Helper()
	metrics.Init()
	return NewServer(frontier, stubTools{}, zaptest.NewLogger(t))
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubFrontier{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestFrontierSize(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubFrontier{size: 42})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/frontier/size", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, int64(42), payload["size"])
}

func TestFrontierSizeError(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubFrontier{err: errors.New("redis down")})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/frontier/size", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestToolNames(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubFrontier{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tools", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "noop")
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubFrontier{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}
