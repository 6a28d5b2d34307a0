package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	require.NotPanics(t, Init)

	ObserveEnqueue("added")
	ObserveFetch("https://tenders.example.gov/page", 200)
	ObserveFetch("not a url", 0)
	ObserveCandidates(3)
	ObserveRecordPersisted("archive")
	ObservePlanRepair()
	ObservePlanFailure("schema")
	ObserveActionRetry("fetcher.fetch_html")
	ObserveCycle("ok")
	SetFrontierSize(7)
}

func TestSanitizeSite(t *testing.T) {
	t.Parallel()

	require.Equal(t, "tenders.example.gov", SanitizeSite("https://Tenders.Example.Gov/notice/41"))
	require.Equal(t, "example.com", SanitizeSite("example.com/path"))
	require.Equal(t, "unknown", SanitizeSite("://bad"))
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	ObserveCycle("ok")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "agent_cycles_total")
}
