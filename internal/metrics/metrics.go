// Package metrics exposes Prometheus collectors for the crawler agent.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	frontierEnqueuesTotal *prometheus.CounterVec
	frontierSize          prometheus.Gauge
	fetchesTotal          *prometheus.CounterVec
	candidatesTotal       prometheus.Counter
	recordsPersistedTotal *prometheus.CounterVec
	planRepairsTotal      prometheus.Counter
	planFailuresTotal     *prometheus.CounterVec
	actionRetriesTotal    *prometheus.CounterVec
	cyclesTotal           *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		frontierEnqueuesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_frontier_enqueues_total",
				Help: "Total frontier add calls, labeled by outcome (added, duplicate, invalid).",
			},
			[]string{"outcome"},
		)

		frontierSize = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "agent_frontier_size",
				Help: "Current number of queued frontier items.",
			},
		)

		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_fetches_total",
				Help: "Total page fetches, labeled by site and HTTP status.",
			},
			[]string{"site", "status"},
		)

		candidatesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "agent_candidates_extracted_total",
				Help: "Total candidate records produced by extraction.",
			},
		)

		recordsPersistedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_records_persisted_total",
				Help: "Total normalized records persisted, labeled by destination (archive, store).",
			},
			[]string{"destination"},
		)

		planRepairsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "agent_plan_repairs_total",
				Help: "Total structural repair rounds requested from the planner model.",
			},
		)

		planFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_plan_failures_total",
				Help: "Total fatal planning failures, labeled by stage (parse, schema).",
			},
			[]string{"stage"},
		)

		actionRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_action_retries_total",
				Help: "Total action retry attempts, labeled by tool.",
			},
			[]string{"tool"},
		)

		cyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_cycles_total",
				Help: "Total orchestrator cycles, labeled by outcome (ok, empty, plan_failed).",
			},
			[]string{"outcome"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveEnqueue increments the frontier enqueue counter for the outcome.
func ObserveEnqueue(outcome string) {
	frontierEnqueuesTotal.WithLabelValues(outcome).Inc()
}

// SetFrontierSize records the current frontier depth.
func SetFrontierSize(n int64) {
	frontierSize.Set(float64(n))
}

// ObserveFetch increments the fetch counter. Status 0 marks a failed fetch.
func ObserveFetch(site string, status int) {
	fetchesTotal.WithLabelValues(SanitizeSite(site), strconv.Itoa(status)).Inc()
}

// ObserveCandidates adds to the extracted-candidate counter.
func ObserveCandidates(n int) {
	if n > 0 {
		candidatesTotal.Add(float64(n))
	}
}

// ObserveRecordPersisted increments the persisted-record counter for the
// given destination.
func ObserveRecordPersisted(destination string) {
	recordsPersistedTotal.WithLabelValues(destination).Inc()
}

// ObservePlanRepair increments the repair-round counter.
func ObservePlanRepair() {
	planRepairsTotal.Inc()
}

// ObservePlanFailure increments the fatal planning failure counter.
func ObservePlanFailure(stage string) {
	planFailuresTotal.WithLabelValues(stage).Inc()
}

// ObserveActionRetry increments the retry counter for a tool.
func ObserveActionRetry(tool string) {
	actionRetriesTotal.WithLabelValues(tool).Inc()
}

// ObserveCycle increments the cycle counter for the outcome.
func ObserveCycle(outcome string) {
	cyclesTotal.WithLabelValues(outcome).Inc()
}
