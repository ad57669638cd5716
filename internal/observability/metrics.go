package observability

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/IshaanNene/topicscout/internal/types"
)

// Metrics tracks operational counters for crawling and searching. All
// Record methods are safe on a nil receiver so components can run without
// metrics wired in.
type Metrics struct {
	// Crawl metrics
	CrawlsTotal   atomic.Int64
	CrawlsFailed  atomic.Int64
	CrawlAttempts atomic.Int64

	// Fetch metrics
	FetchesLight    atomic.Int64
	FetchesRendered atomic.Int64
	FetchErrors     atomic.Int64
	Responses4xx    atomic.Int64
	Responses5xx    atomic.Int64
	Blocked         atomic.Int64
	RateLimited     atomic.Int64
	BytesDownloaded atomic.Int64

	// Redirect metrics
	RedirectsResolved atomic.Int64

	// Search metrics
	SearchesTotal  atomic.Int64
	SearchResults  atomic.Int64
	EngineFailures atomic.Int64

	// Platform metrics
	PlatformQueries  atomic.Int64
	PlatformFailures atomic.Int64
	MockFallbacks    atomic.Int64

	// Storage metrics
	ResultsStored atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// RecordCrawl counts one finished crawl.
func (m *Metrics) RecordCrawl(err error) {
	if m == nil {
		return
	}
	m.CrawlsTotal.Add(1)
	if err != nil {
		m.CrawlsFailed.Add(1)
	}
}

// RecordFetch counts one fetch attempt and classifies its failure.
func (m *Metrics) RecordFetch(rendered bool, bytes int, err error) {
	if m == nil {
		return
	}
	m.CrawlAttempts.Add(1)
	if rendered {
		m.FetchesRendered.Add(1)
	} else {
		m.FetchesLight.Add(1)
	}
	m.BytesDownloaded.Add(int64(bytes))
	if err == nil {
		return
	}
	m.FetchErrors.Add(1)

	var httpErr *types.HTTPError
	if !errors.As(err, &httpErr) {
		return
	}
	switch {
	case httpErr.Blocked():
		m.Blocked.Add(1)
	case httpErr.RateLimited():
		m.RateLimited.Add(1)
	}
	switch {
	case httpErr.StatusCode >= 500:
		m.Responses5xx.Add(1)
	case httpErr.StatusCode >= 400:
		m.Responses4xx.Add(1)
	}
}

// RecordRedirect counts a wrapper URL that resolved to a new target.
func (m *Metrics) RecordRedirect() {
	if m == nil {
		return
	}
	m.RedirectsResolved.Add(1)
}

// RecordSearch counts one engine query and its result count.
func (m *Metrics) RecordSearch(results int, failed bool) {
	if m == nil {
		return
	}
	m.SearchesTotal.Add(1)
	m.SearchResults.Add(int64(results))
	if failed {
		m.EngineFailures.Add(1)
	}
}

// RecordPlatform counts one platform query.
func (m *Metrics) RecordPlatform(failed bool) {
	if m == nil {
		return
	}
	m.PlatformQueries.Add(1)
	if failed {
		m.PlatformFailures.Add(1)
	}
}

// RecordMockFallback counts a platform query answered with mock data.
func (m *Metrics) RecordMockFallback() {
	if m == nil {
		return
	}
	m.MockFallbacks.Add(1)
}

// RecordStored counts results written by a storage backend.
func (m *Metrics) RecordStored(n int) {
	if m == nil {
		return
	}
	m.ResultsStored.Add(int64(n))
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"topicscout_crawls_total", "Total page crawls", m.CrawlsTotal.Load()},
		{"topicscout_crawls_failed_total", "Total crawls that exhausted their retries", m.CrawlsFailed.Load()},
		{"topicscout_crawl_attempts_total", "Total fetch attempts made by crawls", m.CrawlAttempts.Load()},
		{"topicscout_fetches_light_total", "Total plain HTTP fetches", m.FetchesLight.Load()},
		{"topicscout_fetches_rendered_total", "Total headless browser fetches", m.FetchesRendered.Load()},
		{"topicscout_fetch_errors_total", "Total failed fetches", m.FetchErrors.Load()},
		{"topicscout_responses_4xx_total", "Total 4xx responses", m.Responses4xx.Load()},
		{"topicscout_responses_5xx_total", "Total 5xx responses", m.Responses5xx.Load()},
		{"topicscout_blocked_total", "Total 403 responses", m.Blocked.Load()},
		{"topicscout_rate_limited_total", "Total 429 responses", m.RateLimited.Load()},
		{"topicscout_bytes_downloaded_total", "Total page bytes downloaded", m.BytesDownloaded.Load()},
		{"topicscout_redirects_resolved_total", "Total wrapper URLs resolved", m.RedirectsResolved.Load()},
		{"topicscout_searches_total", "Total engine queries", m.SearchesTotal.Load()},
		{"topicscout_search_results_total", "Total engine results parsed", m.SearchResults.Load()},
		{"topicscout_engine_failures_total", "Total engine queries that failed", m.EngineFailures.Load()},
		{"topicscout_platform_queries_total", "Total platform queries", m.PlatformQueries.Load()},
		{"topicscout_platform_failures_total", "Total platform queries that failed", m.PlatformFailures.Load()},
		{"topicscout_mock_fallbacks_total", "Total platform queries answered with mock data", m.MockFallbacks.Load()},
		{"topicscout_results_stored_total", "Total results stored", m.ResultsStored.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"crawls_total":       m.CrawlsTotal.Load(),
		"crawls_failed":      m.CrawlsFailed.Load(),
		"crawl_attempts":     m.CrawlAttempts.Load(),
		"fetches_light":      m.FetchesLight.Load(),
		"fetches_rendered":   m.FetchesRendered.Load(),
		"fetch_errors":       m.FetchErrors.Load(),
		"blocked":            m.Blocked.Load(),
		"rate_limited":       m.RateLimited.Load(),
		"bytes_downloaded":   m.BytesDownloaded.Load(),
		"redirects_resolved": m.RedirectsResolved.Load(),
		"searches_total":     m.SearchesTotal.Load(),
		"search_results":     m.SearchResults.Load(),
		"engine_failures":    m.EngineFailures.Load(),
		"platform_queries":   m.PlatformQueries.Load(),
		"platform_failures":  m.PlatformFailures.Load(),
		"mock_fallbacks":     m.MockFallbacks.Load(),
		"results_stored":     m.ResultsStored.Load(),
	}
}

// LogSummary writes the non-zero counters at info level.
func (m *Metrics) LogSummary() {
	if m == nil {
		return
	}
	args := make([]any, 0, 32)
	for k, v := range m.Snapshot() {
		if v != 0 {
			args = append(args, k, v)
		}
	}
	m.logger.Info("metrics summary", args...)
}
