package dashboard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type staticStats map[string]int64

func (s staticStats) Snapshot() map[string]int64 { return s }

func TestServeStats(t *testing.T) {
	d := New(staticStats{"crawls_total": 4, "mock_fallbacks": 1}, testLogger)
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	d.started = start
	d.now = func() time.Time { return start.Add(90 * time.Second) }

	rec := httptest.NewRecorder()
	d.ServeStats(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	var got map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["crawls_total"] != float64(4) || got["mock_fallbacks"] != float64(1) {
		t.Errorf("counters = %v", got)
	}
	if got["uptime"] != "1m30s" {
		t.Errorf("uptime = %v, want 1m30s", got["uptime"])
	}
}

func TestServePage(t *testing.T) {
	d := New(nil, testLogger)
	rec := httptest.NewRecorder()
	d.ServePage(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "/api/stats") {
		t.Error("page does not poll the stats endpoint")
	}
}
