package dashboard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// StatsProvider exposes counters for the dashboard.
type StatsProvider interface {
	Snapshot() map[string]int64
}

// Dashboard serves a status page that polls a JSON stats endpoint.
type Dashboard struct {
	provider StatsProvider
	started  time.Time
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a dashboard over provider.
func New(provider StatsProvider, logger *slog.Logger) *Dashboard {
	return &Dashboard{
		provider: provider,
		started:  time.Now(),
		now:      time.Now,
		logger:   logger.With("component", "dashboard"),
	}
}

// ServePage serves the HTML page.
func (d *Dashboard) ServePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(dashboardHTML)); err != nil {
		d.logger.Debug("dashboard write failed", "error", err)
	}
}

// ServeStats serves the current counters plus uptime as JSON.
func (d *Dashboard) ServeStats(w http.ResponseWriter, r *http.Request) {
	now := d.now()
	stats := map[string]any{
		"timestamp": now.Format(time.RFC3339),
		"uptime":    now.Sub(d.started).Truncate(time.Second).String(),
	}
	if d.provider != nil {
		for k, v := range d.provider.Snapshot() {
			stats[k] = v
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		d.logger.Debug("stats encode failed", "error", err)
	}
}
