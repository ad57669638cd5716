package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/IshaanNene/topicscout/internal/config"
	"github.com/IshaanNene/topicscout/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestNewWiresServices(t *testing.T) {
	cfg := config.DefaultConfig()
	rulePath := filepath.Join(t.TempDir(), "rules.yaml")
	rule := `- name: example-blog
  site_type: blog
  url_patterns: ['blog\.example\.org/']
  selectors:
    title: [h1.post-title]
`
	if err := os.WriteFile(rulePath, []byte(rule), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Rules.Files = []string{rulePath}

	a, err := New(cfg, testLogger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if _, ok := a.Rules.Get("example-blog"); !ok {
		t.Error("rule file not loaded")
	}
	if got, ok := a.Rules.Match("https://blog.example.org/p/1"); !ok || got.Name != "example-blog" {
		t.Errorf("Match = %v, %v", got, ok)
	}
	if a.BrowserRunning() {
		t.Error("browser started eagerly")
	}
	if a.Server(nil).Handler() == nil {
		t.Error("nil handler")
	}
	if a.Suggester() == nil {
		t.Error("nil suggester")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Crawler.MaxRetries = 0
	if _, err := New(cfg, testLogger); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewMissingRuleFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Rules.Files = []string{filepath.Join(t.TempDir(), "missing.json")}
	if _, err := New(cfg, testLogger); err == nil {
		t.Fatal("expected error")
	}
}

func TestCloseStopsBrowser(t *testing.T) {
	a, err := New(config.DefaultConfig(), testLogger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	opts := a.Crawler.DefaultOptions()
	opts.UseBrowser = true
	_, err = a.Crawler.Crawl(context.Background(), "https://example.com/", opts)
	if !errors.Is(err, types.ErrBrowserClosed) {
		t.Errorf("crawl after close err = %v, want ErrBrowserClosed", err)
	}
}

func TestOpenStorage(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Type = "jsonl"
	cfg.Storage.OutputPath = t.TempDir()
	a, err := New(cfg, testLogger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	store, err := a.OpenStorage(context.Background())
	if err != nil {
		t.Fatalf("OpenStorage: %v", err)
	}
	if err := store.Store(context.Background(), []*types.CrawlResult{{ID: "a", URL: "https://a.example"}}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	_ = store.Close()
	if a.Metrics.ResultsStored.Load() != 1 {
		t.Errorf("results stored = %d", a.Metrics.ResultsStored.Load())
	}
}
