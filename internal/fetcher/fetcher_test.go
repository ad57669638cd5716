package fetcher

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/IshaanNene/topicscout/internal/config"
	"github.com/IshaanNene/topicscout/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestFetcher(t *testing.T) *HTTPFetcher {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Crawler.RequestTimeout = 5 * time.Second
	f, err := NewHTTPFetcher(cfg, nil, testLogger())
	if err != nil {
		t.Fatalf("NewHTTPFetcher: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestFetchLightSendsBrowserHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	html, err := f.FetchLight(context.Background(), srv.URL, map[string]string{"Referer": "https://www.baidu.com/"})
	if err != nil {
		t.Fatalf("FetchLight: %v", err)
	}
	if !strings.Contains(html, "ok") {
		t.Errorf("unexpected body: %q", html)
	}
	if !strings.Contains(got.Get("User-Agent"), "Mozilla/5.0") {
		t.Errorf("User-Agent = %q", got.Get("User-Agent"))
	}
	if !strings.HasPrefix(got.Get("Accept-Language"), "zh-CN") {
		t.Errorf("Accept-Language = %q", got.Get("Accept-Language"))
	}
	if got.Get("Referer") != "https://www.baidu.com/" {
		t.Errorf("custom header not applied: %q", got.Get("Referer"))
	}
}

func TestFetchLightHTTPErrors(t *testing.T) {
	tests := []struct {
		status      int
		blocked     bool
		rateLimited bool
	}{
		{http.StatusForbidden, true, false},
		{http.StatusTooManyRequests, false, true},
		{http.StatusInternalServerError, false, false},
		{http.StatusNotFound, false, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "7")
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := newTestFetcher(t).FetchLight(context.Background(), srv.URL, nil)
			var httpErr *types.HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("expected HTTPError, got %v", err)
			}
			if httpErr.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", httpErr.StatusCode, tt.status)
			}
			if httpErr.Blocked() != tt.blocked || httpErr.RateLimited() != tt.rateLimited {
				t.Errorf("blocked=%v rateLimited=%v", httpErr.Blocked(), httpErr.RateLimited())
			}
			if tt.rateLimited && httpErr.RetryAfter != 7*time.Second {
				t.Errorf("RetryAfter = %v, want 7s", httpErr.RetryAfter)
			}
		})
	}
}

func TestFetchLightNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := newTestFetcher(t).FetchLight(context.Background(), addr, nil)
	var netErr *types.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if !types.IsRetryable(err) {
		t.Error("network errors should be retryable")
	}
}

func TestFetchLightBrotli(t *testing.T) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, _ = w.Write([]byte("<html><body>compressed</body></html>"))
	_ = w.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Encoding", "br")
		rw.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = rw.Write(buf.Bytes())
	}))
	defer srv.Close()

	html, err := newTestFetcher(t).FetchLight(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("FetchLight: %v", err)
	}
	if !strings.Contains(html, "compressed") {
		t.Errorf("brotli body not decoded: %q", html)
	}
}

func TestFetchLightDecodesGBK(t *testing.T) {
	gbk, err := simplifiedchinese.GBK.NewEncoder().String("<html><body>人工智能</body></html>")
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=gbk")
		_, _ = w.Write([]byte(gbk))
	}))
	defer srv.Close()

	html, err := newTestFetcher(t).FetchLight(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("FetchLight: %v", err)
	}
	if !strings.Contains(html, "人工智能") {
		t.Errorf("GBK body not decoded: %q", html)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d := parseRetryAfter(""); d != 5*time.Second {
		t.Errorf("empty = %v", d)
	}
	if d := parseRetryAfter("500"); d != 120*time.Second {
		t.Errorf("capped = %v", d)
	}
}

func TestBrowserShutdownWithoutLaunch(t *testing.T) {
	b := NewBrowser(config.DefaultConfig(), nil, testLogger())
	if b.Running() {
		t.Fatal("browser should not start until first Acquire")
	}
	if err := b.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := b.Shutdown(); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	if _, err := b.Acquire(context.Background()); !errors.Is(err, types.ErrBrowserClosed) {
		t.Errorf("Acquire after Shutdown = %v, want ErrBrowserClosed", err)
	}
}

func TestProxyManagerRoundRobin(t *testing.T) {
	pm := NewProxyManager(&config.ProxyConfig{
		Enabled:  true,
		Rotation: "round_robin",
		URLs:     []string{"http://p1:8080", "http://p2:8080", "::bad"},
	}, testLogger())
	if pm.Count() != 2 {
		t.Fatalf("Count = %d, want 2", pm.Count())
	}
	first, second := pm.Next(), pm.Next()
	if first.Host == second.Host {
		t.Errorf("round robin returned %s twice", first.Host)
	}

	if NewProxyManager(&config.ProxyConfig{Enabled: false, URLs: []string{"http://p1"}}, testLogger()) != nil {
		t.Error("disabled proxy config should yield nil manager")
	}
}

func TestAntiDetectionShims(t *testing.T) {
	for _, want := range []string{"webdriver", "window.chrome", "permissions"} {
		if !strings.Contains(antiDetectionJS, want) {
			t.Errorf("anti-detection script missing %q", want)
		}
	}
}
