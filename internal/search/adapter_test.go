package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/IshaanNene/topicscout/internal/config"
	"github.com/IshaanNene/topicscout/internal/fetcher"
	"github.com/IshaanNene/topicscout/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// padding keeps test pages above the minimum result-page size.
var padding = "<!--" + strings.Repeat("x", minPageSize) + "-->"

type pageFetcher struct {
	body string
	err  error
	urls []string
}

func (f *pageFetcher) FetchLight(_ context.Context, u string, _ map[string]string) (string, error) {
	f.urls = append(f.urls, u)
	return f.body, f.err
}

const bingPage = `<html><body><ol id="b_results">
<li class="b_algo"><h2><a href="https://www.bing.com/ck/a?!&&p=abc&u=a1aHR0cHM6Ly9yZWFsLmV4YW1wbGUvYQ&ntb=1">Real <strong>Result</strong> A</a></h2>
  <div class="b_caption"><p>Snippet for A</p></div></li>
<li class="b_algo"><h2><a href="https://direct.example/b">Result B</a></h2>
  <div class="b_caption"><p>Snippet for B</p></div></li>
<li class="b_algo"><h2><a href="https://notitle.example/"></a></h2></li>
<li class="b_algo"><h2><a href="/relative-only">   </a></h2></li>
<li class="b_algo"><h2><a href="https://ads.example/">Sponsored offer</a></h2></li>
<li class="b_algo"><h2><a href="javascript:void(0)">Script link</a></h2></li>
</ol>` + "%s" + `</body></html>`

func TestAdapterBing(t *testing.T) {
	f := &pageFetcher{body: fmt.Sprintf(bingPage, padding)}
	a := NewAdapter(f, testLogger)

	got, err := a.Search(context.Background(), "golang", "bing", 10, false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(got), got)
	}
	if got[0].URL != "https://real.example/a" {
		t.Errorf("tracking link not decoded: %q", got[0].URL)
	}
	if got[0].Title != "Real Result A" || got[0].Snippet != "Snippet for A" || got[0].Engine != "Bing" {
		t.Errorf("unexpected first result: %+v", got[0])
	}
	if got[1].URL != "https://direct.example/b" {
		t.Errorf("second url = %q", got[1].URL)
	}

	q, _ := url.Parse(f.urls[0])
	if q.Query().Get("q") != "golang" || q.Query().Get("count") != "10" || q.Query().Get("setlang") != "zh-CN" {
		t.Errorf("unexpected query url %q", f.urls[0])
	}
}

func TestAdapterMaxResults(t *testing.T) {
	f := &pageFetcher{body: fmt.Sprintf(bingPage, padding)}
	got, _ := NewAdapter(f, testLogger).Search(context.Background(), "golang", "bing", 1, false)
	if len(got) != 1 {
		t.Errorf("expected 1 result, got %d", len(got))
	}
}

func TestAdapterFallbackSelector(t *testing.T) {
	page := `<html><body>
<div class="b_result"><h2><a href="https://fallback.example/1">Fallback One</a></h2><p>first</p></div>
<div class="b_result"><h3><a href="https://fallback.example/2">Fallback Two</a></h3><span class="snippet">second</span></div>
` + padding + `</body></html>`
	got, err := NewAdapter(&pageFetcher{body: page}, testLogger).Search(context.Background(), "k", "bing", 10, false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].Title != "Fallback One" || got[1].Snippet != "second" {
		t.Errorf("unexpected fallback results: %+v", got)
	}
}

func TestAdapterDuckDuckGoRedirect(t *testing.T) {
	page := `<html><body><div class="result">
<a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fdest.example%2Fpath%3Fx%3D1&rut=abc">Dest</a>
<a class="result__snippet">About dest</a></div>` + padding + `</body></html>`
	f := &pageFetcher{body: page}
	got, err := NewAdapter(f, testLogger).Search(context.Background(), "k", "duckduckgo", 5, false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].URL != "https://dest.example/path?x=1" {
		t.Fatalf("unexpected results: %+v", got)
	}
	if strings.Contains(f.urls[0], "count=") {
		t.Errorf("duckduckgo has no count parameter: %q", f.urls[0])
	}
}

func TestAdapterDegradesToEmpty(t *testing.T) {
	tests := []struct {
		name string
		f    *pageFetcher
	}{
		{"fetch error", &pageFetcher{err: &types.HTTPError{URL: "u", StatusCode: 403}}},
		{"short page", &pageFetcher{body: "<html><body>blocked</body></html>"}},
		{"no results", &pageFetcher{body: "<html><body>" + padding + "</body></html>"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewAdapter(tt.f, testLogger).Search(context.Background(), "k", "baidu", 10, false)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got == nil || len(got) != 0 {
				t.Errorf("expected empty non-nil slice, got %#v", got)
			}
		})
	}
}

func TestAdapterUnknownEngine(t *testing.T) {
	_, err := NewAdapter(&pageFetcher{}, testLogger).Search(context.Background(), "k", "altavista", 10, false)
	if !errors.Is(err, types.ErrUnsupportedEngine) {
		t.Errorf("expected ErrUnsupportedEngine, got %v", err)
	}
}

func TestQueryURL(t *testing.T) {
	engines := DefaultEngines()
	u, _ := url.Parse(engines["baidu"].QueryURL("人工智能", 7))
	if u.Host != "www.baidu.com" || u.Query().Get("wd") != "人工智能" || u.Query().Get("rn") != "7" {
		t.Errorf("baidu url = %s", u)
	}
	g, _ := url.Parse(engines["google"].QueryURL("a b", 3))
	if g.Query().Get("q") != "a b" || g.Query().Get("num") != "3" {
		t.Errorf("google url = %s", g)
	}
	if names := EngineNames(); len(names) != 4 || names[0] != "baidu" {
		t.Errorf("EngineNames = %v", names)
	}
}

func TestAdapterOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("wd") != "golang" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><body><div id="content_left">
<div class="c-container"><h3><a href="https://www.baidu.com/link?url=OPAQUE123">Go 语言</a></h3><div class="c-abstract">Go 是一门编程语言</div></div>
</div>%s</body></html>`, padding)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	light, err := fetcher.NewHTTPFetcher(cfg, nil, testLogger)
	if err != nil {
		t.Fatalf("NewHTTPFetcher: %v", err)
	}
	defer light.Close()

	engines := DefaultEngines()
	baidu := engines["baidu"]
	baidu.BaseURL = srv.URL + "/s"
	engines["baidu"] = baidu

	got, err := NewAdapter(light, testLogger, WithEngines(engines)).Search(context.Background(), "golang", "baidu", 10, false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %+v", got)
	}
	// Opaque baidu wrappers are left for the crawler's redirect resolver.
	if got[0].URL != "https://www.baidu.com/link?url=OPAQUE123" || got[0].Snippet != "Go 是一门编程语言" {
		t.Errorf("unexpected result: %+v", got[0])
	}
}

func TestRelevanceScore(t *testing.T) {
	tests := []struct {
		title, keyword string
		want           float64
	}{
		{"人工智能", "人工智能", 100},
		{"人工智能的未来", "人工智能", 80},
		{"机器学习", "人工智能", 0},
		{"Go Concurrency Patterns", "go concurrency", 80},
		{"Concurrency in Rust", "go concurrency", 30},
		{"", "k", 0},
	}
	for _, tt := range tests {
		if got := RelevanceScore(tt.title, tt.keyword); got != tt.want {
			t.Errorf("RelevanceScore(%q, %q) = %v, want %v", tt.title, tt.keyword, got, tt.want)
		}
	}
}
