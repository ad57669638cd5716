package rules

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/IshaanNene/topicscout/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func defaultRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewDefaultRegistry(testLogger())
	if err != nil {
		t.Fatalf("NewDefaultRegistry: %v", err)
	}
	return r
}

func TestDefaultRulesLoad(t *testing.T) {
	r := defaultRegistry(t)
	if r.Len() != len(DefaultRules()) {
		t.Errorf("Len = %d, want %d", r.Len(), len(DefaultRules()))
	}
	if got := r.All()[0].Name; got != "news" {
		t.Errorf("first rule = %q, want insertion order", got)
	}
}

func TestForSiteTypeFallsBackToNews(t *testing.T) {
	r := defaultRegistry(t)
	tests := []struct {
		st   types.SiteType
		want string
	}{
		{types.SiteEncyclopedia, "encyclopedia"},
		{types.SiteGov, "gov"},
		{types.SiteBlog, "blog"},
		{types.SiteGeneral, "news"},
		{types.SiteSocial, "news"},
	}
	for _, tt := range tests {
		if got := r.ForSiteType(tt.st).Name; got != tt.want {
			t.Errorf("ForSiteType(%s) = %q, want %q", tt.st, got, tt.want)
		}
	}

	empty := NewRegistry(testLogger())
	if rule := empty.ForSiteType(types.SiteBlog); rule == nil || len(rule.Selectors.Title) == 0 {
		t.Error("empty registry should still return a usable rule")
	}
}

func TestMatchByURLPattern(t *testing.T) {
	r := defaultRegistry(t)
	tests := []struct {
		url  string
		want string
		ok   bool
	}{
		{"https://m.weibo.cn/detail/123", "weibo", true},
		{"https://www.ZHIHU.com/question/1", "zhihu", true},
		{"https://www.douyin.com/video/1", "douyin", true},
		{"https://example.com/news/1", "", false},
	}
	for _, tt := range tests {
		rule, ok := r.Match(tt.url)
		if ok != tt.ok || (ok && rule.Name != tt.want) {
			t.Errorf("Match(%q) = %v/%v, want %q/%v", tt.url, rule, ok, tt.want, tt.ok)
		}
	}

	if got := r.Resolve("https://weibo.com/1/2", types.SiteSocial).Name; got != "weibo" {
		t.Errorf("Resolve should prefer URL match, got %q", got)
	}
	if got := r.Resolve("https://example.gov.cn/a", types.SiteGov).Name; got != "gov" {
		t.Errorf("Resolve should fall back to site type, got %q", got)
	}
}

func TestAddReplaceRemove(t *testing.T) {
	r := NewRegistry(testLogger())
	rule := Rule{Name: "custom", SiteType: types.SiteBlog, URLPatterns: []string{`example\.org/posts`}}
	if err := r.Add(rule); err != nil {
		t.Fatalf("Add: %v", err)
	}

	rule.Description = "updated"
	if err := r.Add(rule); err != nil {
		t.Fatalf("Add replace: %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("replace should not duplicate, Len = %d", r.Len())
	}
	if got, _ := r.Get("custom"); got.Description != "updated" {
		t.Errorf("Description = %q", got.Description)
	}
	if len(r.BySiteType(types.SiteBlog)) != 1 {
		t.Error("BySiteType should find the rule")
	}

	if !r.Remove("custom") || r.Remove("custom") {
		t.Error("Remove should succeed once")
	}
	if _, ok := r.Match("https://example.org/posts/1"); ok {
		t.Error("removed rule still matches")
	}
}

func TestAddRejectsInvalid(t *testing.T) {
	r := NewRegistry(testLogger())
	bad := []Rule{
		{SiteType: types.SiteNews},
		{Name: "x"},
		{Name: "x", SiteType: "weird"},
		{Name: "x", SiteType: types.SiteNews, URLPatterns: []string{"("}},
		{Name: "x", SiteType: types.SiteNews, Preprocess: Preprocess{Replace: []Replacement{{Pattern: "["}}}},
	}
	for i, rule := range bad {
		if err := r.Add(rule); !errors.Is(err, types.ErrInvalidRule) {
			t.Errorf("case %d: err = %v, want ErrInvalidRule", i, err)
		}
	}
	if r.Len() != 0 {
		t.Errorf("invalid rules were stored: %d", r.Len())
	}
}

func TestExportLoadJSONRoundTrip(t *testing.T) {
	src := defaultRegistry(t)
	var buf bytes.Buffer
	if err := src.ExportJSON(&buf); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	dst := NewRegistry(testLogger())
	n, err := dst.LoadJSON(&buf)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if n != src.Len() || dst.Len() != src.Len() {
		t.Errorf("loaded %d rules, want %d", n, src.Len())
	}
	weibo, ok := dst.Match("https://weibo.com/u/1")
	if !ok || !weibo.Options.UseBrowser || weibo.Options.Delay().Milliseconds() != 1000 {
		t.Errorf("weibo options lost in round trip: %+v", weibo)
	}
}

func TestLoadFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	data := `
- name: example-forum
  site_type: social
  url_patterns: ['forum\.example\.com']
  selectors:
    title: [".thread-title"]
    content: [".post-body"]
  options:
    use_browser: true
    delay_ms: 500
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewRegistry(testLogger())
	if _, err := r.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	rule, ok := r.Match("https://forum.example.com/t/1")
	if !ok || rule.Selectors.Title[0] != ".thread-title" || rule.Options.DelayMS != 500 {
		t.Errorf("unexpected rule: %+v", rule)
	}

	if _, err := r.LoadFile(filepath.Join(t.TempDir(), "rules.toml")); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestApplyReplacements(t *testing.T) {
	r := defaultRegistry(t)
	enc := r.ForSiteType(types.SiteEncyclopedia)
	if got := enc.ApplyReplacements("人工智能[1]是一门学科[2-3]"); got != "人工智能是一门学科" {
		t.Errorf("ApplyReplacements = %q", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := defaultRegistry(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = r.Resolve("https://weibo.com/x", types.SiteSocial)
		}()
		go func(i int) {
			defer wg.Done()
			name := "tmp" + strings.Repeat("x", i)
			_ = r.Add(Rule{Name: name, SiteType: types.SiteNews, URLPatterns: []string{"tmp"}})
			r.Remove(name)
		}(i)
	}
	wg.Wait()
}
