package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/IshaanNene/topicscout/internal/config"
	"github.com/IshaanNene/topicscout/internal/fetcher"
	"github.com/IshaanNene/topicscout/internal/observability"
	"github.com/IshaanNene/topicscout/internal/search"
	"github.com/IshaanNene/topicscout/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeWeb struct {
	available int
	err       error
	asked     int
}

func (f *fakeWeb) SearchWeb(_ context.Context, keyword string, opts search.Options) ([]*types.CrawlResult, error) {
	f.asked = opts.MaxResults
	if f.err != nil {
		return nil, f.err
	}
	n := min(f.available, opts.MaxResults)
	out := make([]*types.CrawlResult, n)
	for i := range out {
		out[i] = numbered(types.PlatformWeb, i)
	}
	return out, nil
}

type fakeSearcher struct {
	name  string
	n     int
	err   error
	panic bool
	asked int
}

func (f *fakeSearcher) Name() string { return f.name }

func (f *fakeSearcher) Search(_ context.Context, _ string, limit int) ([]*types.CrawlResult, error) {
	f.asked = limit
	if f.panic {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*types.CrawlResult, min(f.n, limit))
	for i := range out {
		out[i] = numbered(f.name, i)
	}
	return out, nil
}

func numbered(platform string, i int) *types.CrawlResult {
	u := fmt.Sprintf("https://%s.example/%d", platform, i)
	return &types.CrawlResult{ID: types.ResultID(u), Title: fmt.Sprintf("%s %d", platform, i), URL: u, Platform: platform}
}

func newTestService(web WebSearcher, opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(web, search.Options{Engines: []string{"baidu"}}, testLogger, opts...)
}

func TestSearchContentIsolatesPlatformFailure(t *testing.T) {
	for _, tc := range []struct {
		name  string
		zhihu *fakeSearcher
	}{
		{"error", &fakeSearcher{name: Zhihu, err: errors.New("api down")}},
		{"panic", &fakeSearcher{name: Zhihu, panic: true}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			metrics := observability.NewMetrics(testLogger)
			weibo := &fakeSearcher{name: Weibo, n: 3}
			svc := newTestService(&fakeWeb{}, WithSearcher(tc.zhihu), WithSearcher(weibo), WithMetrics(metrics))

			got, err := svc.SearchContent(context.Background(), "AI", []string{Zhihu, Weibo}, 10, 0)
			if err != nil {
				t.Fatalf("SearchContent: %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("got %d results, want 3", len(got))
			}
			for _, r := range got {
				if r.Platform != Weibo {
					t.Errorf("platform = %q, want weibo", r.Platform)
				}
			}
			if metrics.PlatformQueries.Load() != 2 || metrics.PlatformFailures.Load() != 1 {
				t.Errorf("queries=%d failures=%d", metrics.PlatformQueries.Load(), metrics.PlatformFailures.Load())
			}
		})
	}
}

func TestSearchContentPaginatesWeb(t *testing.T) {
	web := &fakeWeb{available: 25}
	svc := newTestService(web)

	got, err := svc.SearchContent(context.Background(), "golang", []string{Web}, 10, 10)
	if err != nil {
		t.Fatalf("SearchContent: %v", err)
	}
	if web.asked != 20 {
		t.Errorf("web asked for %d results, want 20", web.asked)
	}
	if len(got) != 10 {
		t.Fatalf("got %d results, want 10", len(got))
	}
	for i, r := range got {
		if want := numbered(types.PlatformWeb, i+10).URL; r.URL != want {
			t.Errorf("result %d = %s, want %s", i, r.URL, want)
		}
	}
}

func TestSearchContentMergesInRequestOrder(t *testing.T) {
	weibo := &fakeSearcher{name: Weibo, n: 10}
	zhihu := &fakeSearcher{name: Zhihu, n: 10}
	svc := newTestService(&fakeWeb{available: 2}, WithSearcher(weibo), WithSearcher(zhihu))

	got, err := svc.SearchContent(context.Background(), "AI", []string{Zhihu, Web, Weibo, Zhihu}, 5, 0)
	if err != nil {
		t.Fatalf("SearchContent: %v", err)
	}
	if zhihu.asked != 3 || weibo.asked != 3 {
		t.Errorf("per-platform limits zhihu=%d weibo=%d, want 3", zhihu.asked, weibo.asked)
	}
	want := []string{Web, Web, Zhihu, Zhihu, Zhihu}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i, r := range got {
		if r.Platform != want[i] {
			t.Errorf("result %d platform = %q, want %q", i, r.Platform, want[i])
		}
	}
}

func TestSearchContentUnsupportedPlatform(t *testing.T) {
	metrics := observability.NewMetrics(testLogger)
	svc := newTestService(&fakeWeb{}, WithMetrics(metrics))

	got, err := svc.SearchContent(context.Background(), "AI", []string{Bilibili}, 10, 0)
	if err != nil {
		t.Fatalf("SearchContent: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty slice", got)
	}
	if metrics.PlatformFailures.Load() != 1 {
		t.Errorf("platform failures = %d, want 1", metrics.PlatformFailures.Load())
	}
}

func TestSearchContentWebFailure(t *testing.T) {
	svc := newTestService(&fakeWeb{err: errors.New("no engines")}, WithSearcher(&fakeSearcher{name: Weibo, n: 2}))

	got, err := svc.SearchContent(context.Background(), "AI", []string{Web, Weibo}, 10, 0)
	if err != nil {
		t.Fatalf("SearchContent: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d results, want 2", len(got))
	}
}

func TestSearchContentEmptyKeyword(t *testing.T) {
	svc := newTestService(&fakeWeb{})
	if _, err := svc.SearchContent(context.Background(), "  ", nil, 10, 0); !errors.Is(err, types.ErrEmptyKeyword) {
		t.Errorf("err = %v, want ErrEmptyKeyword", err)
	}
}

func TestSearchPage(t *testing.T) {
	svc := newTestService(&fakeWeb{available: 25})

	page, err := svc.SearchPage(context.Background(), " golang ", nil, 2, 10)
	if err != nil {
		t.Fatalf("SearchPage: %v", err)
	}
	if page.Query != "golang" {
		t.Errorf("query = %q", page.Query)
	}
	if len(page.Results) != 10 {
		t.Errorf("results = %d, want 10", len(page.Results))
	}
	if page.Total != 30 {
		t.Errorf("total = %d, want 30", page.Total)
	}
	if len(page.Sources) != 1 || page.Sources[0] != Web {
		t.Errorf("sources = %v", page.Sources)
	}
	if page.SearchTime != fixedNow.UnixMilli() {
		t.Errorf("search time = %d", page.SearchTime)
	}
}

func TestIsKnown(t *testing.T) {
	for _, name := range []string{Web, Weibo, Douyin, Xiaohongshu, Zhihu, Bilibili} {
		if !IsKnown(name) {
			t.Errorf("IsKnown(%q) = false", name)
		}
	}
	if IsKnown("myspace") {
		t.Error("IsKnown(myspace) = true")
	}
}

func newTestFetcher(t *testing.T) *fetcher.HTTPFetcher {
	t.Helper()
	f, err := fetcher.NewHTTPFetcher(config.DefaultConfig(), nil, testLogger)
	if err != nil {
		t.Fatalf("NewHTTPFetcher: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func platformConfig(mock bool) *config.PlatformConfig {
	cfg := config.DefaultConfig().Platform
	cfg.MockFallback = mock
	return &cfg
}

func TestAPISearchersDecodeResponses(t *testing.T) {
	tests := []struct {
		name     string
		build    func(fetcher.LightFetcher, *config.PlatformConfig, *slog.Logger, ...APIOption) *APISearcher
		path     string
		param    string
		body     string
		wantURL  string
		wantText string
		wantAuth string
		likes    int64
	}{
		{
			name:  "weibo",
			build: NewWeiboSearcher,
			path:  "/container/getIndex",
			param: "containerid",
			body: `{"ok":1,"data":{"cards":[{"card_type":11},{"mblog":{"id":"4990","bid":"Nx1",
				"text":"<a href=\"/n/x\">@x</a> 人工智能 正在改变世界","created_at":"Sat Mar 01 10:00:00 +0800 2026",
				"user":{"id":123,"screen_name":"科技博主"},"attitudes_count":"1.2万","comments_count":5,"reposts_count":2}}]}}`,
			wantURL:  "https://weibo.com/123/Nx1",
			wantText: "@x 人工智能 正在改变世界",
			wantAuth: "科技博主",
			likes:    12000,
		},
		{
			name:  "douyin",
			build: NewDouyinSearcher,
			path:  "/search/item/",
			param: "keyword",
			body: `{"status_code":0,"aweme_list":[{"aweme_id":"7001","desc":"AI 剪辑教程","create_time":1767225600,
				"author":{"nickname":"剪辑师"},"video":{"cover":{"url_list":["https://p.example/c.jpg"]}},
				"statistics":{"digg_count":300,"comment_count":4,"share_count":1}}]}`,
			wantURL:  "https://www.douyin.com/video/7001",
			wantText: "AI 剪辑教程",
			wantAuth: "剪辑师",
			likes:    300,
		},
		{
			name:  "xiaohongshu",
			build: NewXiaohongshuSearcher,
			path:  "/weixin/v1/search/notes",
			param: "keyword",
			body: `{"success":true,"data":{"notes":[{"id":"abc","title":"AI 笔记","desc":"正文",
				"time":"2026-03-01","user":{"nickname":"博主"},"liked_count":42}]}}`,
			wantURL:  "https://www.xiaohongshu.com/explore/abc",
			wantText: "正文",
			wantAuth: "博主",
			likes:    42,
		},
		{
			name:  "zhihu",
			build: NewZhihuSearcher,
			path:  "/search_v3",
			param: "q",
			body: `{"data":[{"type":"search_result","object":{"token":"555","title":"<em>AI</em> 会取代程序员吗",
				"excerpt":"不会<em>完全</em>取代","author":{"name":"答主"},"created_time":1767225600,"voteup_count":9}}]}`,
			wantURL:  "https://www.zhihu.com/question/555",
			wantText: "不会完全取代",
			wantAuth: "答主",
			likes:    9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath, gotParam, gotReferer string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotParam = r.URL.Query().Get(tt.param)
				gotReferer = r.Header.Get("Referer")
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			s := tt.build(newTestFetcher(t), platformConfig(false), testLogger, WithBaseURL(srv.URL))
			got, err := s.Search(context.Background(), "AI", 5)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if gotPath != tt.path {
				t.Errorf("path = %q, want %q", gotPath, tt.path)
			}
			if gotParam == "" {
				t.Errorf("query parameter %q missing", tt.param)
			}
			if gotReferer == "" {
				t.Error("referer header missing")
			}
			if len(got) != 1 {
				t.Fatalf("got %d results, want 1", len(got))
			}
			r := got[0]
			if r.URL != tt.wantURL {
				t.Errorf("url = %q, want %q", r.URL, tt.wantURL)
			}
			if r.Content != tt.wantText {
				t.Errorf("content = %q, want %q", r.Content, tt.wantText)
			}
			if r.Author != tt.wantAuth {
				t.Errorf("author = %q, want %q", r.Author, tt.wantAuth)
			}
			if r.Platform != tt.name {
				t.Errorf("platform = %q", r.Platform)
			}
			if r.ID != types.ResultID(tt.wantURL) {
				t.Errorf("id = %q", r.ID)
			}
			if r.Metrics == nil || r.Metrics.Likes != tt.likes {
				t.Errorf("metrics = %+v, want likes %d", r.Metrics, tt.likes)
			}
		})
	}
}

func TestAPISearcherMockFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	metrics := observability.NewMetrics(testLogger)
	s := NewZhihuSearcher(newTestFetcher(t), platformConfig(true), testLogger,
		WithBaseURL(srv.URL), WithMockClock(func() time.Time { return fixedNow }), WithAPIMetrics(metrics))

	first, err := s.Search(context.Background(), "量子计算", 4)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	second, err := s.Search(context.Background(), "量子计算", 4)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(first) != 4 {
		t.Fatalf("got %d mock results, want 4", len(first))
	}
	for i := range first {
		a, b := first[i], second[i]
		if a.ID != b.ID || *a.Metrics != *b.Metrics || a.PublishTime != b.PublishTime {
			t.Errorf("mock result %d differs between calls", i)
		}
	}
	if first[0].Title != "量子计算相关问题 #1" || first[0].Author != "知乎用户1" {
		t.Errorf("first mock = %q by %q", first[0].Title, first[0].Author)
	}
	if want := fixedNow.Add(-150 * time.Minute).Format(time.RFC3339); first[0].PublishTime != want {
		t.Errorf("publish time = %q, want %q", first[0].PublishTime, want)
	}
	if first[0].Platform != Zhihu || first[0].SiteType != types.SiteSocial {
		t.Errorf("platform/siteType = %q/%q", first[0].Platform, first[0].SiteType)
	}
	for _, r := range first {
		if !strings.HasPrefix(r.URL, "https://www.zhihu.com/question/") || len(r.Metadata) != 0 {
			t.Errorf("fallback record looks synthetic: url=%q metadata=%v", r.URL, r.Metadata)
		}
	}
	if metrics.MockFallbacks.Load() != 2 {
		t.Errorf("mock fallbacks = %d, want 2", metrics.MockFallbacks.Load())
	}
}

func TestAPISearcherWithoutMockFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json")
	}))
	defer srv.Close()

	s := NewWeiboSearcher(newTestFetcher(t), platformConfig(false), testLogger, WithBaseURL(srv.URL))
	if _, err := s.Search(context.Background(), "AI", 3); err == nil {
		t.Fatal("expected error")
	}
}

func TestMockDiffersByKeyword(t *testing.T) {
	a := weiboMock.generate(Weibo, "猫", 2, fixedNow)
	b := weiboMock.generate(Weibo, "狗", 2, fixedNow)
	if a[0].ID == b[0].ID {
		t.Error("ids collide across keywords")
	}
	if a[1].Title != "关于猫的微博2" {
		t.Errorf("title = %q", a[1].Title)
	}
	if a[0].Metrics.Views != 0 {
		t.Errorf("weibo mock views = %d, want 0", a[0].Metrics.Views)
	}
}

func TestCountUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{`12`, 12},
		{`"3.5万"`, 35000},
		{`"1,024"`, 1024},
		{`null`, 0},
		{`7.0`, 7},
	}
	for _, tt := range tests {
		var c count
		if err := c.UnmarshalJSON([]byte(tt.in)); err != nil {
			t.Errorf("UnmarshalJSON(%s): %v", tt.in, err)
			continue
		}
		if int64(c) != tt.want {
			t.Errorf("UnmarshalJSON(%s) = %d, want %d", tt.in, c, tt.want)
		}
	}
}

func TestMockResultsLookLive(t *testing.T) {
	shapes := []struct {
		platform string
		profile  mockProfile
		url      *regexp.Regexp
	}{
		{Weibo, weiboMock, regexp.MustCompile(`^https://weibo\.com/[1-9][0-9]{9}/[1-9][0-9]{15}$`)},
		{Douyin, douyinMock, regexp.MustCompile(`^https://www\.douyin\.com/video/[1-9][0-9]{18}$`)},
		{Xiaohongshu, xiaohongshuMock, regexp.MustCompile(`^https://www\.xiaohongshu\.com/explore/[0-9a-f]{24}$`)},
		{Zhihu, zhihuMock, regexp.MustCompile(`^https://www\.zhihu\.com/question/[1-9][0-9]{8}$`)},
	}
	for _, tt := range shapes {
		t.Run(tt.platform, func(t *testing.T) {
			results := tt.profile.generate(tt.platform, "人工智能", 3, fixedNow)
			seen := map[string]bool{}
			for _, r := range results {
				if !tt.url.MatchString(r.URL) {
					t.Errorf("url %q does not match the live shape", r.URL)
				}
				if r.ID != types.ResultID(r.URL) {
					t.Errorf("id %q not derived from url", r.ID)
				}
				if len(r.Metadata) != 0 {
					t.Errorf("metadata = %v, want none", r.Metadata)
				}
				if _, err := types.ParseSiteType(string(r.SiteType)); err != nil {
					t.Errorf("site type: %v", err)
				}
				if seen[r.URL] {
					t.Errorf("duplicate url %q", r.URL)
				}
				seen[r.URL] = true
			}
		})
	}
}
