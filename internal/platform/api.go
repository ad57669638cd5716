package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/IshaanNene/topicscout/internal/config"
	"github.com/IshaanNene/topicscout/internal/fetcher"
	"github.com/IshaanNene/topicscout/internal/observability"
	"github.com/IshaanNene/topicscout/internal/ratelimit"
	"github.com/IshaanNene/topicscout/internal/types"
)

const desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// endpoint describes one platform's search API.
type endpoint struct {
	name    string
	baseURL string
	referer string
	query   func(base, keyword string, limit int) string
	parse   func(body []byte) ([]*types.CrawlResult, error)
	mock    mockProfile
}

// APISearcher queries a platform's JSON search endpoint and, when enabled,
// answers with deterministic mock data if the live call fails.
type APISearcher struct {
	ep           endpoint
	light        fetcher.LightFetcher
	timeout      time.Duration
	mockFallback bool
	throttle     *ratelimit.Throttle
	clock        func() time.Time
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// APIOption configures an APISearcher.
type APIOption func(*APISearcher)

// WithBaseURL points the searcher at a different API root.
func WithBaseURL(base string) APIOption {
	return func(s *APISearcher) { s.ep.baseURL = base }
}

// WithMockClock sets the time source for mock publish times.
func WithMockClock(clock func() time.Time) APIOption {
	return func(s *APISearcher) { s.clock = clock }
}

// WithAPIMetrics records mock fallbacks.
func WithAPIMetrics(m *observability.Metrics) APIOption {
	return func(s *APISearcher) { s.metrics = m }
}

// WithAPIThrottle spaces out calls to the platform.
func WithAPIThrottle(t *ratelimit.Throttle) APIOption {
	return func(s *APISearcher) { s.throttle = t }
}

func newAPISearcher(ep endpoint, light fetcher.LightFetcher, cfg *config.PlatformConfig, logger *slog.Logger, opts ...APIOption) *APISearcher {
	s := &APISearcher{
		ep:           ep,
		light:        light,
		timeout:      cfg.RequestTimeout,
		mockFallback: cfg.MockFallback,
		clock:        time.Now,
		logger:       logger.With("component", "platform_searcher", "platform", ep.name),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the platform name.
func (s *APISearcher) Name() string { return s.ep.name }

// Search queries the platform for up to limit results.
func (s *APISearcher) Search(ctx context.Context, keyword string, limit int) ([]*types.CrawlResult, error) {
	results, err := s.live(ctx, keyword, limit)
	if err == nil {
		s.logger.Debug("platform search complete", "keyword", keyword, "results", len(results))
		return results, nil
	}
	if !s.mockFallback {
		return nil, err
	}
	s.logger.Warn("falling back to mock data", "keyword", keyword, "error", err)
	s.metrics.RecordMockFallback()
	return s.ep.mock.generate(s.ep.name, keyword, limit, s.clock()), nil
}

func (s *APISearcher) live(ctx context.Context, keyword string, limit int) ([]*types.CrawlResult, error) {
	if err := s.throttle.Wait(ctx); err != nil {
		return nil, err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	headers := map[string]string{
		"User-Agent": desktopUA,
		"Referer":    s.ep.referer,
		"Accept":     "application/json, text/plain, */*",
	}
	body, err := s.light.FetchLight(ctx, s.ep.query(s.ep.baseURL, keyword, limit), headers)
	if err != nil {
		return nil, err
	}
	results, err := s.ep.parse([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("decode %s response: %w", s.ep.name, err)
	}
	if len(results) > limit {
		results = results[:limit]
	}
	for _, r := range results {
		r.Platform = s.ep.name
		if r.ID == "" {
			r.ID = types.ResultID(r.URL)
		}
		if r.Images == nil {
			r.Images = []string{}
		}
	}
	return results, nil
}

// NewWeiboSearcher searches m.weibo.cn.
func NewWeiboSearcher(light fetcher.LightFetcher, cfg *config.PlatformConfig, logger *slog.Logger, opts ...APIOption) *APISearcher {
	return newAPISearcher(endpoint{
		name:    Weibo,
		baseURL: "https://m.weibo.cn/api",
		referer: "https://m.weibo.cn/",
		query: func(base, keyword string, limit int) string {
			q := url.Values{}
			q.Set("containerid", "100103type=1&q="+keyword)
			q.Set("page_type", "searchall")
			q.Set("count", strconv.Itoa(limit))
			q.Set("page", "1")
			return base + "/container/getIndex?" + q.Encode()
		},
		parse: parseWeibo,
		mock:  weiboMock,
	}, light, cfg, logger, opts...)
}

// NewDouyinSearcher searches douyin.com.
func NewDouyinSearcher(light fetcher.LightFetcher, cfg *config.PlatformConfig, logger *slog.Logger, opts ...APIOption) *APISearcher {
	return newAPISearcher(endpoint{
		name:    Douyin,
		baseURL: "https://www.douyin.com/aweme/v1",
		referer: "https://www.douyin.com/",
		query: func(base, keyword string, limit int) string {
			q := url.Values{}
			q.Set("keyword", keyword)
			q.Set("count", strconv.Itoa(limit))
			q.Set("offset", "0")
			return base + "/search/item/?" + q.Encode()
		},
		parse: parseDouyin,
		mock:  douyinMock,
	}, light, cfg, logger, opts...)
}

// NewXiaohongshuSearcher searches xiaohongshu.com.
func NewXiaohongshuSearcher(light fetcher.LightFetcher, cfg *config.PlatformConfig, logger *slog.Logger, opts ...APIOption) *APISearcher {
	return newAPISearcher(endpoint{
		name:    Xiaohongshu,
		baseURL: "https://www.xiaohongshu.com/fe_api/burdock",
		referer: "https://www.xiaohongshu.com/",
		query: func(base, keyword string, limit int) string {
			q := url.Values{}
			q.Set("keyword", keyword)
			q.Set("page", "1")
			q.Set("page_size", strconv.Itoa(limit))
			return base + "/weixin/v1/search/notes?" + q.Encode()
		},
		parse: parseXiaohongshu,
		mock:  xiaohongshuMock,
	}, light, cfg, logger, opts...)
}

// NewZhihuSearcher searches zhihu.com.
func NewZhihuSearcher(light fetcher.LightFetcher, cfg *config.PlatformConfig, logger *slog.Logger, opts ...APIOption) *APISearcher {
	return newAPISearcher(endpoint{
		name:    Zhihu,
		baseURL: "https://www.zhihu.com/api/v4",
		referer: "https://www.zhihu.com/",
		query: func(base, keyword string, limit int) string {
			q := url.Values{}
			q.Set("q", keyword)
			q.Set("t", "general")
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", "0")
			return base + "/search_v3?" + q.Encode()
		},
		parse: parseZhihu,
		mock:  zhihuMock,
	}, light, cfg, logger, opts...)
}

// NewDefaultSearchers builds the live searchers for every supported platform.
func NewDefaultSearchers(light fetcher.LightFetcher, cfg *config.PlatformConfig, logger *slog.Logger, opts ...APIOption) []Searcher {
	return []Searcher{
		NewWeiboSearcher(light, cfg, logger, opts...),
		NewDouyinSearcher(light, cfg, logger, opts...),
		NewXiaohongshuSearcher(light, cfg, logger, opts...),
		NewZhihuSearcher(light, cfg, logger, opts...),
	}
}
