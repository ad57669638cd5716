// Package platform fans a keyword out to the web search and to the
// per-platform searchers, then paginates the merged result set.
package platform

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/topicscout/internal/observability"
	"github.com/IshaanNene/topicscout/internal/search"
	"github.com/IshaanNene/topicscout/internal/types"
)

// Platform names accepted by the fan-out.
const (
	Web         = types.PlatformWeb
	Weibo       = "weibo"
	Douyin      = "douyin"
	Xiaohongshu = "xiaohongshu"
	Zhihu       = "zhihu"
	Bilibili    = "bilibili"
)

// Known lists every platform name callers may request. Bilibili is
// accepted but has no searcher.
var Known = []string{Zhihu, Weibo, Douyin, Bilibili, Xiaohongshu, Web}

// IsKnown reports whether name is an accepted platform.
func IsKnown(name string) bool {
	return slices.Contains(Known, name)
}

// Searcher queries one platform.
type Searcher interface {
	Name() string
	Search(ctx context.Context, keyword string, limit int) ([]*types.CrawlResult, error)
}

// WebSearcher runs the multi-engine web search.
type WebSearcher interface {
	SearchWeb(ctx context.Context, keyword string, opts search.Options) ([]*types.CrawlResult, error)
}

// Page is one page of content-search results.
type Page struct {
	Query      string               `json:"query"`
	Results    []*types.CrawlResult `json:"results"`
	Total      int                  `json:"total"`
	Sources    []string             `json:"sources"`
	SearchTime int64                `json:"searchTime"`
}

// Service dispatches content searches.
type Service struct {
	web       WebSearcher
	webOpts   search.Options
	searchers map[string]Searcher
	clock     func() time.Time
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSearcher registers (or replaces) the searcher for its platform.
func WithSearcher(s Searcher) Option {
	return func(svc *Service) { svc.searchers[s.Name()] = s }
}

// WithClock sets the time source used for SearchTime.
func WithClock(clock func() time.Time) Option {
	return func(svc *Service) { svc.clock = clock }
}

// WithMetrics records platform query counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(svc *Service) { svc.metrics = m }
}

// NewService creates a Service. webOpts are used for the "web" platform;
// their MaxResults is replaced per call.
func NewService(web WebSearcher, webOpts search.Options, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		web:       web,
		webOpts:   webOpts,
		searchers: make(map[string]Searcher),
		clock:     time.Now,
		logger:    logger.With("component", "platform_service"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// SearchContent returns results[skip:skip+limit] of the merged result set:
// web results first, then each other platform in request order. A failing
// platform contributes nothing; only an empty keyword is an error.
func (s *Service) SearchContent(ctx context.Context, keyword string, platforms []string, limit, skip int) ([]*types.CrawlResult, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, types.ErrEmptyKeyword
	}
	if len(platforms) == 0 {
		platforms = []string{Web}
	}
	limit = max(limit, 1)
	skip = max(skip, 0)
	logger := s.logger.With("keyword", keyword)

	var results []*types.CrawlResult
	if slices.Contains(platforms, Web) {
		opts := s.webOpts
		opts.MaxResults = limit + skip
		web, err := s.web.SearchWeb(ctx, keyword, opts)
		if err != nil {
			logger.Error("web search failed", "error", err)
		}
		results = append(results, web...)
		s.metrics.RecordPlatform(err != nil)
	}

	var others []string
	for _, p := range platforms {
		if p != Web && !slices.Contains(others, p) {
			others = append(others, p)
		}
	}

	if len(others) > 0 {
		perPlatform := (limit + skip + len(others) - 1) / len(others)
		results = append(results, s.fanOut(ctx, keyword, others, perPlatform)...)
	}

	page := paginate(results, skip, limit)
	logger.Info("content search complete", "platforms", platforms, "total", len(results), "returned", len(page))
	return page, nil
}

// SearchPage is SearchContent addressed by 1-based page number.
func (s *Service) SearchPage(ctx context.Context, keyword string, platforms []string, page, limit int) (*Page, error) {
	page = max(page, 1)
	if limit < 1 {
		limit = 10
	}
	if len(platforms) == 0 {
		platforms = []string{Web}
	}
	skip := (page - 1) * limit

	results, err := s.SearchContent(ctx, keyword, platforms, limit, skip)
	if err != nil {
		return nil, err
	}
	return &Page{
		Query:      strings.TrimSpace(keyword),
		Results:    results,
		Total:      len(results) + skip*2,
		Sources:    platforms,
		SearchTime: s.clock().UnixMilli(),
	}, nil
}

// fanOut queries platforms concurrently and concatenates their results in
// the order the platforms were requested.
func (s *Service) fanOut(ctx context.Context, keyword string, platforms []string, limit int) []*types.CrawlResult {
	buckets := make([][]*types.CrawlResult, len(platforms))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range platforms {
		g.Go(func() error {
			res, err := s.searchOne(gctx, name, keyword, limit)
			if err != nil {
				s.logger.Warn("platform search failed", "platform", name, "keyword", keyword, "error", err)
				s.metrics.RecordPlatform(true)
				return nil
			}
			s.metrics.RecordPlatform(false)
			buckets[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var merged []*types.CrawlResult
	for _, b := range buckets {
		merged = append(merged, b...)
	}
	return merged
}

func (s *Service) searchOne(ctx context.Context, name, keyword string, limit int) (res []*types.CrawlResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("platform %s panicked: %v", name, r)
		}
	}()
	searcher, ok := s.searchers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedPlatform, name)
	}
	return searcher.Search(ctx, keyword, limit)
}

func paginate(results []*types.CrawlResult, skip, limit int) []*types.CrawlResult {
	if skip >= len(results) {
		return []*types.CrawlResult{}
	}
	end := min(skip+limit, len(results))
	return results[skip:end]
}
