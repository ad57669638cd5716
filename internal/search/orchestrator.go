package search

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/IshaanNene/topicscout/internal/config"
	"github.com/IshaanNene/topicscout/internal/crawler"
	"github.com/IshaanNene/topicscout/internal/pipeline"
	"github.com/IshaanNene/topicscout/internal/ratelimit"
	"github.com/IshaanNene/topicscout/internal/types"
)

// EngineSearcher queries one engine for one keyword.
type EngineSearcher interface {
	Search(ctx context.Context, keyword, engine string, maxResults int, useBrowser bool) ([]types.SearchResult, error)
}

// PageCrawler crawls one URL.
type PageCrawler interface {
	Crawl(ctx context.Context, rawURL string, opts crawler.Options) (*types.CrawlResult, error)
}

// Options controls one web search.
type Options struct {
	MaxResults   int             `json:"maxResults"`
	Engines      []string        `json:"engines"`
	CrawlResults bool            `json:"crawlResults"`
	UseBrowser   bool            `json:"useBrowser"`
	Crawl        crawler.Options `json:"crawl"`
}

// DefaultOptions builds Options from the search configuration.
func DefaultOptions(cfg *config.Config) Options {
	return Options{
		MaxResults:   cfg.Search.MaxResults,
		Engines:      slices.Clone(cfg.Search.Engines),
		CrawlResults: cfg.Search.CrawlResults,
		UseBrowser:   cfg.Search.UseBrowser,
		Crawl: crawler.Options{
			UseBrowser: cfg.Search.UseBrowser,
			Timeout:    cfg.Crawler.RequestTimeout,
			MaxRetries: cfg.Crawler.MaxRetries,
		},
	}
}

// Orchestrator fans a keyword out to engines, optionally crawls every hit,
// then ranks by title relevance.
type Orchestrator struct {
	engines  EngineSearcher
	crawler  PageCrawler
	throttle *ratelimit.Throttle
	post     pipeline.ResultConfig
	logger   *slog.Logger
}

// NewOrchestrator creates an Orchestrator. throttle spaces out the crawls
// of discovered links; pc may be nil when results are never crawled.
func NewOrchestrator(engines EngineSearcher, pc PageCrawler, throttle *ratelimit.Throttle, post pipeline.ResultConfig, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		engines:  engines,
		crawler:  pc,
		throttle: throttle,
		post:     post,
		logger:   logger.With("component", "search_orchestrator"),
	}
}

type scored struct {
	result *types.CrawlResult
	score  float64
}

// SearchWeb runs the search. Engine and crawl failures only shrink the
// result set; an empty keyword is the only error.
func (o *Orchestrator) SearchWeb(ctx context.Context, keyword string, opts Options) ([]*types.CrawlResult, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, types.ErrEmptyKeyword
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 20
	}
	if len(opts.Engines) == 0 {
		opts.Engines = []string{"bing"}
	}
	perEngine := (opts.MaxResults + len(opts.Engines) - 1) / len(opts.Engines)

	start := time.Now()
	logger := o.logger.With("keyword", keyword)
	logger.Info("web search starting", "engines", opts.Engines, "per_engine", perEngine, "crawl", opts.CrawlResults)

	var collected []*types.CrawlResult
	for _, engine := range opts.Engines {
		hits, err := o.engines.Search(ctx, keyword, engine, perEngine, opts.UseBrowser)
		if err != nil {
			logger.Error("engine search failed", "engine", engine, "error", err)
			continue
		}
		logger.Debug("engine returned results", "engine", engine, "count", len(hits))

		for _, hit := range hits {
			if opts.CrawlResults && o.crawler != nil {
				collected = append(collected, o.crawlHit(ctx, hit, opts.Crawl))
			} else {
				collected = append(collected, hit.ToCrawlResult())
			}
		}
		if ctx.Err() != nil {
			logger.Warn("web search interrupted", "error", ctx.Err())
			break
		}
	}

	collected = pipeline.NewResultPipeline(o.post, o.logger).ProcessAll(collected)
	ranked := Rank(collected, keyword)
	if len(ranked) > opts.MaxResults {
		ranked = ranked[:opts.MaxResults]
	}

	logger.Info("web search complete", "results", len(ranked), "elapsed", time.Since(start))
	return ranked, nil
}

// crawlHit crawls one search hit, keeping the engine's title and snippet
// for any field the crawl left empty, or the bare hit if the crawl failed.
func (o *Orchestrator) crawlHit(ctx context.Context, hit types.SearchResult, opts crawler.Options) *types.CrawlResult {
	if err := o.throttle.Wait(ctx); err != nil {
		return hit.ToCrawlResult()
	}
	res, err := o.crawler.Crawl(ctx, hit.URL, opts)
	if err != nil || res == nil {
		o.logger.Warn("crawl failed, using search result", "url", hit.URL, "error", err)
		return hit.ToCrawlResult()
	}
	if res.Title == "" {
		res.Title = hit.Title
	}
	if res.Content == "" {
		res.Content = hit.Snippet
	}
	return res
}

// Rank sorts results by descending relevance to keyword. Ties keep their
// input order.
func Rank(results []*types.CrawlResult, keyword string) []*types.CrawlResult {
	items := make([]scored, len(results))
	for i, r := range results {
		items[i] = scored{result: r, score: RelevanceScore(r.Title, keyword)}
	}
	slices.SortStableFunc(items, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})
	out := make([]*types.CrawlResult, len(items))
	for i, it := range items {
		out[i] = it.result
	}
	return out
}
