// Package crawler turns one URL into one CrawlResult: redirect resolution,
// site classification, rule selection, fetching and extraction under a
// bounded retry policy.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/IshaanNene/topicscout/internal/classifier"
	"github.com/IshaanNene/topicscout/internal/config"
	"github.com/IshaanNene/topicscout/internal/fetcher"
	"github.com/IshaanNene/topicscout/internal/observability"
	"github.com/IshaanNene/topicscout/internal/parser"
	"github.com/IshaanNene/topicscout/internal/pipeline"
	"github.com/IshaanNene/topicscout/internal/ratelimit"
	"github.com/IshaanNene/topicscout/internal/redirect"
	"github.com/IshaanNene/topicscout/internal/retry"
	"github.com/IshaanNene/topicscout/internal/rules"
	"github.com/IshaanNene/topicscout/internal/types"
)

// Options controls a single crawl. Zero values fall back to configuration.
type Options struct {
	UseBrowser       bool              `json:"useBrowser"`
	WaitSelector     string            `json:"waitForSelector,omitempty"`
	ExcludeSelectors []string          `json:"excludeSelectors,omitempty"`
	Headers          map[string]string `json:"headers,omitempty"`
	Timeout          time.Duration     `json:"timeout,omitempty"`
	MaxRetries       int               `json:"maxRetries,omitempty"`
}

// Crawler fetches and extracts pages.
type Crawler struct {
	cfg        config.CrawlerConfig
	light      fetcher.LightFetcher
	rendered   fetcher.RenderedFetcher
	resolver   *redirect.Resolver
	classifier *classifier.Classifier
	registry   *rules.Registry
	extractor  *parser.Extractor
	dates      *pipeline.DateNormalizeMiddleware
	throttle   *ratelimit.Throttle
	sleep      retry.SleepFunc
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithRenderedFetcher enables browser fetching.
func WithRenderedFetcher(f fetcher.RenderedFetcher) Option {
	return func(c *Crawler) { c.rendered = f }
}

// WithResolver sets the redirect resolver.
func WithResolver(r *redirect.Resolver) Option {
	return func(c *Crawler) { c.resolver = r }
}

// WithClassifier replaces the default site classifier.
func WithClassifier(cl *classifier.Classifier) Option {
	return func(c *Crawler) { c.classifier = cl }
}

// WithSleeper replaces the sleep used for retry backoff and rule delays.
func WithSleeper(s retry.SleepFunc) Option {
	return func(c *Crawler) { c.sleep = s }
}

// WithThrottle sets the spacing used between batch crawls.
func WithThrottle(t *ratelimit.Throttle) Option {
	return func(c *Crawler) { c.throttle = t }
}

// WithMetrics records crawl and fetch counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Crawler) { c.metrics = m }
}

// New creates a Crawler. light and registry are required.
func New(cfg *config.Config, light fetcher.LightFetcher, registry *rules.Registry, logger *slog.Logger, opts ...Option) *Crawler {
	c := &Crawler{
		cfg:        cfg.Crawler,
		light:      light,
		registry:   registry,
		classifier: classifier.New(),
		extractor:  parser.NewExtractor(cfg.Crawler.MaxContentLength, logger),
		dates:      pipeline.NewDateNormalizeMiddleware(time.RFC3339),
		throttle:   ratelimit.NewThrottle(cfg.Crawler.RequestDelay),
		sleep:      retry.Sleep,
		logger:     logger.With("component", "crawler"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Crawl fetches rawURL and extracts one result. An invalid URL fails before
// any network activity. When every attempt fails the error wraps
// types.ErrMaxRetries; callers treat that as "could not crawl".
func (c *Crawler) Crawl(ctx context.Context, rawURL string, opts Options) (result *types.CrawlResult, err error) {
	if err := config.ValidateURL(rawURL); err != nil {
		return nil, err
	}
	defer func() { c.metrics.RecordCrawl(err) }()

	target := rawURL
	if c.resolver != nil {
		target = c.resolver.Resolve(ctx, rawURL)
		if target != rawURL {
			c.metrics.RecordRedirect()
		}
	}

	siteType := c.classifier.Classify(target)
	rule := c.registry.Resolve(target, siteType)
	opts = c.mergeRuleOptions(opts, rule)

	logger := c.logger.With("url", target, "site_type", siteType, "rule", rule.Name)
	logger.Debug("crawl starting", "use_browser", opts.UseBrowser)

	if d := rule.Options.Delay(); d > 0 {
		if err := c.sleep(ctx, d); err != nil {
			return nil, err
		}
	}

	policy := retry.Policy{
		MaxAttempts: opts.MaxRetries,
		Delay:       c.cfg.RetryDelay,
		Multiplier:  c.cfg.RetryMultiplier,
		Sleep:       c.sleep,
		Logger:      logger,
	}

	err = policy.Do(ctx, func(ctx context.Context, attempt int) error {
		attemptCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		defer cancel()

		html, err := c.fetch(attemptCtx, target, opts)
		c.metrics.RecordFetch(opts.UseBrowser, len(html), err)
		if err != nil {
			logger.Warn("fetch failed", "attempt", attempt, "error", err)
			return err
		}

		res, err := c.extractor.Extract(html, target, siteType, rule, opts.ExcludeSelectors)
		if err != nil {
			logger.Warn("extraction failed", "attempt", attempt, "error", err)
			return err
		}
		result, _ = c.dates.Process(res)
		return nil
	})
	if err != nil {
		logger.Error("crawl failed", "error", err)
		return nil, err
	}

	logger.Info("crawl complete", "title", result.Title, "content_length", len([]rune(result.Content)))
	return result, nil
}

// BatchCrawl crawls urls one at a time, spaced by the request delay.
// Failed URLs are logged and skipped; duplicates by id are dropped.
func (c *Crawler) BatchCrawl(ctx context.Context, urls []string, opts Options) []*types.CrawlResult {
	results := make([]*types.CrawlResult, 0, len(urls))
	for i, u := range urls {
		if err := c.throttle.Wait(ctx); err != nil {
			c.logger.Warn("batch crawl interrupted", "done", i, "total", len(urls), "error", err)
			break
		}
		res, err := c.Crawl(ctx, u, opts)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Warn("batch crawl interrupted", "done", i, "total", len(urls), "error", ctx.Err())
				break
			}
			c.logger.Warn("batch crawl skipped url", "url", u, "error", err)
			continue
		}
		results = append(results, res)
	}

	c.logger.Info("batch crawl complete", "requested", len(urls), "succeeded", len(results))
	return pipeline.NewResultPipeline(c.resultConfig(), c.logger).ProcessAll(results)
}

func (c *Crawler) resultConfig() pipeline.ResultConfig {
	return pipeline.ResultConfig{
		MaxContentLength: c.cfg.MaxContentLength,
		BlockedKeywords:  c.cfg.BlockedKeywords,
	}
}

// DefaultOptions returns options populated from configuration.
func (c *Crawler) DefaultOptions() Options {
	return Options{
		Timeout:    c.cfg.RequestTimeout,
		MaxRetries: c.cfg.MaxRetries,
	}
}

func (c *Crawler) fetch(ctx context.Context, target string, opts Options) (string, error) {
	if !opts.UseBrowser {
		return c.light.FetchLight(ctx, target, opts.Headers)
	}
	if c.rendered == nil {
		return "", retry.Stop(fmt.Errorf("rendered fetch requested for %s but no browser is configured", target))
	}
	return c.rendered.FetchRendered(ctx, target, opts.WaitSelector, opts.Headers)
}

// mergeRuleOptions layers the rule's crawl options under the caller's.
func (c *Crawler) mergeRuleOptions(opts Options, rule *rules.Rule) Options {
	ro := rule.Options
	opts.UseBrowser = opts.UseBrowser || ro.UseBrowser
	if opts.WaitSelector == "" {
		opts.WaitSelector = ro.WaitSelector
	}
	if len(ro.Headers) > 0 {
		merged := maps.Clone(ro.Headers)
		maps.Copy(merged, opts.Headers)
		opts.Headers = merged
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = ro.Retries
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = c.cfg.MaxRetries
	}
	if opts.Timeout <= 0 {
		opts.Timeout = c.cfg.RequestTimeout
	}
	return opts
}
