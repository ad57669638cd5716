// Package app assembles the crawler, search and platform services from
// configuration and owns their shared resources.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IshaanNene/topicscout/internal/api"
	"github.com/IshaanNene/topicscout/internal/config"
	"github.com/IshaanNene/topicscout/internal/crawler"
	"github.com/IshaanNene/topicscout/internal/fetcher"
	"github.com/IshaanNene/topicscout/internal/observability"
	"github.com/IshaanNene/topicscout/internal/pipeline"
	"github.com/IshaanNene/topicscout/internal/platform"
	"github.com/IshaanNene/topicscout/internal/ratelimit"
	"github.com/IshaanNene/topicscout/internal/redirect"
	"github.com/IshaanNene/topicscout/internal/rules"
	"github.com/IshaanNene/topicscout/internal/search"
	"github.com/IshaanNene/topicscout/internal/storage"
	"github.com/IshaanNene/topicscout/internal/suggest"
)

// App is the application root. It holds the single headless browser every
// component shares and must be closed on exit.
type App struct {
	Config   *config.Config
	Metrics  *observability.Metrics
	Rules    *rules.Registry
	Crawler  *crawler.Crawler
	Adapter  *search.Adapter
	Search   *search.Orchestrator
	Platform *platform.Service

	light   *fetcher.HTTPFetcher
	browser *fetcher.Browser
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// New builds every service. Nothing touches the network until a service
// is used; the browser boots on the first rendered fetch.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	metrics := observability.NewMetrics(logger)

	registry, err := rules.NewDefaultRegistry(logger)
	if err != nil {
		return nil, fmt.Errorf("load default rules: %w", err)
	}
	for _, path := range cfg.Rules.Files {
		n, err := registry.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load rules %s: %w", path, err)
		}
		logger.Info("rules loaded", "path", path, "count", n)
	}

	proxies := fetcher.NewProxyManager(&cfg.Proxy, logger)
	light, err := fetcher.NewHTTPFetcher(cfg, proxies, logger)
	if err != nil {
		return nil, fmt.Errorf("create http fetcher: %w", err)
	}
	browser := fetcher.NewBrowser(cfg, proxies, logger)
	rendered := fetcher.NewBrowserFetcher(browser, cfg, logger)

	resolver := redirect.NewResolver(cfg.Redirect.Timeout, logger, redirect.WithNavigator(rendered))
	pageCrawler := crawler.New(cfg, light, registry, logger,
		crawler.WithRenderedFetcher(rendered),
		crawler.WithResolver(resolver),
		crawler.WithMetrics(metrics),
	)

	adapter := search.NewAdapter(light, logger,
		search.WithBrowser(rendered),
		search.WithAdapterMetrics(metrics),
	)
	orchestrator := search.NewOrchestrator(adapter, pageCrawler,
		ratelimit.NewThrottle(cfg.Crawler.RequestDelay), pipeline.ResultConfig{
			MaxContentLength: cfg.Crawler.MaxContentLength,
			BlockedKeywords:  cfg.Crawler.BlockedKeywords,
		}, logger)

	webOpts := search.DefaultOptions(cfg)
	webOpts.Engines = cfg.Platform.WebEngines
	webOpts.UseBrowser = cfg.Platform.WebUseBrowser

	svcOpts := []platform.Option{platform.WithMetrics(metrics)}
	for _, s := range platformSearchers(cfg, light, metrics, logger) {
		svcOpts = append(svcOpts, platform.WithSearcher(s))
	}

	return &App{
		Config:   cfg,
		Metrics:  metrics,
		Rules:    registry,
		Crawler:  pageCrawler,
		Adapter:  adapter,
		Search:   orchestrator,
		Platform: platform.NewService(orchestrator, webOpts, logger, svcOpts...),
		light:    light,
		browser:  browser,
		logger:   logger.With("component", "app"),
	}, nil
}

// platformSearchers gives each platform its own throttle so the concurrent
// fan-out is not serialized.
func platformSearchers(cfg *config.Config, light fetcher.LightFetcher, metrics *observability.Metrics, logger *slog.Logger) []platform.Searcher {
	builders := []func(fetcher.LightFetcher, *config.PlatformConfig, *slog.Logger, ...platform.APIOption) *platform.APISearcher{
		platform.NewWeiboSearcher,
		platform.NewDouyinSearcher,
		platform.NewXiaohongshuSearcher,
		platform.NewZhihuSearcher,
	}
	out := make([]platform.Searcher, 0, len(builders))
	for _, build := range builders {
		out = append(out, build(light, &cfg.Platform, logger,
			platform.WithAPIMetrics(metrics),
			platform.WithAPIThrottle(ratelimit.NewThrottle(cfg.Crawler.RequestDelay)),
		))
	}
	return out
}

// SearchOptions returns the configured defaults for web searches.
func (a *App) SearchOptions() search.Options {
	return search.DefaultOptions(a.Config)
}

// OpenStorage creates the configured storage backend.
func (a *App) OpenStorage(ctx context.Context) (storage.Storage, error) {
	return storage.New(ctx, &a.Config.Storage, a.Metrics, a.logger)
}

// Suggester returns a topic suggestion generator backed by the configured LLM.
func (a *App) Suggester() *suggest.Generator {
	return suggest.NewGenerator(a.Search, suggest.NewLLMClient(a.Config.AI, a.logger), a.SearchOptions(), a.logger)
}

// Server returns the HTTP API server. store may be nil.
func (a *App) Server(store storage.Storage) *api.Server {
	return api.NewServer(a.Config.API.Addr, api.Deps{
		Web:        a.Search,
		WebOptions: a.SearchOptions(),
		Content:    a.Platform,
		Crawler:    a.Crawler,
		CrawlOpts:  a.Crawler.DefaultOptions(),
		Rules:      a.Rules,
		Storage:    store,
		Metrics:    a.Metrics,
		Stats:      a.Metrics,
	}, a.logger)
}

// BrowserRunning reports whether the shared browser has been started.
func (a *App) BrowserRunning() bool {
	return a.browser.Running()
}

// Close shuts down the browser and releases connections. It is safe to
// call more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.Metrics.LogSummary()
		a.closeErr = errors.Join(a.browser.Shutdown(), a.light.Close())
		a.logger.Debug("app closed")
	})
	return a.closeErr
}
