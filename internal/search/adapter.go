// Package search queries external search engines and orchestrates
// multi-engine web searches.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/topicscout/internal/fetcher"
	"github.com/IshaanNene/topicscout/internal/observability"
	"github.com/IshaanNene/topicscout/internal/redirect"
	"github.com/IshaanNene/topicscout/internal/types"
)

// minPageSize is the smallest result page treated as a real response;
// anything shorter is a block page or an empty shell.
const minPageSize = 1000

var adPattern = regexp.MustCompile(`(?i)^(ad|广告)\s|sponsored|推广`)

// Adapter reads result pages from the engines in its table.
type Adapter struct {
	engines  map[string]EngineSpec
	light    fetcher.LightFetcher
	rendered fetcher.RenderedFetcher
	decoder  *redirect.Resolver
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithEngines replaces the engine table.
func WithEngines(engines map[string]EngineSpec) AdapterOption {
	return func(a *Adapter) { a.engines = engines }
}

// WithBrowser enables rendered result-page fetches.
func WithBrowser(f fetcher.RenderedFetcher) AdapterOption {
	return func(a *Adapter) { a.rendered = f }
}

// WithAdapterMetrics records per-engine query counters.
func WithAdapterMetrics(m *observability.Metrics) AdapterOption {
	return func(a *Adapter) { a.metrics = m }
}

// NewAdapter creates an Adapter over the built-in engines.
func NewAdapter(light fetcher.LightFetcher, logger *slog.Logger, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		engines: DefaultEngines(),
		light:   light,
		logger:  logger.With("component", "search_adapter"),
	}
	// No navigator: tracking links are only decoded from their parameters.
	a.decoder = redirect.NewResolver(0, logger)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Supports reports whether engine is in the table.
func (a *Adapter) Supports(engine string) bool {
	_, ok := a.engines[strings.ToLower(engine)]
	return ok
}

// Search queries one engine. Only an unknown engine is an error: fetch
// failures and pages without results yield an empty list.
func (a *Adapter) Search(ctx context.Context, keyword, engine string, maxResults int, useBrowser bool) ([]types.SearchResult, error) {
	spec, ok := a.engines[strings.ToLower(engine)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedEngine, engine)
	}
	logger := a.logger.With("engine", spec.Name, "keyword", keyword)

	searchURL := spec.QueryURL(keyword, maxResults)
	html, err := a.fetch(ctx, spec, searchURL, useBrowser)
	if err != nil {
		logger.Warn("search page fetch failed", "url", searchURL, "error", err)
		a.metrics.RecordSearch(0, true)
		return []types.SearchResult{}, nil
	}
	if len(html) < minPageSize {
		logger.Warn("search page too short, treating as empty", "bytes", len(html))
		a.metrics.RecordSearch(0, true)
		return []types.SearchResult{}, nil
	}

	results, err := a.parse(ctx, spec, html, maxResults)
	if err != nil {
		logger.Warn("search page parse failed", "error", err)
		a.metrics.RecordSearch(0, true)
		return []types.SearchResult{}, nil
	}

	logger.Info("search complete", "results", len(results))
	a.metrics.RecordSearch(len(results), false)
	return results, nil
}

func (a *Adapter) fetch(ctx context.Context, spec EngineSpec, searchURL string, useBrowser bool) (string, error) {
	if useBrowser && a.rendered != nil {
		return a.rendered.FetchRendered(ctx, searchURL, spec.Container, nil)
	}
	headers := map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Cache-Control":             "no-cache",
		"Pragma":                    "no-cache",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Upgrade-Insecure-Requests": "1",
	}
	return a.light.FetchLight(ctx, searchURL, headers)
}

// parse reads result items with the engine's selectors, switching to the
// fallback container when the primary one matches nothing.
func (a *Adapter) parse(ctx context.Context, spec EngineSpec, html string, maxResults int) ([]types.SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(spec.BaseURL)

	titleSel, linkSel, snippetSel := spec.Title, spec.Link, spec.Snippet
	items := doc.Find(spec.Container)
	if items.Length() == 0 && spec.FallbackContainer != "" {
		a.logger.Debug("primary result selector matched nothing, trying fallback",
			"engine", spec.Name, "selector", spec.Container, "fallback", spec.FallbackContainer)
		items = doc.Find(spec.FallbackContainer)
		titleSel, linkSel, snippetSel = fallbackTitle, fallbackTitle, fallbackSnippet
	}

	results := []types.SearchResult{}
	items.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if maxResults > 0 && len(results) >= maxResults {
			return false
		}
		title := strings.Join(strings.Fields(s.Find(titleSel).First().Text()), " ")
		href, _ := s.Find(linkSel).First().Attr("href")
		snippet := strings.Join(strings.Fields(s.Find(snippetSel).First().Text()), " ")

		link := a.absoluteLink(ctx, base, href)
		if title == "" || link == "" {
			return true
		}
		if adPattern.MatchString(title) {
			return true
		}
		results = append(results, types.SearchResult{
			Title:   title,
			URL:     link,
			Snippet: snippet,
			Engine:  spec.Display,
		})
		return true
	})
	return results, nil
}

// absoluteLink normalizes a result href and unwraps engine tracking links.
// It returns "" for anything that is not an absolute http(s) URL.
func (a *Adapter) absoluteLink(ctx context.Context, base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	switch {
	case href == "", strings.HasPrefix(href, "#"), strings.HasPrefix(href, "javascript:"):
		return ""
	case strings.HasPrefix(href, "//"):
		href = "https:" + href
	case strings.HasPrefix(href, "/") && base != nil:
		ref, err := base.Parse(href)
		if err != nil {
			return ""
		}
		href = ref.String()
	}

	href = a.decoder.Resolve(ctx, href)

	u, err := url.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return href
}
