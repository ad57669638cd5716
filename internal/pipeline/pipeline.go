// Package pipeline post-processes CrawlResults through an ordered chain of
// middleware before they are returned or stored.
package pipeline

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/IshaanNene/topicscout/internal/types"
)

// Middleware processes a result and returns the (possibly modified) result.
// Return nil to drop the result from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a result. Return nil to drop it.
	Process(result *types.CrawlResult) (*types.CrawlResult, error)
}

// StageError reports which middleware failed.
type StageError struct {
	Stage string
	URL   string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline stage %s failed for %s: %v", e.Stage, e.URL, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// ResultConfig tunes the standard result chain.
type ResultConfig struct {
	MaxContentLength int
	BlockedKeywords  []string
}

// NewResultPipeline returns the standard chain applied to search and batch
// output. It is stateful (dedup), so build one per call.
func NewResultPipeline(cfg ResultConfig, logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(NewHTMLSanitizeMiddleware())
	p.Use(&TrimMiddleware{})
	p.Use(&RequiredFieldsMiddleware{})
	if len(cfg.BlockedKeywords) > 0 {
		p.Use(&KeywordFilterMiddleware{Blocked: cfg.BlockedKeywords})
	}
	p.Use(&DefaultValueMiddleware{Platform: types.PlatformWeb, SiteType: types.SiteGeneral})
	p.Use(NewDateNormalizeMiddleware(time.RFC3339))
	p.Use(&TruncateMiddleware{MaxContentLength: cfg.MaxContentLength})
	p.Use(NewDedupMiddleware())
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the result through all middleware in order.
func (p *Pipeline) Process(result *types.CrawlResult) (*types.CrawlResult, error) {
	current := result

	for _, mw := range p.middlewares {
		next, err := mw.Process(current)
		if err != nil {
			return nil, &StageError{Stage: mw.Name(), URL: current.URL, Err: err}
		}
		if next == nil {
			p.logger.Debug("result dropped", "stage", mw.Name(), "url", result.URL)
			return nil, nil
		}
		current = next
	}

	return current, nil
}

// ProcessAll runs every result through the chain, preserving order and
// skipping dropped or failed results.
func (p *Pipeline) ProcessAll(results []*types.CrawlResult) []*types.CrawlResult {
	out := make([]*types.CrawlResult, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		processed, err := p.Process(r)
		if err != nil {
			p.logger.Warn("pipeline error", "error", err)
			continue
		}
		if processed != nil {
			out = append(out, processed)
		}
	}
	return out
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// --- Built-in Middleware ---

// RequiredFieldsMiddleware drops results without a URL or title.
type RequiredFieldsMiddleware struct{}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(r *types.CrawlResult) (*types.CrawlResult, error) {
	if r.URL == "" || r.Title == "" {
		return nil, nil
	}
	return r, nil
}

// DedupMiddleware drops results whose id was already seen. Results without
// an id fall back to their URL.
type DedupMiddleware struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDedupMiddleware() *DedupMiddleware {
	return &DedupMiddleware{seen: make(map[string]struct{})}
}

func (m *DedupMiddleware) Name() string { return "dedup" }

func (m *DedupMiddleware) Process(r *types.CrawlResult) (*types.CrawlResult, error) {
	key := r.ID
	if key == "" {
		key = types.ResultID(r.URL)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.seen[key]; exists {
		return nil, nil
	}
	m.seen[key] = struct{}{}
	return r, nil
}

// DefaultValueMiddleware fills empty identity fields.
type DefaultValueMiddleware struct {
	Platform string
	SiteType types.SiteType
}

func (m *DefaultValueMiddleware) Name() string { return "default_values" }

func (m *DefaultValueMiddleware) Process(r *types.CrawlResult) (*types.CrawlResult, error) {
	if r.ID == "" {
		r.ID = types.ResultID(r.URL)
	}
	if r.Platform == "" {
		r.Platform = m.Platform
	}
	if r.SiteType == "" {
		r.SiteType = m.SiteType
	}
	if r.Images == nil {
		r.Images = []string{}
	}
	return r, nil
}

// TrimMiddleware trims whitespace from the single-line fields.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(r *types.CrawlResult) (*types.CrawlResult, error) {
	r.Title = strings.Join(strings.Fields(r.Title), " ")
	r.Author = strings.TrimSpace(r.Author)
	r.PublishTime = strings.TrimSpace(r.PublishTime)
	r.URL = strings.TrimSpace(r.URL)
	r.Content = strings.TrimSpace(r.Content)
	return r, nil
}

// TruncateMiddleware bounds content length in runes.
type TruncateMiddleware struct {
	MaxContentLength int
}

func (m *TruncateMiddleware) Name() string { return "truncate" }

func (m *TruncateMiddleware) Process(r *types.CrawlResult) (*types.CrawlResult, error) {
	if m.MaxContentLength <= 0 || utf8.RuneCountInString(r.Content) <= m.MaxContentLength {
		return r, nil
	}
	r.Content = strings.TrimSpace(string([]rune(r.Content)[:m.MaxContentLength]))
	return r, nil
}
