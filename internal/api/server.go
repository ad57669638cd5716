// Package api exposes search, crawl and rule management over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/IshaanNene/topicscout/internal/config"
	"github.com/IshaanNene/topicscout/internal/crawler"
	"github.com/IshaanNene/topicscout/internal/dashboard"
	"github.com/IshaanNene/topicscout/internal/platform"
	"github.com/IshaanNene/topicscout/internal/rules"
	"github.com/IshaanNene/topicscout/internal/search"
	"github.com/IshaanNene/topicscout/internal/storage"
	"github.com/IshaanNene/topicscout/internal/types"
)

const (
	maxKeywordRunes = 100
	maxLimit        = 100
	maxBatchURLs    = 10
	maxBodyBytes    = 1 << 20
)

// WebSearcher runs multi-engine web searches.
type WebSearcher interface {
	SearchWeb(ctx context.Context, keyword string, opts search.Options) ([]*types.CrawlResult, error)
}

// ContentSearcher runs paged platform searches.
type ContentSearcher interface {
	SearchPage(ctx context.Context, keyword string, platforms []string, page, limit int) (*platform.Page, error)
}

// PageCrawler crawls single pages and batches.
type PageCrawler interface {
	Crawl(ctx context.Context, url string, opts crawler.Options) (*types.CrawlResult, error)
	BatchCrawl(ctx context.Context, urls []string, opts crawler.Options) []*types.CrawlResult
}

// Deps are the services the API dispatches to. Storage, Metrics and Stats
// are optional.
type Deps struct {
	Web        WebSearcher
	WebOptions search.Options
	Content    ContentSearcher
	Crawler    PageCrawler
	CrawlOpts  crawler.Options
	Rules      *rules.Registry
	Storage    storage.Storage
	Metrics    http.Handler
	Stats      dashboard.StatsProvider
}

// Server provides the REST API.
type Server struct {
	mux    *http.ServeMux
	addr   string
	deps   Deps
	logger *slog.Logger
}

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewServer creates a new API server.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		addr:   addr,
		deps:   deps,
		logger: logger.With("component", "api_server"),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.HandleFunc("POST /api/search/web", s.handleSearchWeb)
	s.mux.HandleFunc("POST /api/search", s.handleSearchContent)

	s.mux.HandleFunc("POST /api/crawl", s.handleCrawl)
	s.mux.HandleFunc("POST /api/crawl/batch", s.handleBatchCrawl)

	s.mux.HandleFunc("GET /api/rules", s.handleListRules)
	s.mux.HandleFunc("POST /api/rules", s.handleAddRule)
	s.mux.HandleFunc("DELETE /api/rules/{name}", s.handleDeleteRule)

	if s.deps.Metrics != nil {
		s.mux.Handle("GET /metrics", s.deps.Metrics)
	}
	if s.deps.Stats != nil {
		d := dashboard.New(s.deps.Stats, s.logger)
		s.mux.HandleFunc("GET /dashboard", d.ServePage)
		s.mux.HandleFunc("GET /api/stats", d.ServeStats)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"status":  "ok",
		"version": config.Version,
		"rules":   s.deps.Rules.Len(),
	}})
}

type webSearchRequest struct {
	Keyword      string   `json:"keyword"`
	MaxResults   int      `json:"maxResults"`
	Engines      []string `json:"engines"`
	CrawlResults *bool    `json:"crawlResults"`
	UseBrowser   *bool    `json:"useBrowser"`
}

func (s *Server) handleSearchWeb(w http.ResponseWriter, r *http.Request) {
	var req webSearchRequest
	if !s.decode(w, r, &req) {
		return
	}
	keyword, msg := validateKeyword(req.Keyword)
	if msg != "" {
		s.fail(w, http.StatusBadRequest, msg)
		return
	}
	if req.MaxResults < 0 || req.MaxResults > maxLimit {
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("maxResults must be between 1 and %d", maxLimit))
		return
	}
	for _, e := range req.Engines {
		if !slices.Contains(search.EngineNames(), e) {
			s.fail(w, http.StatusBadRequest, fmt.Sprintf("unsupported engine %q", e))
			return
		}
	}

	opts := s.deps.WebOptions
	if req.MaxResults > 0 {
		opts.MaxResults = req.MaxResults
	}
	if len(req.Engines) > 0 {
		opts.Engines = req.Engines
	}
	if req.CrawlResults != nil {
		opts.CrawlResults = *req.CrawlResults
	}
	if req.UseBrowser != nil {
		opts.UseBrowser = *req.UseBrowser
		opts.Crawl.UseBrowser = *req.UseBrowser
	}

	results, err := s.deps.Web.SearchWeb(r.Context(), keyword, opts)
	if err != nil {
		s.serverError(w, "web search failed", err)
		return
	}
	s.persist(r.Context(), results)
	s.jsonResponse(w, http.StatusOK, envelope{Success: true, Data: results, Message: "search complete"})
}

type contentSearchRequest struct {
	Keyword   string   `json:"keyword"`
	Platforms []string `json:"platforms"`
	Page      *int     `json:"page"`
	Limit     *int     `json:"limit"`
}

// contentSearchResponse mirrors the paged shape the frontend expects.
type contentSearchResponse struct {
	Topics     []*types.CrawlResult `json:"topics"`
	Total      int                  `json:"total"`
	HasMore    bool                 `json:"hasMore"`
	Pagination pagination           `json:"pagination"`
	Sources    []string             `json:"sources"`
	SearchTime int64                `json:"searchTime"`
}

type pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

func (s *Server) handleSearchContent(w http.ResponseWriter, r *http.Request) {
	var req contentSearchRequest
	if !s.decode(w, r, &req) {
		return
	}
	keyword, msg := validateKeyword(req.Keyword)
	if msg != "" {
		s.fail(w, http.StatusBadRequest, msg)
		return
	}
	page, limit := 1, 10
	if req.Page != nil {
		page = *req.Page
	}
	if req.Limit != nil {
		limit = *req.Limit
	}
	if page < 1 {
		s.fail(w, http.StatusBadRequest, "page must be an integer >= 1")
		return
	}
	if limit < 1 || limit > maxLimit {
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("limit must be an integer between 1 and %d", maxLimit))
		return
	}
	if req.Platforms != nil && len(req.Platforms) == 0 {
		s.fail(w, http.StatusBadRequest, "platforms must be a non-empty array")
		return
	}
	for _, p := range req.Platforms {
		if !platform.IsKnown(p) {
			s.fail(w, http.StatusBadRequest, fmt.Sprintf("invalid platform %q", p))
			return
		}
	}

	res, err := s.deps.Content.SearchPage(r.Context(), keyword, req.Platforms, page, limit)
	if err != nil {
		s.serverError(w, "content search failed", err)
		return
	}
	s.persist(r.Context(), res.Results)

	totalPages := (res.Total + limit - 1) / limit
	s.jsonResponse(w, http.StatusOK, envelope{Success: true, Message: "search complete", Data: contentSearchResponse{
		Topics:  res.Results,
		Total:   res.Total,
		HasMore: page < totalPages,
		Pagination: pagination{
			Page:       page,
			Limit:      limit,
			Total:      res.Total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
			HasPrev:    page > 1,
		},
		Sources:    res.Sources,
		SearchTime: res.SearchTime,
	}})
}

type crawlRequest struct {
	URL              string            `json:"url"`
	URLs             []string          `json:"urls"`
	UseBrowser       bool              `json:"useBrowser"`
	UsePuppeteer     bool              `json:"usePuppeteer"`
	WaitForSelector  string            `json:"waitForSelector"`
	ExcludeSelectors []string          `json:"excludeSelectors"`
	Headers          map[string]string `json:"headers"`
	TimeoutMS        int               `json:"timeout"`
	MaxRetries       int               `json:"maxRetries"`
}

func (s *Server) crawlOptions(req crawlRequest) crawler.Options {
	opts := s.deps.CrawlOpts
	opts.UseBrowser = opts.UseBrowser || req.UseBrowser || req.UsePuppeteer
	if req.WaitForSelector != "" {
		opts.WaitSelector = req.WaitForSelector
	}
	if len(req.ExcludeSelectors) > 0 {
		opts.ExcludeSelectors = req.ExcludeSelectors
	}
	if len(req.Headers) > 0 {
		opts.Headers = req.Headers
	}
	if req.TimeoutMS > 0 {
		opts.Timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}
	if req.MaxRetries > 0 {
		opts.MaxRetries = req.MaxRetries
	}
	return opts
}

func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := config.ValidateURL(req.URL); err != nil {
		s.fail(w, http.StatusBadRequest, "a valid url is required")
		return
	}

	result, err := s.deps.Crawler.Crawl(r.Context(), req.URL, s.crawlOptions(req))
	if err != nil {
		s.logger.Warn("crawl failed", "url", req.URL, "error", err)
		s.fail(w, http.StatusBadGateway, "could not crawl "+req.URL)
		return
	}
	s.persist(r.Context(), []*types.CrawlResult{result})
	s.jsonResponse(w, http.StatusOK, envelope{Success: true, Data: result, Message: "crawl complete"})
}

func (s *Server) handleBatchCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.URLs) < 1 || len(req.URLs) > maxBatchURLs {
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("urls must hold 1-%d URLs", maxBatchURLs))
		return
	}
	for _, u := range req.URLs {
		if err := config.ValidateURL(u); err != nil {
			s.fail(w, http.StatusBadRequest, fmt.Sprintf("invalid url %q", u))
			return
		}
	}

	results := s.deps.Crawler.BatchCrawl(r.Context(), req.URLs, s.crawlOptions(req))
	s.persist(r.Context(), results)
	s.jsonResponse(w, http.StatusOK, envelope{
		Success: true,
		Data:    results,
		Message: fmt.Sprintf("crawled %d of %d urls", len(results), len(req.URLs)),
	})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	list := s.deps.Rules.All()
	if st := r.URL.Query().Get("siteType"); st != "" {
		parsed, err := types.ParseSiteType(st)
		if err != nil {
			s.fail(w, http.StatusBadRequest, err.Error())
			return
		}
		list = s.deps.Rules.BySiteType(parsed)
	}
	s.jsonResponse(w, http.StatusOK, envelope{Success: true, Data: list})
}

func (s *Server) handleAddRule(w http.ResponseWriter, r *http.Request) {
	var rule rules.Rule
	if !s.decode(w, r, &rule) {
		return
	}
	if err := s.deps.Rules.Add(rule); err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("rule added", "name", rule.Name)
	s.jsonResponse(w, http.StatusCreated, envelope{Success: true, Data: map[string]string{"name": rule.Name}})
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !s.deps.Rules.Remove(name) {
		s.fail(w, http.StatusNotFound, fmt.Sprintf("%v: %s", types.ErrRuleNotFound, name))
		return
	}
	s.logger.Info("rule removed", "name", name)
	s.jsonResponse(w, http.StatusOK, envelope{Success: true, Message: "rule removed"})
}

// persist stores results when a storage backend is configured. Storage
// failures are logged and do not fail the request.
func (s *Server) persist(ctx context.Context, results []*types.CrawlResult) {
	if s.deps.Storage == nil || len(results) == 0 {
		return
	}
	if err := s.deps.Storage.Store(ctx, results); err != nil {
		s.logger.Error("store results failed", "backend", s.deps.Storage.Name(), "error", err)
	}
}

func validateKeyword(raw string) (string, string) {
	keyword := strings.TrimSpace(raw)
	if keyword == "" {
		return "", "keyword is required"
	}
	if utf8.RuneCountInString(keyword) > maxKeywordRunes {
		return "", fmt.Sprintf("keyword must be at most %d characters", maxKeywordRunes)
	}
	return keyword, ""
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string) {
	s.jsonResponse(w, status, envelope{Success: false, Message: msg})
}

func (s *Server) serverError(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, types.ErrEmptyKeyword) {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error(msg, "error", err)
	s.fail(w, http.StatusInternalServerError, "internal server error")
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("write response failed", "error", err)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
