package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/IshaanNene/topicscout/internal/types"
)

func createFile(path, backend string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &types.StorageError{Backend: backend, Err: fmt.Errorf("create output dir: %w", err)}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, &types.StorageError{Backend: backend, Err: fmt.Errorf("create output file: %w", err)}
	}
	return f, nil
}

// --- JSON Storage ---

// JSONStorage buffers results and writes them as one JSON array on Close.
type JSONStorage struct {
	path    string
	results []*types.CrawlResult
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewJSONStorage creates a new JSON file storage.
func NewJSONStorage(outputPath string, logger *slog.Logger) (*JSONStorage, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, &types.StorageError{Backend: "json", Err: fmt.Errorf("create output dir: %w", err)}
	}
	return &JSONStorage{
		path:    outputPath,
		results: make([]*types.CrawlResult, 0),
		logger:  logger.With("component", "json_storage"),
	}, nil
}

func (s *JSONStorage) Name() string { return "json" }

func (s *JSONStorage) Store(_ context.Context, results []*types.CrawlResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, results...)
	s.logger.Debug("results buffered", "count", len(results), "total", len(s.results))
	return nil
}

func (s *JSONStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := createFile(s.path, "json")
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s.results); err != nil {
		return &types.StorageError{Backend: "json", Err: fmt.Errorf("encode: %w", err)}
	}

	s.logger.Info("JSON written", "path", s.path, "results", len(s.results))
	return nil
}

// --- JSONL Storage ---

// JSONLStorage streams results as newline-delimited JSON.
type JSONLStorage struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLStorage creates a new JSONL file storage.
func NewJSONLStorage(outputPath string, logger *slog.Logger) (*JSONLStorage, error) {
	f, err := createFile(outputPath, "jsonl")
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return &JSONLStorage{
		path:   outputPath,
		file:   f,
		enc:    enc,
		logger: logger.With("component", "jsonl_storage"),
	}, nil
}

func (s *JSONLStorage) Name() string { return "jsonl" }

func (s *JSONLStorage) Store(_ context.Context, results []*types.CrawlResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range results {
		if err := s.enc.Encode(r); err != nil {
			return &types.StorageError{Backend: "jsonl", Err: fmt.Errorf("encode: %w", err)}
		}
		s.count++
	}
	return nil
}

func (s *JSONLStorage) Close() error {
	s.logger.Info("JSONL written", "path", s.path, "results", s.count)
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// --- CSV Storage ---

var csvHeader = []string{
	"id", "title", "url", "platform", "site_type", "author", "publish_time",
	"views", "likes", "comments", "shares", "images", "content",
}

// CSVStorage writes one row per result.
type CSVStorage struct {
	path   string
	file   *os.File
	writer *csv.Writer
	header bool
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewCSVStorage creates a new CSV file storage.
func NewCSVStorage(outputPath string, logger *slog.Logger) (*CSVStorage, error) {
	f, err := createFile(outputPath, "csv")
	if err != nil {
		return nil, err
	}
	return &CSVStorage{
		path:   outputPath,
		file:   f,
		writer: csv.NewWriter(f),
		logger: logger.With("component", "csv_storage"),
	}, nil
}

func (s *CSVStorage) Name() string { return "csv" }

func (s *CSVStorage) Store(_ context.Context, results []*types.CrawlResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.header {
		if err := s.writer.Write(csvHeader); err != nil {
			return &types.StorageError{Backend: "csv", Err: fmt.Errorf("write header: %w", err)}
		}
		s.header = true
	}
	for _, r := range results {
		if err := s.writer.Write(csvRow(r)); err != nil {
			return &types.StorageError{Backend: "csv", Err: fmt.Errorf("write row: %w", err)}
		}
		s.count++
	}

	s.writer.Flush()
	return s.writer.Error()
}

func (s *CSVStorage) Close() error {
	s.logger.Info("CSV written", "path", s.path, "results", s.count)
	if s.writer != nil {
		s.writer.Flush()
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

func csvRow(r *types.CrawlResult) []string {
	var m types.Metrics
	if r.Metrics != nil {
		m = *r.Metrics
	}
	num := func(n int64) string { return strconv.FormatInt(n, 10) }
	return []string{
		r.ID, r.Title, r.URL, r.Platform, string(r.SiteType), r.Author, r.PublishTime,
		num(m.Views), num(m.Likes), num(m.Comments), num(m.Shares),
		strings.Join(r.Images, " "), r.Content,
	}
}
