package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/topicscout/internal/app"
	"github.com/IshaanNene/topicscout/internal/config"
	"github.com/IshaanNene/topicscout/internal/types"
)

var (
	cfgFile    string
	verbose    bool
	logFormat  string
	save       bool
	outputPath string
	outputType string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "topicscout",
		Short: "TopicScout: keyword search, page crawling and topic discovery",
		Long: `TopicScout searches the web and social platforms for a keyword, crawls
result pages into structured records, and suggests content topics.

Features:
  • Multi-engine web search (bing, baidu, duckduckgo, google) with relevance ranking
  • Site-type aware extraction rules with CSS and XPath selectors
  • Headless browser rendering for script-heavy pages
  • Weibo, Douyin, Xiaohongshu and Zhihu platform search
  • JSON, JSONL, CSV and MongoDB output
  • REST API with Prometheus metrics`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (default from config)")
	rootCmd.PersistentFlags().BoolVar(&save, "save", false, "also persist results to the configured storage")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "output directory for file storage")
	rootCmd.PersistentFlags().StringVarP(&outputType, "format", "f", "", "storage type: json, jsonl, csv, mongodb (comma-separated for several)")

	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(contentCmd())
	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(suggestCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

// loadConfig reads the config file and applies persistent flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if outputPath != "" {
		cfg.Storage.OutputPath = outputPath
	}
	if outputType != "" {
		cfg.Storage.Type = strings.ToLower(outputType)
	}
	return cfg, nil
}

// setupLogger creates a structured logger.
func setupLogger(cfg *config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// withApp loads configuration, builds the application and runs fn with a
// context canceled on SIGINT/SIGTERM. The app (and its browser) is always
// closed before returning.
func withApp(cmd *cobra.Command, configure func(*config.Config), fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if configure != nil {
		configure(cfg)
	}
	logger := setupLogger(&cfg.Logging)

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = fn(ctx, a)
	if ctx.Err() != nil {
		logger.Info("interrupted, shutting down")
	}
	return err
}

// emit writes results as indented JSON to stdout and, with --save, to the
// configured storage.
func emit(ctx context.Context, a *app.App, w io.Writer, results []*types.CrawlResult) error {
	if err := persist(ctx, a, results); err != nil {
		return err
	}
	return writeJSON(w, results)
}

// persist stores results in the configured storage when --save is set.
func persist(ctx context.Context, a *app.App, results []*types.CrawlResult) error {
	if !save || len(results) == 0 {
		return nil
	}
	store, err := a.OpenStorage(ctx)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	storeErr := store.Store(ctx, results)
	return errors.Join(storeErr, store.Close())
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "TopicScout %s\n", config.Version)
		},
	}
}
