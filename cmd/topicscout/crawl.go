package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/topicscout/internal/app"
	"github.com/IshaanNene/topicscout/internal/config"
	"github.com/IshaanNene/topicscout/internal/types"
)

var (
	crawlBrowser bool
	crawlWait    string
	crawlExclude []string
	crawlHeaders map[string]string
	crawlTimeout time.Duration
	crawlRetries int
	crawlDelay   time.Duration
)

// crawlCmd creates the "crawl" subcommand.
func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url> [url...]",
		Short: "Crawl pages into structured records",
		Long: `Fetch each URL (resolving search-engine redirect wrappers first), pick the
extraction rule for its site type, and print the extracted records. Several
URLs are crawled one at a time with the request delay between them; failed
URLs are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCrawl,
	}

	cmd.Flags().BoolVar(&crawlBrowser, "browser", false, "render pages in the headless browser")
	cmd.Flags().StringVar(&crawlWait, "wait-for", "", "CSS selector to wait for when rendering")
	cmd.Flags().StringSliceVar(&crawlExclude, "exclude", nil, "CSS selectors removed before extraction")
	cmd.Flags().StringToStringVarP(&crawlHeaders, "header", "H", nil, "extra request headers (key=value)")
	cmd.Flags().DurationVar(&crawlTimeout, "timeout", 0, "per-attempt timeout (default from config)")
	cmd.Flags().IntVar(&crawlRetries, "max-retries", 0, "attempts per URL (default from rule or config)")
	cmd.Flags().DurationVar(&crawlDelay, "delay", -1, "delay between URLs in a batch (default from config)")
	return cmd
}

func runCrawl(cmd *cobra.Command, args []string) error {
	for _, rawURL := range args {
		if err := config.ValidateURL(rawURL); err != nil {
			return fmt.Errorf("invalid URL %q: %w", rawURL, err)
		}
	}

	configure := func(cfg *config.Config) {
		if crawlDelay >= 0 {
			cfg.Crawler.RequestDelay = crawlDelay
		}
	}
	return withApp(cmd, configure, func(ctx context.Context, a *app.App) error {
		opts := a.Crawler.DefaultOptions()
		opts.UseBrowser = crawlBrowser
		opts.WaitSelector = crawlWait
		opts.ExcludeSelectors = crawlExclude
		opts.Headers = crawlHeaders
		if crawlTimeout > 0 {
			opts.Timeout = crawlTimeout
		}
		if crawlRetries > 0 {
			opts.MaxRetries = crawlRetries
		}

		if len(args) == 1 {
			res, err := a.Crawler.Crawl(ctx, args[0], opts)
			if err != nil {
				return fmt.Errorf("crawl %s: %w", args[0], err)
			}
			return emit(ctx, a, cmd.OutOrStdout(), []*types.CrawlResult{res})
		}
		return emit(ctx, a, cmd.OutOrStdout(), a.Crawler.BatchCrawl(ctx, args, opts))
	})
}
