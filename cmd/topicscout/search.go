package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/topicscout/internal/app"
	"github.com/IshaanNene/topicscout/internal/search"
)

var (
	searchMaxResults int
	searchEngines    []string
	searchNoCrawl    bool
	searchBrowser    bool

	contentPlatforms []string
	contentPage      int
	contentLimit     int
)

// searchCmd creates the "search" subcommand.
func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search the web across engines, crawl the hits and rank them",
		Long: `Query one or more search engines for a keyword, crawl every result page
into a structured record, and print the records ranked by title relevance.`,
		Args: cobra.ExactArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().IntVarP(&searchMaxResults, "max-results", "n", 0, "maximum results (default from config)")
	cmd.Flags().StringSliceVarP(&searchEngines, "engines", "e", nil, fmt.Sprintf("engines to query %v", search.EngineNames()))
	cmd.Flags().BoolVar(&searchNoCrawl, "no-crawl", false, "return search snippets without crawling result pages")
	cmd.Flags().BoolVar(&searchBrowser, "browser", false, "render engine pages and result pages in the headless browser")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	return withApp(cmd, nil, func(ctx context.Context, a *app.App) error {
		opts := a.SearchOptions()
		if searchMaxResults > 0 {
			opts.MaxResults = searchMaxResults
		}
		if len(searchEngines) > 0 {
			opts.Engines = searchEngines
		}
		if searchNoCrawl {
			opts.CrawlResults = false
		}
		if searchBrowser {
			opts.UseBrowser = true
			opts.Crawl.UseBrowser = true
		}

		results, err := a.Search.SearchWeb(ctx, args[0], opts)
		if err != nil {
			return err
		}
		return emit(ctx, a, cmd.OutOrStdout(), results)
	})
}

// contentCmd creates the "content" subcommand.
func contentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content <keyword>",
		Short: "Search the web and social platforms and print one page of results",
		Args:  cobra.ExactArgs(1),
		RunE:  runContent,
	}

	cmd.Flags().StringSliceVarP(&contentPlatforms, "platforms", "p", []string{"web"},
		"platforms: web, weibo, douyin, xiaohongshu, zhihu, bilibili")
	cmd.Flags().IntVar(&contentPage, "page", 1, "1-based page number")
	cmd.Flags().IntVarP(&contentLimit, "limit", "l", 10, "results per page")
	return cmd
}

func runContent(cmd *cobra.Command, args []string) error {
	return withApp(cmd, nil, func(ctx context.Context, a *app.App) error {
		page, err := a.Platform.SearchPage(ctx, args[0], contentPlatforms, contentPage, contentLimit)
		if err != nil {
			return err
		}
		if err := persist(ctx, a, page.Results); err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), page)
	})
}
