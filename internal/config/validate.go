package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/IshaanNene/topicscout/internal/types"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Crawler.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if cfg.Crawler.MaxRetries < 1 {
		return fmt.Errorf("crawler.max_retries must be >= 1, got %d", cfg.Crawler.MaxRetries)
	}
	if cfg.Crawler.RetryDelay < 0 {
		return fmt.Errorf("crawler.retry_delay must be >= 0")
	}
	if cfg.Crawler.RetryMultiplier < 1 {
		return fmt.Errorf("crawler.retry_multiplier must be >= 1, got %g", cfg.Crawler.RetryMultiplier)
	}
	if cfg.Crawler.RequestDelay < 0 {
		return fmt.Errorf("crawler.request_delay must be >= 0")
	}
	if len(cfg.Crawler.UserAgents) == 0 {
		return fmt.Errorf("crawler.user_agents must not be empty")
	}

	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if cfg.Browser.ViewportWidth <= 0 || cfg.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport must be positive, got %dx%d", cfg.Browser.ViewportWidth, cfg.Browser.ViewportHeight)
	}
	if cfg.Browser.WaitSelectorTimeout <= 0 {
		return fmt.Errorf("browser.wait_selector_timeout must be > 0")
	}
	if cfg.Redirect.Timeout <= 0 {
		return fmt.Errorf("redirect.timeout must be > 0")
	}

	if len(cfg.Search.Engines) == 0 {
		return fmt.Errorf("search.engines must not be empty")
	}
	if cfg.Search.MaxResults < 1 {
		return fmt.Errorf("search.max_results must be >= 1, got %d", cfg.Search.MaxResults)
	}

	if cfg.Proxy.Enabled {
		if cfg.Proxy.Rotation != "round_robin" && cfg.Proxy.Rotation != "random" {
			return fmt.Errorf("proxy.rotation must be 'round_robin' or 'random', got %q", cfg.Proxy.Rotation)
		}
		for _, proxyURL := range cfg.Proxy.URLs {
			if _, err := url.Parse(proxyURL); err != nil {
				return fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
			}
		}
	}

	validStorageTypes := map[string]bool{
		"json": true, "jsonl": true, "csv": true, "mongodb": true,
	}
	for _, t := range StorageTypes(cfg.Storage.Type) {
		if !validStorageTypes[t] {
			return fmt.Errorf("storage.type %q is not supported (valid: json, jsonl, csv, mongodb)", t)
		}
		if t == "mongodb" && cfg.Storage.MongoURI == "" {
			return fmt.Errorf("storage.mongo_uri is required for mongodb storage")
		}
	}
	if len(StorageTypes(cfg.Storage.Type)) == 0 {
		return fmt.Errorf("storage.type must not be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

// ValidateURL checks if a URL string is valid for crawling. The returned
// error wraps types.ErrInvalidURL.
func ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("%w: empty", types.ErrInvalidURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", types.ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", types.ErrInvalidURL)
	}
	return nil
}

// StorageTypes splits a comma-separated storage.type into backend names.
func StorageTypes(spec string) []string {
	var out []string
	for _, t := range strings.Split(spec, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
