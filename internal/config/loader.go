package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and defaults.
// Priority (highest to lowest): env vars > config file > defaults.
// CLI flags are applied on top by the caller.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("TOPICSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("topicscout")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".topicscout"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env overrides resolve.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("crawler.request_timeout", cfg.Crawler.RequestTimeout)
	v.SetDefault("crawler.max_retries", cfg.Crawler.MaxRetries)
	v.SetDefault("crawler.retry_delay", cfg.Crawler.RetryDelay)
	v.SetDefault("crawler.retry_multiplier", cfg.Crawler.RetryMultiplier)
	v.SetDefault("crawler.request_delay", cfg.Crawler.RequestDelay)
	v.SetDefault("crawler.user_agents", cfg.Crawler.UserAgents)
	v.SetDefault("crawler.accept_language", cfg.Crawler.AcceptLanguage)
	v.SetDefault("crawler.blocked_keywords", cfg.Crawler.BlockedKeywords)
	v.SetDefault("crawler.max_content_length", cfg.Crawler.MaxContentLength)

	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.tls_insecure", cfg.Fetcher.TLSInsecure)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)

	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.bin", cfg.Browser.Bin)
	v.SetDefault("browser.no_sandbox", cfg.Browser.NoSandbox)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)
	v.SetDefault("browser.viewport_width", cfg.Browser.ViewportWidth)
	v.SetDefault("browser.viewport_height", cfg.Browser.ViewportHeight)
	v.SetDefault("browser.settle_delay", cfg.Browser.SettleDelay)
	v.SetDefault("browser.wait_selector_timeout", cfg.Browser.WaitSelectorTimeout)

	v.SetDefault("redirect.timeout", cfg.Redirect.Timeout)

	v.SetDefault("search.engines", cfg.Search.Engines)
	v.SetDefault("search.max_results", cfg.Search.MaxResults)
	v.SetDefault("search.crawl_results", cfg.Search.CrawlResults)
	v.SetDefault("search.use_browser", cfg.Search.UseBrowser)

	v.SetDefault("platform.web_engines", cfg.Platform.WebEngines)
	v.SetDefault("platform.web_use_browser", cfg.Platform.WebUseBrowser)
	v.SetDefault("platform.request_timeout", cfg.Platform.RequestTimeout)
	v.SetDefault("platform.mock_fallback", cfg.Platform.MockFallback)

	v.SetDefault("rules.files", cfg.Rules.Files)

	v.SetDefault("proxy.enabled", cfg.Proxy.Enabled)
	v.SetDefault("proxy.rotation", cfg.Proxy.Rotation)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.output_path", cfg.Storage.OutputPath)
	v.SetDefault("storage.mongo_uri", cfg.Storage.MongoURI)
	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)
	v.SetDefault("storage.mongo_collection", cfg.Storage.MongoCollection)

	v.SetDefault("api.addr", cfg.API.Addr)

	v.SetDefault("ai.provider", cfg.AI.Provider)
	v.SetDefault("ai.model", cfg.AI.Model)
	v.SetDefault("ai.endpoint", cfg.AI.Endpoint)
	v.SetDefault("ai.api_key", cfg.AI.APIKey)
	v.SetDefault("ai.temperature", cfg.AI.Temperature)
	v.SetDefault("ai.max_tokens", cfg.AI.MaxTokens)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}
