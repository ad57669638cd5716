package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for TopicScout.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"  yaml:"crawler"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"  yaml:"fetcher"`
	Browser  BrowserConfig  `mapstructure:"browser"  yaml:"browser"`
	Redirect RedirectConfig `mapstructure:"redirect" yaml:"redirect"`
	Search   SearchConfig   `mapstructure:"search"   yaml:"search"`
	Platform PlatformConfig `mapstructure:"platform" yaml:"platform"`
	Rules    RulesConfig    `mapstructure:"rules"    yaml:"rules"`
	Proxy    ProxyConfig    `mapstructure:"proxy"    yaml:"proxy"`
	Storage  StorageConfig  `mapstructure:"storage"  yaml:"storage"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
	AI       AIConfig       `mapstructure:"ai"       yaml:"ai"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// CrawlerConfig controls per-page crawling.
type CrawlerConfig struct {
	RequestTimeout   time.Duration `mapstructure:"request_timeout"    yaml:"request_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"        yaml:"max_retries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"        yaml:"retry_delay"`
	RetryMultiplier  float64       `mapstructure:"retry_multiplier"   yaml:"retry_multiplier"`
	RequestDelay     time.Duration `mapstructure:"request_delay"      yaml:"request_delay"`
	UserAgents       []string      `mapstructure:"user_agents"        yaml:"user_agents"`
	AcceptLanguage   string        `mapstructure:"accept_language"    yaml:"accept_language"`
	MaxContentLength int           `mapstructure:"max_content_length" yaml:"max_content_length"`
	BlockedKeywords  []string      `mapstructure:"blocked_keywords"   yaml:"blocked_keywords"`
}

// FetcherConfig controls the lightweight HTTP fetcher.
type FetcherConfig struct {
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
}

// BrowserConfig controls the shared headless browser.
type BrowserConfig struct {
	Headless            bool          `mapstructure:"headless"              yaml:"headless"`
	Bin                 string        `mapstructure:"bin"                   yaml:"bin"`
	NoSandbox           bool          `mapstructure:"no_sandbox"            yaml:"no_sandbox"`
	Stealth             bool          `mapstructure:"stealth"               yaml:"stealth"`
	ViewportWidth       int           `mapstructure:"viewport_width"        yaml:"viewport_width"`
	ViewportHeight      int           `mapstructure:"viewport_height"       yaml:"viewport_height"`
	SettleDelay         time.Duration `mapstructure:"settle_delay"          yaml:"settle_delay"`
	WaitSelectorTimeout time.Duration `mapstructure:"wait_selector_timeout" yaml:"wait_selector_timeout"`
}

// RedirectConfig controls wrapper-URL resolution.
type RedirectConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SearchConfig holds the defaults for web searches.
type SearchConfig struct {
	Engines      []string `mapstructure:"engines"       yaml:"engines"`
	MaxResults   int      `mapstructure:"max_results"   yaml:"max_results"`
	CrawlResults bool     `mapstructure:"crawl_results" yaml:"crawl_results"`
	UseBrowser   bool     `mapstructure:"use_browser"   yaml:"use_browser"`
}

// PlatformConfig controls the platform fan-out.
type PlatformConfig struct {
	WebEngines     []string      `mapstructure:"web_engines"     yaml:"web_engines"`
	WebUseBrowser  bool          `mapstructure:"web_use_browser" yaml:"web_use_browser"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MockFallback   bool          `mapstructure:"mock_fallback"   yaml:"mock_fallback"`
}

// RulesConfig lists extra extraction rule files loaded at startup.
type RulesConfig struct {
	Files []string `mapstructure:"files" yaml:"files"`
}

// ProxyConfig controls proxy rotation.
type ProxyConfig struct {
	Enabled  bool     `mapstructure:"enabled"  yaml:"enabled"`
	Rotation string   `mapstructure:"rotation" yaml:"rotation"`
	URLs     []string `mapstructure:"urls"     yaml:"urls"`
}

// StorageConfig controls output/storage.
type StorageConfig struct {
	Type            string `mapstructure:"type"             yaml:"type"`
	OutputPath      string `mapstructure:"output_path"      yaml:"output_path"`
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// AIConfig controls LLM integration for topic suggestions.
type AIConfig struct {
	Provider    string  `mapstructure:"provider"    yaml:"provider"`
	Model       string  `mapstructure:"model"       yaml:"model"`
	Endpoint    string  `mapstructure:"endpoint"    yaml:"endpoint"`
	APIKey      string  `mapstructure:"api_key"     yaml:"api_key"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"  yaml:"max_tokens"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Crawler: CrawlerConfig{
			RequestTimeout:  30 * time.Second,
			MaxRetries:      3,
			RetryDelay:      2 * time.Second,
			RetryMultiplier: 1.0,
			RequestDelay:    1 * time.Second,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
			AcceptLanguage:   "zh-CN,zh;q=0.9,en;q=0.8",
			MaxContentLength: 5000,
		},
		Fetcher: FetcherConfig{
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
		},
		Browser: BrowserConfig{
			Headless:            true,
			NoSandbox:           true,
			Stealth:             true,
			ViewportWidth:       1920,
			ViewportHeight:      1080,
			SettleDelay:         2 * time.Second,
			WaitSelectorTimeout: 10 * time.Second,
		},
		Redirect: RedirectConfig{
			Timeout: 10 * time.Second,
		},
		Search: SearchConfig{
			Engines:      []string{"bing"},
			MaxResults:   20,
			CrawlResults: true,
		},
		Platform: PlatformConfig{
			WebEngines:     []string{"baidu"},
			WebUseBrowser:  true,
			RequestTimeout: 15 * time.Second,
			MockFallback:   true,
		},
		Proxy: ProxyConfig{
			Rotation: "round_robin",
		},
		Storage: StorageConfig{
			Type:            "json",
			OutputPath:      "./output",
			MongoDatabase:   "topicscout",
			MongoCollection: "results",
		},
		API: APIConfig{
			Addr: ":8080",
		},
		AI: AIConfig{
			Provider:    "ollama",
			Model:       "llama3.2",
			Endpoint:    "http://localhost:11434",
			Temperature: 0.7,
			MaxTokens:   2000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
