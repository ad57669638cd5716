package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/topicscout/internal/config"
	"github.com/IshaanNene/topicscout/internal/types"
)

// Browser is the process-wide headless browser handle. The process is
// started lazily by the first Acquire and stopped only by Shutdown, which
// the application root must call on exit.
type Browser struct {
	cfg     config.BrowserConfig
	proxies *ProxyManager
	logger  *slog.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	closed   bool
}

// NewBrowser creates an unstarted browser handle. The proxy manager may be nil.
func NewBrowser(cfg *config.Config, proxies *ProxyManager, logger *slog.Logger) *Browser {
	return &Browser{
		cfg:     cfg.Browser,
		proxies: proxies,
		logger:  logger.With("component", "browser"),
	}
}

// Acquire opens a new page bound to ctx, booting the browser on first use.
// Every acquired page must be handed back with Release.
func (b *Browser) Acquire(ctx context.Context) (*rod.Page, error) {
	browser, err := b.ensure()
	if err != nil {
		return nil, err
	}

	var page *rod.Page
	if b.cfg.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	return page.Context(ctx), nil
}

// Release closes a page obtained from Acquire.
func (b *Browser) Release(page *rod.Page) {
	if page == nil {
		return
	}
	if err := page.Close(); err != nil {
		b.logger.Debug("page close failed", "error", err)
	}
}

// Running reports whether the browser process has been started.
func (b *Browser) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.browser != nil
}

// Shutdown stops the browser process. It is safe to call more than once;
// Acquire fails with types.ErrBrowserClosed afterwards.
func (b *Browser) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	if b.browser == nil {
		return nil
	}

	err := b.browser.Close()
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
	b.browser = nil
	b.launcher = nil
	b.logger.Info("browser shut down")
	return err
}

// ensure returns the running browser, launching it if needed. A failed
// launch is not cached, so the next attempt tries again.
func (b *Browser) ensure() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, types.ErrBrowserClosed
	}
	if b.browser != nil {
		return b.browser, nil
	}

	l := launcher.New().
		Headless(b.cfg.Headless).
		NoSandbox(b.cfg.NoSandbox).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled").
		Set("window-size", fmt.Sprintf("%d,%d", b.cfg.ViewportWidth, b.cfg.ViewportHeight))
	if b.cfg.Bin != "" {
		l = l.Bin(b.cfg.Bin)
	}
	if b.proxies != nil {
		if proxyURL := b.proxies.Next(); proxyURL != nil {
			l = l.Proxy(proxyURL.String())
		}
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, &types.BrowserInitError{Err: fmt.Errorf("launch: %w", err)}
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, &types.BrowserInitError{Err: fmt.Errorf("connect: %w", err)}
	}

	b.browser = browser
	b.launcher = l
	b.logger.Info("browser started", "headless", b.cfg.Headless, "stealth", b.cfg.Stealth)
	return browser, nil
}

// BrowserFetcher implements RenderedFetcher and Navigator on top of the
// shared Browser. It does not own the browser.
type BrowserFetcher struct {
	browser        *Browser
	cfg            config.BrowserConfig
	userAgent      string
	acceptLanguage string
	logger         *slog.Logger
}

// NewBrowserFetcher creates a rendered fetcher over browser.
func NewBrowserFetcher(browser *Browser, cfg *config.Config, logger *slog.Logger) *BrowserFetcher {
	ua := ""
	if len(cfg.Crawler.UserAgents) > 0 {
		ua = cfg.Crawler.UserAgents[0]
	}
	return &BrowserFetcher{
		browser:        browser,
		cfg:            cfg.Browser,
		userAgent:      ua,
		acceptLanguage: cfg.Crawler.AcceptLanguage,
		logger:         logger.With("component", "browser_fetcher"),
	}
}

// FetchRendered loads url in a fresh page, waits for the network to go
// mostly idle plus the settle delay, optionally waits (bounded) for
// waitSelector, and returns the rendered HTML. The page is always closed.
func (f *BrowserFetcher) FetchRendered(ctx context.Context, rawURL, waitSelector string, headers map[string]string) (string, error) {
	start := time.Now()

	page, err := f.browser.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer f.browser.Release(page)

	if err := f.prepare(page, headers); err != nil {
		return "", &types.NetworkError{URL: rawURL, Err: err}
	}

	if err := navigate(page, rawURL); err != nil {
		return "", &types.NetworkError{URL: rawURL, Err: err}
	}

	if err := sleepCtx(ctx, f.cfg.SettleDelay); err != nil {
		return "", &types.NetworkError{URL: rawURL, Err: err}
	}

	if waitSelector != "" {
		bounded := page.Timeout(f.cfg.WaitSelectorTimeout)
		if _, err := bounded.Element(waitSelector); err != nil {
			f.logger.Warn("wait selector timeout, continuing", "url", rawURL, "selector", waitSelector, "error", err)
		}
		bounded.CancelTimeout()
	}

	html, err := page.HTML()
	if err != nil {
		return "", &types.NetworkError{URL: rawURL, Err: fmt.Errorf("read html: %w", err)}
	}

	f.logger.Debug("rendered fetch complete",
		"url", rawURL,
		"size", len(html),
		"duration", time.Since(start),
	)
	return html, nil
}

// NavigationChain loads url and returns every top-level document request
// observed, followed by the page's final URL.
func (f *BrowserFetcher) NavigationChain(ctx context.Context, rawURL string) ([]string, error) {
	page, err := f.browser.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer f.browser.Release(page)

	if err := f.prepare(page, nil); err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		chain []string
	)
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	wait := page.Context(watchCtx).EachEvent(func(e *proto.NetworkRequestWillBeSent) {
		if e.Type != proto.NetworkResourceTypeDocument || e.Request == nil {
			return
		}
		mu.Lock()
		chain = append(chain, e.Request.URL)
		mu.Unlock()
	})
	go wait()

	if err := navigate(page, rawURL); err != nil {
		return nil, err
	}

	stopWatch()
	mu.Lock()
	out := append([]string(nil), chain...)
	mu.Unlock()

	if info, err := page.Info(); err == nil && info != nil && info.URL != "" {
		out = append(out, info.URL)
	}
	return out, nil
}

// prepare applies viewport, identity headers and the anti-detection shims.
func (f *BrowserFetcher) prepare(page *rod.Page, headers map[string]string) error {
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             f.cfg.ViewportWidth,
		Height:            f.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}

	if f.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      f.userAgent,
			AcceptLanguage: f.acceptLanguage,
		}); err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
	}

	extra := []string{"Cache-Control", "no-cache", "Pragma", "no-cache"}
	for k, v := range headers {
		if k == "User-Agent" {
			continue
		}
		extra = append(extra, k, v)
	}
	if _, err := page.SetExtraHeaders(extra); err != nil {
		return fmt.Errorf("set headers: %w", err)
	}

	if _, err := page.EvalOnNewDocument(antiDetectionJS); err != nil {
		return fmt.Errorf("inject shims: %w", err)
	}
	return nil
}

// navigate loads url and blocks until the network is mostly idle.
func navigate(page *rod.Page, rawURL string) error {
	wait := page.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	if err := page.Navigate(rawURL); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	wait()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
