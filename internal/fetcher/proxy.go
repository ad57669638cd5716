package fetcher

import (
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/IshaanNene/topicscout/internal/config"
)

// ProxyManager rotates outbound proxies for both fetchers.
type ProxyManager struct {
	mu       sync.RWMutex
	proxies  []*url.URL
	rotation string
	index    atomic.Int64
	logger   *slog.Logger
}

// NewProxyManager creates a ProxyManager from configuration. It returns nil
// when proxying is disabled or no valid URL is configured.
func NewProxyManager(cfg *config.ProxyConfig, logger *slog.Logger) *ProxyManager {
	if !cfg.Enabled {
		return nil
	}
	pm := &ProxyManager{
		rotation: cfg.Rotation,
		logger:   logger.With("component", "proxy_manager"),
	}
	for _, raw := range cfg.URLs {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			pm.logger.Warn("invalid proxy URL", "url", raw, "error", err)
			continue
		}
		pm.proxies = append(pm.proxies, u)
	}
	if len(pm.proxies) == 0 {
		return nil
	}
	pm.logger.Info("proxy manager initialized", "count", len(pm.proxies), "rotation", cfg.Rotation)
	return pm
}

// ProxyFunc returns an http.Transport-compatible proxy function.
func (pm *ProxyManager) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(*http.Request) (*url.URL, error) {
		return pm.Next(), nil
	}
}

// Next returns the next proxy, or nil for a direct connection.
func (pm *ProxyManager) Next() *url.URL {
	if pm == nil {
		return nil
	}
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	if len(pm.proxies) == 0 {
		return nil
	}
	if pm.rotation == "random" {
		return pm.proxies[rand.Intn(len(pm.proxies))]
	}
	idx := pm.index.Add(1) % int64(len(pm.proxies))
	return pm.proxies[idx]
}

// Count returns the number of configured proxies.
func (pm *ProxyManager) Count() int {
	if pm == nil {
		return 0
	}
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.proxies)
}
