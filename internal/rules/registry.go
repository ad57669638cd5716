package rules

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/IshaanNene/topicscout/internal/types"
)

// Registry holds extraction rules in insertion order. It is read-mostly:
// lookups take a read lock, Add and Remove replace single entries atomically.
// Rules returned by lookups are shared and must be treated as read-only.
type Registry struct {
	rules  map[string]*Rule
	order  []string
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		rules:  make(map[string]*Rule),
		logger: logger.With("component", "rule_registry"),
	}
}

// NewDefaultRegistry creates a registry preloaded with DefaultRules.
func NewDefaultRegistry(logger *slog.Logger) (*Registry, error) {
	r := NewRegistry(logger)
	for _, rule := range DefaultRules() {
		if err := r.Add(rule); err != nil {
			return nil, fmt.Errorf("load default rule %q: %w", rule.Name, err)
		}
	}
	return r, nil
}

// Add validates and stores a rule, replacing any rule with the same name
// in place.
func (r *Registry) Add(rule Rule) error {
	stored := rule.clone()
	if err := stored.compile(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rules[stored.Name]; !exists {
		r.order = append(r.order, stored.Name)
	}
	r.rules[stored.Name] = stored
	r.logger.Debug("rule added", "name", stored.Name, "site_type", stored.SiteType)
	return nil
}

// Remove deletes the named rule and reports whether it existed.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[name]; !ok {
		return false
	}
	delete(r.rules, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.logger.Debug("rule removed", "name", name)
	return true
}

// Get returns the named rule.
func (r *Registry) Get(name string) (*Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[name]
	return rule, ok
}

// All returns every rule in insertion order.
func (r *Registry) All() []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Rule, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.rules[n])
	}
	return out
}

// Len returns the number of rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// Match returns the first rule, in insertion order, with a URL pattern
// matching rawURL.
func (r *Registry) Match(rawURL string) (*Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range r.order {
		if rule := r.rules[n]; rule.Matches(rawURL) {
			return rule, true
		}
	}
	return nil, false
}

// BySiteType returns every rule tagged with st.
func (r *Registry) BySiteType(st types.SiteType) []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Rule
	for _, n := range r.order {
		if rule := r.rules[n]; rule.SiteType == st {
			out = append(out, rule)
		}
	}
	return out
}

// ForSiteType returns the base rule (one without URL patterns) for st,
// falling back to the news base rule and finally to a built-in rule.
// It never returns nil.
func (r *Registry) ForSiteType(st types.SiteType) *Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rule := r.baseLocked(st); rule != nil {
		return rule
	}
	if rule := r.baseLocked(types.SiteNews); rule != nil {
		return rule
	}
	return fallbackRule
}

// Resolve picks the rule for a page: a URL-pattern match first, then the
// base rule for the classified site type.
func (r *Registry) Resolve(rawURL string, st types.SiteType) *Rule {
	if rule, ok := r.Match(rawURL); ok {
		return rule
	}
	return r.ForSiteType(st)
}

func (r *Registry) baseLocked(st types.SiteType) *Rule {
	for _, n := range r.order {
		rule := r.rules[n]
		if rule.SiteType == st && len(rule.URLPatterns) == 0 {
			return rule
		}
	}
	return nil
}

// LoadJSON adds every rule from a JSON array and returns how many were added.
func (r *Registry) LoadJSON(rd io.Reader) (int, error) {
	var list []Rule
	if err := json.NewDecoder(rd).Decode(&list); err != nil {
		return 0, fmt.Errorf("decode rules: %w", err)
	}
	return r.addAll(list)
}

// LoadYAML adds every rule from a YAML sequence.
func (r *Registry) LoadYAML(rd io.Reader) (int, error) {
	var list []Rule
	if err := yaml.NewDecoder(rd).Decode(&list); err != nil {
		return 0, fmt.Errorf("decode rules: %w", err)
	}
	return r.addAll(list)
}

// LoadFile loads a .json, .yaml or .yml rule file.
func (r *Registry) LoadFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return r.LoadJSON(f)
	case ".yaml", ".yml":
		return r.LoadYAML(f)
	default:
		return 0, fmt.Errorf("unsupported rules file extension %q", filepath.Ext(path))
	}
}

// ExportJSON writes every rule as an indented JSON array.
func (r *Registry) ExportJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r.All())
}

func (r *Registry) addAll(list []Rule) (int, error) {
	for i, rule := range list {
		if err := r.Add(rule); err != nil {
			return i, err
		}
	}
	r.logger.Info("rules loaded", "count", len(list))
	return len(list), nil
}
