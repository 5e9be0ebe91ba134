package features

import (
	"sort"
	"sync"
)

// Predefined feature flag names
const (
	// FeatureResponseCache serves recent upstream payloads from the cache
	FeatureResponseCache = "response_cache"
	// FeatureSnapshotHistory records every published pricing state
	FeatureSnapshotHistory = "snapshot_history"
	// FeatureVisibilityRefresh refetches when the hosting page regains focus
	FeatureVisibilityRefresh = "visibility_refresh"
	// FeatureOfferPreview enables the offer evaluation endpoint
	FeatureOfferPreview = "offer_preview"
)

// FeatureFlag represents a feature flag configuration.
type FeatureFlag struct {
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

// Manager manages feature flags.
type Manager struct {
	mu    sync.RWMutex
	flags map[string]*FeatureFlag
}

// NewManager creates a new feature flag manager.
func NewManager() *Manager {
	return &Manager{
		flags: make(map[string]*FeatureFlag),
	}
}

// NewDefaultManager registers every predefined flag. overrides, keyed by
// flag name, replace the default enabled state.
func NewDefaultManager(overrides map[string]bool) *Manager {
	m := NewManager()
	m.Register(FeatureResponseCache, true, "serve recent upstream payloads from the cache")
	m.Register(FeatureSnapshotHistory, true, "record published pricing states")
	m.Register(FeatureVisibilityRefresh, true, "refetch when the page regains visibility")
	m.Register(FeatureOfferPreview, true, "preview offer activation at an arbitrary time")
	for name, enabled := range overrides {
		if enabled {
			m.Enable(name)
		} else {
			m.Disable(name)
		}
	}
	return m
}

// Register registers a new feature flag.
func (m *Manager) Register(name string, enabled bool, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flags[name] = &FeatureFlag{
		Name:        name,
		Enabled:     enabled,
		Description: description,
	}
}

// IsEnabled checks if a feature flag is enabled. Unknown flags are disabled.
func (m *Manager) IsEnabled(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	flag, exists := m.flags[name]
	if !exists {
		return false
	}

	return flag.Enabled
}

// Enable enables a feature flag.
func (m *Manager) Enable(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if flag, exists := m.flags[name]; exists {
		flag.Enabled = true
	}
}

// Disable disables a feature flag.
func (m *Manager) Disable(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if flag, exists := m.flags[name]; exists {
		flag.Enabled = false
	}
}

// GetAll returns a copy of every flag, sorted by name.
func (m *Manager) GetAll() []FeatureFlag {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]FeatureFlag, 0, len(m.flags))
	for _, v := range m.flags {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}
