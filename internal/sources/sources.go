// Package sources manages the configuration of external listing sources.
// Sources are loaded from a YAML registry file, validated, and exposed
// read-only; administrative mutation happens in the file, not at runtime.
package sources

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rentwatch/rentwatch/internal/domain"
	"github.com/rentwatch/rentwatch/internal/logger"
)

// Common errors returned by the sources package.
var (
	// ErrSourceNotFound is returned when a source id is not in the registry.
	ErrSourceNotFound = errors.New("source not found")
	// ErrSourceDisabled is returned when a looked-up source is disabled.
	ErrSourceDisabled = errors.New("source is disabled")
)

// Interface defines the read-only interface for accessing sources.
type Interface interface {
	// Get returns the source with the given id, enabled or not.
	Get(sourceID string) (*domain.SourceConfig, error)
	// GetEnabled returns the source with the given id, or ErrSourceDisabled.
	GetEnabled(sourceID string) (*domain.SourceConfig, error)
	// All returns every configured source ordered by descending priority.
	All() []domain.SourceConfig
	// Enabled returns enabled sources ordered by descending priority.
	Enabled() []domain.SourceConfig
}

// Registry holds a loaded, validated collection of sources.
type Registry struct {
	byID    map[string]domain.SourceConfig
	ordered []domain.SourceConfig
	logger  logger.Interface
	mu      sync.RWMutex
}

// Ensure Registry implements Interface
var _ Interface = (*Registry)(nil)

// NewRegistry builds a registry from already-validated source configs.
func NewRegistry(configs []domain.SourceConfig, log logger.Interface) *Registry {
	byID := make(map[string]domain.SourceConfig, len(configs))
	ordered := make([]domain.SourceConfig, len(configs))
	copy(ordered, configs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	for _, cfg := range ordered {
		byID[cfg.ID] = cfg
	}
	return &Registry{byID: byID, ordered: ordered, logger: log}
}

// LoadRegistry loads, validates, and indexes the source registry file.
func LoadRegistry(path string, log logger.Interface) (*Registry, error) {
	configs, err := LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources from %s: %w", path, err)
	}
	for i := range configs {
		if err := Validate(&configs[i]); err != nil {
			return nil, fmt.Errorf("invalid source %q: %w", configs[i].ID, err)
		}
	}
	if log != nil {
		log.Info("Sources loaded", "count", len(configs), "path", path)
	}
	return NewRegistry(configs, log), nil
}

// Get returns the source with the given id, enabled or not.
func (r *Registry) Get(sourceID string) (*domain.SourceConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.byID[sourceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, sourceID)
	}
	return &cfg, nil
}

// GetEnabled returns the source with the given id if it is enabled.
func (r *Registry) GetEnabled(sourceID string) (*domain.SourceConfig, error) {
	cfg, err := r.Get(sourceID)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrSourceDisabled, sourceID)
	}
	return cfg, nil
}

// All returns every configured source ordered by descending priority.
func (r *Registry) All() []domain.SourceConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.SourceConfig, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Enabled returns enabled sources ordered by descending priority.
func (r *Registry) Enabled() []domain.SourceConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.SourceConfig, 0, len(r.ordered))
	for _, cfg := range r.ordered {
		if cfg.Enabled {
			out = append(out, cfg)
		}
	}
	return out
}
