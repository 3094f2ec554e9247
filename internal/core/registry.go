package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// SpecLoader supplies the column layout for a record type.
// Implementations return *ConfigNotFoundError when the type is unknown.
type SpecLoader interface {
	Load(recordType string) (RecordSpec, error)
}

// SpecRegistry caches record specs for its lifetime.
// Specs are loaded from the SpecLoader on first use and never mutated afterwards.
type SpecRegistry struct {
	loader SpecLoader

	mu    sync.RWMutex
	specs map[string]RecordSpec
}

// NewSpecRegistry creates a registry backed by loader. loader may be nil,
// in which case only specs added with Register are known.
func NewSpecRegistry(loader SpecLoader) *SpecRegistry {
	return &SpecRegistry{
		loader: loader,
		specs:  make(map[string]RecordSpec),
	}
}

// Register adds a spec to the registry.
// Returns an error if the spec is invalid or the type is already registered.
func (r *SpecRegistry) Register(spec RecordSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.specs[spec.Type]; exists {
		return fmt.Errorf("record type already registered: %s", spec.Type)
	}
	r.specs[spec.Type] = spec.canonical()
	return nil
}

// Get returns the spec for recordType, loading and caching it on first use.
func (r *SpecRegistry) Get(recordType string) (RecordSpec, error) {
	r.mu.RLock()
	spec, ok := r.specs[recordType]
	r.mu.RUnlock()
	if ok {
		return spec.clone(), nil
	}

	if r.loader == nil {
		return RecordSpec{}, &ConfigNotFoundError{RecordType: recordType}
	}

	loaded, err := r.loader.Load(recordType)
	if err != nil {
		var notFound *ConfigNotFoundError
		if errors.As(err, &notFound) {
			return RecordSpec{}, err
		}
		return RecordSpec{}, fmt.Errorf("load spec %s: %w", recordType, err)
	}
	if loaded.Type == "" {
		loaded.Type = recordType
	}
	if err := loaded.Validate(); err != nil {
		return RecordSpec{}, fmt.Errorf("invalid spec: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have loaded it meanwhile; first one wins.
	if existing, ok := r.specs[recordType]; ok {
		return existing.clone(), nil
	}
	loaded = loaded.canonical()
	r.specs[recordType] = loaded
	return loaded.clone(), nil
}

// Types returns all cached record types, sorted.
func (r *SpecRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.specs))
	for t := range r.specs {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Len returns the number of cached specs.
func (r *SpecRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.specs)
}

// Clear drops all cached specs.
// Primarily useful for testing.
func (r *SpecRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs = make(map[string]RecordSpec)
}
