// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/omnihub-ai/omnihub/pkg/logger"
	"github.com/omnihub-ai/omnihub/pkg/store"
)

// Registry holds the validated tool descriptors and keeps the store's
// catalogue table in sync with them.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
	store       store.Store
}

// New builds a Registry over the built-in descriptor set plus any extras.
// Discovery is best-effort: a descriptor that fails validation is logged
// and skipped, never aborting startup.
func New(s store.Store, extras ...Descriptor) *Registry {
	r := &Registry{
		descriptors: make(map[string]Descriptor),
		store:       s,
	}
	for _, d := range append(builtinDescriptors(), extras...) {
		if err := d.Validate(); err != nil {
			logger.Warnf("skipping invalid tool descriptor: %v", err)
			continue
		}
		r.descriptors[d.Name] = d
	}
	return r
}

// Sync upserts every descriptor into the store's catalogue. Run on each
// startup so the persisted catalogue tracks the compiled-in set.
func (r *Registry) Sync(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, d := range r.descriptors {
		record, err := d.record()
		if err != nil {
			return fmt.Errorf("tool %s: %w", name, err)
		}
		if err := r.store.UpsertRegistryTool(ctx, record); err != nil {
			return fmt.Errorf("failed to sync tool %s: %w", name, err)
		}
	}
	return nil
}

// Get returns the descriptor for a tool, or store.ErrNotFound.
func (r *Registry) Get(name string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[name]
	if !ok {
		return nil, fmt.Errorf("tool %s: %w", name, store.ErrNotFound)
	}
	return &d, nil
}

// List returns all descriptors sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ValidateConfig checks a user-supplied configuration document against the
// tool's schema. Returns the missing required keys (empty when valid) in
// schema order, or an error if the document could not be validated at all.
func (r *Registry) ValidateConfig(name string, config map[string]any) ([]string, error) {
	d, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, key := range d.ConfigSchema.Required {
		if v, ok := config[key]; !ok || v == nil || v == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return missing, nil
	}

	schema, err := d.CompileSchema()
	if err != nil {
		return nil, err
	}
	doc, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	if !result.Valid() {
		errs := result.Errors()
		return nil, fmt.Errorf("invalid config: %s", errs[0].String())
	}
	return nil, nil
}
