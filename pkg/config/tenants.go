package config

import (
	"fmt"
	"sort"
)

// TenantRegistry is a read-only lookup of tenant configurations built at
// startup. Safe for concurrent use.
type TenantRegistry struct {
	tenants map[string]*TenantConfig
}

// NewTenantRegistry builds a registry from merged tenant configs.
func NewTenantRegistry(tenants map[string]*TenantConfig) *TenantRegistry {
	if tenants == nil {
		tenants = make(map[string]*TenantConfig)
	}
	return &TenantRegistry{tenants: tenants}
}

// Get returns the tenant config for id, or an error when unknown.
func (r *TenantRegistry) Get(id string) (*TenantConfig, error) {
	t, ok := r.tenants[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, id)
	}
	return t, nil
}

// Resolve returns the tenant config for id, falling back to the default
// tenant when id is empty or unknown.
func (r *TenantRegistry) Resolve(id string) *TenantConfig {
	if id == "" {
		id = DefaultTenantID
	}
	if t, ok := r.tenants[id]; ok {
		return t
	}
	if t, ok := r.tenants[DefaultTenantID]; ok {
		return t
	}
	// Registry always contains the default tenant after Initialize; this
	// path only matters for registries built directly in tests.
	return DefaultTenantConfig(DefaultTenantID)
}

// Has reports whether a tenant is configured.
func (r *TenantRegistry) Has(id string) bool {
	_, ok := r.tenants[id]
	return ok
}

// Len returns the number of configured tenants.
func (r *TenantRegistry) Len() int {
	return len(r.tenants)
}

// IDs returns the sorted tenant ids.
func (r *TenantRegistry) IDs() []string {
	ids := make([]string, 0, len(r.tenants))
	for id := range r.tenants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
