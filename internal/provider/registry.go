package provider

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/spectersec/specter/pkg/models"
)

// staticKeywords and dynamicKeywords classify providers into capability
// partitions by name. Unknown providers default to static.
var (
	staticKeywords  = []string{"ghidra", "string", "floss", "hashdb", "capa"}
	dynamicKeywords = []string{"vm", "procmon", "wireshark", "sandbox", "run", "exec", "vagrant"}
)

// ClassifyRole returns the capability partition a provider name belongs to.
func ClassifyRole(name string) models.Role {
	lower := strings.ToLower(name)
	for _, k := range staticKeywords {
		if strings.Contains(lower, k) {
			return models.RoleStatic
		}
	}
	for _, k := range dynamicKeywords {
		if strings.Contains(lower, k) {
			return models.RoleDynamic
		}
	}
	return models.RoleStatic
}

// providerEntry is one provider definition in providers.yaml.
type providerEntry struct {
	Transport  string      `yaml:"transport"`
	Command    string      `yaml:"command"`
	Args       []string    `yaml:"args"`
	Operations []Operation `yaml:"operations"`
}

type providersFile struct {
	Providers map[string]providerEntry `yaml:"providers"`
}

// Registry classifies configured providers into capability partitions and
// resolves them by name or by role.
type Registry struct {
	mu         sync.RWMutex
	providers  map[string]Provider
	partitions map[models.Role][]string
	path       string
}

// NewRegistry builds a registry from already constructed providers. Used by
// tests and by callers that build providers programmatically.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{
		providers:  make(map[string]Provider),
		partitions: make(map[models.Role][]string),
	}
	for _, p := range providers {
		r.add(p)
	}
	return r
}

// LoadFile reads a providers.yaml inventory and builds the registry.
// Relative script paths in the first argument resolve against the file's
// directory, matching how inventories are usually written.
func LoadFile(path string) (*Registry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve providers file: %w", err)
	}

	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}

	var file providersFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", abs, err)
	}
	if len(file.Providers) == 0 {
		return nil, fmt.Errorf("%s: no providers defined", abs)
	}

	r := NewRegistry()
	r.path = abs

	for name, entry := range file.Providers {
		if entry.Transport != "stdio" {
			return nil, fmt.Errorf("provider %s: unsupported transport %q (only stdio)", name, entry.Transport)
		}
		if strings.TrimSpace(entry.Command) == "" {
			return nil, fmt.Errorf("provider %s: stdio requires a command", name)
		}

		args := append([]string(nil), entry.Args...)
		if len(args) > 0 && strings.HasSuffix(args[0], ".py") && !filepath.IsAbs(args[0]) {
			args[0] = filepath.Join(filepath.Dir(abs), args[0])
		}

		r.add(NewStdioProvider(name, entry.Command, args, entry.Operations))
	}

	return r, nil
}

func (r *Registry) add(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	r.providers[name] = p
	role := ClassifyRole(name)
	r.partitions[role] = append(r.partitions[role], name)
	sort.Strings(r.partitions[role])
}

// Path returns the inventory file the registry was loaded from, if any.
func (r *Registry) Path() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.path
}

// Get returns the provider with the given name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// ForRole returns the providers in the role's capability partition, sorted
// by name.
func (r *Registry) ForRole(role models.Role) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.partitions[role]
	out := make([]Provider, 0, len(names))
	for _, n := range names {
		out = append(out, r.providers[n])
	}
	return out
}

// HasCapability reports whether at least one provider is configured for
// the role's partition.
func (r *Registry) HasCapability(role models.Role) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.partitions[role]) > 0
}

// Inventory returns provider names per worker role, for the planner input
// and CLI display.
func (r *Registry) Inventory() map[models.Role][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[models.Role][]string, len(r.partitions))
	for role, names := range r.partitions {
		out[role] = append([]string(nil), names...)
	}
	return out
}

// AvailableWorkerRoles returns the worker roles that have at least one
// configured provider.
func (r *Registry) AvailableWorkerRoles() []models.Role {
	var roles []models.Role
	for _, role := range models.WorkerRoles() {
		if r.HasCapability(role) {
			roles = append(roles, role)
		}
	}
	return roles
}

// replaceFrom swaps in the providers and partitions from another registry.
func (r *Registry) replaceFrom(other *Registry) {
	other.mu.RLock()
	providers := other.providers
	partitions := other.partitions
	other.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = providers
	r.partitions = partitions
}
