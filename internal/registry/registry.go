// Package registry holds the canonical in-memory map of server name to
// runtime record, mirrored to the durable configuration store. Exactly one
// ServerInfo exists per server name at any time; replacing a server's
// configuration updates the same entry in place.
//
// The registry never manages connection lifecycle: closing a replaced or
// removed server's handle is the connection supervisor's responsibility,
// invoked by the manager before registry mutations.
package registry

import (
	stderrors "errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/client"

	"github.com/beyondbetter/mcphub/internal/config"
	"github.com/beyondbetter/mcphub/internal/domain"
	"github.com/beyondbetter/mcphub/internal/errors"
)

// ServerInfo is the runtime record for one configured MCP server.
type ServerInfo struct {
	// Config is the connection recipe, mirrored from durable storage.
	Config config.ServerEntry

	// Client is the live connection handle. Only the connection supervisor
	// installs or replaces it; the registry just stores the reference.
	Client client.MCPClient

	// Capabilities discovered from the server, nil until introspected.
	Capabilities []domain.Capability

	// Resources is the cached last successful listing, nil when invalid.
	Resources []domain.ResourceMetadata

	// LastActivity is the time of the last successful operation.
	LastActivity time.Time
}

// Registry is safe for concurrent use by multiple goroutines.
// NewRegistry should be used to create instances of Registry.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]*ServerInfo
	store   config.Modifier
	logger  hclog.Logger
}

// NewRegistry creates a registry backed by the given durable store, seeded
// with the store's current server entries.
func NewRegistry(logger hclog.Logger, store config.Modifier) (*Registry, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("config store cannot be nil")
	}

	servers := make(map[string]*ServerInfo)
	for _, entry := range store.ListServers() {
		servers[entry.Name] = &ServerInfo{Config: entry}
	}

	return &Registry{
		servers: servers,
		store:   store,
		logger:  logger.Named("registry"),
	}, nil
}

// Has reports whether a server with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.servers[name]
	return ok
}

// Get returns a snapshot of the server's runtime record.
func (r *Registry) Get(name string) (ServerInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.servers[name]
	if !ok {
		return ServerInfo{}, false
	}
	return *info, true
}

// Set installs or replaces the full runtime record for a server.
// Callers normally use the narrower mutators below; Set exists for the
// manager's add path and for tests.
func (r *Registry) Set(name string, info ServerInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers[name] = &info
}

// Delete removes the in-memory record, reporting whether it existed.
func (r *Registry) Delete(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.servers[name]
	delete(r.servers, name)
	return ok
}

// Clear removes all in-memory records. Durable storage is untouched.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers = make(map[string]*ServerInfo)
}

// AddServer validates the entry, persists it to durable storage, and mirrors
// it into the in-memory map. If the name already exists the entry is replaced
// in place; the caller is responsible for having closed the old connection.
func (r *Registry) AddServer(entry config.ServerEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrConfiguration, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.servers[entry.Name]; exists {
		r.logger.Info("Replacing existing server configuration", "server", entry.Name)
	}

	// Persist first: losing a server configuration is a durable-state
	// regression, so a failed save must fail the whole operation.
	if err := r.store.AddServer(entry); err != nil {
		if stderrors.Is(err, config.ErrInvalidEntry) {
			return fmt.Errorf("%w: %w", errors.ErrConfiguration, err)
		}
		return errors.External("addServer", entry.Name, err)
	}

	if existing, ok := r.servers[entry.Name]; ok {
		existing.Config = entry
		// A changed recipe invalidates anything derived from the old one.
		existing.Capabilities = nil
		existing.Resources = nil
	} else {
		r.servers[entry.Name] = &ServerInfo{Config: entry}
	}

	return nil
}

// RemoveServer deletes the in-memory record and the durable entry. It does
// not close any live connection.
func (r *Registry) RemoveServer(name string) error {
	name = strings.TrimSpace(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.servers[name]; !ok {
		return fmt.Errorf("%w: %s", errors.ErrServerNotFound, name)
	}

	if err := r.store.RemoveServer(name); err != nil {
		return errors.External("removeServer", name, err)
	}

	delete(r.servers, name)
	return nil
}

// Servers returns all registered server names, sorted.
func (r *Registry) Servers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.servers))
}

// ServerConfiguration returns the configuration for a single server.
func (r *Registry) ServerConfiguration(name string) (config.ServerEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.servers[name]
	if !ok {
		return config.ServerEntry{}, false
	}
	return info.Config, true
}

// ServerConfigurations returns all configurations, sorted by name.
func (r *Registry) ServerConfigurations() []config.ServerEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]config.ServerEntry, 0, len(r.servers))
	for _, name := range slices.Sorted(maps.Keys(r.servers)) {
		entries = append(entries, r.servers[name].Config)
	}
	return entries
}

// ServerCapabilities returns the cached capability set for a server, nil when
// the server is unknown or not yet introspected.
func (r *Registry) ServerCapabilities(name string) []domain.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.servers[name]
	if !ok || info.Capabilities == nil {
		return nil
	}
	return slices.Clone(info.Capabilities)
}

// UpdateGlobalConfig refreshes the registry's cached view of durable storage
// after an external change, reconciling the in-memory map with the store's
// entries. Runtime state is preserved for servers whose config is unchanged.
func (r *Registry) UpdateGlobalConfig(store config.Modifier) error {
	if store == nil {
		return fmt.Errorf("config store cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.store = store

	fresh := make(map[string]struct{})
	for _, entry := range store.ListServers() {
		fresh[entry.Name] = struct{}{}

		if existing, ok := r.servers[entry.Name]; ok {
			if !reflect.DeepEqual(existing.Config, entry) {
				existing.Config = entry
				existing.Capabilities = nil
				existing.Resources = nil
			}
			continue
		}
		r.servers[entry.Name] = &ServerInfo{Config: entry}
	}

	for name := range r.servers {
		if _, ok := fresh[name]; !ok {
			r.logger.Info("Dropping server removed from configuration", "server", name)
			delete(r.servers, name)
		}
	}

	return nil
}

// Store exposes the durable configuration store. The OAuth service persists
// refreshed tokens through it; nothing else mutates it directly.
func (r *Registry) Store() config.Modifier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store
}

// SetClient installs or clears the live connection handle for a server.
// Only the connection supervisor calls this.
func (r *Registry) SetClient(name string, c client.MCPClient) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.servers[name]
	if !ok {
		return false
	}
	info.Client = c
	return true
}

// SetCapabilities stores the discovered capability set for a server.
func (r *Registry) SetCapabilities(name string, caps []domain.Capability) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.servers[name]
	if !ok {
		return false
	}
	info.Capabilities = slices.Clone(caps)
	return true
}

// SetResources caches a successful listing for a server. A nil listing is
// stored as empty; only InvalidateResources clears the cache.
func (r *Registry) SetResources(name string, resources []domain.ResourceMetadata) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.servers[name]
	if !ok {
		return false
	}
	if resources == nil {
		resources = []domain.ResourceMetadata{}
	}
	info.Resources = slices.Clone(resources)
	return true
}

// CachedResources returns the cached listing, or nil when no valid cache exists.
func (r *Registry) CachedResources(name string) []domain.ResourceMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.servers[name]
	if !ok || info.Resources == nil {
		return nil
	}
	return slices.Clone(info.Resources)
}

// InvalidateResources drops the cached listing after a mutating operation.
func (r *Registry) InvalidateResources(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info, ok := r.servers[name]; ok {
		info.Resources = nil
	}
}

// Touch updates the server's last-activity timestamp.
func (r *Registry) Touch(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info, ok := r.servers[name]; ok {
		info.LastActivity = time.Now().UTC()
	}
}
