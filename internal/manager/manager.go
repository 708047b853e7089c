// Package manager is the facade over the registry, connection supervisor,
// token service and resource service. API handlers and CLI commands talk to
// a Manager; they never reach into the underlying services directly.
package manager

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hashicorp/go-hclog"

	"github.com/beyondbetter/mcphub/internal/config"
	"github.com/beyondbetter/mcphub/internal/contracts"
	"github.com/beyondbetter/mcphub/internal/domain"
	"github.com/beyondbetter/mcphub/internal/errors"
	"github.com/beyondbetter/mcphub/internal/registry"
)

var _ contracts.ServerManager = (*Manager)(nil)

// Manager coordinates server lifecycle and resource operations.
// NewManager should be used to create instances of Manager.
type Manager struct {
	logger     hclog.Logger
	registry   *registry.Registry
	supervisor contracts.ConnectionSupervisor
	resources  contracts.ResourceAccessor
	tokens     contracts.TokenRefresher
	health     contracts.MCPHealthMonitor
}

// Dependencies contains everything a Manager needs to operate.
type Dependencies struct {
	Logger     hclog.Logger
	Registry   *registry.Registry
	Supervisor contracts.ConnectionSupervisor
	Resources  contracts.ResourceAccessor
	Tokens     contracts.TokenRefresher

	// Health is optional; without it server lifecycle changes are simply not
	// reflected in health tracking.
	Health contracts.MCPHealthMonitor
}

// Validate ensures all required dependencies are present.
func (d Dependencies) Validate() error {
	if d.Logger == nil || reflect.ValueOf(d.Logger).IsNil() {
		return fmt.Errorf("logger cannot be nil")
	}
	if d.Registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	if d.Supervisor == nil {
		return fmt.Errorf("connection supervisor cannot be nil")
	}
	if d.Resources == nil {
		return fmt.Errorf("resource accessor cannot be nil")
	}
	if d.Tokens == nil {
		return fmt.Errorf("token refresher cannot be nil")
	}
	return nil
}

// NewManager creates a manager from validated dependencies.
func NewManager(deps Dependencies) (*Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies for manager: %w", err)
	}

	return &Manager{
		logger:     deps.Logger.Named("manager"),
		registry:   deps.Registry,
		supervisor: deps.Supervisor,
		resources:  deps.Resources,
		tokens:     deps.Tokens,
		health:     deps.Health,
	}, nil
}

// AddServer validates and persists a server configuration, then eagerly
// connects to it. The registration survives a failed connection attempt; the
// error tells the caller the server is configured but not yet reachable.
func (m *Manager) AddServer(ctx context.Context, entry config.ServerEntry) error {
	replacing := m.registry.Has(entry.Name)
	if replacing {
		// The old connection belongs to the old configuration.
		if err := m.supervisor.Disconnect(entry.Name); err != nil {
			m.logger.Warn("Error closing connection for replaced server", "server", entry.Name, "error", err)
		}
	}

	if err := m.registry.AddServer(entry); err != nil {
		return err
	}

	if m.health != nil && !replacing {
		m.health.Track(entry.Name)
	}

	m.logger.Info("Registered MCP server", "server", entry.Name, "transport", entry.Transport)

	if err := m.supervisor.ForceReconnect(ctx, entry.Name); err != nil {
		m.logger.Warn("Server registered but initial connection failed", "server", entry.Name, "error", err)
		return err
	}

	return nil
}

// RemoveServer disconnects and unregisters a server. Its persisted
// configuration and any stored token are deleted.
func (m *Manager) RemoveServer(name string) error {
	if !m.registry.Has(name) {
		return fmt.Errorf("%w: %s", errors.ErrServerNotFound, name)
	}

	if err := m.supervisor.Disconnect(name); err != nil {
		m.logger.Warn("Error closing connection for removed server", "server", name, "error", err)
	}

	if err := m.registry.RemoveServer(name); err != nil {
		return err
	}

	if err := m.registry.Store().DeleteToken(name); err != nil {
		m.logger.Warn("Error deleting stored token for removed server", "server", name, "error", err)
	}

	if m.health != nil {
		m.health.Forget(name)
	}

	m.logger.Info("Removed MCP server", "server", name)

	return nil
}

// Servers returns all registered server names, sorted.
func (m *Manager) Servers() []string {
	return m.registry.Servers()
}

// ServerConfiguration returns the stored configuration for a server.
func (m *Manager) ServerConfiguration(name string) (config.ServerEntry, error) {
	entry, ok := m.registry.ServerConfiguration(name)
	if !ok {
		return config.ServerEntry{}, fmt.Errorf("%w: %s", errors.ErrServerNotFound, name)
	}
	return entry, nil
}

// ServerConfigurations returns all stored configurations, sorted by name.
func (m *Manager) ServerConfigurations() []config.ServerEntry {
	return m.registry.ServerConfigurations()
}

// IsServerAvailable reports whether the server is currently reachable.
func (m *Manager) IsServerAvailable(ctx context.Context, name string) bool {
	return m.supervisor.IsServerAvailable(ctx, name)
}

// ServerCapabilities reports the server's capability set, best-effort.
func (m *Manager) ServerCapabilities(ctx context.Context, name string) []domain.Capability {
	return m.resources.ServerCapabilities(ctx, name)
}

// RefreshAccessToken forces a token refresh for the server.
func (m *Manager) RefreshAccessToken(ctx context.Context, name string) error {
	_, err := m.tokens.RefreshAccessToken(ctx, name)
	return err
}

// ListResources lists a server's resources.
func (m *Manager) ListResources(ctx context.Context, server string) (domain.ResourceListResult, error) {
	return m.resources.ListResources(ctx, server)
}

// LoadResource reads a single resource by URI.
func (m *Manager) LoadResource(ctx context.Context, server string, uri string) (domain.ResourceLoadResult, error) {
	return m.resources.LoadResource(ctx, server, uri)
}

// SearchResources queries a server for matching resources.
func (m *Manager) SearchResources(
	ctx context.Context,
	server string,
	query string,
	opts domain.SearchOptions,
) (domain.ResourceSearchResult, error) {
	return m.resources.SearchResources(ctx, server, query, opts)
}

// WriteResource creates or replaces a resource on a server.
func (m *Manager) WriteResource(
	ctx context.Context,
	server string,
	path string,
	content []byte,
	opts domain.WriteOptions,
) (domain.ResourceWriteResult, error) {
	return m.resources.WriteResource(ctx, server, path, content, opts)
}

// MoveResource renames or relocates a resource on a server.
func (m *Manager) MoveResource(
	ctx context.Context,
	server string,
	source string,
	destination string,
	opts domain.MoveOptions,
) (domain.ResourceMoveResult, error) {
	return m.resources.MoveResource(ctx, server, source, destination, opts)
}

// DeleteResource removes a resource from a server.
func (m *Manager) DeleteResource(
	ctx context.Context,
	server string,
	path string,
	opts domain.DeleteOptions,
) (domain.ResourceDeleteResult, error) {
	return m.resources.DeleteResource(ctx, server, path, opts)
}
