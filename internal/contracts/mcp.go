package contracts

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/beyondbetter/mcphub/internal/config"
	"github.com/beyondbetter/mcphub/internal/domain"
)

// MCPHealthMonitor provides a way to interact with the health status of MCP servers.
type MCPHealthMonitor interface {
	// Status returns the health status for a single tracked server.
	Status(name string) (domain.ServerHealth, error)

	// List returns a copy of all known server health records.
	List() []domain.ServerHealth

	// Update records a health check for a tracked server.
	Update(name string, status domain.HealthStatus, latency *time.Duration) error

	// Track starts tracking a server added at runtime.
	Track(name string)

	// Forget stops tracking a removed server.
	Forget(name string)
}

// ConnectionSupervisor owns per-server transport lifecycle and error
// classification. Only the supervisor installs or replaces live connection
// handles on registry entries.
type ConnectionSupervisor interface {
	// IsServerAvailable reports whether a live, healthy connection exists for
	// the server, attempting a best-effort reconnect first. It never returns
	// an error; unavailability is a normal, reportable state.
	IsServerAvailable(ctx context.Context, name string) bool

	// IsAuthError reports whether err indicates the server rejected our
	// credentials (401-class).
	IsAuthError(err error) bool

	// IsSessionError reports whether err indicates the transport session is no
	// longer valid and must be re-established.
	IsSessionError(err error) bool

	// ForceReconnect tears down any existing handle and establishes a fresh
	// one from the current configuration.
	ForceReconnect(ctx context.Context, name string) error

	// RecordActivity updates the server's last-activity timestamp.
	RecordActivity(name string)

	// Client returns the live connection handle for the server, if connected.
	Client(name string) (client.MCPClient, bool)

	// Disconnect closes the server's connection handle, if any.
	Disconnect(name string) error
}

// TokenRefresher acquires and refreshes OAuth access tokens for servers whose
// configuration declares a grant.
type TokenRefresher interface {
	// RefreshAccessToken obtains a fresh access token for the server and
	// persists it through the registry's config-save path. The returned value
	// is the new access token.
	RefreshAccessToken(ctx context.Context, name string) (string, error)
}

// ResourceAccessor is the normalized resource-operation surface exposed to the
// tool-execution layer. Implementations own the retry-on-recoverable-error
// policy; callers never see transient auth or session failures that recovery
// resolved.
type ResourceAccessor interface {
	ListResources(ctx context.Context, server string) (domain.ResourceListResult, error)
	LoadResource(ctx context.Context, server string, uri string) (domain.ResourceLoadResult, error)
	SearchResources(ctx context.Context, server string, query string, opts domain.SearchOptions) (domain.ResourceSearchResult, error)
	WriteResource(ctx context.Context, server string, path string, content []byte, opts domain.WriteOptions) (domain.ResourceWriteResult, error)
	MoveResource(ctx context.Context, server string, source string, destination string, opts domain.MoveOptions) (domain.ResourceMoveResult, error)
	DeleteResource(ctx context.Context, server string, path string, opts domain.DeleteOptions) (domain.ResourceDeleteResult, error)

	// ServerCapabilities is best-effort: on failure it returns the
	// conservative default set rather than an error.
	ServerCapabilities(ctx context.Context, server string) []domain.Capability
}

// ServerManager is the full management surface exposed to the HTTP API:
// server lifecycle, tool execution and the normalized resource operations.
type ServerManager interface {
	ResourceAccessor

	// Servers returns the names of all registered servers, sorted.
	Servers() []string

	// ServerConfiguration returns the stored configuration for a server.
	ServerConfiguration(name string) (config.ServerEntry, error)

	// AddServer validates, persists and registers a server, then attempts an
	// initial connection.
	AddServer(ctx context.Context, entry config.ServerEntry) error

	// RemoveServer disconnects, deregisters and forgets a server.
	RemoveServer(name string) error

	// IsServerAvailable reports whether a live, healthy connection exists.
	IsServerAvailable(ctx context.Context, name string) bool

	// ListTools returns the tools the server advertises.
	ListTools(ctx context.Context, server string) ([]mcp.Tool, error)

	// ExecuteTool validates args against the tool's schema and invokes it.
	ExecuteTool(ctx context.Context, server string, tool string, args map[string]any) (*mcp.CallToolResult, error)
}
