package api

import (
	"fmt"
	"net/url"
	"reflect"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/beyondbetter/mcphub/internal/contracts"
)

// APIVersion is the version used in URL paths.
const APIVersion = "v1"

// defaultOperationTimeout bounds a single MCP interaction triggered by an
// HTTP request, including any reconnect-and-retry the manager performs.
const defaultOperationTimeout = 15 * time.Second

// RegisterRoutes registers all API routes on the provided Huma router.
// This is the single source of truth for the API route structure.
// Returns the API path prefix (e.g., "/api/v1") under which the routes are created.
func RegisterRoutes(
	router huma.API,
	manager contracts.ServerManager,
	healthTracker contracts.MCPHealthMonitor,
) (string, error) {
	if router == nil || reflect.ValueOf(router).IsNil() {
		return "", fmt.Errorf("router cannot be nil")
	}
	if manager == nil || reflect.ValueOf(manager).IsNil() {
		return "", fmt.Errorf("manager cannot be nil")
	}
	if healthTracker == nil || reflect.ValueOf(healthTracker).IsNil() {
		return "", fmt.Errorf("health tracker cannot be nil")
	}

	// Safe way to ensure /api/{version}.
	apiPathPrefix, err := url.JoinPath("/api", APIVersion)
	if err != nil {
		return "", fmt.Errorf("failed to construct API path prefix: %w", err)
	}

	// Group all routes under the /api/{version} prefix.
	versionedGroup := huma.NewGroup(router, apiPathPrefix)
	RegisterHealthRoutes(versionedGroup, healthTracker, "/health")

	serversGroup := huma.NewGroup(versionedGroup, "/servers")
	RegisterServerRoutes(serversGroup, manager)
	RegisterToolRoutes(serversGroup, manager)
	RegisterResourceRoutes(serversGroup, manager)

	return apiPathPrefix, nil
}
