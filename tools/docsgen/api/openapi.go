//go:build docsgen_api
// +build docsgen_api

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/beyondbetter/mcphub/internal/api"
	"github.com/beyondbetter/mcphub/internal/config"
	"github.com/beyondbetter/mcphub/internal/domain"
)

// stubHealthTracker provides a stub implementation for documentation generation.
type stubHealthTracker struct{}

func (s *stubHealthTracker) Status(string) (domain.ServerHealth, error) {
	return domain.ServerHealth{}, nil
}
func (s *stubHealthTracker) List() []domain.ServerHealth                              { return nil }
func (s *stubHealthTracker) Update(string, domain.HealthStatus, *time.Duration) error { return nil }
func (s *stubHealthTracker) Track(string)                                             {}
func (s *stubHealthTracker) Forget(string)                                            {}

// stubManager provides a stub implementation for documentation generation.
type stubManager struct{}

func (s *stubManager) Servers() []string { return nil }

func (s *stubManager) ServerConfiguration(string) (config.ServerEntry, error) {
	return config.ServerEntry{}, nil
}
func (s *stubManager) AddServer(context.Context, config.ServerEntry) error { return nil }
func (s *stubManager) RemoveServer(string) error                           { return nil }
func (s *stubManager) IsServerAvailable(context.Context, string) bool      { return false }

func (s *stubManager) ListTools(context.Context, string) ([]mcp.Tool, error) { return nil, nil }

func (s *stubManager) ExecuteTool(context.Context, string, string, map[string]any) (*mcp.CallToolResult, error) {
	return nil, nil
}

func (s *stubManager) ListResources(context.Context, string) (domain.ResourceListResult, error) {
	return domain.ResourceListResult{}, nil
}

func (s *stubManager) LoadResource(context.Context, string, string) (domain.ResourceLoadResult, error) {
	return domain.ResourceLoadResult{}, nil
}

func (s *stubManager) SearchResources(context.Context, string, string, domain.SearchOptions) (domain.ResourceSearchResult, error) {
	return domain.ResourceSearchResult{}, nil
}

func (s *stubManager) WriteResource(context.Context, string, string, []byte, domain.WriteOptions) (domain.ResourceWriteResult, error) {
	return domain.ResourceWriteResult{}, nil
}

func (s *stubManager) MoveResource(context.Context, string, string, string, domain.MoveOptions) (domain.ResourceMoveResult, error) {
	return domain.ResourceMoveResult{}, nil
}

func (s *stubManager) DeleteResource(context.Context, string, string, domain.DeleteOptions) (domain.ResourceDeleteResult, error) {
	return domain.ResourceDeleteResult{}, nil
}

func (s *stubManager) ServerCapabilities(context.Context, string) []domain.Capability { return nil }

// main generates the OpenAPI specification for the mcphub API.
// It assumes it is run from the repository root.
func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "mcphub.docsgen.api",
		Level:  hclog.Info,
		Output: os.Stderr,
	})

	// Output path for the OpenAPI spec, relative to the repository root.
	outputPath := "./docs/api/openapi.yaml"

	// Create a chi router (same as the daemon).
	mux := chi.NewMux()
	mux.Use(middleware.StripSlashes)

	// Create Huma config and router (same as the daemon).
	humaConfig := huma.DefaultConfig("mcphub docs", api.APIVersion)
	router := humachi.New(mux, humaConfig)

	// Register routes using stub dependencies.
	// The OpenAPI spec generation only needs the route definitions, not the actual handlers.
	apiPathPrefix, err := api.RegisterRoutes(router, &stubManager{}, &stubHealthTracker{})
	if err != nil {
		logger.Error("failed to register API routes", "error", err)
		os.Exit(1)
	}

	logger.Info("Routes registered", "prefix", apiPathPrefix)

	// Get the OpenAPI spec as YAML.
	yamlBytes, err := router.OpenAPI().YAML()
	if err != nil {
		logger.Error("failed to generate OpenAPI YAML", "error", err)
		os.Exit(1)
	}

	// Ensure the docs directory exists.
	docsDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(docsDir, 0o755); err != nil {
		logger.Error("failed to create docs directory", "path", docsDir, "error", err)
		os.Exit(1)
	}

	// Write the YAML to the output file.
	if err := os.WriteFile(outputPath, yamlBytes, 0o644); err != nil {
		logger.Error("failed to write OpenAPI spec", "path", outputPath, "error", err)
		os.Exit(1)
	}

	logger.Info("OpenAPI spec generated", "path", outputPath, "size", fmt.Sprintf("%d bytes", len(yamlBytes)))
}
