// Package resources exposes the normalized resource-operation surface over
// connected MCP servers. Listing and loading use native MCP verbs; mutating
// operations and search are dispatched as well-known tool calls because the
// protocol has no verbs for them.
package resources

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/beyondbetter/mcphub/internal/contracts"
	"github.com/beyondbetter/mcphub/internal/domain"
	"github.com/beyondbetter/mcphub/internal/errors"
	"github.com/beyondbetter/mcphub/internal/filter"
	"github.com/beyondbetter/mcphub/internal/registry"
)

// Well-known tool names for operations the MCP protocol has no verbs for.
const (
	toolWriteResource   = "write_resource"
	toolMoveResource    = "move_resource"
	toolDeleteResource  = "delete_resource"
	toolSearchResources = "search_resources"
)

var toolCapabilities = map[string]domain.Capability{
	toolWriteResource:   domain.CapabilityWrite,
	toolMoveResource:    domain.CapabilityMove,
	toolDeleteResource:  domain.CapabilityDelete,
	toolSearchResources: domain.CapabilitySearch,
}

var _ contracts.ResourceAccessor = (*Service)(nil)

// Service implements resource operations with single-retry recovery: an auth
// failure triggers one token refresh and reconnect, a session failure one
// reconnect, before the operation is attempted a second and final time.
type Service struct {
	logger     hclog.Logger
	registry   *registry.Registry
	supervisor contracts.ConnectionSupervisor
	tokens     contracts.TokenRefresher
}

// NewService creates the resource service.
func NewService(
	logger hclog.Logger,
	reg *registry.Registry,
	supervisor contracts.ConnectionSupervisor,
	tokens contracts.TokenRefresher,
) (*Service, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if supervisor == nil {
		return nil, fmt.Errorf("connection supervisor cannot be nil")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token refresher cannot be nil")
	}

	return &Service{
		logger:     logger.Named("resources"),
		registry:   reg,
		supervisor: supervisor,
		tokens:     tokens,
	}, nil
}

// ListResources returns the resource listing for a server, served from the
// cache when one is valid. A server that does not implement resource listing
// yields an empty result, not an error.
func (s *Service) ListResources(ctx context.Context, server string) (domain.ResourceListResult, error) {
	if !s.registry.Has(server) {
		return domain.ResourceListResult{}, fmt.Errorf("%w: %s", errors.ErrServerNotFound, server)
	}

	if cached := s.registry.CachedResources(server); cached != nil {
		return domain.ResourceListResult{Resources: cached}, nil
	}

	// Non-nil so a server with zero resources still populates the cache.
	listing := []domain.ResourceMetadata{}
	err := s.withRecovery(ctx, server, "listResources", func(c client.MCPClient) error {
		listing = listing[:0]

		cursor := mcp.Cursor("")
		for {
			req := mcp.ListResourcesRequest{}
			req.Params.Cursor = cursor

			page, err := c.ListResourcesByPage(ctx, req)
			if err != nil {
				return err
			}

			for _, r := range page.Resources {
				listing = append(listing, metadataFromResource(r))
			}

			if page.NextCursor == "" {
				return nil
			}
			cursor = page.NextCursor
		}
	})
	if err != nil {
		if isMethodNotFound(err) {
			s.logger.Debug("Server does not implement resource listing", "server", server)
			listing = []domain.ResourceMetadata{}
		} else {
			return domain.ResourceListResult{}, err
		}
	}

	s.registry.SetResources(server, listing)

	return domain.ResourceListResult{Resources: listing}, nil
}

// LoadResource reads a single resource by URI.
func (s *Service) LoadResource(ctx context.Context, server string, uri string) (domain.ResourceLoadResult, error) {
	if !s.registry.Has(server) {
		return domain.ResourceLoadResult{}, fmt.Errorf("%w: %s", errors.ErrServerNotFound, server)
	}
	if strings.TrimSpace(uri) == "" {
		return domain.ResourceLoadResult{}, fmt.Errorf("%w: resource uri cannot be empty", errors.ErrBadRequest)
	}

	var result domain.ResourceLoadResult
	err := s.withRecovery(ctx, server, "loadResource", func(c client.MCPClient) error {
		req := mcp.ReadResourceRequest{}
		req.Params.URI = uri

		resp, err := c.ReadResource(ctx, req)
		if err != nil {
			return err
		}

		loaded, err := loadResultFromContents(uri, resp.Contents)
		if err != nil {
			return err
		}
		result = loaded

		return nil
	})
	if err != nil {
		if isMethodNotFound(err) {
			return domain.ResourceLoadResult{}, fmt.Errorf(
				"%w: server '%s' does not implement resource reading", errors.ErrUnsupportedOperation, server,
			)
		}
		return domain.ResourceLoadResult{}, err
	}

	return result, nil
}

// SearchResources queries a server for matching resources. Servers without a
// search tool degrade to a substring match over the local listing.
func (s *Service) SearchResources(
	ctx context.Context,
	server string,
	query string,
	opts domain.SearchOptions,
) (domain.ResourceSearchResult, error) {
	if !s.registry.Has(server) {
		return domain.ResourceSearchResult{}, fmt.Errorf("%w: %s", errors.ErrServerNotFound, server)
	}
	if strings.TrimSpace(query) == "" {
		return domain.ResourceSearchResult{}, fmt.Errorf("%w: search query cannot be empty", errors.ErrBadRequest)
	}

	args := map[string]any{"query": query}
	if opts.Limit > 0 {
		args["limit"] = opts.Limit
	}

	var result domain.ResourceSearchResult
	err := s.callResourceTool(ctx, server, toolSearchResources, args, func(payload map[string]any) error {
		result = searchResultFromPayload(payload)
		return nil
	})
	if err != nil {
		if isToolMissing(err) {
			return s.localSearch(ctx, server, query, opts)
		}
		return domain.ResourceSearchResult{}, err
	}

	if opts.Limit > 0 && len(result.Matches) > opts.Limit {
		result.Matches = result.Matches[:opts.Limit]
	}

	return result, nil
}

// WriteResource creates or replaces a resource via the server's write tool.
func (s *Service) WriteResource(
	ctx context.Context,
	server string,
	path string,
	content []byte,
	opts domain.WriteOptions,
) (domain.ResourceWriteResult, error) {
	if !s.registry.Has(server) {
		return domain.ResourceWriteResult{}, fmt.Errorf("%w: %s", errors.ErrServerNotFound, server)
	}
	if strings.TrimSpace(path) == "" {
		return domain.ResourceWriteResult{}, fmt.Errorf("%w: resource path cannot be empty", errors.ErrBadRequest)
	}

	args := map[string]any{
		"path":        path,
		"content":     string(content),
		"create_dirs": opts.CreateDirs,
		"overwrite":   opts.Overwrite,
	}
	if opts.ContentType != "" {
		args["content_type"] = opts.ContentType
	}

	var result domain.ResourceWriteResult
	err := s.callResourceTool(ctx, server, toolWriteResource, args, func(payload map[string]any) error {
		result = writeResultFromPayload(payload, path)
		return nil
	})
	if err != nil {
		if isToolMissing(err) {
			return domain.ResourceWriteResult{}, fmt.Errorf(
				"%w: server '%s' does not support writing resources", errors.ErrUnsupportedOperation, server,
			)
		}
		return domain.ResourceWriteResult{}, err
	}

	// The listing no longer reflects the server's state.
	s.registry.InvalidateResources(server)

	return result, nil
}

// MoveResource renames or relocates a resource via the server's move tool.
func (s *Service) MoveResource(
	ctx context.Context,
	server string,
	source string,
	destination string,
	opts domain.MoveOptions,
) (domain.ResourceMoveResult, error) {
	if !s.registry.Has(server) {
		return domain.ResourceMoveResult{}, fmt.Errorf("%w: %s", errors.ErrServerNotFound, server)
	}
	if strings.TrimSpace(source) == "" || strings.TrimSpace(destination) == "" {
		return domain.ResourceMoveResult{}, fmt.Errorf(
			"%w: move requires a source and a destination", errors.ErrBadRequest,
		)
	}

	args := map[string]any{
		"source":      source,
		"destination": destination,
		"create_dirs": opts.CreateDirs,
		"overwrite":   opts.Overwrite,
	}

	var result domain.ResourceMoveResult
	err := s.callResourceTool(ctx, server, toolMoveResource, args, func(payload map[string]any) error {
		result = moveResultFromPayload(payload, source, destination)
		return nil
	})
	if err != nil {
		if isToolMissing(err) {
			return domain.ResourceMoveResult{}, fmt.Errorf(
				"%w: server '%s' does not support moving resources", errors.ErrUnsupportedOperation, server,
			)
		}
		return domain.ResourceMoveResult{}, err
	}

	s.registry.InvalidateResources(server)

	return result, nil
}

// DeleteResource removes a resource via the server's delete tool.
func (s *Service) DeleteResource(
	ctx context.Context,
	server string,
	path string,
	opts domain.DeleteOptions,
) (domain.ResourceDeleteResult, error) {
	if !s.registry.Has(server) {
		return domain.ResourceDeleteResult{}, fmt.Errorf("%w: %s", errors.ErrServerNotFound, server)
	}
	if strings.TrimSpace(path) == "" {
		return domain.ResourceDeleteResult{}, fmt.Errorf("%w: resource path cannot be empty", errors.ErrBadRequest)
	}

	args := map[string]any{
		"path":      path,
		"recursive": opts.Recursive,
	}

	var result domain.ResourceDeleteResult
	err := s.callResourceTool(ctx, server, toolDeleteResource, args, func(payload map[string]any) error {
		result = deleteResultFromPayload(payload, path)
		return nil
	})
	if err != nil {
		if isToolMissing(err) {
			return domain.ResourceDeleteResult{}, fmt.Errorf(
				"%w: server '%s' does not support deleting resources", errors.ErrUnsupportedOperation, server,
			)
		}
		return domain.ResourceDeleteResult{}, err
	}

	s.registry.InvalidateResources(server)

	return result, nil
}

// ServerCapabilities reports the server's capability set, augmenting the
// connection-time baseline with capabilities discovered from its tool
// listing. Best-effort: any failure yields the conservative default.
func (s *Service) ServerCapabilities(ctx context.Context, server string) []domain.Capability {
	caps := s.registry.ServerCapabilities(server)
	if caps == nil {
		caps = domain.DefaultCapabilities()
	}

	// Tool-backed capabilities only exist on servers that expose tools, and
	// once discovered they are cached on the registry entry.
	if !domain.Has(caps, domain.CapabilityTools) || domain.Has(caps, domain.CapabilityWrite) {
		return caps
	}

	c, ok := s.supervisor.Client(server)
	if !ok {
		return caps
	}

	tools, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		s.logger.Debug("Unable to introspect tools for capabilities", "server", server, "error", err)
		return caps
	}

	for _, tool := range tools.Tools {
		if capability, ok := toolCapabilities[tool.Name]; ok && !domain.Has(caps, capability) {
			caps = append(caps, capability)
		}
	}

	s.registry.SetCapabilities(server, caps)

	return caps
}

// callResourceTool invokes a well-known tool under the recovery wrapper and
// hands its decoded payload to consume. A tool result flagged as an error
// becomes ErrToolCallFailed.
func (s *Service) callResourceTool(
	ctx context.Context,
	server string,
	tool string,
	args map[string]any,
	consume func(payload map[string]any) error,
) error {
	return s.withRecovery(ctx, server, tool, func(c client.MCPClient) error {
		req := mcp.CallToolRequest{}
		req.Params.Name = tool
		req.Params.Arguments = args

		result, err := c.CallTool(ctx, req)
		if err != nil {
			return err
		}
		if result != nil && result.IsError {
			return fmt.Errorf("%w: '%s' on '%s': %s", errors.ErrToolCallFailed, tool, server, toolErrorText(result))
		}

		payload, err := decodeToolPayload(result)
		if err != nil {
			return fmt.Errorf("%w: '%s' on '%s': %w", errors.ErrToolCallFailed, tool, server, err)
		}

		return consume(payload)
	})
}

// localSearch is the degraded search path for servers without a search tool:
// a case-insensitive substring match over the cached listing.
func (s *Service) localSearch(
	ctx context.Context,
	server string,
	query string,
	opts domain.SearchOptions,
) (domain.ResourceSearchResult, error) {
	listing, err := s.ListResources(ctx, server)
	if err != nil {
		return domain.ResourceSearchResult{}, err
	}

	matcher := filter.WithMatcher("query", filter.PartialAll(func(m domain.ResourceMetadata) []string {
		return []string{m.Name, m.URI, m.Description}
	}))

	var result domain.ResourceSearchResult
	for _, meta := range listing.Resources {
		ok, err := filter.Match(meta, map[string]string{"query": query}, matcher)
		if err != nil {
			return domain.ResourceSearchResult{}, fmt.Errorf("%w: %w", errors.ErrBadRequest, err)
		}
		if !ok {
			continue
		}

		result.Matches = append(result.Matches, domain.ResourceMatch{Metadata: meta})
		if opts.Limit > 0 && len(result.Matches) >= opts.Limit {
			break
		}
	}

	return result, nil
}

// withRecovery runs op against the server's connection, recovering once from
// a classified failure: auth errors get a token refresh plus reconnect,
// session errors a reconnect. The second attempt is final.
func (s *Service) withRecovery(ctx context.Context, server string, action string, op func(c client.MCPClient) error) error {
	c, ok := s.supervisor.Client(server)
	if !ok {
		if err := s.supervisor.ForceReconnect(ctx, server); err != nil {
			return err
		}
		if c, ok = s.supervisor.Client(server); !ok {
			return fmt.Errorf("%w: no connection for '%s'", errors.ErrConnection, server)
		}
	}

	err := op(c)
	if err == nil {
		s.supervisor.RecordActivity(server)
		return nil
	}

	switch {
	case s.supervisor.IsAuthError(err):
		s.logger.Info("Recovering from auth failure", "server", server, "action", action)
		if _, refreshErr := s.tokens.RefreshAccessToken(ctx, server); refreshErr != nil {
			return refreshErr
		}
		// Reconnect so the refreshed token is applied to the transport.
		if reconnectErr := s.supervisor.ForceReconnect(ctx, server); reconnectErr != nil {
			return reconnectErr
		}
	case s.supervisor.IsSessionError(err):
		s.logger.Info("Recovering from session failure", "server", server, "action", action)
		if reconnectErr := s.supervisor.ForceReconnect(ctx, server); reconnectErr != nil {
			return fmt.Errorf("%w: reconnect for '%s' failed: %w", errors.ErrSession, server, reconnectErr)
		}
	default:
		return s.terminal(action, server, err)
	}

	c, ok = s.supervisor.Client(server)
	if !ok {
		return fmt.Errorf("%w: no connection for '%s'", errors.ErrConnection, server)
	}

	if err := op(c); err != nil {
		if s.supervisor.IsAuthError(err) {
			return fmt.Errorf("%w: '%s': %w", errors.ErrAuthentication, server, err)
		}
		if s.supervisor.IsSessionError(err) {
			return fmt.Errorf("%w: '%s': %w", errors.ErrSession, server, err)
		}
		return s.terminal(action, server, err)
	}

	s.supervisor.RecordActivity(server)
	return nil
}

// terminal wraps unclassified failures as external-service errors, leaving
// already-typed domain errors untouched.
func (s *Service) terminal(action string, server string, err error) error {
	if isDomainError(err) || isMethodNotFound(err) || isToolMissing(err) {
		return err
	}
	return errors.External(action, server, err)
}

func isDomainError(err error) bool {
	for _, sentinel := range []error{
		errors.ErrBadRequest,
		errors.ErrToolCallFailed,
		errors.ErrUnsupportedOperation,
		errors.ErrServerNotFound,
	} {
		if stderrors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// isMethodNotFound detects the JSON-RPC "method not found" response.
func isMethodNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "method not found") || strings.Contains(msg, "-32601")
}

// isToolMissing detects a server rejecting an unknown tool name.
func isToolMissing(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "tool not found") ||
		strings.Contains(msg, "unknown tool") ||
		strings.Contains(msg, "invalid tool name") ||
		isMethodNotFound(err)
}

// loadResultFromContents maps MCP resource contents to the canonical load
// envelope. Only the first content entry is used; servers returning several
// mark the result partial.
func loadResultFromContents(uri string, contents []mcp.ResourceContents) (domain.ResourceLoadResult, error) {
	result := domain.ResourceLoadResult{
		Metadata: domain.ResourceMetadata{URI: uri, Type: resourceType(uri)},
	}

	for _, content := range contents {
		switch c := content.(type) {
		case mcp.TextResourceContents:
			result.Content = []byte(c.Text)
			result.Metadata.ContentType = c.MIMEType
			if c.URI != "" {
				result.Metadata.URI = c.URI
			}
		case mcp.BlobResourceContents:
			decoded, err := base64.StdEncoding.DecodeString(c.Blob)
			if err != nil {
				return domain.ResourceLoadResult{}, fmt.Errorf("malformed blob content for '%s': %w", uri, err)
			}
			result.Content = decoded
			result.Metadata.ContentType = c.MIMEType
			if c.URI != "" {
				result.Metadata.URI = c.URI
			}
		default:
			continue
		}

		result.Partial = len(contents) > 1
		result.Metadata.Size = int64(len(result.Content))

		return result, nil
	}

	return result, nil
}
