package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/xeipuuv/gojsonschema"

	"github.com/beyondbetter/mcphub/internal/errors"
)

// ListTools returns the tools advertised by a server.
func (m *Manager) ListTools(ctx context.Context, server string) ([]mcp.Tool, error) {
	if !m.registry.Has(server) {
		return nil, fmt.Errorf("%w: %s", errors.ErrServerNotFound, server)
	}

	var tools []mcp.Tool
	err := m.withToolRecovery(ctx, server, func(c client.MCPClient) error {
		result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("listing tools on '%s' returned no result", server)
		}

		tools = result.Tools
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tools, nil
}

// ExecuteTool validates args against the tool's declared input schema and
// invokes it. Unknown tools are forbidden rather than passed through, so a
// caller cannot probe a server for tools it does not advertise.
func (m *Manager) ExecuteTool(
	ctx context.Context,
	server string,
	tool string,
	args map[string]any,
) (*mcp.CallToolResult, error) {
	if !m.registry.Has(server) {
		return nil, fmt.Errorf("%w: %s", errors.ErrServerNotFound, server)
	}
	if strings.TrimSpace(tool) == "" {
		return nil, fmt.Errorf("%w: tool name cannot be empty", errors.ErrBadRequest)
	}

	tools, err := m.ListTools(ctx, server)
	if err != nil {
		return nil, err
	}

	var declared *mcp.Tool
	for i := range tools {
		if tools[i].Name == tool {
			declared = &tools[i]
			break
		}
	}
	if declared == nil {
		return nil, fmt.Errorf("%w: '%s' on server '%s'", errors.ErrToolForbidden, tool, server)
	}

	if err := validateToolArgs(*declared, args); err != nil {
		return nil, err
	}

	var result *mcp.CallToolResult
	err = m.withToolRecovery(ctx, server, func(c client.MCPClient) error {
		req := mcp.CallToolRequest{}
		req.Params.Name = tool
		req.Params.Arguments = args

		callResult, err := c.CallTool(ctx, req)
		if err != nil {
			return err
		}

		result = callResult
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result != nil && result.IsError {
		return result, fmt.Errorf("%w: '%s' on '%s'", errors.ErrToolCallFailed, tool, server)
	}

	return result, nil
}

// validateToolArgs checks the supplied arguments against the tool's JSON
// schema before anything goes over the wire. Tools without a schema accept
// anything.
func validateToolArgs(tool mcp.Tool, args map[string]any) error {
	schemaBytes, err := json.Marshal(tool.InputSchema)
	if err != nil || len(schemaBytes) == 0 || string(schemaBytes) == "null" {
		return nil
	}

	if args == nil {
		args = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		// A malformed schema is the server's fault, not the caller's; skip
		// validation and let the server reject the call if it must.
		return nil
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return fmt.Errorf(
			"%w: invalid arguments for tool '%s': %s",
			errors.ErrBadRequest, tool.Name, strings.Join(details, "; "),
		)
	}

	return nil
}

// withToolRecovery mirrors the resource layer's single-retry policy for tool
// traffic: one token refresh on an auth failure, one reconnect on a session
// failure, then a final attempt.
func (m *Manager) withToolRecovery(ctx context.Context, server string, op func(c client.MCPClient) error) error {
	c, ok := m.supervisor.Client(server)
	if !ok {
		if err := m.supervisor.ForceReconnect(ctx, server); err != nil {
			return err
		}
		if c, ok = m.supervisor.Client(server); !ok {
			return fmt.Errorf("%w: no connection for '%s'", errors.ErrConnection, server)
		}
	}

	err := op(c)
	if err == nil {
		m.supervisor.RecordActivity(server)
		return nil
	}

	switch {
	case m.supervisor.IsAuthError(err):
		if _, refreshErr := m.tokens.RefreshAccessToken(ctx, server); refreshErr != nil {
			return refreshErr
		}
		if reconnectErr := m.supervisor.ForceReconnect(ctx, server); reconnectErr != nil {
			return reconnectErr
		}
	case m.supervisor.IsSessionError(err):
		if reconnectErr := m.supervisor.ForceReconnect(ctx, server); reconnectErr != nil {
			return fmt.Errorf("%w: reconnect for '%s' failed: %w", errors.ErrSession, server, reconnectErr)
		}
	default:
		return errors.External("callTool", server, err)
	}

	if c, ok = m.supervisor.Client(server); !ok {
		return fmt.Errorf("%w: no connection for '%s'", errors.ErrConnection, server)
	}

	if err := op(c); err != nil {
		if m.supervisor.IsAuthError(err) {
			return fmt.Errorf("%w: '%s': %w", errors.ErrAuthentication, server, err)
		}
		if m.supervisor.IsSessionError(err) {
			return fmt.Errorf("%w: '%s': %w", errors.ErrSession, server, err)
		}
		return errors.External("callTool", server, err)
	}

	m.supervisor.RecordActivity(server)
	return nil
}
