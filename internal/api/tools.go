package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/beyondbetter/mcphub/internal/contracts"
)

// DomainTool wraps mcp.Tool for conversion to Tool via ToAPIType.
type DomainTool mcp.Tool

// Tools represents a collection of Tool types.
type Tools struct {
	Tools []Tool `json:"tools"`
}

// Tool represents a tool advertised by an MCP server.
type Tool struct {
	// Name of the tool.
	Name string `doc:"Name of the tool" json:"name"`

	// Title is a human-readable and easily understood title for the tool.
	Title string `doc:"Human-readable title" json:"title,omitempty"`

	// Description is a human-readable description of the tool.
	Description string `doc:"Description of what the tool does" json:"description,omitempty"`

	// InputSchema is JSONSchema defining the expected parameters for the tool.
	InputSchema *JSONSchema `doc:"Input parameters schema" json:"inputSchema,omitempty"`
}

// JSONSchema defines the structure for a JSON schema object.
type JSONSchema struct {
	// Type defines the type for this schema, e.g. "object".
	Type string `json:"type"`

	// Properties represents a property name and associated object definition.
	Properties map[string]any `json:"properties,omitempty"`

	// Required lists the (keys of) Properties that are required.
	Required []string `json:"required,omitempty"`
}

// ServerToolsRequest represents the incoming API request for listing the tool schemas for a server.
type ServerToolsRequest struct {
	Name string `doc:"Name of the server to lookup tools for" example:"filesystem" path:"name"`
}

// ServerToolCallRequest represents the incoming API request to call a tool on a particular server.
type ServerToolCallRequest struct {
	Server string         `doc:"Name of the server"       example:"filesystem"     path:"server"`
	Tool   string         `doc:"Name of the tool to call" example:"write_resource" path:"tool"`
	Body   map[string]any `doc:"Arguments for the tool"`
}

// ToolsResponse represents the wrapped API response for a list of tools.
type ToolsResponse struct {
	Body Tools
}

// ToolCallResponse represents the wrapped API response for calling a tool.
type ToolCallResponse struct {
	Body string
}

// ToAPIType converts a wrapped domain type to Tool.
func (d DomainTool) ToAPIType() (Tool, error) {
	var inputSchema *JSONSchema
	if d.InputSchema.Type != "" || len(d.InputSchema.Properties) > 0 {
		inputSchema = &JSONSchema{
			Type:       d.InputSchema.Type,
			Properties: d.InputSchema.Properties,
			Required:   d.InputSchema.Required,
		}
	}

	return Tool{
		Name:        d.Name,
		Title:       d.Annotations.Title,
		Description: d.Description,
		InputSchema: inputSchema,
	}, nil
}

// RegisterToolRoutes sets up tool-related routes under the servers API.
func RegisterToolRoutes(serversAPI huma.API, manager contracts.ServerManager) {
	tags := []string{"Tools"}

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "listTools",
			Method:      http.MethodGet,
			Path:        "/{name}/tools",
			Summary:     "List server tools",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerToolsRequest) (*ToolsResponse, error) {
			return handleServerTools(ctx, manager, input.Name)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "callTool",
			Method:      http.MethodPost,
			Path:        "/{server}/tools/{tool}",
			Summary:     "Call a tool for a server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerToolCallRequest) (*ToolCallResponse, error) {
			return handleServerToolCall(ctx, manager, input.Server, input.Tool, input.Body)
		},
	)
}

// handleServerTools returns the schemas for the tools that exist for a given server.
func handleServerTools(ctx context.Context, manager contracts.ServerManager, name string) (*ToolsResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := manager.ListTools(ctx, name)
	if err != nil {
		return nil, err
	}

	tools := make([]Tool, 0, len(result))
	for _, tool := range result {
		data, err := DomainTool(tool).ToAPIType()
		if err != nil {
			return nil, err
		}
		tools = append(tools, data)
	}

	resp := &ToolsResponse{}
	resp.Body = Tools{Tools: tools}

	return resp, nil
}

// handleServerToolCall handles making a call to a specific tool which exists on an MCP server.
func handleServerToolCall(
	ctx context.Context,
	manager contracts.ServerManager,
	server string,
	tool string,
	args map[string]any,
) (*ToolCallResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := manager.ExecuteTool(ctx, server, tool, args)
	if err != nil {
		return nil, err
	}

	resp := &ToolCallResponse{}
	resp.Body = extractMessage(result.Content)

	return resp, nil
}

// extractMessage attempts to extract a single message from content that is returned from a tool call.
func extractMessage(content []mcp.Content) string {
	// The mcp-go library returns a slice of content items. For most tools this
	// is a single text item; return the first one found.
	for _, c := range content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}

	return ""
}
