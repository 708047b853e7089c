// Package mcptest provides a configurable fake MCP client for tests.
package mcptest

import (
	"context"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

var _ client.MCPClient = (*Client)(nil)

// Client is a fake client.MCPClient. Each method delegates to the matching
// function field when set and otherwise returns an empty successful result.
// The zero value is usable.
type Client struct {
	InitializeFunc   func(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	PingFunc         func(ctx context.Context) error
	ListResourcesFn  func(ctx context.Context, request mcp.ListResourcesRequest) (*mcp.ListResourcesResult, error)
	ReadResourceFn   func(ctx context.Context, request mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error)
	ListToolsFn      func(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallToolFn       func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	CloseFunc        func() error
	CloseCalls       int
	CallToolRequests []mcp.CallToolRequest
}

func (c *Client) Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	if c.InitializeFunc != nil {
		return c.InitializeFunc(ctx, request)
	}
	return &mcp.InitializeResult{}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c.PingFunc != nil {
		return c.PingFunc(ctx)
	}
	return nil
}

func (c *Client) ListResourcesByPage(
	ctx context.Context,
	request mcp.ListResourcesRequest,
) (*mcp.ListResourcesResult, error) {
	return c.ListResources(ctx, request)
}

func (c *Client) ListResources(
	ctx context.Context,
	request mcp.ListResourcesRequest,
) (*mcp.ListResourcesResult, error) {
	if c.ListResourcesFn != nil {
		return c.ListResourcesFn(ctx, request)
	}
	return &mcp.ListResourcesResult{}, nil
}

func (c *Client) ListResourceTemplatesByPage(
	ctx context.Context,
	request mcp.ListResourceTemplatesRequest,
) (*mcp.ListResourceTemplatesResult, error) {
	return c.ListResourceTemplates(ctx, request)
}

func (c *Client) ListResourceTemplates(
	ctx context.Context,
	request mcp.ListResourceTemplatesRequest,
) (*mcp.ListResourceTemplatesResult, error) {
	return &mcp.ListResourceTemplatesResult{}, nil
}

func (c *Client) ReadResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if c.ReadResourceFn != nil {
		return c.ReadResourceFn(ctx, request)
	}
	return &mcp.ReadResourceResult{}, nil
}

func (c *Client) Subscribe(ctx context.Context, request mcp.SubscribeRequest) error {
	return nil
}

func (c *Client) Unsubscribe(ctx context.Context, request mcp.UnsubscribeRequest) error {
	return nil
}

func (c *Client) ListPromptsByPage(
	ctx context.Context,
	request mcp.ListPromptsRequest,
) (*mcp.ListPromptsResult, error) {
	return c.ListPrompts(ctx, request)
}

func (c *Client) ListPrompts(ctx context.Context, request mcp.ListPromptsRequest) (*mcp.ListPromptsResult, error) {
	return &mcp.ListPromptsResult{}, nil
}

func (c *Client) GetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{}, nil
}

func (c *Client) ListToolsByPage(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	return c.ListTools(ctx, request)
}

func (c *Client) ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	if c.ListToolsFn != nil {
		return c.ListToolsFn(ctx, request)
	}
	return &mcp.ListToolsResult{}, nil
}

func (c *Client) CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c.CallToolRequests = append(c.CallToolRequests, request)
	if c.CallToolFn != nil {
		return c.CallToolFn(ctx, request)
	}
	return &mcp.CallToolResult{}, nil
}

func (c *Client) SetLevel(ctx context.Context, request mcp.SetLevelRequest) error {
	return nil
}

func (c *Client) Complete(ctx context.Context, request mcp.CompleteRequest) (*mcp.CompleteResult, error) {
	return &mcp.CompleteResult{}, nil
}

func (c *Client) Close() error {
	c.CloseCalls++
	if c.CloseFunc != nil {
		return c.CloseFunc()
	}
	return nil
}

func (c *Client) OnNotification(handler func(notification mcp.JSONRPCNotification)) {}
