package api

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/beyondbetter/mcphub/internal/errors"
)

func TestDomainTool_ToAPIType(t *testing.T) {
	t.Parallel()

	t.Run("full tool", func(t *testing.T) {
		t.Parallel()

		data, err := DomainTool(mcp.Tool{
			Name:        "write_resource",
			Description: "Write content to a path",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"path":    map[string]any{"type": "string"},
					"content": map[string]any{"type": "string"},
				},
				Required: []string{"path", "content"},
			},
		}).ToAPIType()
		require.NoError(t, err)
		require.Equal(t, "write_resource", data.Name)
		require.Equal(t, "Write content to a path", data.Description)
		require.NotNil(t, data.InputSchema)
		require.Equal(t, "object", data.InputSchema.Type)
		require.Equal(t, []string{"path", "content"}, data.InputSchema.Required)
	})

	t.Run("empty schema is omitted", func(t *testing.T) {
		t.Parallel()

		data, err := DomainTool(mcp.Tool{Name: "ping"}).ToAPIType()
		require.NoError(t, err)
		require.Nil(t, data.InputSchema)
	})
}

func TestExtractMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content []mcp.Content
		want    string
	}{
		{
			name: "single text item",
			content: []mcp.Content{
				mcp.TextContent{Type: "text", Text: "done"},
			},
			want: "done",
		},
		{
			name: "first text item wins",
			content: []mcp.Content{
				mcp.TextContent{Type: "text", Text: "first"},
				mcp.TextContent{Type: "text", Text: "second"},
			},
			want: "first",
		},
		{
			name:    "no content",
			content: nil,
			want:    "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.want, extractMessage(tc.content))
		})
	}
}

func TestHandleServerTools(t *testing.T) {
	t.Parallel()

	t.Run("lists advertised tools", func(t *testing.T) {
		t.Parallel()

		mgr := newFakeManager()
		mgr.listToolsFn = func(server string) ([]mcp.Tool, error) {
			require.Equal(t, "files", server)
			return []mcp.Tool{
				{Name: "write_resource", Description: "write"},
				{Name: "delete_resource", Description: "delete"},
			}, nil
		}

		resp, err := handleServerTools(context.Background(), mgr, "files")
		require.NoError(t, err)
		require.Len(t, resp.Body.Tools, 2)
		require.Equal(t, "write_resource", resp.Body.Tools[0].Name)
	})

	t.Run("unknown server", func(t *testing.T) {
		t.Parallel()

		mgr := newFakeManager()
		mgr.listToolsFn = func(string) ([]mcp.Tool, error) {
			return nil, errors.ErrServerNotFound
		}

		_, err := handleServerTools(context.Background(), mgr, "missing")
		require.ErrorIs(t, err, errors.ErrServerNotFound)
	})
}

func TestHandleServerToolCall(t *testing.T) {
	t.Parallel()

	t.Run("returns first text content", func(t *testing.T) {
		t.Parallel()

		mgr := newFakeManager()
		mgr.executeToolFn = func(server, tool string, args map[string]any) (*mcp.CallToolResult, error) {
			require.Equal(t, "files", server)
			require.Equal(t, "write_resource", tool)
			require.Equal(t, map[string]any{"path": "/notes/a.md"}, args)
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.TextContent{Type: "text", Text: `{"success":true}`}},
			}, nil
		}

		resp, err := handleServerToolCall(
			context.Background(),
			mgr,
			"files",
			"write_resource",
			map[string]any{"path": "/notes/a.md"},
		)
		require.NoError(t, err)
		require.JSONEq(t, `{"success":true}`, resp.Body)
	})

	t.Run("forbidden tool surfaces", func(t *testing.T) {
		t.Parallel()

		mgr := newFakeManager()
		mgr.executeToolFn = func(string, string, map[string]any) (*mcp.CallToolResult, error) {
			return nil, errors.ErrToolForbidden
		}

		_, err := handleServerToolCall(context.Background(), mgr, "files", "rm_rf", nil)
		require.ErrorIs(t, err, errors.ErrToolForbidden)
	})
}
