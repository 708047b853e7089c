package resources

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/beyondbetter/mcphub/internal/config"
	"github.com/beyondbetter/mcphub/internal/domain"
	"github.com/beyondbetter/mcphub/internal/errors"
	"github.com/beyondbetter/mcphub/internal/mcptest"
	"github.com/beyondbetter/mcphub/internal/registry"
)

type fakeStore struct {
	servers []config.ServerEntry
}

func (f *fakeStore) AddServer(entry config.ServerEntry) error { return nil }
func (f *fakeStore) RemoveServer(name string) error           { return nil }
func (f *fakeStore) ListServers() []config.ServerEntry        { return f.servers }

func (f *fakeStore) Server(name string) (config.ServerEntry, bool) {
	for _, e := range f.servers {
		if e.Name == name {
			return e, true
		}
	}
	return config.ServerEntry{}, false
}

func (f *fakeStore) UpsertToken(server string, token config.TokenEntry) error { return nil }
func (f *fakeStore) DeleteToken(server string) error                          { return nil }
func (f *fakeStore) Token(server string) (config.TokenEntry, bool) {
	return config.TokenEntry{}, false
}

// fakeSupervisor hands out pre-installed clients and counts recovery calls.
type fakeSupervisor struct {
	clients      map[string]client.MCPClient
	reconnects   int
	reconnectErr error
	onReconnect  func()
	activity     int
}

func (f *fakeSupervisor) IsServerAvailable(ctx context.Context, name string) bool {
	_, ok := f.clients[name]
	return ok
}

func (f *fakeSupervisor) IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized")
}

func (f *fakeSupervisor) IsSessionError(err error) bool {
	if err == nil || f.IsAuthError(err) {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "session") || strings.Contains(msg, "eof")
}

func (f *fakeSupervisor) ForceReconnect(ctx context.Context, name string) error {
	f.reconnects++
	if f.reconnectErr != nil {
		return f.reconnectErr
	}
	if f.onReconnect != nil {
		f.onReconnect()
	}
	return nil
}

func (f *fakeSupervisor) RecordActivity(name string) { f.activity++ }

func (f *fakeSupervisor) Client(name string) (client.MCPClient, bool) {
	c, ok := f.clients[name]
	return c, ok
}

func (f *fakeSupervisor) Disconnect(name string) error {
	delete(f.clients, name)
	return nil
}

type fakeRefresher struct {
	calls int
	err   error
}

func (f *fakeRefresher) RefreshAccessToken(ctx context.Context, name string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "fresh-token", nil
}

type harness struct {
	service    *Service
	registry   *registry.Registry
	supervisor *fakeSupervisor
	refresher  *fakeRefresher
}

func newHarness(t *testing.T, c client.MCPClient) *harness {
	t.Helper()

	reg, err := registry.NewRegistry(hclog.NewNullLogger(), &fakeStore{servers: []config.ServerEntry{{
		Name:      "notes",
		Transport: config.TransportStdio,
		Command:   "uvx",
	}}})
	require.NoError(t, err)

	sup := &fakeSupervisor{clients: map[string]client.MCPClient{}}
	if c != nil {
		sup.clients["notes"] = c
	}
	refresher := &fakeRefresher{}

	svc, err := NewService(hclog.NewNullLogger(), reg, sup, refresher)
	require.NoError(t, err)

	return &harness{service: svc, registry: reg, supervisor: sup, refresher: refresher}
}

func textToolResult(payload string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: payload}},
	}
}

func TestListResources_AggregatesPages(t *testing.T) {
	t.Parallel()

	var calls int
	h := newHarness(t, &mcptest.Client{
		ListResourcesFn: func(ctx context.Context, req mcp.ListResourcesRequest) (*mcp.ListResourcesResult, error) {
			calls++
			if req.Params.Cursor == "" {
				return &mcp.ListResourcesResult{
					Resources: []mcp.Resource{
						{URI: "file:///a.txt", Name: "a.txt", MIMEType: "text/plain"},
					},
					PaginatedResult: mcp.PaginatedResult{NextCursor: "page2"},
				}, nil
			}
			return &mcp.ListResourcesResult{
				Resources: []mcp.Resource{
					{URI: "file:///docs/", Name: "docs"},
				},
			}, nil
		},
	})

	result, err := h.service.ListResources(t.Context(), "notes")
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Len(t, result.Resources, 2)
	require.Equal(t, "file", result.Resources[0].Type)
	require.Equal(t, "text/plain", result.Resources[0].ContentType)
	require.Equal(t, "directory", result.Resources[1].Type)

	// Second call is served from the cache without touching the client.
	again, err := h.service.ListResources(t.Context(), "notes")
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Equal(t, result.Resources, again.Resources)
}

func TestListResources_EmptyListingIsCached(t *testing.T) {
	t.Parallel()

	var calls int
	h := newHarness(t, &mcptest.Client{
		ListResourcesFn: func(ctx context.Context, req mcp.ListResourcesRequest) (*mcp.ListResourcesResult, error) {
			calls++
			return &mcp.ListResourcesResult{}, nil
		},
	})

	result, err := h.service.ListResources(t.Context(), "notes")
	require.NoError(t, err)
	require.NotNil(t, result.Resources)
	require.Empty(t, result.Resources)
	require.Equal(t, 1, calls)

	// A server with zero resources is still a valid cache entry; the second
	// listing must not touch the client.
	again, err := h.service.ListResources(t.Context(), "notes")
	require.NoError(t, err)
	require.Empty(t, again.Resources)
	require.Equal(t, 1, calls)
}

func TestListResources_MethodNotFoundIsEmpty(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &mcptest.Client{
		ListResourcesFn: func(ctx context.Context, req mcp.ListResourcesRequest) (*mcp.ListResourcesResult, error) {
			return nil, fmt.Errorf("request failed: Method not found (-32601)")
		},
	})

	result, err := h.service.ListResources(t.Context(), "notes")
	require.NoError(t, err)
	require.Empty(t, result.Resources)

	// The empty listing is cached too.
	require.NotNil(t, h.registry.CachedResources("notes"))
}

func TestListResources_UnknownServer(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)

	_, err := h.service.ListResources(t.Context(), "missing")
	require.ErrorIs(t, err, errors.ErrServerNotFound)
}

func TestLoadResource_TextContent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &mcptest.Client{
		ReadResourceFn: func(ctx context.Context, req mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			require.Equal(t, "file:///a.txt", req.Params.URI)
			return &mcp.ReadResourceResult{
				Contents: []mcp.ResourceContents{
					mcp.TextResourceContents{URI: "file:///a.txt", MIMEType: "text/plain", Text: "hello"},
				},
			}, nil
		},
	})

	result, err := h.service.LoadResource(t.Context(), "notes", "file:///a.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), result.Content)
	require.Equal(t, "text/plain", result.Metadata.ContentType)
	require.EqualValues(t, 5, result.Metadata.Size)
	require.False(t, result.Partial)
}

func TestLoadResource_BlobContent(t *testing.T) {
	t.Parallel()

	raw := []byte{0x89, 0x50, 0x4e, 0x47}
	h := newHarness(t, &mcptest.Client{
		ReadResourceFn: func(ctx context.Context, req mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return &mcp.ReadResourceResult{
				Contents: []mcp.ResourceContents{
					mcp.BlobResourceContents{
						URI:      "file:///logo.png",
						MIMEType: "image/png",
						Blob:     base64.StdEncoding.EncodeToString(raw),
					},
				},
			}, nil
		},
	})

	result, err := h.service.LoadResource(t.Context(), "notes", "file:///logo.png")
	require.NoError(t, err)
	require.Equal(t, raw, result.Content)
	require.Equal(t, "image/png", result.Metadata.ContentType)
}

func TestLoadResource_EmptyURI(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &mcptest.Client{})

	_, err := h.service.LoadResource(t.Context(), "notes", "  ")
	require.ErrorIs(t, err, errors.ErrBadRequest)
}

func TestWriteResource_ToolCall(t *testing.T) {
	t.Parallel()

	fake := &mcptest.Client{
		CallToolFn: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			// Payload uses camelCase to exercise normalization.
			return textToolResult(`{"success":true,"metadata":{"uri":"file:///b.txt","contentType":"text/plain","size":4}}`), nil
		},
	}
	h := newHarness(t, fake)

	// Seed a cache so invalidation is observable.
	require.True(t, h.registry.SetResources("notes", []domain.ResourceMetadata{{URI: "file:///a.txt"}}))

	result, err := h.service.WriteResource(t.Context(), "notes", "file:///b.txt", []byte("data"), domain.WriteOptions{
		ContentType: "text/plain",
		Overwrite:   true,
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "file:///b.txt", result.Metadata.URI)
	require.Equal(t, "text/plain", result.Metadata.ContentType)
	require.EqualValues(t, 4, result.Metadata.Size)

	require.Len(t, fake.CallToolRequests, 1)
	require.Equal(t, "write_resource", fake.CallToolRequests[0].Params.Name)
	args, ok := fake.CallToolRequests[0].Params.Arguments.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "file:///b.txt", args["path"])
	require.Equal(t, "data", args["content"])
	require.Equal(t, true, args["overwrite"])

	// A successful write drops the stale listing.
	require.Nil(t, h.registry.CachedResources("notes"))
}

func TestWriteResource_ToolMissing(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &mcptest.Client{
		CallToolFn: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return nil, fmt.Errorf("tool not found: write_resource")
		},
	})

	_, err := h.service.WriteResource(t.Context(), "notes", "file:///b.txt", nil, domain.WriteOptions{})
	require.ErrorIs(t, err, errors.ErrUnsupportedOperation)
}

func TestWriteResource_ToolResultError(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &mcptest.Client{
		CallToolFn: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "permission denied"}},
			}, nil
		},
	})

	_, err := h.service.WriteResource(t.Context(), "notes", "file:///b.txt", nil, domain.WriteOptions{})
	require.ErrorIs(t, err, errors.ErrToolCallFailed)
	require.ErrorContains(t, err, "permission denied")
}

func TestMoveResource_ToolCall(t *testing.T) {
	t.Parallel()

	fake := &mcptest.Client{
		CallToolFn: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return textToolResult(`{"success":true,"source_uri":"file:///a.txt","destination_uri":"file:///b.txt"}`), nil
		},
	}
	h := newHarness(t, fake)

	result, err := h.service.MoveResource(t.Context(), "notes", "file:///a.txt", "file:///b.txt", domain.MoveOptions{})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "file:///a.txt", result.SourceURI)
	require.Equal(t, "file:///b.txt", result.DestinationURI)
	require.Equal(t, "move_resource", fake.CallToolRequests[0].Params.Name)
}

func TestMoveResource_MissingArgs(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &mcptest.Client{})

	_, err := h.service.MoveResource(t.Context(), "notes", "file:///a.txt", "", domain.MoveOptions{})
	require.ErrorIs(t, err, errors.ErrBadRequest)
}

func TestDeleteResource_ToolCall(t *testing.T) {
	t.Parallel()

	fake := &mcptest.Client{
		CallToolFn: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return textToolResult(`{"success":true,"uri":"file:///a.txt"}`), nil
		},
	}
	h := newHarness(t, fake)
	require.True(t, h.registry.SetResources("notes", []domain.ResourceMetadata{{URI: "file:///a.txt"}}))

	result, err := h.service.DeleteResource(t.Context(), "notes", "file:///a.txt", domain.DeleteOptions{Recursive: true})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "file:///a.txt", result.URI)

	args, ok := fake.CallToolRequests[0].Params.Arguments.(map[string]any)
	require.True(t, ok)
	require.Equal(t, true, args["recursive"])

	require.Nil(t, h.registry.CachedResources("notes"))
}

func TestSearchResources_ToolCall(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &mcptest.Client{
		CallToolFn: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return textToolResult(`{"matches":[
				{"metadata":{"uri":"file:///a.txt","name":"a.txt"},"snippet":"...query...","score":0.9},
				{"uri":"file:///b.txt","name":"b.txt","snippet":"other","score":0.4}
			]}`), nil
		},
	})

	result, err := h.service.SearchResources(t.Context(), "notes", "query", domain.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, result.Matches, 2)
	require.Equal(t, "file:///a.txt", result.Matches[0].Metadata.URI)
	require.InDelta(t, 0.9, result.Matches[0].Score, 0.001)
	// Flat entries without a metadata object still normalize.
	require.Equal(t, "file:///b.txt", result.Matches[1].Metadata.URI)
}

func TestSearchResources_FallsBackToLocalFilter(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &mcptest.Client{
		CallToolFn: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return nil, fmt.Errorf("unknown tool: search_resources")
		},
		ListResourcesFn: func(ctx context.Context, req mcp.ListResourcesRequest) (*mcp.ListResourcesResult, error) {
			return &mcp.ListResourcesResult{Resources: []mcp.Resource{
				{URI: "file:///meeting-notes.md", Name: "meeting-notes.md"},
				{URI: "file:///todo.md", Name: "todo.md"},
			}}, nil
		},
	})

	result, err := h.service.SearchResources(t.Context(), "notes", "meeting", domain.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	require.Equal(t, "file:///meeting-notes.md", result.Matches[0].Metadata.URI)
}

func TestSearchResources_EmptyQuery(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &mcptest.Client{})

	_, err := h.service.SearchResources(t.Context(), "notes", "", domain.SearchOptions{})
	require.ErrorIs(t, err, errors.ErrBadRequest)
}

func TestRecovery_AuthErrorRefreshesAndRetries(t *testing.T) {
	t.Parallel()

	attempts := 0
	fake := &mcptest.Client{
		ReadResourceFn: func(ctx context.Context, req mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			attempts++
			if attempts == 1 {
				return nil, fmt.Errorf("request failed: 401 Unauthorized")
			}
			return &mcp.ReadResourceResult{Contents: []mcp.ResourceContents{
				mcp.TextResourceContents{URI: "file:///a.txt", Text: "ok"},
			}}, nil
		},
	}
	h := newHarness(t, fake)

	result, err := h.service.LoadResource(t.Context(), "notes", "file:///a.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("ok"), result.Content)
	require.Equal(t, 2, attempts)
	require.Equal(t, 1, h.refresher.calls)
	require.Equal(t, 1, h.supervisor.reconnects)
}

func TestRecovery_AuthErrorAfterRefreshIsTerminal(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &mcptest.Client{
		ReadResourceFn: func(ctx context.Context, req mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return nil, fmt.Errorf("request failed: 401 Unauthorized")
		},
	})

	_, err := h.service.LoadResource(t.Context(), "notes", "file:///a.txt")
	require.ErrorIs(t, err, errors.ErrAuthentication)
	require.Equal(t, 1, h.refresher.calls)
}

func TestRecovery_RefreshFailureSurfaces(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &mcptest.Client{
		ReadResourceFn: func(ctx context.Context, req mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return nil, fmt.Errorf("request failed: 401 Unauthorized")
		},
	})
	h.refresher.err = fmt.Errorf("%w: no stored refresh token", errors.ErrAuthentication)

	_, err := h.service.LoadResource(t.Context(), "notes", "file:///a.txt")
	require.ErrorIs(t, err, errors.ErrAuthentication)
	require.Zero(t, h.supervisor.reconnects)
}

func TestRecovery_SessionErrorReconnectsAndRetries(t *testing.T) {
	t.Parallel()

	attempts := 0
	fake := &mcptest.Client{
		ReadResourceFn: func(ctx context.Context, req mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			attempts++
			if attempts == 1 {
				return nil, fmt.Errorf("read response: EOF")
			}
			return &mcp.ReadResourceResult{Contents: []mcp.ResourceContents{
				mcp.TextResourceContents{URI: "file:///a.txt", Text: "ok"},
			}}, nil
		},
	}
	h := newHarness(t, fake)

	_, err := h.service.LoadResource(t.Context(), "notes", "file:///a.txt")
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
	require.Equal(t, 1, h.supervisor.reconnects)
	require.Zero(t, h.refresher.calls)
}

func TestRecovery_SessionErrorReconnectFails(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &mcptest.Client{
		ReadResourceFn: func(ctx context.Context, req mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return nil, fmt.Errorf("session not found")
		},
	})
	h.supervisor.reconnectErr = fmt.Errorf("dial tcp: connection refused")

	_, err := h.service.LoadResource(t.Context(), "notes", "file:///a.txt")
	require.ErrorIs(t, err, errors.ErrSession)
}

func TestRecovery_UnclassifiedErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	attempts := 0
	h := newHarness(t, &mcptest.Client{
		ReadResourceFn: func(ctx context.Context, req mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			attempts++
			return nil, fmt.Errorf("resource does not exist")
		},
	})

	_, err := h.service.LoadResource(t.Context(), "notes", "file:///a.txt")
	require.ErrorIs(t, err, errors.ErrExternalService)
	require.Equal(t, 1, attempts)
	require.Zero(t, h.refresher.calls)
	require.Zero(t, h.supervisor.reconnects)
}

func TestRecovery_ConnectsWhenNoHandleExists(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.supervisor.onReconnect = func() {
		h.supervisor.clients["notes"] = &mcptest.Client{
			ReadResourceFn: func(ctx context.Context, req mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
				return &mcp.ReadResourceResult{Contents: []mcp.ResourceContents{
					mcp.TextResourceContents{URI: "file:///a.txt", Text: "ok"},
				}}, nil
			},
		}
	}

	result, err := h.service.LoadResource(t.Context(), "notes", "file:///a.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("ok"), result.Content)
	require.Equal(t, 1, h.supervisor.reconnects)
}

func TestServerCapabilities_DefaultsWhenUnknown(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &mcptest.Client{})

	caps := h.service.ServerCapabilities(t.Context(), "notes")
	require.Equal(t, domain.DefaultCapabilities(), caps)
}

func TestServerCapabilities_DiscoversToolBackedCapabilities(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &mcptest.Client{
		ListToolsFn: func(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
			return &mcp.ListToolsResult{Tools: []mcp.Tool{
				{Name: "write_resource"},
				{Name: "delete_resource"},
				{Name: "unrelated_tool"},
			}}, nil
		},
	})
	require.True(t, h.registry.SetCapabilities("notes", []domain.Capability{
		domain.CapabilityRead, domain.CapabilityList, domain.CapabilityTools,
	}))

	caps := h.service.ServerCapabilities(t.Context(), "notes")
	require.Contains(t, caps, domain.CapabilityWrite)
	require.Contains(t, caps, domain.CapabilityDelete)
	require.NotContains(t, caps, domain.CapabilitySearch)

	// Discovered capabilities are cached on the registry entry.
	require.Contains(t, h.registry.ServerCapabilities("notes"), domain.CapabilityWrite)
}

func TestServerCapabilities_IntrospectionFailureKeepsBaseline(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &mcptest.Client{
		ListToolsFn: func(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
			return nil, fmt.Errorf("read response: EOF")
		},
	})
	baseline := []domain.Capability{domain.CapabilityRead, domain.CapabilityList, domain.CapabilityTools}
	require.True(t, h.registry.SetCapabilities("notes", baseline))

	caps := h.service.ServerCapabilities(t.Context(), "notes")
	require.Equal(t, baseline, caps)
}
