package api

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/beyondbetter/mcphub/internal/config"
	"github.com/beyondbetter/mcphub/internal/contracts"
	"github.com/beyondbetter/mcphub/internal/domain"
	"github.com/beyondbetter/mcphub/internal/errors"
)

var (
	_ contracts.ServerManager    = (*fakeManager)(nil)
	_ contracts.MCPHealthMonitor = (*fakeMonitor)(nil)
)

// fakeManager is a configurable contracts.ServerManager for handler tests.
// Unset function fields produce zero values.
type fakeManager struct {
	servers map[string]config.ServerEntry

	available    bool
	capabilities []domain.Capability

	addedEntries []config.ServerEntry
	removed      []string
	addErr       error
	removeErr    error

	listResourcesFn  func(server string) (domain.ResourceListResult, error)
	loadResourceFn   func(server, uri string) (domain.ResourceLoadResult, error)
	searchFn         func(server, query string, opts domain.SearchOptions) (domain.ResourceSearchResult, error)
	writeFn          func(server, path string, content []byte, opts domain.WriteOptions) (domain.ResourceWriteResult, error)
	moveFn           func(server, source, destination string, opts domain.MoveOptions) (domain.ResourceMoveResult, error)
	deleteFn         func(server, path string, opts domain.DeleteOptions) (domain.ResourceDeleteResult, error)
	listToolsFn      func(server string) ([]mcp.Tool, error)
	executeToolFn    func(server, tool string, args map[string]any) (*mcp.CallToolResult, error)
}

func newFakeManager(entries ...config.ServerEntry) *fakeManager {
	servers := make(map[string]config.ServerEntry, len(entries))
	for _, entry := range entries {
		servers[entry.Name] = entry
	}
	return &fakeManager{
		servers:      servers,
		capabilities: domain.DefaultCapabilities(),
	}
}

func (f *fakeManager) Servers() []string {
	names := make([]string, 0, len(f.servers))
	for name := range f.servers {
		names = append(names, name)
	}
	return names
}

func (f *fakeManager) ServerConfiguration(name string) (config.ServerEntry, error) {
	entry, ok := f.servers[name]
	if !ok {
		return config.ServerEntry{}, fmt.Errorf("%w: %s", errors.ErrServerNotFound, name)
	}
	return entry, nil
}

func (f *fakeManager) AddServer(_ context.Context, entry config.ServerEntry) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.addedEntries = append(f.addedEntries, entry)
	f.servers[entry.Name] = entry
	return nil
}

func (f *fakeManager) RemoveServer(name string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, name)
	delete(f.servers, name)
	return nil
}

func (f *fakeManager) IsServerAvailable(context.Context, string) bool {
	return f.available
}

func (f *fakeManager) ServerCapabilities(context.Context, string) []domain.Capability {
	return f.capabilities
}

func (f *fakeManager) ListResources(_ context.Context, server string) (domain.ResourceListResult, error) {
	if f.listResourcesFn != nil {
		return f.listResourcesFn(server)
	}
	return domain.ResourceListResult{}, nil
}

func (f *fakeManager) LoadResource(_ context.Context, server, uri string) (domain.ResourceLoadResult, error) {
	if f.loadResourceFn != nil {
		return f.loadResourceFn(server, uri)
	}
	return domain.ResourceLoadResult{}, nil
}

func (f *fakeManager) SearchResources(
	_ context.Context,
	server string,
	query string,
	opts domain.SearchOptions,
) (domain.ResourceSearchResult, error) {
	if f.searchFn != nil {
		return f.searchFn(server, query, opts)
	}
	return domain.ResourceSearchResult{}, nil
}

func (f *fakeManager) WriteResource(
	_ context.Context,
	server string,
	path string,
	content []byte,
	opts domain.WriteOptions,
) (domain.ResourceWriteResult, error) {
	if f.writeFn != nil {
		return f.writeFn(server, path, content, opts)
	}
	return domain.ResourceWriteResult{}, nil
}

func (f *fakeManager) MoveResource(
	_ context.Context,
	server string,
	source string,
	destination string,
	opts domain.MoveOptions,
) (domain.ResourceMoveResult, error) {
	if f.moveFn != nil {
		return f.moveFn(server, source, destination, opts)
	}
	return domain.ResourceMoveResult{}, nil
}

func (f *fakeManager) DeleteResource(
	_ context.Context,
	server string,
	path string,
	opts domain.DeleteOptions,
) (domain.ResourceDeleteResult, error) {
	if f.deleteFn != nil {
		return f.deleteFn(server, path, opts)
	}
	return domain.ResourceDeleteResult{}, nil
}

func (f *fakeManager) ListTools(_ context.Context, server string) ([]mcp.Tool, error) {
	if f.listToolsFn != nil {
		return f.listToolsFn(server)
	}
	return nil, nil
}

func (f *fakeManager) ExecuteTool(
	_ context.Context,
	server string,
	tool string,
	args map[string]any,
) (*mcp.CallToolResult, error) {
	if f.executeToolFn != nil {
		return f.executeToolFn(server, tool, args)
	}
	return &mcp.CallToolResult{}, nil
}

// fakeMonitor serves canned health records.
type fakeMonitor struct {
	records map[string]domain.ServerHealth
}

func newFakeMonitor(records ...domain.ServerHealth) *fakeMonitor {
	m := make(map[string]domain.ServerHealth, len(records))
	for _, r := range records {
		m[r.Name] = r
	}
	return &fakeMonitor{records: m}
}

func (f *fakeMonitor) Status(name string) (domain.ServerHealth, error) {
	health, ok := f.records[name]
	if !ok {
		return domain.ServerHealth{}, fmt.Errorf("%w: %s", errors.ErrHealthNotTracked, name)
	}
	return health, nil
}

func (f *fakeMonitor) List() []domain.ServerHealth {
	out := make([]domain.ServerHealth, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	return out
}

func (f *fakeMonitor) Update(name string, status domain.HealthStatus, latency *time.Duration) error {
	f.records[name] = domain.ServerHealth{Name: name, Status: status, Latency: latency}
	return nil
}

func (f *fakeMonitor) Track(name string) {
	f.records[name] = domain.ServerHealth{Name: name, Status: domain.HealthStatusUnknown}
}

func (f *fakeMonitor) Forget(name string) {
	delete(f.records, name)
}
