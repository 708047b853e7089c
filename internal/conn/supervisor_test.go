package conn

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/beyondbetter/mcphub/internal/config"
	"github.com/beyondbetter/mcphub/internal/domain"
	"github.com/beyondbetter/mcphub/internal/errors"
	"github.com/beyondbetter/mcphub/internal/mcptest"
	"github.com/beyondbetter/mcphub/internal/registry"
)

type fakeStore struct {
	servers []config.ServerEntry
	tokens  map[string]config.TokenEntry
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

func (f *fakeStore) UpsertToken(server string, token config.TokenEntry) error {
	if f.tokens == nil {
		f.tokens = map[string]config.TokenEntry{}
	}
	f.tokens[server] = token
	return nil
}

func (f *fakeStore) DeleteToken(server string) error { return nil }

func (f *fakeStore) Token(server string) (config.TokenEntry, bool) {
	token, ok := f.tokens[server]
	return token, ok
}

type fakeHealth struct {
	updates []domain.ServerHealth
}

func (f *fakeHealth) Status(name string) (domain.ServerHealth, error) {
	return domain.ServerHealth{}, errors.ErrHealthNotTracked
}
func (f *fakeHealth) List() []domain.ServerHealth { return nil }
func (f *fakeHealth) Track(name string)           {}
func (f *fakeHealth) Forget(name string)          {}

func (f *fakeHealth) Update(name string, status domain.HealthStatus, latency *time.Duration) error {
	f.updates = append(f.updates, domain.ServerHealth{Name: name, Status: status, Latency: latency})
	return nil
}

func newTestSupervisor(t *testing.T, entries ...config.ServerEntry) (*Supervisor, *registry.Registry, *fakeHealth) {
	t.Helper()

	reg, err := registry.NewRegistry(hclog.NewNullLogger(), &fakeStore{servers: entries})
	require.NoError(t, err)

	health := &fakeHealth{}
	sup, err := NewSupervisor(hclog.NewNullLogger(), reg, health)
	require.NoError(t, err)

	return sup, reg, health
}

func TestNewSupervisor_RequiredArgs(t *testing.T) {
	t.Parallel()

	reg, err := registry.NewRegistry(hclog.NewNullLogger(), &fakeStore{})
	require.NoError(t, err)

	_, err = NewSupervisor(nil, reg, nil)
	require.ErrorContains(t, err, "logger cannot be nil")

	_, err = NewSupervisor(hclog.NewNullLogger(), nil, nil)
	require.ErrorContains(t, err, "registry cannot be nil")
}

func TestSupervisor_ClientLookup(t *testing.T) {
	t.Parallel()

	sup, reg, _ := newTestSupervisor(t, config.ServerEntry{
		Name:      "notes",
		Transport: config.TransportStdio,
		Command:   "uvx",
	})

	_, ok := sup.Client("notes")
	require.False(t, ok)

	fake := &mcptest.Client{}
	require.True(t, reg.SetClient("notes", fake))

	got, ok := sup.Client("notes")
	require.True(t, ok)
	require.Same(t, fake, got)

	_, ok = sup.Client("missing")
	require.False(t, ok)
}

func TestSupervisor_IsServerAvailable(t *testing.T) {
	t.Parallel()

	sup, reg, health := newTestSupervisor(t, config.ServerEntry{
		Name:      "notes",
		Transport: config.TransportStdio,
		Command:   "uvx",
	})

	require.True(t, reg.SetClient("notes", &mcptest.Client{}))
	require.True(t, sup.IsServerAvailable(t.Context(), "notes"))

	require.Len(t, health.updates, 1)
	require.Equal(t, domain.HealthStatusOK, health.updates[0].Status)
	require.NotNil(t, health.updates[0].Latency)
}

func TestSupervisor_IsServerAvailable_PingFails(t *testing.T) {
	t.Parallel()

	sup, reg, health := newTestSupervisor(t, config.ServerEntry{
		Name:      "notes",
		Transport: config.TransportStdio,
		Command:   "uvx",
	})

	require.True(t, reg.SetClient("notes", &mcptest.Client{
		PingFunc: func(ctx context.Context) error {
			return fmt.Errorf("connection reset by peer")
		},
	}))

	require.False(t, sup.IsServerAvailable(t.Context(), "notes"))
	require.Len(t, health.updates, 1)
	require.Equal(t, domain.HealthStatusUnreachable, health.updates[0].Status)
}

func TestSupervisor_IsServerAvailable_UnknownServer(t *testing.T) {
	t.Parallel()

	sup, _, _ := newTestSupervisor(t)
	require.False(t, sup.IsServerAvailable(t.Context(), "missing"))
}

func TestSupervisor_Connect_UnknownServer(t *testing.T) {
	t.Parallel()

	sup, _, _ := newTestSupervisor(t)
	require.ErrorIs(t, sup.Connect(t.Context(), "missing"), errors.ErrServerNotFound)
}

func TestSupervisor_Connect_ExistingHandleIsKept(t *testing.T) {
	t.Parallel()

	sup, reg, _ := newTestSupervisor(t, config.ServerEntry{
		Name:      "notes",
		Transport: config.TransportStdio,
		Command:   "uvx",
	})

	fake := &mcptest.Client{}
	require.True(t, reg.SetClient("notes", fake))
	require.NoError(t, sup.Connect(t.Context(), "notes"))

	got, ok := sup.Client("notes")
	require.True(t, ok)
	require.Same(t, fake, got)
}

func TestSupervisor_Disconnect(t *testing.T) {
	t.Parallel()

	sup, reg, _ := newTestSupervisor(t, config.ServerEntry{
		Name:      "notes",
		Transport: config.TransportStdio,
		Command:   "uvx",
	})

	fake := &mcptest.Client{}
	require.True(t, reg.SetClient("notes", fake))

	require.NoError(t, sup.Disconnect("notes"))
	require.Equal(t, 1, fake.CloseCalls)

	_, ok := sup.Client("notes")
	require.False(t, ok)

	// Disconnecting again is a no-op.
	require.NoError(t, sup.Disconnect("notes"))
	require.Equal(t, 1, fake.CloseCalls)
}

func TestSupervisor_Disconnect_CloseFailure(t *testing.T) {
	t.Parallel()

	sup, reg, _ := newTestSupervisor(t, config.ServerEntry{
		Name:      "notes",
		Transport: config.TransportStdio,
		Command:   "uvx",
	})

	require.True(t, reg.SetClient("notes", &mcptest.Client{
		CloseFunc: func() error { return fmt.Errorf("already closed") },
	}))

	err := sup.Disconnect("notes")
	require.ErrorIs(t, err, errors.ErrExternalService)

	// The handle is cleared even when close fails.
	_, ok := sup.Client("notes")
	require.False(t, ok)
}

func TestSupervisor_RecordActivity(t *testing.T) {
	t.Parallel()

	sup, reg, _ := newTestSupervisor(t, config.ServerEntry{
		Name:      "notes",
		Transport: config.TransportStdio,
		Command:   "uvx",
	})

	before, _ := reg.Get("notes")
	require.True(t, before.LastActivity.IsZero())

	sup.RecordActivity("notes")

	after, _ := reg.Get("notes")
	require.False(t, after.LastActivity.IsZero())
}

func TestSupervisor_IsAuthError(t *testing.T) {
	t.Parallel()

	sup, _, _ := newTestSupervisor(t)

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "http 401", err: fmt.Errorf("request failed: 401 Unauthorized"), want: true},
		{name: "invalid token", err: fmt.Errorf("oauth: invalid_token"), want: true},
		{name: "expired token", err: fmt.Errorf("access token expired"), want: true},
		{name: "sentinel", err: fmt.Errorf("wrapped: %w", errors.ErrAuthentication), want: true},
		{name: "connection refused", err: fmt.Errorf("dial tcp: connection refused"), want: false},
		{name: "not found", err: fmt.Errorf("404 not found"), want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, sup.IsAuthError(tc.err))
		})
	}
}

func TestSupervisor_IsSessionError(t *testing.T) {
	t.Parallel()

	sup, _, _ := newTestSupervisor(t)

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "session not found", err: fmt.Errorf("session not found"), want: true},
		{name: "missing session header", err: fmt.Errorf("missing session id"), want: true},
		{name: "stdio process death", err: fmt.Errorf("read response: EOF"), want: true},
		{name: "broken pipe", err: fmt.Errorf("write |1: broken pipe"), want: true},
		{name: "net op error", err: &net.OpError{Op: "dial", Err: stderrors.New("refused")}, want: true},
		{name: "sentinel", err: fmt.Errorf("wrapped: %w", errors.ErrSession), want: true},
		{name: "auth is not session", err: fmt.Errorf("401 Unauthorized"), want: false},
		{name: "tool failure", err: fmt.Errorf("tool execution failed"), want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, sup.IsSessionError(tc.err))
		})
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("MCPHUB_TEST_SECRET", "hunter2")

	got := expandEnv(map[string]string{
		"API_KEY": "${MCPHUB_TEST_SECRET}",
		"MODE":    "production",
	})

	require.ElementsMatch(t, []string{"API_KEY=hunter2", "MODE=production"}, got)
}
