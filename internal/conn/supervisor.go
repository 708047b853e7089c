// Package conn owns the transport lifecycle for configured MCP servers:
// spawning stdio processes, dialing streamable HTTP endpoints, initializing
// the protocol, and tearing connections down. It is the only component that
// installs connection handles on registry entries.
package conn

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/singleflight"

	"github.com/beyondbetter/mcphub/internal/config"
	"github.com/beyondbetter/mcphub/internal/contracts"
	"github.com/beyondbetter/mcphub/internal/domain"
	"github.com/beyondbetter/mcphub/internal/errors"
	"github.com/beyondbetter/mcphub/internal/registry"
)

const (
	clientName    = "mcphub"
	clientVersion = "0.1.0"

	defaultInitializeTimeout = 30 * time.Second
	defaultPingTimeout       = 3 * time.Second
)

var _ contracts.ConnectionSupervisor = (*Supervisor)(nil)

// Supervisor establishes and supervises one connection per registered server.
// It is safe for concurrent use by multiple goroutines.
type Supervisor struct {
	logger   hclog.Logger
	registry *registry.Registry
	health   contracts.MCPHealthMonitor

	// connects deduplicates concurrent dials for the same server so a burst
	// of operations against a down server produces one reconnect attempt.
	connects singleflight.Group

	initializeTimeout time.Duration
	pingTimeout       time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithInitializeTimeout overrides the protocol initialization timeout.
func WithInitializeTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.initializeTimeout = d
		}
	}
}

// WithPingTimeout overrides the availability-check ping timeout.
func WithPingTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.pingTimeout = d
		}
	}
}

// NewSupervisor creates a supervisor over the given registry. The health
// monitor may be nil when health tracking is not wanted (e.g. in one-shot
// CLI commands).
func NewSupervisor(logger hclog.Logger, reg *registry.Registry, health contracts.MCPHealthMonitor, opt ...Option) (*Supervisor, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}

	s := &Supervisor{
		logger:            logger.Named("conn"),
		registry:          reg,
		health:            health,
		initializeTimeout: defaultInitializeTimeout,
		pingTimeout:       defaultPingTimeout,
		cancels:           make(map[string]context.CancelFunc),
	}
	for _, o := range opt {
		o(s)
	}

	return s, nil
}

// Connect establishes a connection for the named server if none exists.
// An existing handle is left alone; use ForceReconnect to replace it.
func (s *Supervisor) Connect(ctx context.Context, name string) error {
	if _, ok := s.Client(name); ok {
		return nil
	}

	return s.ForceReconnect(ctx, name)
}

// ForceReconnect tears down any existing handle for the server and
// establishes a fresh one from its current configuration. Concurrent calls
// for the same server share a single attempt.
func (s *Supervisor) ForceReconnect(ctx context.Context, name string) error {
	_, err, _ := s.connects.Do(name, func() (any, error) {
		if err := s.Disconnect(name); err != nil {
			s.logger.Debug("Error closing connection before reconnect", "server", name, "error", err)
		}
		return nil, s.connect(ctx, name)
	})

	return err
}

// IsServerAvailable reports whether a live, responsive connection exists for
// the server, attempting a reconnect first when there is none. Unavailability
// is a normal state, never an error.
func (s *Supervisor) IsServerAvailable(ctx context.Context, name string) bool {
	if !s.registry.Has(name) {
		return false
	}

	if _, ok := s.Client(name); !ok {
		if err := s.ForceReconnect(ctx, name); err != nil {
			s.logger.Debug("Server unavailable, reconnect failed", "server", name, "error", err)
			return false
		}
	}

	c, ok := s.Client(name)
	if !ok {
		return false
	}

	pingCtx, cancel := context.WithTimeout(ctx, s.pingTimeout)
	defer cancel()

	start := time.Now()
	if err := c.Ping(pingCtx); err != nil {
		s.logger.Debug("Ping failed", "server", name, "error", err)
		s.updateHealth(name, domain.HealthStatusUnreachable, nil)
		return false
	}

	latency := time.Since(start)
	s.updateHealth(name, domain.HealthStatusOK, &latency)
	s.registry.Touch(name)

	return true
}

// RecordActivity updates the server's last-activity timestamp.
func (s *Supervisor) RecordActivity(name string) {
	s.registry.Touch(name)
}

// Client returns the live connection handle for the server, if connected.
func (s *Supervisor) Client(name string) (client.MCPClient, bool) {
	info, ok := s.registry.Get(name)
	if !ok || info.Client == nil {
		return nil, false
	}
	return info.Client, true
}

// Disconnect closes the server's connection handle, if any, and clears it
// from the registry. Disconnecting an unconnected server is a no-op.
func (s *Supervisor) Disconnect(name string) error {
	s.mu.Lock()
	if cancel, ok := s.cancels[name]; ok {
		cancel()
		delete(s.cancels, name)
	}
	s.mu.Unlock()

	c, ok := s.Client(name)
	s.registry.SetClient(name, nil)
	if !ok {
		return nil
	}

	s.logger.Info("Closing client connection to MCP server", "server", name)
	if err := c.Close(); err != nil {
		return errors.External("disconnect", name, err)
	}

	return nil
}

// CloseAll disconnects every registered server. Used during daemon shutdown.
func (s *Supervisor) CloseAll() {
	for _, name := range s.registry.Servers() {
		if err := s.Disconnect(name); err != nil {
			s.logger.Error("Error closing client connection to MCP server", "server", name, "error", err)
		}
	}
}

func (s *Supervisor) connect(ctx context.Context, name string) error {
	entry, ok := s.registry.ServerConfiguration(name)
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrServerNotFound, name)
	}

	var (
		c   client.MCPClient
		err error
	)
	switch {
	case entry.IsStdio():
		c, err = s.startStdio(ctx, entry)
	case entry.IsHTTP():
		c, err = s.dialHTTP(entry)
	default:
		return fmt.Errorf("%w: '%s': unsupported transport '%s'", errors.ErrConfiguration, name, entry.Transport)
	}
	if err != nil {
		s.updateHealth(name, domain.HealthStatusUnreachable, nil)
		return err
	}

	initializeCtx, cancel := context.WithTimeout(ctx, s.initializeTimeout)
	defer cancel()

	start := time.Now()
	initResult, err := c.Initialize(
		initializeCtx,
		mcp.InitializeRequest{
			Params: mcp.InitializeParams{
				ProtocolVersion: "latest",
				ClientInfo:      mcp.Implementation{Name: clientName, Version: clientVersion},
			},
		})
	if err != nil {
		_ = c.Close()

		status := domain.HealthStatusUnreachable
		if initializeCtx.Err() != nil {
			status = domain.HealthStatusTimeout
		}
		s.updateHealth(name, status, nil)

		if s.IsAuthError(err) {
			return fmt.Errorf("%w: '%s': %w", errors.ErrAuthentication, name, err)
		}
		return fmt.Errorf("%w: error initializing MCP client '%s': %w", errors.ErrConnection, name, err)
	}

	latency := time.Since(start)
	s.logger.Info(
		"Initialized MCP server",
		"server", name,
		"remote", fmt.Sprintf("%s@%s", initResult.ServerInfo.Name, initResult.ServerInfo.Version),
	)

	s.registry.SetClient(name, c)
	s.registry.SetCapabilities(name, capabilitiesFromInit(initResult))
	s.registry.Touch(name)
	s.updateHealth(name, domain.HealthStatusOK, &latency)

	return nil
}

// startStdio spawns the configured child process and pipes its stderr to the
// logger until the server is disconnected.
func (s *Supervisor) startStdio(ctx context.Context, entry config.ServerEntry) (client.MCPClient, error) {
	env := expandEnv(entry.Env)

	s.logger.Info(
		"Starting MCP server",
		"server", entry.Name,
		"command", entry.Command,
		"args", entry.Args,
	)

	stdioClient, err := client.NewStdioMCPClient(entry.Command, env, entry.Args...)
	if err != nil {
		return nil, fmt.Errorf("%w: error starting MCP server '%s': %w", errors.ErrConnection, entry.Name, err)
	}

	stderr, ok := client.GetStderr(stdioClient)
	if !ok {
		_ = stdioClient.Close()
		return nil, fmt.Errorf("%w: failed to get stderr from MCP server '%s'", errors.ErrConnection, entry.Name)
	}

	stderrCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	if old, exists := s.cancels[entry.Name]; exists {
		old()
	}
	s.cancels[entry.Name] = cancel
	s.mu.Unlock()

	go s.pipeStderr(stderrCtx, entry.Name, stderr)

	return stdioClient, nil
}

func (s *Supervisor) pipeStderr(ctx context.Context, name string, stderr io.Reader) {
	reader := bufio.NewReader(stderr)
	for {
		select {
		case <-ctx.Done():
			return
		default:
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					s.logger.Error("Error reading stderr", "server", name, "error", err)
				}
				return
			}
			s.logger.Debug("stderr", "server", name, "line", line)
		}
	}
}

// dialHTTP creates a streamable HTTP client for the entry. A stored OAuth
// token, when present, is sent as a bearer Authorization header alongside any
// configured static headers.
func (s *Supervisor) dialHTTP(entry config.ServerEntry) (client.MCPClient, error) {
	headers := make(map[string]string, len(entry.Headers)+1)
	for k, v := range entry.Headers {
		headers[k] = v
	}

	if entry.OAuth != nil {
		if token, ok := s.registry.Store().Token(entry.Name); ok && token.AccessToken != "" {
			headers["Authorization"] = "Bearer " + token.AccessToken
		}
	}

	var opts []transport.StreamableHTTPCOption
	if len(headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(headers))
	}

	s.logger.Info("Dialing MCP server", "server", entry.Name, "url", entry.URL)

	httpClient, err := client.NewStreamableHttpClient(entry.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: error creating HTTP client for '%s': %w", errors.ErrConnection, entry.Name, err)
	}

	return httpClient, nil
}

func (s *Supervisor) updateHealth(name string, status domain.HealthStatus, latency *time.Duration) {
	if s.health == nil {
		return
	}
	if err := s.health.Update(name, status, latency); err != nil {
		s.logger.Debug("Unable to record health status", "server", name, "error", err)
	}
}

// capabilitiesFromInit derives a coarse capability set from the initialize
// result. Resource verbs beyond read/list are discovered later from the
// server's tool listing.
func capabilitiesFromInit(result *mcp.InitializeResult) []domain.Capability {
	caps := domain.DefaultCapabilities()
	if result != nil && result.Capabilities.Tools != nil {
		caps = append(caps, domain.CapabilityTools)
	}
	return caps
}

// expandEnv flattens a config env map into KEY=VALUE pairs, expanding
// '${VAR}' references against the host environment so secrets stay out of
// the config file.
func expandEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, os.ExpandEnv(v)))
	}
	return out
}
