package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/beyondbetter/mcphub/internal/conn"
	"github.com/beyondbetter/mcphub/internal/manager"
	"github.com/beyondbetter/mcphub/internal/oauth"
	"github.com/beyondbetter/mcphub/internal/registry"
	"github.com/beyondbetter/mcphub/internal/resources"
)

// Daemon supervises MCP server connections and serves the HTTP API.
// NewDaemon should be used to create instances of Daemon.
type Daemon struct {
	logger        hclog.Logger
	registry      *registry.Registry
	supervisor    *conn.Supervisor
	manager       *manager.Manager
	healthTracker *HealthTracker
	apiServer     *APIServer

	healthCheckInterval time.Duration
}

// NewDaemon wires the registry, connection supervisor, token service,
// resource service and manager from the daemon's dependencies, and prepares
// the API server on top of them.
func NewDaemon(deps Dependencies, opt ...Option) (*Daemon, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies for daemon: %w", err)
	}

	opts, err := NewOptions(opt...)
	if err != nil {
		return nil, fmt.Errorf("invalid daemon options: %w", err)
	}

	logger := deps.Logger.Named("daemon")

	reg, err := registry.NewRegistry(logger, deps.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to create server registry: %w", err)
	}

	healthTracker := NewHealthTracker(reg.Servers())

	supervisor, err := conn.NewSupervisor(
		logger,
		reg,
		healthTracker,
		conn.WithInitializeTimeout(opts.ClientInitTimeout),
		conn.WithPingTimeout(opts.ClientHealthCheckTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection supervisor: %w", err)
	}

	tokens, err := oauth.NewService(logger, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	resourceSvc, err := resources.NewService(logger, reg, supervisor, tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource service: %w", err)
	}

	mgr, err := manager.NewManager(manager.Dependencies{
		Logger:     logger,
		Registry:   reg,
		Supervisor: supervisor,
		Resources:  resourceSvc,
		Tokens:     tokens,
		Health:     healthTracker,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create manager: %w", err)
	}

	apiDeps, err := NewAPIDependencies(logger, mgr, healthTracker, deps.APIAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create API dependencies: %w", err)
	}

	apiServer, err := NewAPIServer(apiDeps, opts.APIOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create daemon API server: %w", err)
	}

	return &Daemon{
		logger:              logger,
		registry:            reg,
		supervisor:          supervisor,
		manager:             mgr,
		healthTracker:       healthTracker,
		apiServer:           apiServer,
		healthCheckInterval: opts.ClientHealthCheckInterval,
	}, nil
}

// Manager exposes the daemon's manager, mainly for tests.
func (d *Daemon) Manager() *manager.Manager {
	return d.manager
}

// StartAndManage connects to all configured servers, starts health checking
// and serves the HTTP API until the context is canceled. A server that fails
// to connect at startup is logged and left to the reconnect-on-demand path;
// it never prevents the daemon from coming up.
func (d *Daemon) StartAndManage(ctx context.Context) error {
	servers := d.registry.Servers()
	d.logger.Info(fmt.Sprintf("Loaded configuration for %d MCP server(s)", len(servers)))

	var startupWg sync.WaitGroup
	startupWg.Add(len(servers))
	for _, name := range servers {
		go func(name string) {
			defer startupWg.Done()
			if err := d.supervisor.Connect(ctx, name); err != nil {
				d.logger.Error("Failed to connect to MCP server", "server", name, "error", err)
			}
		}(name)
	}
	startupWg.Wait()

	go d.healthCheckLoop(ctx)

	defer d.supervisor.CloseAll()

	return d.apiServer.Start(ctx)
}

func (d *Daemon) healthCheckLoop(ctx context.Context) {
	ticker := time.NewTicker(d.healthCheckInterval)
	defer ticker.Stop()

	d.pingAllServers(ctx)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Stopping MCP server health checks")
			return
		case <-ticker.C:
			d.pingAllServers(ctx)
		}
	}
}

// pingAllServers records health for every registered server. Availability
// checks ping the live connection; servers without one are only probed via
// reconnect, which the supervisor deduplicates.
func (d *Daemon) pingAllServers(ctx context.Context) {
	for _, name := range d.registry.Servers() {
		go func(name string) {
			if !d.supervisor.IsServerAvailable(ctx, name) {
				d.logger.Debug("Health check failed", "server", name)
			}
		}(name)
	}
}
