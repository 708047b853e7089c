package api

import (
	"context"
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"

	"github.com/beyondbetter/mcphub/internal/config"
	"github.com/beyondbetter/mcphub/internal/contracts"
)

// DomainServerEntry wraps config.ServerEntry for API conversion.
type DomainServerEntry config.ServerEntry

// Server is the API-safe view of a configured MCP server. Credentials
// (OAuth client secrets, header values) never cross the API boundary.
type Server struct {
	// Name is the unique identifier for the server.
	Name string `json:"name"`

	// Description is optional human-readable text about the server.
	Description string `json:"description,omitempty"`

	// Transport is how the server is reached: stdio or http.
	Transport string `json:"transport"`

	// Command is the executable spawned for stdio servers.
	Command string `json:"command,omitempty"`

	// Args are command line arguments for stdio servers.
	Args []string `json:"args,omitempty"`

	// URL is the endpoint for http servers.
	URL string `json:"url,omitempty"`

	// RequiresAuth is true when the server configuration declares an OAuth grant.
	RequiresAuth bool `json:"requiresAuth,omitempty"`
}

// ServerDetail extends Server with live information about the connection.
type ServerDetail struct {
	Server

	// Capabilities are the operations the server is known to support.
	Capabilities []string `json:"capabilities"`

	// Available is true when a healthy connection to the server exists.
	Available bool `json:"available"`
}

// OAuthSettings configures token acquisition when registering a server.
type OAuthSettings struct {
	GrantType    string   `doc:"OAuth grant type"                enum:"client_credentials,authorization_code" json:"grantType"`
	ClientID     string   `doc:"OAuth client identifier"         json:"clientId,omitempty"`
	ClientSecret string   `doc:"OAuth client secret"             json:"clientSecret,omitempty"`
	TokenURL     string   `doc:"Provider token endpoint"         json:"tokenUrl,omitempty"`
	AuthURL      string   `doc:"Provider authorization endpoint" json:"authUrl,omitempty"`
	Scopes       []string `doc:"Scopes to request"               json:"scopes,omitempty"`
}

// ServersResponse represents the wrapped API response for a list of servers.
type ServersResponse struct {
	Body struct {
		Servers []Server `doc:"Registered MCP servers" json:"servers"`
	}
}

// ServerRequest represents the incoming API request for a single server.
type ServerRequest struct {
	Name string `doc:"Name of the server" example:"filesystem" path:"name"`
}

// ServerResponse represents the wrapped API response for a single server.
type ServerResponse struct {
	Body ServerDetail
}

// ServerAddRequest represents the incoming API request to register a server.
type ServerAddRequest struct {
	Body struct {
		Name        string            `doc:"Unique name for the server"            example:"filesystem" json:"name"`
		Description string            `doc:"Human-readable description"            json:"description,omitempty"`
		Transport   string            `doc:"Transport type"                        enum:"stdio,http"    json:"transport"`
		Command     string            `doc:"Executable to spawn (stdio only)"      json:"command,omitempty"`
		Args        []string          `doc:"Command line arguments (stdio only)"   json:"args,omitempty"`
		Env         map[string]string `doc:"Environment variables (stdio only)"    json:"env,omitempty"`
		URL         string            `doc:"Endpoint URL (http only)"              json:"url,omitempty"`
		Headers     map[string]string `doc:"Additional HTTP headers (http only)"   json:"headers,omitempty"`
		OAuth       *OAuthSettings    `doc:"OAuth token acquisition (http only)"   json:"oauth,omitempty"`
	}
}

// ServerAddResponse represents the wrapped API response after registering a server.
type ServerAddResponse struct {
	Body Server
}

// ToAPIType converts a stored server configuration to its API-safe view.
func (d DomainServerEntry) ToAPIType() (Server, error) {
	return Server{
		Name:         d.Name,
		Description:  d.Description,
		Transport:    string(d.Transport),
		Command:      d.Command,
		Args:         slices.Clone(d.Args),
		URL:          d.URL,
		RequiresAuth: d.OAuth != nil,
	}, nil
}

// RegisterServerRoutes sets up server lifecycle API endpoint routes.
func RegisterServerRoutes(serversAPI huma.API, manager contracts.ServerManager) {
	tags := []string{"Servers"}

	// Add route at the root of the group (no path specified).
	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "listServers",
			Method:      http.MethodGet,
			Summary:     "List all servers",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*ServersResponse, error) {
			return handleServers(manager)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "getServer",
			Method:      http.MethodGet,
			Path:        "/{name}",
			Summary:     "Get a server with its capabilities and availability",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerRequest) (*ServerResponse, error) {
			return handleServer(ctx, manager, input.Name)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID:   "addServer",
			Method:        http.MethodPost,
			Summary:       "Register a server",
			DefaultStatus: http.StatusCreated,
			Tags:          tags,
		},
		func(ctx context.Context, input *ServerAddRequest) (*ServerAddResponse, error) {
			return handleServerAdd(ctx, manager, input)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID:   "removeServer",
			Method:        http.MethodDelete,
			Path:          "/{name}",
			Summary:       "Remove a server",
			DefaultStatus: http.StatusNoContent,
			Tags:          tags,
		},
		func(ctx context.Context, input *ServerRequest) (*struct{}, error) {
			if err := manager.RemoveServer(input.Name); err != nil {
				return nil, err
			}
			return &struct{}{}, nil
		},
	)
}

// handleServers returns the list of configured MCP servers.
func handleServers(manager contracts.ServerManager) (*ServersResponse, error) {
	names := manager.Servers()

	servers := make([]Server, 0, len(names))
	for _, name := range names {
		entry, err := manager.ServerConfiguration(name)
		if err != nil {
			return nil, err
		}
		data, err := DomainServerEntry(entry).ToAPIType()
		if err != nil {
			return nil, err
		}
		servers = append(servers, data)
	}

	resp := &ServersResponse{}
	resp.Body.Servers = servers

	return resp, nil
}

// handleServer returns a single server including its discovered capabilities
// and current availability.
func handleServer(ctx context.Context, manager contracts.ServerManager, name string) (*ServerResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	entry, err := manager.ServerConfiguration(name)
	if err != nil {
		return nil, err
	}

	data, err := DomainServerEntry(entry).ToAPIType()
	if err != nil {
		return nil, err
	}

	caps := manager.ServerCapabilities(ctx, name)
	capStrings := make([]string, 0, len(caps))
	for _, c := range caps {
		capStrings = append(capStrings, string(c))
	}
	slices.Sort(capStrings)

	resp := &ServerResponse{}
	resp.Body = ServerDetail{
		Server:       data,
		Capabilities: capStrings,
		Available:    manager.IsServerAvailable(ctx, name),
	}

	return resp, nil
}

// handleServerAdd registers a new server and returns its API-safe view.
// Registration survives a failed initial connection; the error is surfaced so
// the caller knows the server is configured but not yet reachable.
func handleServerAdd(
	ctx context.Context,
	manager contracts.ServerManager,
	input *ServerAddRequest,
) (*ServerAddResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	entry := config.ServerEntry{
		Name:        input.Body.Name,
		Description: input.Body.Description,
		Transport:   config.Transport(input.Body.Transport),
		Command:     input.Body.Command,
		Args:        input.Body.Args,
		Env:         input.Body.Env,
		URL:         input.Body.URL,
		Headers:     input.Body.Headers,
	}
	if o := input.Body.OAuth; o != nil {
		entry.OAuth = &config.OAuthEntry{
			GrantType:    o.GrantType,
			ClientID:     o.ClientID,
			ClientSecret: o.ClientSecret,
			TokenURL:     o.TokenURL,
			AuthURL:      o.AuthURL,
			Scopes:       o.Scopes,
		}
	}

	if err := manager.AddServer(ctx, entry); err != nil {
		return nil, err
	}

	data, err := DomainServerEntry(entry).ToAPIType()
	if err != nil {
		return nil, err
	}

	resp := &ServerAddResponse{}
	resp.Body = data

	return resp, nil
}
