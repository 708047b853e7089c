package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	_ Provider = (*DefaultLoader)(nil)
	_ Modifier = (*Config)(nil)
)

// Transport identifies how an MCP server is reached.
type Transport string

const (
	// TransportStdio is a spawned local child process, stream framed.
	TransportStdio Transport = "stdio"

	// TransportHTTP is a remote endpoint using streamable HTTP sessions.
	TransportHTTP Transport = "http"
)

// Grant types accepted in an OAuth block.
const (
	GrantClientCredentials = "client_credentials"
	GrantAuthorizationCode = "authorization_code"
)

type Loader interface {
	Load(path string) (Modifier, error)
}

type Initializer interface {
	Init(path string) error
}

type Provider interface {
	Initializer
	Loader
}

// Modifier is the durable configuration store consumed by the server registry.
// All mutating calls persist immediately; a failed save is always surfaced.
type Modifier interface {
	AddServer(entry ServerEntry) error
	RemoveServer(name string) error
	ListServers() []ServerEntry
	Server(name string) (ServerEntry, bool)
	UpsertToken(server string, token TokenEntry) error
	DeleteToken(server string) error
	Token(server string) (TokenEntry, bool)
}

type DefaultLoader struct{}

// Config represents the .mcphub.toml file structure.
type Config struct {
	Servers []ServerEntry         `toml:"servers"`
	Tokens  map[string]TokenEntry `toml:"tokens,omitempty"`

	configFilePath string `toml:"-"`
}

// ServerEntry is the connection recipe for a single MCP server.
// The Transport field keys which transport-specific fields are meaningful:
// stdio entries carry Command/Args/Env, http entries carry URL/Headers.
// Setting fields from the other transport is a validation error.
type ServerEntry struct {
	// Name is the unique, stable identifier for the server, referenced by the user.
	// e.g. 'notes'
	Name string `json:"name" toml:"name" yaml:"name"`

	// Description is optional human-readable text about the server.
	Description string `json:"description,omitempty" toml:"description,omitempty" yaml:"description,omitempty"`

	// Transport selects how the server is reached: stdio or http.
	Transport Transport `json:"transport" toml:"transport" yaml:"transport"`

	// Command is the executable to spawn for stdio servers.
	Command string `json:"command,omitempty" toml:"command,omitempty" yaml:"command,omitempty"`

	// Args are command line arguments for stdio servers.
	Args []string `json:"args,omitempty" toml:"args,omitempty" yaml:"args,omitempty"`

	// Env contains environment variables for stdio servers.
	// Values may reference host environment variables as '${VAR}'.
	Env map[string]string `json:"env,omitempty" toml:"env,omitempty" yaml:"env,omitempty"`

	// URL is the endpoint for http servers.
	URL string `json:"url,omitempty" toml:"url,omitempty" yaml:"url,omitempty"`

	// Headers are additional HTTP headers sent to http servers.
	Headers map[string]string `json:"headers,omitempty" toml:"headers,omitempty" yaml:"headers,omitempty"`

	// OAuth configures token acquisition for servers that require it.
	OAuth *OAuthEntry `json:"oauth,omitempty" toml:"oauth,omitempty" yaml:"oauth,omitempty"`
}

// OAuthEntry declares how access tokens are obtained for a server.
type OAuthEntry struct {
	// GrantType is 'client_credentials' or 'authorization_code'.
	GrantType string `json:"grantType" toml:"grant_type" yaml:"grant_type"`

	ClientID     string `json:"clientId,omitempty"     toml:"client_id,omitempty"     yaml:"client_id,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty" toml:"client_secret,omitempty" yaml:"client_secret,omitempty"`

	// TokenURL is the provider's token endpoint.
	TokenURL string `json:"tokenUrl,omitempty" toml:"token_url,omitempty" yaml:"token_url,omitempty"`

	// AuthURL is a discovery hint for the authorization_code flow.
	AuthURL string `json:"authUrl,omitempty" toml:"auth_url,omitempty" yaml:"auth_url,omitempty"`

	Scopes []string `json:"scopes,omitempty" toml:"scopes,omitempty" yaml:"scopes,omitempty"`
}

// TokenEntry is a persisted OAuth token, keyed by server name in the config
// file so a restart does not force re-authentication unnecessarily.
type TokenEntry struct {
	AccessToken  string    `json:"accessToken"            toml:"access_token"            yaml:"access_token"`
	RefreshToken string    `json:"refreshToken,omitempty" toml:"refresh_token,omitempty" yaml:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt,omitempty"    toml:"expires_at,omitempty"    yaml:"expires_at,omitempty"`
}

// IsStdio reports whether the entry uses the stdio transport.
func (e *ServerEntry) IsStdio() bool {
	return e.Transport == TransportStdio
}

// IsHTTP reports whether the entry uses the http transport.
func (e *ServerEntry) IsHTTP() bool {
	return e.Transport == TransportHTTP
}

// Validate checks the entry for completeness and rejects field combinations
// that do not belong to the declared transport.
func (e *ServerEntry) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: server entry has empty name", ErrInvalidEntry)
	}

	switch e.Transport {
	case TransportStdio:
		if strings.TrimSpace(e.Command) == "" {
			return fmt.Errorf("%w: '%s': command is required for stdio transport", ErrInvalidEntry, e.Name)
		}
		if e.URL != "" {
			return fmt.Errorf("%w: '%s': url is not valid for stdio transport", ErrInvalidEntry, e.Name)
		}
	case TransportHTTP:
		if err := validateURL(e.URL); err != nil {
			return fmt.Errorf("%w: '%s': %w", ErrInvalidEntry, e.Name, err)
		}
		if e.Command != "" || len(e.Args) > 0 {
			return fmt.Errorf("%w: '%s': command/args are not valid for http transport", ErrInvalidEntry, e.Name)
		}
	default:
		return fmt.Errorf(
			"%w: '%s': unsupported transport '%s' (supported: %s, %s)",
			ErrInvalidEntry, e.Name, e.Transport, TransportStdio, TransportHTTP,
		)
	}

	if e.OAuth != nil {
		if err := e.OAuth.Validate(); err != nil {
			return fmt.Errorf("%w: '%s': %w", ErrInvalidEntry, e.Name, err)
		}
	}

	return nil
}

// Validate checks that the OAuth block is sufficient to obtain a token at some
// point. client_credentials must be usable immediately; authorization_code is
// accepted with discovery and dynamic registration deferred to first use.
func (o *OAuthEntry) Validate() error {
	switch o.GrantType {
	case GrantClientCredentials:
		if strings.TrimSpace(o.ClientID) == "" || strings.TrimSpace(o.ClientSecret) == "" {
			return fmt.Errorf("oauth grant '%s' requires client_id and client_secret", GrantClientCredentials)
		}
		if err := validateURL(o.TokenURL); err != nil {
			return fmt.Errorf("oauth grant '%s' requires a token_url: %w", GrantClientCredentials, err)
		}
	case GrantAuthorizationCode:
		// Discovery may fill in endpoints later.
	default:
		return fmt.Errorf(
			"unsupported oauth grant type '%s' (supported: %s, %s)",
			o.GrantType, GrantClientCredentials, GrantAuthorizationCode,
		)
	}

	return nil
}

func validateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("url cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url '%s': %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url '%s': scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url '%s': missing host", raw)
	}

	return nil
}
