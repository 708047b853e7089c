// Package oauth acquires and refreshes access tokens for MCP servers whose
// configuration declares an OAuth grant. Tokens are persisted to the config
// store so a daemon restart does not force re-authentication.
package oauth

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/beyondbetter/mcphub/internal/config"
	"github.com/beyondbetter/mcphub/internal/contracts"
	"github.com/beyondbetter/mcphub/internal/errors"
	"github.com/beyondbetter/mcphub/internal/registry"
)

var _ contracts.TokenRefresher = (*Service)(nil)

// Service refreshes OAuth access tokens. It is safe for concurrent use;
// concurrent refreshes for the same server share a single token request.
type Service struct {
	logger   hclog.Logger
	registry *registry.Registry

	refreshes singleflight.Group

	// httpClient overrides the client used for token endpoint calls.
	// Nil means http.DefaultClient.
	httpClient *http.Client
}

// Option configures a Service.
type Option func(*Service)

// WithHTTPClient overrides the HTTP client used for token endpoint requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		s.httpClient = c
	}
}

// NewService creates a token service over the given registry.
func NewService(logger hclog.Logger, reg *registry.Registry, opt ...Option) (*Service, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}

	s := &Service{
		logger:   logger.Named("oauth"),
		registry: reg,
	}
	for _, o := range opt {
		o(s)
	}

	return s, nil
}

// RefreshAccessToken obtains a fresh access token for the server, persists it,
// and returns it. Servers without an OAuth grant, and authorization_code
// servers without a stored refresh token, fail with ErrAuthentication so the
// caller prompts for interactive re-authentication.
func (s *Service) RefreshAccessToken(ctx context.Context, name string) (string, error) {
	entry, ok := s.registry.ServerConfiguration(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", errors.ErrServerNotFound, name)
	}
	if entry.OAuth == nil {
		return "", fmt.Errorf("%w: server '%s' has no oauth configuration", errors.ErrAuthentication, name)
	}

	token, err, _ := s.refreshes.Do(name, func() (any, error) {
		return s.refresh(ctx, name, entry)
	})
	if err != nil {
		return "", err
	}

	return token.(string), nil
}

func (s *Service) refresh(ctx context.Context, name string, entry config.ServerEntry) (string, error) {
	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}

	var (
		token *oauth2.Token
		err   error
	)
	switch entry.OAuth.GrantType {
	case config.GrantClientCredentials:
		token, err = s.clientCredentialsToken(ctx, entry)
	case config.GrantAuthorizationCode:
		token, err = s.refreshTokenGrant(ctx, name, entry)
	default:
		return "", fmt.Errorf(
			"%w: server '%s' has unsupported oauth grant type '%s'",
			errors.ErrConfiguration, name, entry.OAuth.GrantType,
		)
	}
	if err != nil {
		return "", err
	}

	stored := config.TokenEntry{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	if stored.RefreshToken == "" {
		// Providers may omit the refresh token on rotation; keep the old one.
		if previous, ok := s.registry.Store().Token(name); ok {
			stored.RefreshToken = previous.RefreshToken
		}
	}

	if err := s.registry.Store().UpsertToken(name, stored); err != nil {
		return "", errors.External("persistToken", name, err)
	}

	s.logger.Info("Refreshed access token", "server", name, "expires", token.Expiry.Format(time.RFC3339))

	return token.AccessToken, nil
}

func (s *Service) clientCredentialsToken(ctx context.Context, entry config.ServerEntry) (*oauth2.Token, error) {
	cfg := clientcredentials.Config{
		ClientID:     entry.OAuth.ClientID,
		ClientSecret: entry.OAuth.ClientSecret,
		TokenURL:     entry.OAuth.TokenURL,
		Scopes:       entry.OAuth.Scopes,
	}

	token, err := cfg.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: token request for '%s' failed: %w", errors.ErrAuthentication, entry.Name, err)
	}

	return token, nil
}

// refreshTokenGrant exchanges the persisted refresh token for a new access
// token. The interactive part of the authorization_code flow happens outside
// the daemon; by the time we get here a refresh token must already be stored.
func (s *Service) refreshTokenGrant(ctx context.Context, name string, entry config.ServerEntry) (*oauth2.Token, error) {
	stored, ok := s.registry.Store().Token(name)
	if !ok || stored.RefreshToken == "" {
		return nil, fmt.Errorf("%w: server '%s' has no stored refresh token", errors.ErrAuthentication, name)
	}
	if entry.OAuth.TokenURL == "" {
		return nil, fmt.Errorf("%w: server '%s' oauth block is missing token_url", errors.ErrConfiguration, name)
	}

	cfg := oauth2.Config{
		ClientID:     entry.OAuth.ClientID,
		ClientSecret: entry.OAuth.ClientSecret,
		Scopes:       entry.OAuth.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  entry.OAuth.AuthURL,
			TokenURL: entry.OAuth.TokenURL,
		},
	}

	source := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: stored.RefreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: refresh for '%s' failed: %w", errors.ErrAuthentication, name, err)
	}

	return token, nil
}
