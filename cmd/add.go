package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/beyondbetter/mcphub/internal/cmd"
	cmdopts "github.com/beyondbetter/mcphub/internal/cmd/options"
	"github.com/beyondbetter/mcphub/internal/config"
	"github.com/beyondbetter/mcphub/internal/flags"
	"github.com/beyondbetter/mcphub/internal/printer"
)

// AddCmd should be used to represent the 'add' command.
type AddCmd struct {
	*cmd.BaseCmd
	Description string
	Transport   string
	Command     string
	Args        []string
	Env         []string
	URL         string
	Headers     []string

	OAuthGrant        string
	OAuthClientID     string
	OAuthClientSecret string
	OAuthTokenURL     string
	OAuthAuthURL      string
	OAuthScopes       []string

	cfgLoader config.Loader
}

// NewAddCmd creates a newly configured (Cobra) command.
func NewAddCmd(baseCmd *cmd.BaseCmd, opt ...cmdopts.CmdOption) (*cobra.Command, error) {
	opts, err := cmdopts.NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	c := &AddCmd{
		BaseCmd:   baseCmd,
		cfgLoader: opts.ConfigLoader,
	}

	cobraCommand := &cobra.Command{
		Use:   "add <server-name>",
		Short: "Adds an MCP server to the hub configuration",
		Long:  c.longDescription(),
		RunE:  c.run,
		Args:  cobra.ExactArgs(1),
	}

	cobraCommand.Flags().StringVar(
		&c.Description,
		"description",
		"",
		"Optional human-readable description of the server",
	)

	cobraCommand.Flags().StringVar(
		&c.Transport,
		"transport",
		string(config.TransportStdio),
		fmt.Sprintf("Transport used to reach the server (%s or %s)", config.TransportStdio, config.TransportHTTP),
	)

	cobraCommand.Flags().StringVar(
		&c.Command,
		"cmd",
		"",
		"Executable to spawn for stdio servers",
	)

	cobraCommand.Flags().StringArrayVar(
		&c.Args,
		"arg",
		nil,
		"Command line argument for stdio servers (can be repeated)",
	)

	cobraCommand.Flags().StringArrayVar(
		&c.Env,
		"env",
		nil,
		"Environment variable for stdio servers as KEY=VALUE, values may reference '${VAR}' (can be repeated)",
	)

	cobraCommand.Flags().StringVar(
		&c.URL,
		"url",
		"",
		"Endpoint for http servers",
	)

	cobraCommand.Flags().StringArrayVar(
		&c.Headers,
		"header",
		nil,
		"Additional HTTP header for http servers as KEY=VALUE (can be repeated)",
	)

	cobraCommand.Flags().StringVar(
		&c.OAuthGrant,
		"oauth-grant",
		"",
		fmt.Sprintf("OAuth grant type (%s or %s)", config.GrantClientCredentials, config.GrantAuthorizationCode),
	)
	cobraCommand.Flags().StringVar(&c.OAuthClientID, "oauth-client-id", "", "OAuth client ID")
	cobraCommand.Flags().StringVar(&c.OAuthClientSecret, "oauth-client-secret", "", "OAuth client secret")
	cobraCommand.Flags().StringVar(&c.OAuthTokenURL, "oauth-token-url", "", "OAuth token endpoint")
	cobraCommand.Flags().StringVar(&c.OAuthAuthURL, "oauth-auth-url", "", "OAuth authorization endpoint")
	cobraCommand.Flags().StringArrayVar(&c.OAuthScopes, "oauth-scope", nil, "OAuth scope to request (can be repeated)")

	cobraCommand.MarkFlagsMutuallyExclusive("cmd", "url")

	return cobraCommand, nil
}

// longDescription returns the long version of the command description.
func (c *AddCmd) longDescription() string {
	return `Adds an MCP server to the hub configuration.
stdio servers are spawned as local child processes ('--cmd', '--arg', '--env'),
http servers are reached at a remote endpoint ('--url', '--header').
Servers that require authentication can declare an OAuth block ('--oauth-*').`
}

// run is configured (via NewAddCmd) to be called by the Cobra framework when the command is executed.
// It may return an error (or nil, when there is no error).
func (c *AddCmd) run(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	if name == "" {
		return fmt.Errorf("server name is required and cannot be empty")
	}

	logger := c.Logger()

	entry, err := c.entry(name)
	if err != nil {
		return err
	}

	cfg, err := c.cfgLoader.Load(flags.ConfigFile)
	if err != nil {
		return err
	}

	if err := cfg.AddServer(entry); err != nil {
		return err
	}

	logger.Debug("Server added", "name", name, "transport", entry.Transport)

	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "✓ Added server '%s'\n", name); err != nil {
		return err
	}

	p := &printer.ServerEntryPrinter{}
	return p.Item(cmd.OutOrStdout(), entry)
}

// entry assembles and validates the configuration entry from the flag values.
func (c *AddCmd) entry(name string) (config.ServerEntry, error) {
	env, err := parseKeyValues(c.Env, "env")
	if err != nil {
		return config.ServerEntry{}, err
	}

	headers, err := parseKeyValues(c.Headers, "header")
	if err != nil {
		return config.ServerEntry{}, err
	}

	entry := config.ServerEntry{
		Name:        name,
		Description: strings.TrimSpace(c.Description),
		Transport:   config.Transport(strings.ToLower(strings.TrimSpace(c.Transport))),
		Command:     strings.TrimSpace(c.Command),
		Args:        c.Args,
		Env:         env,
		URL:         strings.TrimSpace(c.URL),
		Headers:     headers,
	}

	if c.OAuthGrant != "" {
		entry.OAuth = &config.OAuthEntry{
			GrantType:    strings.TrimSpace(c.OAuthGrant),
			ClientID:     strings.TrimSpace(c.OAuthClientID),
			ClientSecret: c.OAuthClientSecret,
			TokenURL:     strings.TrimSpace(c.OAuthTokenURL),
			AuthURL:      strings.TrimSpace(c.OAuthAuthURL),
			Scopes:       c.OAuthScopes,
		}
	}

	if err := entry.Validate(); err != nil {
		return config.ServerEntry{}, err
	}

	return entry, nil
}

// parseKeyValues splits repeated KEY=VALUE flag values into a map.
func parseKeyValues(pairs []string, flagName string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --%s value '%s', expected KEY=VALUE", flagName, pair)
		}
		out[key] = value
	}

	return out, nil
}
