package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	internalcmd "github.com/beyondbetter/mcphub/internal/cmd"
	cmdopts "github.com/beyondbetter/mcphub/internal/cmd/options"
	"github.com/beyondbetter/mcphub/internal/config"
	"github.com/beyondbetter/mcphub/internal/flags"
	"github.com/beyondbetter/mcphub/internal/printer"
)

// ListCmd should be used to represent the 'list' command.
type ListCmd struct {
	*internalcmd.BaseCmd
	Format    internalcmd.OutputFormat
	cfgLoader config.Loader
}

// NewListCmd creates a newly configured (Cobra) command.
func NewListCmd(baseCmd *internalcmd.BaseCmd, opt ...cmdopts.CmdOption) (*cobra.Command, error) {
	opts, err := cmdopts.NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	c := &ListCmd{
		BaseCmd:   baseCmd,
		Format:    internalcmd.FormatText,
		cfgLoader: opts.ConfigLoader,
	}

	cobraCommand := &cobra.Command{
		Use:   "list",
		Short: "Lists the MCP servers in the hub configuration",
		Long:  "Lists the MCP servers in the hub configuration, with credentials redacted",
		RunE:  c.run,
		Args:  cobra.NoArgs,
	}

	allowed := internalcmd.AllowedOutputFormats()
	cobraCommand.Flags().Var(
		&c.Format,
		"format",
		fmt.Sprintf("Specify the output format (one of: %s)", allowed.String()),
	)

	return cobraCommand, nil
}

// run is configured (via NewListCmd) to be called by the Cobra framework when the command is executed.
// It may return an error (or nil, when there is no error).
func (c *ListCmd) run(cmd *cobra.Command, _ []string) error {
	entryPrinter := &printer.ServerEntryPrinter{}
	entryPrinter.SetHeader(func(w io.Writer, count int) {
		_, _ = fmt.Fprintf(w, "Configured servers (%d):\n\n", count)
	})

	handler, err := internalcmd.FormatHandler(cmd.OutOrStdout(), c.Format, entryPrinter)
	if err != nil {
		return err
	}

	cfg, err := c.cfgLoader.Load(flags.ConfigFile)
	if err != nil {
		return handler.HandleError(err)
	}

	entries := cfg.ListServers()
	slices.SortFunc(entries, func(a, b config.ServerEntry) int {
		return strings.Compare(a.Name, b.Name)
	})

	for i := range entries {
		entries[i] = redactEntry(entries[i])
	}

	return handler.HandleResults(entries...)
}

// redactEntry strips credential material so listings are safe to share.
func redactEntry(entry config.ServerEntry) config.ServerEntry {
	if len(entry.Headers) > 0 {
		redacted := make(map[string]string, len(entry.Headers))
		for k := range entry.Headers {
			redacted[k] = "<redacted>"
		}
		entry.Headers = redacted
	}

	if entry.OAuth != nil {
		oauth := *entry.OAuth
		if oauth.ClientSecret != "" {
			oauth.ClientSecret = "<redacted>"
		}
		entry.OAuth = &oauth
	}

	return entry
}
