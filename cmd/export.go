package cmd

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	internalcmd "github.com/beyondbetter/mcphub/internal/cmd"
	cmdopts "github.com/beyondbetter/mcphub/internal/cmd/options"
	"github.com/beyondbetter/mcphub/internal/config"
	"github.com/beyondbetter/mcphub/internal/flags"
	"github.com/beyondbetter/mcphub/internal/printer"
)

// ExportCmd should be used to represent the 'export' command.
type ExportCmd struct {
	*internalcmd.BaseCmd
	Format    internalcmd.OutputFormat
	Output    string
	cfgLoader config.Loader
}

// NewExportCmd creates a newly configured (Cobra) command.
func NewExportCmd(baseCmd *internalcmd.BaseCmd, opt ...cmdopts.CmdOption) (*cobra.Command, error) {
	opts, err := cmdopts.NewOptions(opt...)
	if err != nil {
		return nil, err
	}

	c := &ExportCmd{
		BaseCmd:   baseCmd,
		Format:    internalcmd.FormatYAML,
		cfgLoader: opts.ConfigLoader,
	}

	cobraCommand := &cobra.Command{
		Use:   "export",
		Short: "Exports the configured MCP servers",
		Long: "Exports the configured MCP servers, including credentials, " +
			"so the configuration can be recreated elsewhere. Stored tokens are not exported.",
		RunE: c.run,
		Args: cobra.NoArgs,
	}

	allowed := internalcmd.AllowedOutputFormats()
	cobraCommand.Flags().Var(
		&c.Format,
		"format",
		fmt.Sprintf("Specify the output format (one of: %s)", allowed.String()),
	)

	cobraCommand.Flags().StringVarP(
		&c.Output,
		"output",
		"o",
		"",
		"Optional file to write to instead of stdout",
	)

	return cobraCommand, nil
}

// run is configured (via NewExportCmd) to be called by the Cobra framework when the command is executed.
// It may return an error (or nil, when there is no error).
func (c *ExportCmd) run(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if c.Output != "" {
		f, err := os.OpenFile(c.Output, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open output file (%s): %w", c.Output, err)
		}
		defer func() {
			_ = f.Close()
		}()
		out = f
	}

	handler, err := internalcmd.FormatHandler(out, c.Format, &printer.ServerEntryPrinter{})
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

	return handler.HandleResults(entries...)
}
