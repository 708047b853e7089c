package printer

import (
	"fmt"
	"io"
	"strings"

	"github.com/beyondbetter/mcphub/internal/cmd/output"
	"github.com/beyondbetter/mcphub/internal/config"
)

var _ output.Printer[config.ServerEntry] = (*ServerEntryPrinter)(nil)

// ServerEntryPrinter renders configured MCP servers as human-readable text.
type ServerEntryPrinter struct {
	headerFunc output.WriteFunc[config.ServerEntry]
	footerFunc output.WriteFunc[config.ServerEntry]
}

func (p *ServerEntryPrinter) Header(w io.Writer, count int) {
	if p.headerFunc != nil {
		p.headerFunc(w, count)
	}
}

func (p *ServerEntryPrinter) SetHeader(fn output.WriteFunc[config.ServerEntry]) {
	p.headerFunc = fn
}

func (p *ServerEntryPrinter) Item(w io.Writer, elem config.ServerEntry) error {
	_, _ = fmt.Fprintf(w, "• %s (%s)\n", elem.Name, elem.Transport)

	if elem.Description != "" {
		_, _ = fmt.Fprintf(w, "  %s\n", elem.Description)
	}

	switch {
	case elem.IsStdio():
		target := elem.Command
		if len(elem.Args) > 0 {
			target += " " + strings.Join(elem.Args, " ")
		}
		_, _ = fmt.Fprintf(w, "  command: %s\n", target)
	case elem.IsHTTP():
		_, _ = fmt.Fprintf(w, "  url: %s\n", elem.URL)
	}

	if elem.OAuth != nil {
		_, _ = fmt.Fprintf(w, "  auth: oauth (%s)\n", elem.OAuth.GrantType)
	}

	return nil
}

func (p *ServerEntryPrinter) Footer(w io.Writer, count int) {
	if p.footerFunc != nil {
		p.footerFunc(w, count)
	}
}

func (p *ServerEntryPrinter) SetFooter(fn output.WriteFunc[config.ServerEntry]) {
	p.footerFunc = fn
}
