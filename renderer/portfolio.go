// Package renderer turns a valued portfolio into markdown, and markdown into
// terminal or HTML output. Number formatting only happens here.
package renderer

import (
	"fmt"
	"strings"

	"github.com/etnz/brokerfolio"
)

// PortfolioMarkdown renders the portfolio as a markdown table of the canonical
// columns followed by a total line.
func PortfolioMarkdown(title string, p brokerfolio.Portfolio) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "# %s\n\n", title)
	}
	if len(p) == 0 {
		fmt.Fprintln(&b, "No open positions.")
		return b.String()
	}

	fmt.Fprintf(&b, "| %s |\n", strings.Join(brokerfolio.Columns, " | "))
	fmt.Fprintln(&b, "|:---|:---|---:|---:|---:|---:|---:|")
	for _, e := range p {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			escape(e.Ticker),
			escape(e.Name),
			e.Price,
			e.Quantity,
			e.Change,
			percent(e),
			e.TotalValue,
		)
	}
	fmt.Fprintf(&b, "| **Total** | | | | | | **%s** |\n", p.TotalValue())

	if missing := p.Unavailable(); len(missing) > 0 {
		fmt.Fprintf(&b, "\nNo quote for %s: valued at zero.\n", strings.Join(missing, ", "))
	}
	return b.String()
}

func percent(e brokerfolio.PortfolioEntry) string {
	if e.Unavailable {
		return "n/a"
	}
	return e.ChangePercent.StringFixed(2) + "%"
}

// escape keeps a cell from breaking the table.
func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
