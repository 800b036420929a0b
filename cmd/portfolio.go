package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/brokerfolio"
	"github.com/etnz/brokerfolio/config"
	"github.com/etnz/brokerfolio/date"
	"github.com/etnz/brokerfolio/renderer"
	"github.com/google/subcommands"
	"go.uber.org/zap"
)

// portfolioCmd holds the flags for the 'portfolio' subcommand.
type portfolioCmd struct {
	file   string
	api    bool
	asOf   string
	format string
}

func (*portfolioCmd) Name() string     { return "portfolio" }
func (*portfolioCmd) Synopsis() string { return "display the current portfolio valued in USD" }
func (*portfolioCmd) Usage() string {
	return `pfl portfolio [-f <export>] [-api] [-d <date>] [-o md|json|html]

  Builds the portfolio from the configured broker and prints one line per
  open position: ticker, name, USD price, quantity, daily change and total
  value, followed by the portfolio total.

  With -f the broker export file is reconciled, with -api the holdings are
  read from the broker API. Otherwise broker.mode decides.

Usage Examples:
$ pfl portfolio -f operaciones.xls
$ pfl portfolio -api -o json
`
}

func (c *portfolioCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "", "Broker export to reconcile (CSV or HTML table)")
	f.BoolVar(&c.api, "api", false, "Read the holdings from the broker API")
	f.StringVar(&c.asOf, "d", "", "Ignore transactions after this date (yyyy-mm-dd), export files only")
	f.StringVar(&c.format, "o", "md", "Output format: md, json or html")
}

func (c *portfolioCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fail("Error loading configuration: %v", err)
	}
	defer logger.Sync()

	switch {
	case c.file != "":
		cfg.Broker.Mode, cfg.Broker.File = config.ModeFile, c.file
	case c.api:
		cfg.Broker.Mode = config.ModeAPI
	}

	broker, err := NewBroker(cfg, logger)
	if err != nil {
		return fail("Error: %v", err)
	}
	if c.asOf != "" {
		tb, ok := broker.(*brokerfolio.TransactionsBroker)
		if !ok {
			fmt.Fprintln(os.Stderr, "Error: -d only applies to export files")
			return subcommands.ExitUsageError
		}
		on, err := date.Parse(c.asOf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
			return subcommands.ExitUsageError
		}
		tb.Reconciler.AsOf = on
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Run.Timeout)
	defer cancel()

	p, err := broker.Portfolio(ctx)
	if err != nil {
		logger.Error("portfolio failed", zap.Error(err))
		return fail("Error computing portfolio: %v", err)
	}

	if err := c.print(p); err != nil {
		return fail("Error printing portfolio: %v", err)
	}
	return subcommands.ExitSuccess
}

func (c *portfolioCmd) print(p brokerfolio.Portfolio) error {
	switch c.format {
	case "json":
		if p == nil {
			p = brokerfolio.Portfolio{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	case "html":
		html, err := renderer.HTML(renderer.PortfolioMarkdown("Portfolio", p))
		if err != nil {
			return err
		}
		fmt.Println(html)
		return nil
	case "md", "":
		printMarkdown(renderer.PortfolioMarkdown("Portfolio", p))
		return nil
	}
	return fmt.Errorf("unknown format %q", c.format)
}
