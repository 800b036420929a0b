package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/brokerfolio"
	"github.com/google/subcommands"
)

// quoteCmd holds the flags for the 'quote' subcommand.
type quoteCmd struct {
	market string
}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "print live quotes valued in USD" }
func (*quoteCmd) Usage() string {
	return `pfl quote [-m <market>] <symbol>...

  Prints the last price, the daily change and the USD price of each symbol.
  Symbols are canonicalized first, so "NVDAD" quotes NVDA. With -m BCBA the
  local listing is quoted and converted at the CCL rate.

Usage Examples:
$ pfl quote AAPL NVDAD
$ pfl quote -m BCBA GGAL
`
}

func (c *quoteCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.market, "m", "", "Market of the symbols (BCBA for the local listing)")
}

func (c *quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one symbol is required")
		return subcommands.ExitUsageError
	}
	cfg, logger, err := loadConfig()
	if err != nil {
		return fail("Error loading configuration: %v", err)
	}
	defer logger.Sync()

	quotes, err := newQuotes(cfg, logger)
	if err != nil {
		return fail("Error: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Run.Timeout)
	defer cancel()

	currency := brokerfolio.USD
	if brokerfolio.MarketSuffix(c.market) != "" {
		currency = brokerfolio.ARS
	}
	positions := make([]brokerfolio.ValuedPosition, 0, f.NArg())
	for _, arg := range f.Args() {
		symbol := brokerfolio.NormalizeSymbol(strings.ToUpper(arg), currency)
		positions = append(positions, brokerfolio.ValuedPosition{Position: brokerfolio.Position{
			Symbol:   symbol,
			Name:     symbol,
			Market:   c.market,
			Currency: currency,
			Quantity: brokerfolio.Q(1),
		}})
	}

	conv := brokerfolio.NewConverter(newFX(cfg, logger), logger)
	enriched := brokerfolio.NewEnricher(quotes, conv, cfg.Workers, cfg.Quotes.Timeout, logger).Enrich(ctx, positions)

	var b strings.Builder
	fmt.Fprintln(&b, "| Ticker | Price (USD) | Price Change (USD) | Price Change (%) |")
	fmt.Fprintln(&b, "|:---|---:|---:|---:|")
	status := subcommands.ExitSuccess
	for _, e := range enriched {
		if e.Unavailable() {
			fmt.Fprintf(os.Stderr, "%s: %v\n", e.Symbol, e.Err)
			status = subcommands.ExitFailure
			continue
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s%% |\n", e.Symbol, e.Price, e.Change, e.ChangePercent.StringFixed(2))
	}
	printMarkdown(b.String())
	return status
}
