package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

type rateCmd struct{}

func (*rateCmd) Name() string     { return "rate" }
func (*rateCmd) Synopsis() string { return "print the CCL buy rate" }
func (*rateCmd) Usage() string {
	return `pfl rate

  Prints the number of ARS paid for one USD at the "contado con liquidación"
  buy rate, the rate used to value ARS amounts.
`
}

func (c *rateCmd) SetFlags(f *flag.FlagSet) {}

func (c *rateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fail("Error loading configuration: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(ctx, cfg.Run.Timeout)
	defer cancel()

	rate, err := newFX(cfg, logger).BuyRateUSD(ctx)
	if err != nil {
		return fail("Error: %v", err)
	}
	fmt.Printf("1 USD = %s ARS\n", rate.StringFixed(2))
	return subcommands.ExitSuccess
}
