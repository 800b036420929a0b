package cmd

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/etnz/brokerfolio/server"
	"github.com/google/subcommands"
)

// serveCmd holds the flags for the 'serve' subcommand.
type serveCmd struct {
	addr string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the portfolio as JSON over HTTP" }
func (*serveCmd) Usage() string {
	return `pfl serve [-addr <host:port>]

  Serves GET /portfolio (a JSON array of entries, or an HTML table with
  ?format=html) and GET /healthz. The portfolio is recomputed on each
  request from the configured broker.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "", "Listen address, defaults to server.addr")
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fail("Error loading configuration: %v", err)
	}
	defer logger.Sync()
	if c.addr != "" {
		cfg.Server.Addr = c.addr
	}

	broker, err := NewBroker(cfg, logger)
	if err != nil {
		return fail("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := server.New(broker, cfg.Run.Timeout, logger.Named("server")).ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		return fail("Error: %v", err)
	}
	return subcommands.ExitSuccess
}
