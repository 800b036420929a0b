// Package cmd implements the pfl command line.
package cmd

import (
	"flag"
	"fmt"
	"os"

	"github.com/etnz/brokerfolio"
	"github.com/etnz/brokerfolio/ccl"
	"github.com/etnz/brokerfolio/config"
	"github.com/etnz/brokerfolio/iol"
	"github.com/etnz/brokerfolio/renderer"
	"github.com/etnz/brokerfolio/yahoo"
	"github.com/google/subcommands"
	"go.uber.org/zap"
)

// Register the subcommands.
func Register(c *subcommands.Commander) {
	c.Register(&portfolioCmd{}, "portfolio")
	c.Register(&serveCmd{}, "portfolio")

	c.Register(&rateCmd{}, "market")
	c.Register(&quoteCmd{}, "market")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var configFile = flag.String("config", "", "Path to a config file (yaml, toml or json)")
var envFile = flag.String("env-file", ".env", "Path to a dotenv file, ignored when missing")
var Verbose = flag.Bool("v", false, "Log at debug level")

// loadConfig loads the configuration and builds the logger it describes.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(*configFile, *envFile)
	if err != nil {
		return nil, nil, err
	}
	if *Verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := cfg.Log.Logger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newFX(cfg *config.Config, logger *zap.Logger) *ccl.Provider {
	return ccl.New(cfg.FX.URL, nil, logger.Named("ccl"))
}

func newQuotes(cfg *config.Config, logger *zap.Logger) (*yahoo.Client, error) {
	return yahoo.New(yahoo.Options{
		URL:      cfg.Quotes.URL,
		Rate:     cfg.Quotes.Rate,
		CacheTTL: cfg.Quotes.CacheTTL,
	}, logger.Named("yahoo"))
}

// NewBroker returns the broker selected by broker.mode.
func NewBroker(cfg *config.Config, logger *zap.Logger) (brokerfolio.Broker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fx := newFX(cfg, logger)
	switch cfg.Broker.Mode {
	case config.ModeFile:
		quotes, err := newQuotes(cfg, logger)
		if err != nil {
			return nil, err
		}
		r := brokerfolio.NewReconciler(fx, quotes, logger)
		r.Workers = cfg.Workers
		r.QuoteTimeout = cfg.Quotes.Timeout
		return &brokerfolio.TransactionsBroker{
			Source:     iol.ExportFile{Path: cfg.Broker.File, Logger: logger.Named("iol")},
			Reconciler: r,
		}, nil
	case config.ModeAPI:
		session := iol.NewSession(cfg.IOL.BaseURL, cfg.IOL.Username, cfg.IOL.Password, nil, logger.Named("iol"))
		client := iol.NewClient(session, cfg.IOL.BaseURL, logger.Named("iol"))
		return brokerfolio.NewSnapshotBroker(client, fx, cfg.IOL.Segments, logger), nil
	}
	return nil, fmt.Errorf("%w: %q", brokerfolio.ErrBrokerNotSupported, cfg.Broker.Mode)
}

// printMarkdown prints md styled for the terminal, or as is when it cannot be styled.
func printMarkdown(md string) {
	out, err := renderer.Terminal(md, 120)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

func fail(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	return subcommands.ExitFailure
}
