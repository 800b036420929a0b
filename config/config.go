// Package config loads the brokerfolio settings from defaults, an optional
// config file, an optional .env file and BROKERFOLIO_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/etnz/brokerfolio"
	"github.com/etnz/brokerfolio/ccl"
	"github.com/etnz/brokerfolio/iol"
	"github.com/etnz/brokerfolio/yahoo"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Broker modes.
const (
	ModeFile = "file" // reconcile an export file
	ModeAPI  = "api"  // read the broker's holdings snapshot
)

// EnvPrefix prefixes every environment variable, "." in keys becomes "_":
// BROKERFOLIO_IOL_USERNAME sets iol.username.
const EnvPrefix = "BROKERFOLIO"

type Config struct {
	Broker  BrokerConfig `mapstructure:"broker"`
	IOL     IOLConfig    `mapstructure:"iol"`
	FX      FXConfig     `mapstructure:"fx"`
	Quotes  QuotesConfig `mapstructure:"quotes"`
	Run     RunConfig    `mapstructure:"run"`
	Workers int          `mapstructure:"workers"`
	Log     LogConfig    `mapstructure:"log"`
	Server  ServerConfig `mapstructure:"server"`
}

type BrokerConfig struct {
	Mode string `mapstructure:"mode"`
	File string `mapstructure:"file"`
}

type IOLConfig struct {
	BaseURL  string   `mapstructure:"base_url"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	Segments []string `mapstructure:"segments"`
}

type FXConfig struct {
	URL string `mapstructure:"url"`
}

type QuotesConfig struct {
	URL      string        `mapstructure:"url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Rate     float64       `mapstructure:"rate"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type RunConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

const (
	DefaultWorkers      = 4
	DefaultQuoteTimeout = 10 * time.Second
	DefaultQuoteRate    = 5
	DefaultCacheTTL     = time.Minute
	DefaultRunTimeout   = 2 * time.Minute
	DefaultAddr         = "localhost:8080"
)

func defaults() map[string]any {
	return map[string]any{
		"broker.mode":      ModeFile,
		"broker.file":      "",
		"iol.base_url":     iol.DefaultBaseURL,
		"iol.username":     "",
		"iol.password":     "",
		"iol.segments":     iol.DefaultSegments,
		"fx.url":           ccl.DefaultURL,
		"quotes.url":       yahoo.DefaultURL,
		"quotes.timeout":   DefaultQuoteTimeout,
		"quotes.rate":      DefaultQuoteRate,
		"quotes.cache_ttl": DefaultCacheTTL,
		"run.timeout":      DefaultRunTimeout,
		"workers":          DefaultWorkers,
		"log.level":        "info",
		"log.development":  false,
		"server.addr":      DefaultAddr,
	}
}

// Load reads the configuration. path is an optional config file (any format
// viper knows), envFile an optional dotenv file; a missing envFile is not an
// error. The broker settings are checked by Validate, once a command needs
// them.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("cannot load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("cannot read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot decode config: %w", err)
	}
	cfg.IOL.Segments = splitList(cfg.IOL.Segments)
	return &cfg, nil
}

// splitList accepts both a real list and a single comma separated value, as
// environment variables provide.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Validate checks the settings needed by the selected broker mode.
func (c *Config) Validate() error {
	switch c.Broker.Mode {
	case ModeFile:
		if c.Broker.File == "" {
			return errors.New("broker.file is required in file mode")
		}
	case ModeAPI:
		if c.IOL.Username == "" || c.IOL.Password == "" {
			return errors.New("iol.username and iol.password are required in api mode")
		}
		if len(c.IOL.Segments) == 0 {
			return errors.New("iol.segments is empty")
		}
	default:
		return fmt.Errorf("%w: %q", brokerfolio.ErrBrokerNotSupported, c.Broker.Mode)
	}
	if c.Quotes.Timeout <= 0 {
		return errors.New("invalid quotes.timeout")
	}
	if c.Run.Timeout <= 0 {
		return errors.New("invalid run.timeout")
	}
	if c.Quotes.CacheTTL <= 0 {
		return errors.New("invalid quotes.cache_ttl")
	}
	if c.Quotes.Rate <= 0 {
		return errors.New("invalid quotes.rate")
	}
	if c.Workers <= 0 {
		return errors.New("invalid workers count")
	}
	return nil
}
