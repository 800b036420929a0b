package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/etnz/brokerfolio"
	"github.com/etnz/brokerfolio/iol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, ModeFile, cfg.Broker.Mode)
	assert.Equal(t, iol.DefaultBaseURL, cfg.IOL.BaseURL)
	assert.Equal(t, iol.DefaultSegments, cfg.IOL.Segments)
	assert.Equal(t, DefaultQuoteTimeout, cfg.Quotes.Timeout)
	assert.Equal(t, DefaultRunTimeout, cfg.Run.Timeout)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.Error(t, cfg.Validate(), "file mode needs a file")
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("BROKERFOLIO_BROKER_MODE", "api")
	t.Setenv("BROKERFOLIO_IOL_USERNAME", "user")
	t.Setenv("BROKERFOLIO_IOL_PASSWORD", "secret")
	t.Setenv("BROKERFOLIO_IOL_SEGMENTS", "argentina")
	t.Setenv("BROKERFOLIO_QUOTES_TIMEOUT", "3s")
	t.Setenv("BROKERFOLIO_WORKERS", "8")

	cfg, err := Load("", "")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModeAPI, cfg.Broker.Mode)
	assert.Equal(t, "user", cfg.IOL.Username)
	assert.Equal(t, []string{"argentina"}, cfg.IOL.Segments)
	assert.Equal(t, 3*time.Second, cfg.Quotes.Timeout)
	assert.Equal(t, 8, cfg.Workers)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brokerfolio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
broker:
  mode: file
  file: operaciones.csv
quotes:
  timeout: 5s
  rate: 2
workers: 2
log:
  level: debug
`), 0o600))

	cfg, err := Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "operaciones.csv", cfg.Broker.File)
	assert.Equal(t, 5*time.Second, cfg.Quotes.Timeout)
	assert.Equal(t, 2.0, cfg.Quotes.Rate)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.Error(t, err)
}

func TestLoad_DotEnv(t *testing.T) {
	const key = "BROKERFOLIO_IOL_PASSWORD"
	t.Cleanup(func() { os.Unsetenv(key) })

	env := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(env, []byte(key+"=from-dotenv\n"), 0o600))

	cfg, err := Load("", env)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.IOL.Password)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Broker:  BrokerConfig{Mode: ModeAPI},
			IOL:     IOLConfig{Username: "u", Password: "p", Segments: []string{"argentina"}},
			Quotes:  QuotesConfig{Timeout: time.Second, Rate: 1, CacheTTL: time.Minute},
			Run:     RunConfig{Timeout: time.Minute},
			Workers: 1,
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"file mode without file", func(c *Config) { c.Broker.Mode = ModeFile }},
		{"api mode without password", func(c *Config) { c.IOL.Password = "" }},
		{"api mode without segments", func(c *Config) { c.IOL.Segments = nil }},
		{"quote timeout", func(c *Config) { c.Quotes.Timeout = 0 }},
		{"run timeout", func(c *Config) { c.Run.Timeout = -time.Second }},
		{"cache ttl", func(c *Config) { c.Quotes.CacheTTL = 0 }},
		{"rate", func(c *Config) { c.Quotes.Rate = 0 }},
		{"workers", func(c *Config) { c.Workers = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(c)
			assert.Error(t, c.Validate())
		})
	}

	c := valid()
	c.Broker.Mode = "ppi"
	assert.ErrorIs(t, c.Validate(), brokerfolio.ErrBrokerNotSupported)
}

func TestLogConfig_Logger(t *testing.T) {
	logger, err := LogConfig{Level: "debug", Development: true}.Logger()
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = LogConfig{Level: "loud"}.Logger()
	assert.Error(t, err)
}
