// Package yahoo provides live market quotes from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/etnz/brokerfolio"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// DefaultURL is the Yahoo Finance API root.
const DefaultURL = "https://query1.finance.yahoo.com"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// chartResponse is the part of the chart payload that is read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string              `json:"currency"`
				Symbol             string              `json:"symbol"`
				RegularMarketPrice decimal.NullDecimal `json:"regularMarketPrice"`
				ChartPreviousClose decimal.NullDecimal `json:"chartPreviousClose"`
				PreviousClose      decimal.NullDecimal `json:"previousClose"`
			} `json:"meta"`
		} `json:"result"`
		Error any `json:"error"`
	} `json:"chart"`
}

// Options tune a Client. Zero values select the defaults.
type Options struct {
	URL      string        // DefaultURL
	Rate     float64       // requests per second, 5
	CacheTTL time.Duration // 1 minute
	MaxTries uint          // 3
	Interval time.Duration // initial retry interval, 500ms
}

// Client is a brokerfolio.QuoteProvider. It is safe for concurrent use.
type Client struct {
	base     string
	client   *http.Client
	limiter  *rate.Limiter
	quotes   *cache.Cache
	logger   *zap.Logger
	maxTries uint
	interval time.Duration
}

// New returns a Client.
func New(opts Options, logger *zap.Logger) (*Client, error) {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Rate <= 0 {
		opts.Rate = 5
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.MaxTries == 0 {
		opts.MaxTries = 3
	}
	if opts.Interval <= 0 {
		opts.Interval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cannot create cookie jar: %w", err)
	}
	return &Client{
		base: strings.TrimSuffix(opts.URL, "/"),
		client: &http.Client{
			Jar:       jar,
			Transport: agent{http.DefaultTransport},
		},
		limiter:  rate.NewLimiter(rate.Limit(opts.Rate), 1),
		quotes:   cache.New(opts.CacheTTL, 2*opts.CacheTTL),
		logger:   logger,
		maxTries: opts.MaxTries,
		interval: opts.Interval,
	}, nil
}

// agent sets the User-Agent the API expects from a browser.
type agent struct{ base http.RoundTripper }

func (a agent) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", userAgent)
	return a.base.RoundTrip(req)
}

// Quote returns the last price and previous close of symbol on the listing
// selected by suffix (".BA" for Buenos Aires). Unknown symbols return
// brokerfolio.ErrQuoteUnavailable.
func (c *Client) Quote(ctx context.Context, symbol, suffix string) (brokerfolio.Quote, error) {
	ticker := symbol + suffix
	if q, found := c.quotes.Get(ticker); found {
		return q.(brokerfolio.Quote), nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.interval
	policy.MaxInterval = c.interval * 10

	notify := func(err error, d time.Duration) {
		c.logger.Info("retrying quote", zap.String("ticker", ticker), zap.Error(err), zap.Duration("backoff", d))
	}

	addr := c.base + "/v8/finance/chart/" + url.PathEscape(ticker) + "?interval=1d&range=5d"
	operation := func() (brokerfolio.Quote, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return brokerfolio.Quote{}, backoff.Permanent(err)
		}
		var chart chartResponse
		err := brokerfolio.GetJSON(ctx, c.client, addr, &chart)
		var se *brokerfolio.StatusError
		switch {
		case errors.As(err, &se) && se.StatusCode == http.StatusNotFound:
			return brokerfolio.Quote{}, backoff.Permanent(fmt.Errorf("%w: %s not found", brokerfolio.ErrQuoteUnavailable, ticker))
		case err != nil && brokerfolio.IsTemporary(err) && ctx.Err() == nil:
			return brokerfolio.Quote{}, err
		case err != nil:
			return brokerfolio.Quote{}, backoff.Permanent(err)
		}
		q, err := parse(ticker, chart)
		if err != nil {
			return brokerfolio.Quote{}, backoff.Permanent(err)
		}
		return q, nil
	}

	q, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(notify))
	if err != nil {
		return brokerfolio.Quote{}, fmt.Errorf("error retrieving %s quote: %w", ticker, err)
	}
	c.logger.Debug("quote", zap.String("ticker", ticker), zap.String("last", q.Last.String()), zap.String("currency", q.Currency))
	c.quotes.SetDefault(ticker, q)
	return q, nil
}

func parse(ticker string, chart chartResponse) (brokerfolio.Quote, error) {
	if chart.Chart.Error != nil {
		return brokerfolio.Quote{}, fmt.Errorf("%w: %s: %v", brokerfolio.ErrQuoteUnavailable, ticker, chart.Chart.Error)
	}
	if len(chart.Chart.Result) == 0 {
		return brokerfolio.Quote{}, fmt.Errorf("%w: %s: empty chart", brokerfolio.ErrQuoteUnavailable, ticker)
	}
	meta := chart.Chart.Result[0].Meta
	if !meta.RegularMarketPrice.Valid {
		return brokerfolio.Quote{}, fmt.Errorf("%w: %s: no market price", brokerfolio.ErrQuoteUnavailable, ticker)
	}
	previous := meta.ChartPreviousClose
	if !previous.Valid {
		previous = meta.PreviousClose
	}
	return brokerfolio.Quote{
		Last:          meta.RegularMarketPrice.Decimal,
		PreviousClose: previous.Decimal,
		Currency:      strings.ToUpper(meta.Currency),
	}, nil
}
