// Package ccl provides the "contado con liquidación" USD rate.
package ccl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/cenkalti/backoff/v5"
	"github.com/etnz/brokerfolio"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultURL serves the CCL quote.
const DefaultURL = "https://dolarapi.com/v1/dolares/contadoconliqui"

// buyPath is where the buy rate sits in the payload.
//
//	{
//	    "moneda": "USD",
//	    "casa": "contadoconliqui",
//	    "nombre": "Contado con liquidación",
//	    "compra": 1181.4,
//	    "venta": 1186.6,
//	    "fechaActualizacion": "2025-06-13T17:57:00.000Z"
//	}
const buyPath = "$.compra"

// Provider is a brokerfolio.FXProvider fetching the CCL buy rate.
type Provider struct {
	url      string
	client   *http.Client
	logger   *zap.Logger
	maxTries uint
	interval time.Duration
}

// New returns a Provider on url (DefaultURL when empty). A nil client means
// http.DefaultClient.
func New(url string, client *http.Client, logger *zap.Logger) *Provider {
	if url == "" {
		url = DefaultURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{url: url, client: client, logger: logger, maxTries: 3, interval: 500 * time.Millisecond}
}

// BuyRateUSD returns the number of ARS paid for one USD. The request is
// retried on transport errors and temporary statuses.
func (p *Provider) BuyRateUSD(ctx context.Context) (decimal.Decimal, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.interval
	policy.MaxInterval = p.interval * 10

	notify := func(err error, d time.Duration) {
		p.logger.Info("retrying CCL rate", zap.Error(err), zap.Duration("backoff", d))
	}

	operation := func() (decimal.Decimal, error) {
		var jobj any
		err := brokerfolio.GetJSON(ctx, p.client, p.url, &jobj)
		if err != nil {
			if !brokerfolio.IsTemporary(err) {
				return decimal.Zero, backoff.Permanent(err)
			}
			return decimal.Zero, err
		}
		rate, err := extract(jobj)
		if err != nil {
			return decimal.Zero, backoff.Permanent(err)
		}
		return rate, nil
	}

	rate, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(p.maxTries),
		backoff.WithNotify(notify))
	if err != nil {
		return decimal.Zero, fmt.Errorf("error retrieving CCL rate: %w", err)
	}
	return rate, nil
}

// extract reads the buy rate from the payload.
func extract(jobj any) (decimal.Decimal, error) {
	jval, err := jsonpath.Get(buyPath, jobj)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: parsing %q: %v", brokerfolio.ErrNoRate, buyPath, err)
	}
	// because jsonpath is never clear about wheter it returns a list of 1 answer, or a single answer:
	// by this call I keep the first one if any
	if jlist, ok := jval.([]any); ok && len(jlist) > 0 {
		jval = jlist[0]
	}

	var rate decimal.Decimal
	switch v := jval.(type) {
	case float64:
		rate = decimal.NewFromFloat(v)
	case json.Number:
		if rate, err = decimal.NewFromString(v.String()); err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q is not a number", brokerfolio.ErrNoRate, v)
		}
	case string:
		if rate, err = decimal.NewFromString(v); err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q is not a number", brokerfolio.ErrNoRate, v)
		}
	default:
		return decimal.Zero, fmt.Errorf("%w: %q is %v", brokerfolio.ErrNoRate, buyPath, jval)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: CCL buy rate is %v", brokerfolio.ErrNoRate, rate)
	}
	return rate, nil
}
