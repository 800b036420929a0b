package brokerfolio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrNoRate is returned when no usable exchange rate could be obtained.
var ErrNoRate = errors.New("no exchange rate")

// currencyLabels maps folded export currency labels to ISO codes.
var currencyLabels = map[string]string{
	"usd":                     USD,
	"us$":                     USD,
	"u$s":                     USD,
	"dolar":                   USD,
	"dolares":                 USD,
	"dolar estadounidense":    USD,
	"dolar_estadounidense":    USD,
	"dolares estadounidenses": USD,
	"ars":                     ARS,
	"$":                       ARS,
	"pesos":                   ARS,
	"peso argentino":          ARS,
	"peso_argentino":          ARS,
	"pesos argentinos":        ARS,
}

// ParseCurrencyLabel returns the ISO code of a raw currency label as found in
// broker exports and APIs. Unknown labels return "" and false.
func ParseCurrencyLabel(label string) (string, bool) {
	code, ok := currencyLabels[Fold(label)]
	return code, ok
}

// FXProvider provides the local currency exchange rate.
type FXProvider interface {
	// BuyRateUSD returns the number of ARS for one USD at the CCL buy quote. It
	// must fail rather than return a non-positive rate.
	BuyRateUSD(ctx context.Context) (decimal.Decimal, error)
}

// Converter converts amounts to USD, the valuation currency.
//
// The rate is fetched at most once: every conversion of a run observes the
// same rate. A Converter is safe for concurrent use.
type Converter struct {
	provider FXProvider
	logger   *zap.Logger

	mu      sync.Mutex
	fetched bool
	rate    decimal.Decimal
	err     error
}

// NewConverter returns a Converter backed by provider.
func NewConverter(provider FXProvider, logger *zap.Logger) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{provider: provider, logger: logger}
}

// Rate returns the run's ARS per USD rate, fetching it on first use.
//
// A failure caused by the caller's context (timeout or cancellation) is not
// kept: the next caller fetches again under its own context. Any other
// outcome is final for the Converter.
func (c *Converter) Rate(ctx context.Context) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fetched {
		return c.rate, c.err
	}
	if c.provider == nil {
		c.fetched = true
		c.err = fmt.Errorf("%w: no FX provider configured", ErrNoRate)
		return c.rate, c.err
	}
	rate, err := c.provider.BuyRateUSD(ctx)
	if err != nil && ctx.Err() != nil {
		return decimal.Zero, fmt.Errorf("cannot get CCL rate: %w", err)
	}
	c.fetched = true
	switch {
	case err != nil:
		c.err = fmt.Errorf("cannot get CCL rate: %w", err)
	case !rate.IsPositive():
		c.err = fmt.Errorf("%w: provider returned %v", ErrNoRate, rate)
	default:
		c.rate = rate
		c.logger.Info("CCL rate", zap.String("rate", rate.String()))
	}
	return c.rate, c.err
}

// ToUSD converts amount to USD. USD amounts are returned unchanged, ARS ones
// are divided by the run's CCL rate.
func (c *Converter) ToUSD(ctx context.Context, amount Money) (Money, error) {
	switch amount.Currency() {
	case USD:
		return amount, nil
	case ARS:
		rate, err := c.Rate(ctx)
		if err != nil {
			return Money{}, err
		}
		return M(amount.value.Div(rate), USD), nil
	default:
		return Money{}, fmt.Errorf("cannot convert %q to %s: unsupported currency", amount.Currency(), USD)
	}
}

// FixedRate is an FXProvider returning a constant rate. It is useful to replay
// a run with a known rate.
type FixedRate decimal.Decimal

func (r FixedRate) BuyRateUSD(context.Context) (decimal.Decimal, error) {
	rate := decimal.Decimal(r)
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: fixed rate %v", ErrNoRate, rate)
	}
	return rate, nil
}
