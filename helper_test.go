package brokerfolio

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

func usd(v float64) Money { return M(v, USD) }
func ars(v float64) Money { return M(v, ARS) }

func nd(v float64) decimal.NullDecimal { return decimal.NewNullDecimal(decimal.NewFromFloat(v)) }

// tx returns an export row for op on symbol.
func tx(op Operation, symbol, currency string, quantity, price float64) RawTransaction {
	return RawTransaction{
		Operation:      op,
		OperationLabel: op.String(),
		Market:         "NYSE",
		Symbol:         symbol,
		Description:    symbol + " Inc.",
		CurrencyLabel:  currency,
		Quantity:       nd(quantity),
		WeightedPrice:  nd(price),
	}
}

// quoteFunc adapts a function to a QuoteProvider.
type quoteFunc func(ctx context.Context, symbol, suffix string) (Quote, error)

func (f quoteFunc) Quote(ctx context.Context, symbol, suffix string) (Quote, error) {
	return f(ctx, symbol, suffix)
}

// quotes returns a provider serving a fixed set of quotes, any other symbol
// is unavailable.
func quotes(q map[string]Quote) QuoteProvider {
	return quoteFunc(func(_ context.Context, symbol, _ string) (Quote, error) {
		if v, ok := q[symbol]; ok {
			return v, nil
		}
		return Quote{}, ErrQuoteUnavailable
	})
}

// countingFX is an FXProvider that counts its calls.
type countingFX struct {
	rate  decimal.Decimal
	err   error
	calls atomic.Int32
}

func (f *countingFX) BuyRateUSD(context.Context) (decimal.Decimal, error) {
	f.calls.Add(1)
	return f.rate, f.err
}

// slowFX is an FXProvider that answers after delay unless ctx ends first.
type slowFX struct {
	delay time.Duration
	rate  decimal.Decimal
	calls atomic.Int32
}

func (f *slowFX) BuyRateUSD(ctx context.Context) (decimal.Decimal, error) {
	f.calls.Add(1)
	select {
	case <-time.After(f.delay):
		return f.rate, nil
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	}
}

func fixed(rate int64) FixedRate { return FixedRate(decimal.NewFromInt(rate)) }
