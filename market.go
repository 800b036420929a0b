package brokerfolio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrQuoteUnavailable is returned by quote providers when a symbol is unknown
// or has no usable price.
var ErrQuoteUnavailable = errors.New("quote unavailable")

// LocalMarket is the market code of the Buenos Aires exchange.
const LocalMarket = "BCBA"

// Quote is a live market quote.
type Quote struct {
	Last          decimal.Decimal
	PreviousClose decimal.Decimal
	Currency      string // ISO code of the quote, "" if the provider does not tell
}

// QuoteProvider provides live market quotes.
type QuoteProvider interface {
	// Quote returns the last price and previous close of symbol. The suffix
	// selects the listing (".BA" for the local market, "" otherwise).
	Quote(ctx context.Context, symbol, suffix string) (Quote, error)
}

// MarketSuffix returns the quote provider suffix for a market code.
func MarketSuffix(market string) string {
	if strings.EqualFold(strings.TrimSpace(market), LocalMarket) {
		return ".BA"
	}
	return ""
}

// ValuedPosition is a Position with its cost basis expressed in USD.
type ValuedPosition struct {
	Position
	AverageCost *Money // USD, nil without cost basis
}

// EnrichedPosition is a ValuedPosition with live prices in USD.
type EnrichedPosition struct {
	ValuedPosition
	Price         Money           // last price, zero when unavailable
	Change        Money           // last - previous close
	ChangePercent decimal.Decimal // change / previous close × 100
	// Err is why the valuation is unavailable, nil otherwise.
	Err error
}

// Unavailable reports whether no price could be obtained for the position.
func (p EnrichedPosition) Unavailable() bool { return p.Err != nil }

// Enricher values positions with live quotes.
//
// Every position is isolated: a quote or FX failure only zeroes the price and
// change of that position, it never fails the run.
type Enricher struct {
	quotes  QuoteProvider
	conv    *Converter
	logger  *zap.Logger
	workers int
	timeout time.Duration
}

// NewEnricher returns an Enricher that runs at most workers quote requests
// concurrently, each bounded by timeout (no bound when timeout is 0).
func NewEnricher(quotes QuoteProvider, conv *Converter, workers int, timeout time.Duration, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	return &Enricher{quotes: quotes, conv: conv, logger: logger, workers: workers, timeout: timeout}
}

// Enrich fetches a quote for every position. The result has the order of
// positions.
func (e *Enricher) Enrich(ctx context.Context, positions []ValuedPosition) []EnrichedPosition {
	enriched := make([]EnrichedPosition, len(positions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, p := range positions {
		g.Go(func() error {
			enriched[i] = e.enrich(gctx, p)
			return nil
		})
	}
	_ = g.Wait() // goroutines never fail
	return enriched
}

// enrich values a single position, degrading it on any failure.
func (e *Enricher) enrich(ctx context.Context, p ValuedPosition) (ep EnrichedPosition) {
	ep = EnrichedPosition{ValuedPosition: p}
	defer func() {
		if r := recover(); r != nil {
			ep = e.degrade(p, fmt.Errorf("quote provider panic: %v", r))
		}
	}()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	q, err := e.quotes.Quote(ctx, p.Symbol, MarketSuffix(p.Market))
	if err != nil {
		return e.degrade(p, err)
	}
	if !q.Last.IsPositive() {
		return e.degrade(p, fmt.Errorf("%w: last price is %v", ErrQuoteUnavailable, q.Last))
	}

	cur := q.Currency
	if cur == "" {
		cur = p.Currency
	}
	if cur == "" {
		cur = USD
	}
	last, err := e.conv.ToUSD(ctx, M(q.Last, cur))
	if err != nil {
		return e.degrade(p, err)
	}
	previous, err := e.conv.ToUSD(ctx, M(q.PreviousClose, cur))
	if err != nil {
		return e.degrade(p, err)
	}

	ep.Price = last
	ep.Change = last.Sub(previous)
	ep.ChangePercent = decimal.Zero
	if previous.IsPositive() {
		ep.ChangePercent = ep.Change.value.Div(previous.value).Mul(decimal.NewFromInt(100))
	}
	return ep
}

func (e *Enricher) degrade(p ValuedPosition, err error) EnrichedPosition {
	e.logger.Warn("valuation unavailable", zap.String("symbol", p.Symbol), zap.String("market", p.Market), zap.Error(err))
	return EnrichedPosition{
		ValuedPosition: p,
		Price:          M(0, USD),
		Change:         M(0, USD),
		ChangePercent:  decimal.Zero,
		Err:            err,
	}
}
