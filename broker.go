package brokerfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrBrokerNotSupported is returned when the configuration names a broker
// mode that has no implementation.
var ErrBrokerNotSupported = errors.New("broker not supported")

// Broker is anything that can produce the current valued portfolio.
type Broker interface {
	Portfolio(ctx context.Context) (Portfolio, error)
}

// TransactionSource provides the raw rows of a broker export.
type TransactionSource interface {
	Transactions(ctx context.Context) ([]RawTransaction, error)
}

// TransactionsBroker builds the portfolio by reconciling a transaction export.
type TransactionsBroker struct {
	Source     TransactionSource
	Reconciler *Reconciler
}

// Portfolio reads the export and reconciles it.
func (b *TransactionsBroker) Portfolio(ctx context.Context) (Portfolio, error) {
	raws, err := b.Source.Transactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot read transactions: %w", err)
	}
	return b.Reconciler.Reconcile(ctx, raws)
}

// Holding is one line of a broker position snapshot.
type Holding struct {
	Symbol             string
	Description        string
	Currency           string // raw currency label
	LastPrice          decimal.Decimal
	Valuation          decimal.Decimal
	Quantity           decimal.Decimal
	DailyChangePercent decimal.Decimal
	Market             string
}

// HoldingsProvider lists the holdings of an account segment.
type HoldingsProvider interface {
	Holdings(ctx context.Context, segment string) ([]Holding, error)
}

// SnapshotBroker builds the portfolio from the holdings the broker reports,
// without any transaction history. Prices are the broker's, so no quote
// provider is involved, and no cost basis is known.
type SnapshotBroker struct {
	provider HoldingsProvider
	fx       FXProvider
	segments []string
	logger   *zap.Logger
}

// NewSnapshotBroker returns a SnapshotBroker reading segments from provider.
func NewSnapshotBroker(provider HoldingsProvider, fx FXProvider, segments []string, logger *zap.Logger) *SnapshotBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotBroker{provider: provider, fx: fx, segments: segments, logger: logger}
}

// Portfolio fetches every segment and values the holdings in USD.
//
// A provider failure fails the call. A conversion failure only zeroes the
// price of the affected entries. Holdings that collapse into the same symbol
// are merged, the first one giving the price.
func (b *SnapshotBroker) Portfolio(ctx context.Context) (Portfolio, error) {
	var holdings []Holding
	for _, segment := range b.segments {
		hs, err := b.provider.Holdings(ctx, segment)
		if err != nil {
			return nil, fmt.Errorf("cannot get %s holdings: %w", segment, err)
		}
		b.logger.Debug("holdings", zap.String("segment", segment), zap.Int("count", len(hs)))
		holdings = append(holdings, hs...)
	}

	listings := make([]Listing, 0, len(holdings))
	for _, h := range holdings {
		listings = append(listings, Listing{Symbol: h.Symbol, CurrencyLabel: h.Currency})
	}
	n := NewNormalizer(listings)
	conv := NewConverter(b.fx, b.logger)

	index := make(map[string]int)
	var entries Portfolio
	for _, h := range holdings {
		if IsExcluded(h.Symbol, h.Description) {
			continue
		}
		symbol := n.Symbol(h.Symbol, h.Currency)
		if symbol == "" {
			continue
		}
		if i, ok := index[symbol]; ok {
			e := &entries[i]
			e.Quantity = e.Quantity.Add(Q(h.Quantity))
			e.TotalValue = e.Price.Mul(e.Quantity)
			continue
		}
		index[symbol] = len(entries)
		entries = append(entries, b.entry(ctx, conv, symbol, h))
	}

	kept := make(Portfolio, 0, len(entries))
	for _, e := range entries {
		if !e.Quantity.IsZero() {
			kept = append(kept, e)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Ticker < kept[j].Ticker })
	return kept, nil
}

func (b *SnapshotBroker) entry(ctx context.Context, conv *Converter, symbol string, h Holding) PortfolioEntry {
	code, _ := ParseCurrencyLabel(h.Currency)
	price, err := conv.ToUSD(ctx, M(h.LastPrice, code))
	if err != nil || !price.IsPositive() {
		if err == nil {
			err = fmt.Errorf("%w: last price is %v", ErrQuoteUnavailable, h.LastPrice)
		}
		b.logger.Warn("valuation unavailable", zap.String("symbol", symbol), zap.Error(err))
		e := NewPortfolioEntry(symbol, h.Description, M(0, USD), Q(h.Quantity), M(0, USD), decimal.Zero)
		e.Unavailable = true
		return e
	}

	// previous close = last / (1 + change%)
	change := M(0, USD)
	growth := decimal.NewFromInt(1).Add(h.DailyChangePercent.Div(decimal.NewFromInt(100)))
	if growth.IsPositive() {
		change = price.Sub(M(price.value.Div(growth), USD))
	}
	return NewPortfolioEntry(symbol, h.Description, price, Q(h.Quantity), change, h.DailyChangePercent)
}
