package brokerfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/etnz/brokerfolio/date"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reconciler turns a broker export into a valued portfolio.
//
// Each call to Reconcile is a run: the FX rate is fetched at most once per run
// and shared by every conversion of that run.
type Reconciler struct {
	fx     FXProvider
	quotes QuoteProvider
	logger *zap.Logger

	// Workers bounds the number of concurrent quote requests.
	Workers int
	// QuoteTimeout bounds every quote request, 0 means no bound.
	QuoteTimeout time.Duration
	// AsOf ignores transactions dated after it when not zero.
	AsOf date.Date
}

// NewReconciler returns a Reconciler using fx for currency conversion and
// quotes for live prices.
func NewReconciler(fx FXProvider, quotes QuoteProvider, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{fx: fx, quotes: quotes, logger: logger, Workers: 4}
}

// Reconcile normalizes raws, aggregates them into positions, values the
// positions in USD and assembles the portfolio.
//
// A failure to convert a cost basis to USD fails the run. Quote failures only
// degrade the affected entries.
func (r *Reconciler) Reconcile(ctx context.Context, raws []RawTransaction) (Portfolio, error) {
	start := time.Now()
	logger := r.logger.With(zap.String("run", uuid.NewString()))

	txs := Normalize(r.filter(raws), logger)
	positions := Aggregate(txs, logger)
	logger.Debug("positions aggregated", zap.Int("transactions", len(txs)), zap.Int("positions", len(positions)))

	conv := NewConverter(r.fx, logger)
	valued, err := ValueCostBasis(ctx, conv, positions)
	if err != nil {
		return nil, err
	}

	// Resolved under the run's context, not under the first quote's timeout.
	if needsRate(valued) {
		if _, err := conv.Rate(ctx); err != nil {
			logger.Warn("no CCL rate, local prices are unavailable", zap.Error(err))
		}
	}

	enriched := NewEnricher(r.quotes, conv, r.Workers, r.QuoteTimeout, logger).Enrich(ctx, valued)
	portfolio := Assemble(enriched)

	logger.Info("portfolio reconciled",
		zap.Int("entries", len(portfolio)),
		zap.Int("unavailable", len(portfolio.Unavailable())),
		zap.Duration("duration", time.Since(start)))
	return portfolio, nil
}

func (r *Reconciler) filter(raws []RawTransaction) []RawTransaction {
	if r.AsOf.IsZero() {
		return raws
	}
	kept := make([]RawTransaction, 0, len(raws))
	for _, raw := range raws {
		if raw.TransactionDate.After(r.AsOf) {
			continue
		}
		kept = append(kept, raw)
	}
	return kept
}

// needsRate reports whether some position may be quoted in ARS.
func needsRate(positions []ValuedPosition) bool {
	for _, p := range positions {
		if p.Currency == ARS || MarketSuffix(p.Market) != "" {
			return true
		}
	}
	return false
}

// ValueCostBasis expresses the cost basis of every position in USD. Any
// conversion failure is returned: the valuation currency of a cost basis is
// never guessed.
func ValueCostBasis(ctx context.Context, conv *Converter, positions []Position) ([]ValuedPosition, error) {
	valued := make([]ValuedPosition, len(positions))
	for i, p := range positions {
		valued[i] = ValuedPosition{Position: p}
		if p.CostBasis == nil {
			continue
		}
		avg, err := p.CostBasis.AverageUSD(ctx, conv)
		if err != nil {
			return nil, fmt.Errorf("cannot value %s: %w", p.Symbol, err)
		}
		valued[i].AverageCost = &avg
	}
	return valued, nil
}
