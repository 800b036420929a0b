package brokerfolio

import (
	"sort"

	"go.uber.org/zap"
)

// Position is the net holding of one canonical symbol.
type Position struct {
	Symbol   string
	Name     string
	Market   string
	Currency string // ISO code of the first transaction of the symbol
	Quantity Quantity
	// CostBasis is nil when the symbol was never acquired within the export
	// (transfers, or holdings built before the export window).
	CostBasis *CostBasis
}

// Aggregate nets the signed quantities of every symbol, joins in the average
// cost and drops fully exited positions.
//
// Descriptive fields come from the first transaction of the symbol. Positions
// are returned sorted by symbol.
func Aggregate(txs []NormalizedTransaction, logger *zap.Logger) []Position {
	if logger == nil {
		logger = zap.NewNop()
	}
	costs := AverageCosts(txs)

	index := make(map[string]int)
	warned := make(map[string]bool)
	var positions []Position
	for _, tx := range txs {
		i, ok := index[tx.Symbol]
		if !ok {
			i = len(positions)
			index[tx.Symbol] = i
			positions = append(positions, Position{
				Symbol:   tx.Symbol,
				Name:     tx.Name(),
				Market:   tx.Market,
				Currency: tx.Currency(),
			})
		}
		p := &positions[i]
		if tx.Market != p.Market && !warned[tx.Symbol] {
			warned[tx.Symbol] = true
			logger.Warn("symbol traded on several markets, keeping the first one",
				zap.String("symbol", tx.Symbol), zap.String("market", p.Market), zap.String("other", tx.Market))
		}
		if tx.HasQuantity {
			p.Quantity = p.Quantity.Add(tx.SignedQuantity)
		}
	}

	held := make([]Position, 0, len(positions))
	for _, p := range positions {
		if p.Quantity.IsZero() {
			continue
		}
		if cb, ok := costs[p.Symbol]; ok {
			p.CostBasis = &cb
		}
		held = append(held, p)
	}
	sort.Slice(held, func(i, j int) bool { return held[i].Symbol < held[j].Symbol })
	return held
}
