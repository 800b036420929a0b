package brokerfolio

import (
	"context"
	"fmt"
	"sort"
)

// CostBasis accumulates the acquisitions of one symbol. Amounts are kept per
// currency: a cedear bought both in pesos and in dollars collapses into a
// single symbol, and the two legs can only be added once converted.
type CostBasis struct {
	Amounts  []Money // Σ(quantity × price), one per currency, sorted by currency
	Quantity Quantity
}

// Average returns Σ(quantity × price) / Σ(quantity). It is only defined when
// all acquisitions are in the same currency.
func (c CostBasis) Average() (Money, bool) {
	if len(c.Amounts) != 1 || c.Quantity.IsZero() {
		return Money{}, false
	}
	return c.Amounts[0].Div(c.Quantity), true
}

// TotalUSD returns Σ(quantity × price) in USD, converting each currency leg
// with conv.
func (c CostBasis) TotalUSD(ctx context.Context, conv *Converter) (Money, error) {
	total := M(0, USD)
	for _, amount := range c.Amounts {
		usd, err := conv.ToUSD(ctx, amount)
		if err != nil {
			return Money{}, fmt.Errorf("cannot convert cost basis: %w", err)
		}
		total = total.Add(usd)
	}
	return total, nil
}

// AverageUSD returns the average acquisition price in USD, converting each
// currency leg with conv before averaging.
func (c CostBasis) AverageUSD(ctx context.Context, conv *Converter) (Money, error) {
	if c.Quantity.IsZero() {
		return Money{}, fmt.Errorf("cost basis has no quantity")
	}
	total, err := c.TotalUSD(ctx, conv)
	if err != nil {
		return Money{}, err
	}
	return total.Div(c.Quantity), nil
}

// AverageCosts computes the cost basis of every symbol from its Buy and
// FundSubscription transactions only:
//
//	avg = Σ(quantity × price) / Σ(quantity)
//
// Disposals never move the average. Symbols without any acquisition are
// absent from the result: they have no cost basis, not a zero one. Rows with
// a missing quantity or price are skipped.
func AverageCosts(txs []NormalizedTransaction) map[string]CostBasis {
	type acc struct {
		amounts  map[string]Money
		quantity Quantity
	}
	sums := make(map[string]*acc)
	for _, tx := range txs {
		if !tx.Operation.IsAcquisition() || !tx.HasQuantity || !tx.HasPrice {
			continue
		}
		s, ok := sums[tx.Symbol]
		if !ok {
			s = &acc{amounts: make(map[string]Money)}
			sums[tx.Symbol] = s
		}
		cur := tx.Price.Currency()
		s.amounts[cur] = s.amounts[cur].In(cur).Add(tx.Price.Mul(tx.Magnitude()))
		s.quantity = s.quantity.Add(tx.Magnitude())
	}

	costs := make(map[string]CostBasis, len(sums))
	for symbol, s := range sums {
		if s.quantity.IsZero() {
			continue
		}
		cb := CostBasis{Quantity: s.quantity}
		for _, amount := range s.amounts {
			cb.Amounts = append(cb.Amounts, amount)
		}
		sort.Slice(cb.Amounts, func(i, j int) bool { return cb.Amounts[i].Currency() < cb.Amounts[j].Currency() })
		costs[symbol] = cb
	}
	return costs
}

// Magnitude returns the unsigned quantity of the transaction, zero when the
// export cell was missing.
func (t NormalizedTransaction) Magnitude() Quantity {
	if !t.HasQuantity {
		return Quantity{}
	}
	return Q(t.RawTransaction.Quantity.Decimal)
}
