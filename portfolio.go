package brokerfolio

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
)

// Columns are the canonical output columns, in order.
var Columns = []string{
	"Ticker",
	"Name",
	"Price (USD)",
	"Quantity",
	"Price Change (USD)",
	"Price Change (%)",
	"Total Value (USD)",
}

// PortfolioEntry is one line of the valued portfolio.
type PortfolioEntry struct {
	Ticker        string
	Name          string
	Price         Money // USD
	Quantity      Quantity
	Change        Money           // USD
	ChangePercent decimal.Decimal // %
	TotalValue    Money           // USD, always Price × Quantity

	// Not part of the canonical columns.
	AverageCost *Money // USD, nil without cost basis
	Unavailable bool   // true when Price is zero because no quote could be obtained
}

// NewPortfolioEntry returns an entry with TotalValue computed from price and
// quantity.
func NewPortfolioEntry(ticker, name string, price Money, quantity Quantity, change Money, changePercent decimal.Decimal) PortfolioEntry {
	return PortfolioEntry{
		Ticker:        ticker,
		Name:          name,
		Price:         price,
		Quantity:      quantity,
		Change:        change,
		ChangePercent: changePercent,
		TotalValue:    price.Mul(quantity),
	}
}

// MarshalJSON writes the entry as an object with the canonical column names,
// in order.
func (e PortfolioEntry) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append(Columns[0], e.Ticker)
	w.Append(Columns[1], e.Name)
	w.Append(Columns[2], e.Price)
	w.Append(Columns[3], e.Quantity)
	w.Append(Columns[4], e.Change)
	w.Append(Columns[5], json.Number(e.ChangePercent.String()))
	w.Append(Columns[6], e.TotalValue)
	return w.MarshalJSON()
}

// Portfolio is the valued portfolio, sorted by ticker.
type Portfolio []PortfolioEntry

// TotalValue returns the sum of all entries' total value.
func (p Portfolio) TotalValue() Money {
	total := M(0, USD)
	for _, e := range p {
		total = total.Add(e.TotalValue)
	}
	return total
}

// Unavailable returns the tickers whose valuation is unavailable.
func (p Portfolio) Unavailable() []string {
	var tickers []string
	for _, e := range p {
		if e.Unavailable {
			tickers = append(tickers, e.Ticker)
		}
	}
	return tickers
}

// Assemble maps enriched positions to portfolio entries. The total value is
// recomputed from price and quantity. Entries are sorted by ticker.
func Assemble(positions []EnrichedPosition) Portfolio {
	entries := make(Portfolio, 0, len(positions))
	for _, p := range positions {
		if p.Quantity.IsZero() {
			continue
		}
		e := NewPortfolioEntry(p.Symbol, p.Name, p.Price, p.Quantity, p.Change, p.ChangePercent)
		e.AverageCost = p.AverageCost
		e.Unavailable = p.Unavailable()
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Ticker < entries[j].Ticker })
	return entries
}
