package brokerfolio

import (
	"github.com/etnz/brokerfolio/date"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RawTransaction is one row of a broker export, as handed over by the export
// reader. Numeric cells that could not be read are invalid NullDecimal.
type RawTransaction struct {
	TransactionDate date.Date
	SettlementDate  date.Date
	Ticket          string
	Market          string
	Operation       Operation
	OperationLabel  string // the label as found in the export
	Account         string
	Description     string
	Instrument      string
	Symbol          string
	CurrencyLabel   string
	Quantity        decimal.NullDecimal // unsigned magnitude
	WeightedPrice   decimal.NullDecimal
	Amount          decimal.NullDecimal
	Commission      decimal.NullDecimal
	Tax             decimal.NullDecimal
	Total           decimal.NullDecimal
}

// Currency returns the ISO code of the transaction currency, "" if the label
// is unknown.
func (r RawTransaction) Currency() string {
	code, _ := ParseCurrencyLabel(r.CurrencyLabel)
	return code
}

// NormalizedTransaction is a RawTransaction with a canonical symbol and a
// signed quantity.
type NormalizedTransaction struct {
	RawTransaction
	Symbol         string   // canonical symbol
	SignedQuantity Quantity // -quantity for disposals, +quantity otherwise
	Price          Money    // weighted price in the transaction currency

	// HasQuantity and HasPrice are false when the export cell was not a
	// number. Such a transaction contributes nothing to the sums that need the
	// missing value.
	HasQuantity bool
	HasPrice    bool
}

// Name returns the descriptive name of the instrument.
func (t NormalizedTransaction) Name() string {
	if t.Description != "" {
		return t.Description
	}
	return t.Instrument
}

// Normalize canonicalizes symbols and signs quantities. Caución lines and rows
// without a symbol are dropped. The input is left untouched.
func Normalize(raws []RawTransaction, logger *zap.Logger) []NormalizedTransaction {
	if logger == nil {
		logger = zap.NewNop()
	}
	listings := make([]Listing, 0, len(raws))
	for _, raw := range raws {
		listings = append(listings, Listing{Symbol: raw.Symbol, CurrencyLabel: raw.CurrencyLabel})
	}
	n := NewNormalizer(listings)
	unknown := make(map[string]struct{})

	txs := make([]NormalizedTransaction, 0, len(raws))
	for _, raw := range raws {
		if IsExcluded(raw.Symbol, raw.Description) || IsExcluded(raw.Instrument, "") {
			logger.Debug("excluded caución", zap.String("symbol", raw.Symbol), zap.String("ticket", raw.Ticket))
			continue
		}
		symbol := n.Symbol(raw.Symbol, raw.CurrencyLabel)
		if symbol == "" {
			continue
		}
		if raw.Operation == Other {
			if _, seen := unknown[raw.OperationLabel]; !seen {
				unknown[raw.OperationLabel] = struct{}{}
				logger.Warn("unknown operation counted as an acquisition", zap.String("operation", raw.OperationLabel), zap.String("symbol", symbol))
			}
		}

		tx := NormalizedTransaction{
			RawTransaction: raw,
			Symbol:         symbol,
			HasQuantity:    raw.Quantity.Valid,
			HasPrice:       raw.WeightedPrice.Valid,
		}
		if tx.HasQuantity {
			tx.SignedQuantity = SignedQuantity(raw.Operation, Q(raw.Quantity.Decimal))
		}
		if tx.HasPrice {
			tx.Price = M(raw.WeightedPrice.Decimal, raw.Currency())
		}
		txs = append(txs, tx)
	}
	return txs
}
