package brokerfolio

import (
	"strings"
)

// excludedMarker flags overnight lending (caución) lines: they are money
// market placements, not held positions.
const excludedMarker = "caucion"

// NormalizeSymbol returns the canonical symbol of a raw export symbol.
//
// Only the first word of the raw symbol is kept. Cedears are listed twice, once
// settled in pesos and once in dollars, the dollar listing carrying a "D"
// suffix ("NVDAD") or a ".D" one ("C.D"). For a USD currency label the suffix
// is removed so that both listings collapse into the same position.
func NormalizeSymbol(raw, currencyLabel string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	symbol := fields[0]
	if code, _ := ParseCurrencyLabel(currencyLabel); code != USD {
		return symbol
	}
	return stripDollarSuffix(symbol)
}

func stripDollarSuffix(symbol string) string {
	// "C.D" for Citigroup
	if s, ok := strings.CutSuffix(symbol, ".D"); ok && s != "" {
		return s
	}
	if s, ok := strings.CutSuffix(symbol, "D"); ok && s != "" {
		return s
	}
	return symbol
}

// IsExcluded reports whether an export line designates a caución (overnight
// lending) rather than an instrument.
func IsExcluded(symbol, description string) bool {
	return strings.Contains(Fold(symbol), excludedMarker) || strings.Contains(Fold(description), excludedMarker)
}

// Listing is a raw symbol with the currency label it is settled in.
type Listing struct {
	Symbol        string
	CurrencyLabel string
}

// Normalizer canonicalizes the symbols of one export.
//
// Stripping a trailing "D" is not idempotent by itself: "AMDD" is "AMD" but
// "AMD" would become "AM". The Normalizer knows every listing of the export
// up front, and a symbol that is the canonical form of another dollar
// listing of the same export is kept as is. The result only depends on the
// set of listings, never on their order. A lone dollar row of a symbol that
// genuinely ends with "D" is still stripped: the export cannot tell it apart
// from a dollar listing.
type Normalizer struct {
	canonical map[string]struct{}
}

// NewNormalizer returns a Normalizer for an export made of listings.
func NewNormalizer(listings []Listing) *Normalizer {
	n := &Normalizer{canonical: make(map[string]struct{})}
	for _, l := range listings {
		fields := strings.Fields(l.Symbol)
		if len(fields) == 0 {
			continue
		}
		if symbol := NormalizeSymbol(l.Symbol, l.CurrencyLabel); symbol != fields[0] {
			n.canonical[symbol] = struct{}{}
		}
	}
	return n
}

// Symbol returns the canonical symbol for raw and currencyLabel.
func (n *Normalizer) Symbol(raw, currencyLabel string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	if _, ok := n.canonical[fields[0]]; ok {
		return fields[0]
	}
	return NormalizeSymbol(raw, currencyLabel)
}
