package brokerfolio

import "fmt"

// Operation is the type of a transaction as declared by the broker export.
type Operation int

const (
	// Other is any operation the engine does not know about (dividends, fees,
	// transfers...). It is treated as an acquisition by SignedQuantity.
	Other Operation = iota
	Buy
	Sell
	// FundSubscription is the FCI analogue of a Buy.
	FundSubscription
	// FundRedemption is the FCI analogue of a Sell.
	FundRedemption
)

func (o Operation) String() string {
	switch o {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	case FundSubscription:
		return "fund-subscription"
	case FundRedemption:
		return "fund-redemption"
	default:
		return "other"
	}
}

// operationLabels maps folded export labels to operations.
var operationLabels = map[string]Operation{
	"compra":            Buy,
	"buy":               Buy,
	"venta":             Sell,
	"sell":              Sell,
	"suscripcion fci":   FundSubscription,
	"fund subscription": FundSubscription,
	"rescate fci":       FundRedemption,
	"fund redemption":   FundRedemption,
}

// ParseOperation returns the operation for a raw export label. Unknown labels
// return Other and false.
func ParseOperation(label string) (Operation, bool) {
	op, ok := operationLabels[Fold(label)]
	return op, ok
}

// IsAcquisition reports whether the operation contributes to the cost basis.
func (o Operation) IsAcquisition() bool { return o == Buy || o == FundSubscription }

// IsDisposal reports whether the operation reduces a holding.
func (o Operation) IsDisposal() bool { return o == Sell || o == FundRedemption }

// SignedQuantity turns the unsigned magnitude of a transaction into a position
// delta: disposals are negative, everything else (including Other) positive.
func SignedQuantity(op Operation, q Quantity) Quantity {
	if op.IsDisposal() {
		return q.Neg()
	}
	return q
}

// MarshalText implements encoding.TextMarshaler.
func (o Operation) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler, it accepts both the
// String() form and export labels.
func (o *Operation) UnmarshalText(text []byte) error {
	for _, c := range []Operation{Buy, Sell, FundSubscription, FundRedemption, Other} {
		if c.String() == string(text) {
			*o = c
			return nil
		}
	}
	op, ok := ParseOperation(string(text))
	if !ok {
		return fmt.Errorf("unknown operation %q", text)
	}
	*o = op
	return nil
}
