package models

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/pricewatch/internal/common"
)

// CheckKind selects the market a subscription watches.
type CheckKind string

const (
	CheckCrypto CheckKind = "crypto"
	CheckStock  CheckKind = "stock"
)

// Operator is the threshold comparison of a subscription.
type Operator string

const (
	OperatorGreater Operator = "greater"
	OperatorLess    Operator = "less"
)

// Valid reports whether o belongs to the closed operator set.
func (o Operator) Valid() bool {
	return o == OperatorGreater || o == OperatorLess
}

// ParseOperator normalises client input. The symbolic forms ">" and "<"
// are accepted as aliases; anything else is returned as given and fails
// Valid.
func ParseOperator(s string) Operator {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case ">", string(OperatorGreater):
		return OperatorGreater
	case "<", string(OperatorLess):
		return OperatorLess
	default:
		return Operator(v)
	}
}

// Subscription is a user's open price-threshold watch.
type Subscription struct {
	ID        int64
	UserID    int64
	CheckType CheckKind
	Symbol    string
	Operator  Operator
	Threshold float64
	Currency  string
}

// Target is the closed set of things a price can be asked for.
// Implementations live in this package only.
type Target interface {
	target()
}

// CryptoTarget is a coin priced in a quote currency.
type CryptoTarget struct {
	Symbol   string
	Currency string
}

// StockTarget is a ticker priced in its listing currency.
type StockTarget struct {
	Symbol string
}

func (CryptoTarget) target() {}
func (StockTarget) target()  {}

// Target builds the price target for s.
func (s *Subscription) Target() (Target, error) {
	switch s.CheckType {
	case CheckCrypto:
		return CryptoTarget{Symbol: s.Symbol, Currency: s.Currency}, nil
	case CheckStock:
		return StockTarget{Symbol: s.Symbol}, nil
	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownCheckKind, s.CheckType)
	}
}
