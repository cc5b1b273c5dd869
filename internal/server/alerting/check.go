package alerting

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/pricewatch/internal/server/models"
)

// CheckOperator reports whether current crosses threshold for op. Both
// comparisons are strict; an operator outside the closed set never fires.
func CheckOperator(op models.Operator, threshold, current float64) bool {
	switch op {
	case models.OperatorGreater:
		return current > threshold
	case models.OperatorLess:
		return current < threshold
	default:
		return false
	}
}

var currencySymbols = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
	"uah": "₴",
	"pln": "pln",
	"czk": "czk",
}

// CurrencySymbol maps a currency code to its display symbol, falling back to
// the code itself.
func CurrencySymbol(code string) string {
	if s, ok := currencySymbols[strings.ToLower(code)]; ok {
		return s
	}
	return code
}

func formatAmount(v float64, currency string) string {
	amount := strconv.FormatFloat(v, 'f', -1, 64)
	sym := CurrencySymbol(currency)
	if sym == "" {
		return amount
	}
	if sym == strings.ToLower(currency) || sym == currency {
		return amount + " " + sym
	}
	return sym + amount
}

func operatorWording(op models.Operator) string {
	if op == models.OperatorLess {
		return "below"
	}
	return "above"
}

// BuildMessage renders the email announcing that s fired at price current.
func BuildMessage(s *models.Subscription, current float64) (subject, body string) {
	symbol := strings.ToUpper(s.Symbol)
	subject = "Price alert: " + symbol

	esc := html.EscapeString
	body = fmt.Sprintf(
		`<html><body>`+
			`<h2>%s</h2>`+
			`<p>%s is now %s your threshold of <b>%s</b>.</p>`+
			`<p>Current price: <b>%s</b></p>`+
			`<p>This alert has been moved to your notifications and will not fire again.</p>`+
			`</body></html>`,
		esc(subject),
		esc(symbol), operatorWording(s.Operator), esc(formatAmount(s.Threshold, s.Currency)),
		esc(formatAmount(current, s.Currency)),
	)
	return subject, body
}
