// Package pricing parses and formats the locale-formatted prices found on
// product pages, in operator input, and in the ledger.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)

	symbols = strings.NewReplacer("€", "", "$", "", "EUR", "")
)

// Normalize parses a price such as "1.499,00 €" or "$1,499.00" into a decimal.
// A string with a single comma placed after the last period uses the comma as
// decimal separator; anything else treats commas as thousands separators.
// Unparseable input yields zero, which callers read as "no price".
func Normalize(text string) decimal.Decimal {
	s := clean(text)
	if s == "" {
		return decimal.Zero
	}

	if strings.Count(s, ",") == 1 && strings.Count(s, ".") <= 1 &&
		strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// IsExplicitZero reports whether the operator literally typed a zero price
// ("0", "0,00", "0.00 €"), as opposed to text that failed to parse.
func IsExplicitZero(text string) bool {
	s := clean(text)
	if s == "" || !strings.Contains(s, "0") {
		return false
	}
	return strings.Trim(s, "0.,") == ""
}

func clean(text string) string {
	s := symbols.Replace(text)
	return strings.Join(strings.Fields(s), "")
}

// FormatLedger renders a price the way the ledger stores it: two decimals,
// comma separator, no grouping ("1499,00").
func FormatLedger(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}

// FormatEuro renders a price for display with dot grouping and comma decimals
// ("1.499,00").
func FormatEuro(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	fixed := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "," + frac
}

// Display is FormatEuro with the currency suffix.
func Display(d decimal.Decimal) string {
	return FormatEuro(d) + "€"
}

// Percent returns floor(100 - 100*current/last), truncating toward zero.
// A non-positive last price yields 0.
func Percent(current, last decimal.Decimal) int64 {
	if !last.IsPositive() {
		return 0
	}
	return hundred.Sub(current.Div(last).Mul(hundred)).IntPart()
}
