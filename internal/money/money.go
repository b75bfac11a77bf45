// Package money formats engine amounts for display. Nothing here feeds back into
// stored totals.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Locale string

const (
	LocaleIndian        Locale = "en-IN"
	LocaleInternational Locale = "en-US"
)

const DefaultCurrency = "INR"

var symbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"AED": "AED ",
	"SGD": "S$",
	"AUD": "A$",
	"CAD": "C$",
	"JPY": "¥",
}

// asciiSymbols are used where the output font has no glyph for the currency sign.
var asciiSymbols = map[string]string{
	"INR": "Rs. ",
	"USD": "$",
	"SGD": "S$",
	"AUD": "A$",
	"CAD": "C$",
}

// ParseLocale maps a config value onto a grouping locale. Unknown values fall back to Indian grouping.
func ParseLocale(s string) Locale {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "en-us", "international", "intl", "western":
		return LocaleInternational
	default:
		return LocaleIndian
	}
}

// Symbol returns the display symbol for an ISO currency code, or the code itself followed
// by a space when it is not known.
func Symbol(code string) string {
	code = normalizeCode(code)
	if s, ok := symbols[code]; ok {
		return s
	}
	return code + " "
}

// ASCIISymbol is Symbol restricted to 7-bit output.
func ASCIISymbol(code string) string {
	code = normalizeCode(code)
	if s, ok := asciiSymbols[code]; ok {
		return s
	}
	return code + " "
}

func normalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency
	}
	return code
}

// Round rounds half away from zero to two decimal places.
func Round(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// Format renders v with two decimals and the locale's digit grouping.
func Format(v float64, locale Locale) string {
	s := Round(v).StringFixed(2)

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	if locale == LocaleInternational {
		intPart = groupThousands(intPart)
	} else {
		intPart = groupIndian(intPart)
	}

	out := intPart + "." + frac
	if neg && out != "0.00" {
		out = "-" + out
	}
	return out
}

// FormatRate renders a percentage without trailing zeros, e.g. 18 -> "18%", 2.5 -> "2.5%".
func FormatRate(rate float64) string {
	return decimal.NewFromFloat(rate).Round(2).String() + "%"
}

// groupThousands: 1234567 -> 1,234,567
func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// groupIndian: 1234567 -> 12,34,567 (last three digits, then pairs).
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head := digits[:len(digits)-3]
	tail := digits[len(digits)-3:]

	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}

// Formatter renders amounts in a fixed currency and locale.
type Formatter struct {
	Currency string
	Locale   Locale
	// ASCII selects ASCIISymbol instead of Symbol.
	ASCII bool
}

func NewFormatter(currency string, locale Locale) Formatter {
	return Formatter{Currency: normalizeCode(currency), Locale: locale}
}

// Amount renders v with the currency symbol.
func (f Formatter) Amount(v float64) string {
	symbol := Symbol(f.Currency)
	if f.ASCII {
		symbol = ASCIISymbol(f.Currency)
	}
	formatted := Format(v, f.Locale)
	if strings.HasPrefix(formatted, "-") {
		return "-" + symbol + strings.TrimPrefix(formatted, "-")
	}
	return symbol + formatted
}
