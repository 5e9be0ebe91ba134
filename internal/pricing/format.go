package pricing

import (
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Currencies without a minor unit distinct from the major unit.
var zeroDecimal = map[string]bool{
	"JPY": true,
	"KRW": true,
	"VND": true,
	"CLP": true,
	"PYG": true,
	"IDR": true,
}

// IsZeroDecimal reports whether minor and major units coincide for code.
func IsZeroDecimal(code string) bool {
	return zeroDecimal[strings.ToUpper(strings.TrimSpace(code))]
}

// ToMajor converts a minor-unit amount to major units.
func ToMajor(minor int64, code string) float64 {
	if IsZeroDecimal(code) {
		return float64(minor)
	}
	return float64(minor) / 100
}

// Languages whose CLDR currency pattern puts the symbol after the number,
// separated by a no-break space.
var symbolAfter = map[string]bool{
	"de": true,
	"fr": true,
	"es": true,
	"it": true,
	"ru": true,
	"pl": true,
	"sv": true,
	"fi": true,
	"cs": true,
	"da": true,
	"nb": true,
}

// symbolTrails reports whether tag places the currency symbol after the
// amount. Swiss German and Latin American Spanish keep it in front.
func symbolTrails(tag language.Tag) bool {
	base, _ := tag.Base()
	if !symbolAfter[base.String()] {
		return false
	}
	region, _ := tag.Region()
	switch base.String() + "-" + region.String() {
	case "de-CH", "de-LI", "es-MX", "es-US", "es-419":
		return false
	}
	return true
}

// FormatFromMinor renders a minor-unit amount with the currency's symbol,
// placed where the locale puts it, and the locale's digit grouping. An empty
// or unparsable locale means English. Unknown currency codes are rendered
// with the code as the symbol.
func FormatFromMinor(minor int64, code string, locale string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	tag := language.English
	if locale != "" {
		if t, err := language.Parse(locale); err == nil {
			tag = t
		}
	}
	p := message.NewPrinter(tag)

	scale := 2
	if IsZeroDecimal(code) {
		scale = 0
	}
	amount := p.Sprint(number.Decimal(ToMajor(minor, code), number.Scale(scale)))

	symbol := code
	if unit, err := currency.ParseISO(code); err == nil {
		symbol = p.Sprint(currency.Symbol(unit))
	}
	if symbol == "" {
		symbol = code
	}
	sign := ""
	if minor < 0 {
		sign = "-"
		amount = strings.TrimPrefix(amount, "-")
	}
	if symbolTrails(tag) {
		return sign + amount + "\u00a0" + symbol
	}
	return sign + symbol + amount
}
