package yahoo

import "github.com/shopspring/decimal"

// minorUnits maps quote-currency codes reported in hundredths to their major currency.
var minorUnits = map[string]string{
	"ILA": "ILS",
	"GBp": "GBP",
	"GBX": "GBP",
	"ZAc": "ZAR",
}

var hundred = decimal.NewFromInt(100)

// NormalizeMinorUnit converts a price quoted in a minor unit (agorot, pence)
// to the major currency. Other currencies pass through unchanged.
func NormalizeMinorUnit(price float64, currency string) (float64, string) {
	major, ok := minorUnits[currency]
	if !ok {
		return price, currency
	}
	v, _ := decimal.NewFromFloat(price).Div(hundred).Float64()
	return v, major
}
