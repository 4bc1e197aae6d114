package market

import "strings"

// InstrumentClass groups instruments that share volatility and session behaviour.
type InstrumentClass string

const (
	ClassRateIndex     InstrumentClass = "rate_index"
	ClassCurrencyPair  InstrumentClass = "currency_pair"
	ClassPreciousMetal InstrumentClass = "precious_metal"
	ClassCryptoAsset   InstrumentClass = "crypto_asset"
)

func (c InstrumentClass) String() string {
	return string(c)
}

// keyword families are checked in order, first match wins.
var classKeywords = []struct {
	class    InstrumentClass
	keywords []string
}{
	{ClassPreciousMetal, []string{"XAU", "XAG", "XPT", "XPD", "GOLD", "SILVER"}},
	{ClassCryptoAsset, []string{"BTC", "ETH", "SOL", "XRP", "LTC", "DOGE", "ADA", "DOT", "BNB", "CRYPTO"}},
	{ClassRateIndex, []string{"US30", "US100", "US500", "NAS", "SPX", "DJI", "DOW", "DAX", "GER", "UK100", "FTSE", "JP225", "NIKKEI", "HK50", "AUS200", "INDEX"}},
}

// ClassifyInstrument derives the instrument class from its identifier.
// Anything not matching a keyword family is treated as a currency pair.
func ClassifyInstrument(instrument string) InstrumentClass {
	id := strings.ToUpper(strings.TrimSpace(instrument))
	for _, family := range classKeywords {
		for _, kw := range family.keywords {
			if strings.Contains(id, kw) {
				return family.class
			}
		}
	}
	return ClassCurrencyPair
}
