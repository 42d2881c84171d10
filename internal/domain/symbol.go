package domain

import "strings"

// CanonicalSymbol is the venue-independent market identifier used throughout
// the pipeline. Display is always "{Base}-{Quote}" with uppercase tickers,
// except for the fallback case where an unrecognized venue symbol passes
// through unchanged.
type CanonicalSymbol struct {
	Base    string `json:"base"`
	Quote   string `json:"quote"`
	Display string `json:"display"`
}

// koreanVenues are the exchanges whose markets are always tagged KR.
var koreanVenues = map[string]bool{
	"upbit":   true,
	"bithumb": true,
	"coinone": true,
	"korbit":  true,
}

// Normalize maps a venue-native symbol string to its canonical form.
//
// Each venue has a fixed naming convention:
//
//	upbit    "KRW-BTC"  -> BTC-KRW (quote first)
//	bithumb  "BTC_KRW"  -> BTC-KRW
//	coinone  "btc-krw"  -> BTC-KRW
//	korbit   "btc_krw"  -> BTC-KRW
//	binance  "btcusdt"  -> BTC-USD (USDT-suffixed, display quote USD)
//	okx      "BTC-USDT" -> BTC-USD
//	bybit    "BTCUSDT"  -> BTC-USD
//
// USDT-quoted global pairs keep Quote "USDT" (the wire-protocol truth) but
// display as USD. An unrecognized format degrades to
// {venueSymbol, "", venueSymbol} rather than failing, so a misconfigured
// symbol shows up ungrouped instead of crashing the owning streamer.
func Normalize(exchange, venueSymbol string) CanonicalSymbol {
	s := strings.ToUpper(venueSymbol)

	switch exchange {
	case "upbit":
		if quote, base, ok := strings.Cut(s, "-"); ok {
			return CanonicalSymbol{Base: base, Quote: quote, Display: base + "-" + quote}
		}

	case "bithumb", "korbit":
		if base, quote, ok := strings.Cut(s, "_"); ok {
			return CanonicalSymbol{Base: base, Quote: quote, Display: base + "-" + quote}
		}

	case "coinone":
		if base, quote, ok := strings.Cut(s, "-"); ok {
			return CanonicalSymbol{Base: base, Quote: quote, Display: base + "-" + quote}
		}

	case "binance", "bybit":
		if base, ok := strings.CutSuffix(s, "USDT"); ok && base != "" {
			return CanonicalSymbol{Base: base, Quote: "USDT", Display: base + "-USD"}
		}

	case "okx":
		if base, quote, ok := strings.Cut(s, "-"); ok && quote == "USDT" {
			return CanonicalSymbol{Base: base, Quote: quote, Display: base + "-USD"}
		}
	}

	// Fallback: pass the venue symbol through ungrouped.
	return CanonicalSymbol{Base: venueSymbol, Quote: "", Display: venueSymbol}
}

// Region classifies a market as "KR" or "GLOBAL". KRW-quoted pairs and any
// pair on a Korean venue are KR regardless of quote currency.
func Region(exchange, quote string) string {
	if koreanVenues[exchange] || quote == "KRW" {
		return "KR"
	}
	return "GLOBAL"
}
