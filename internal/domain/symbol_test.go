package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		exchange string
		venueSym string
		want     CanonicalSymbol
	}{
		{
			name:     "binance usdt pair displays as usd",
			exchange: "binance",
			venueSym: "dogeusdt",
			want:     CanonicalSymbol{Base: "DOGE", Quote: "USDT", Display: "DOGE-USD"},
		},
		{
			name:     "bybit uppercase concatenated",
			exchange: "bybit",
			venueSym: "BTCUSDT",
			want:     CanonicalSymbol{Base: "BTC", Quote: "USDT", Display: "BTC-USD"},
		},
		{
			name:     "okx dash separated",
			exchange: "okx",
			venueSym: "ETH-USDT",
			want:     CanonicalSymbol{Base: "ETH", Quote: "USDT", Display: "ETH-USD"},
		},
		{
			name:     "upbit quote first",
			exchange: "upbit",
			venueSym: "KRW-BTC",
			want:     CanonicalSymbol{Base: "BTC", Quote: "KRW", Display: "BTC-KRW"},
		},
		{
			name:     "bithumb underscore",
			exchange: "bithumb",
			venueSym: "ETH_KRW",
			want:     CanonicalSymbol{Base: "ETH", Quote: "KRW", Display: "ETH-KRW"},
		},
		{
			name:     "coinone lowercase dash",
			exchange: "coinone",
			venueSym: "sol-krw",
			want:     CanonicalSymbol{Base: "SOL", Quote: "KRW", Display: "SOL-KRW"},
		},
		{
			name:     "korbit lowercase underscore",
			exchange: "korbit",
			venueSym: "xrp_krw",
			want:     CanonicalSymbol{Base: "XRP", Quote: "KRW", Display: "XRP-KRW"},
		},
		{
			name:     "okx non-usdt quote falls through",
			exchange: "okx",
			venueSym: "BTC-EUR",
			want:     CanonicalSymbol{Base: "BTC-EUR", Quote: "", Display: "BTC-EUR"},
		},
		{
			name:     "unknown venue passes through",
			exchange: "kraken",
			venueSym: "XBT/USD",
			want:     CanonicalSymbol{Base: "XBT/USD", Quote: "", Display: "XBT/USD"},
		},
		{
			name:     "binance bare usdt has no base",
			exchange: "binance",
			venueSym: "usdt",
			want:     CanonicalSymbol{Base: "usdt", Quote: "", Display: "usdt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.exchange, tt.venueSym)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegion(t *testing.T) {
	assert.Equal(t, "KR", Region("upbit", "KRW"))
	assert.Equal(t, "KR", Region("bithumb", ""))
	// Korean venue wins even with a non-KRW quote.
	assert.Equal(t, "KR", Region("coinone", "USDT"))
	assert.Equal(t, "KR", Region("binance", "KRW"))
	assert.Equal(t, "GLOBAL", Region("binance", "USDT"))
	assert.Equal(t, "GLOBAL", Region("okx", ""))
}

func TestPriceLevelJSONRoundTrip(t *testing.T) {
	lvl := PriceLevel{Price: 100.5, Qty: 0.25}
	data, err := lvl.MarshalJSON()
	assert.NoError(t, err)
	assert.JSONEq(t, `[100.5, 0.25]`, string(data))

	var back PriceLevel
	assert.NoError(t, back.UnmarshalJSON(data))
	assert.Equal(t, lvl, back)
}
