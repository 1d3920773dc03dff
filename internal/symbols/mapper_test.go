package symbols

import "testing"

func TestCanonical(t *testing.T) {
	tests := map[string]string{
		"BTC/USDT":      "BTCUSDT",
		"eth-usdt":      "ETHUSDT",
		"SOL_USDT":      "SOLUSDT",
		" DOGEUSDT ":    "DOGEUSDT",
		"BTC/USDT:USDT": "BTCUSDTUSDT",
	}
	for in, want := range tests {
		if got := Canonical(in); got != want {
			t.Errorf("Canonical(%q)=%q want %q", in, got, want)
		}
	}
}

func TestBase(t *testing.T) {
	tests := map[string]string{
		"BTC/USDT": "BTC",
		"eth-usdt": "ETH",
		"SOLUSDT":  "SOL",
		"AVAXUSDC": "AVAX",
		"FOO":      "FOO",
	}
	for in, want := range tests {
		if got := Base(in); got != want {
			t.Errorf("Base(%q)=%q want %q", in, got, want)
		}
	}
}
