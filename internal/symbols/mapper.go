package symbols

import "strings"

var quoteAssets = []string{"USDT", "USDC", "BUSD", "USD", "BTC", "ETH"}

// Canonical strips venue separators and uppercases a trading pair:
// "BTC/USDT", "btc-usdt" and "BTC_USDT" all become "BTCUSDT".
func Canonical(sym string) string {
	sym = strings.TrimSpace(sym)
	sym = strings.NewReplacer("/", "", "-", "", "_", "", ":", "").Replace(sym)
	return strings.ToUpper(sym)
}

// Base returns the base asset of a pair, e.g. "BTC" for "BTC/USDT" or
// "BTCUSDT". Unknown quote assets yield the canonical symbol unchanged.
func Base(sym string) string {
	if i := strings.IndexAny(sym, "/-_"); i > 0 {
		return strings.ToUpper(strings.TrimSpace(sym[:i]))
	}
	c := Canonical(sym)
	for _, q := range quoteAssets {
		if len(c) > len(q) && strings.HasSuffix(c, q) {
			return strings.TrimSuffix(c, q)
		}
	}
	return c
}
