package feed

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// CoinGecko reads a centralised-exchange reference price. asset is a
// CoinGecko coin id such as "bitcoin".
type CoinGecko struct {
	base     string
	currency string
	src      httpSource
}

// NewCoinGecko creates a reference feed quoting in currency (e.g. "usd").
func NewCoinGecko(baseURL, currency string) *CoinGecko {
	if currency == "" {
		currency = "usd"
	}
	return &CoinGecko{
		base:     strings.TrimRight(baseURL, "/"),
		currency: strings.ToLower(currency),
		src:      newHTTPSource("coingecko"),
	}
}

func (c *CoinGecko) GetLatestPrice(ctx context.Context, asset string) (float64, error) {
	q := url.Values{}
	q.Set("ids", asset)
	q.Set("vs_currencies", c.currency)

	var resp map[string]map[string]float64
	if err := c.src.getJSON(ctx, c.base+"/api/v3/simple/price?"+q.Encode(), &resp); err != nil {
		return 0, unavailable("coingecko", asset, err)
	}
	price, ok := resp[asset][c.currency]
	if !ok {
		return 0, unavailable("coingecko", asset, fmt.Errorf("no %s quote in response", c.currency))
	}
	if !validPrice(price) {
		return 0, unavailable("coingecko", asset, fmt.Errorf("invalid price %v", price))
	}
	return price, nil
}
