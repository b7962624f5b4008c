package feed

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"alphabot/internal/breaker"
)

// PoolFeed reads the USD price of a liquidity pool asset from a Midgard
// compatible endpoint: GET {base}/v2/pool/{asset} → {"assetPriceUSD": "..."}.
type PoolFeed struct {
	base string
	src  httpSource
}

// NewPoolFeed creates a pool price feed rooted at baseURL.
func NewPoolFeed(baseURL string) *PoolFeed {
	return &PoolFeed{base: strings.TrimRight(baseURL, "/"), src: newHTTPSource("pool-feed")}
}

// Breaker exposes the feed's circuit breaker for health reporting.
func (f *PoolFeed) Breaker() *breaker.Breaker { return f.src.cb }

type poolResponse struct {
	Asset         string `json:"asset"`
	AssetPriceUSD string `json:"assetPriceUSD"`
	Status        string `json:"status"`
}

func (f *PoolFeed) GetLatestPrice(ctx context.Context, asset string) (float64, error) {
	var resp poolResponse
	if err := f.src.getJSON(ctx, f.base+"/v2/pool/"+url.PathEscape(asset), &resp); err != nil {
		return 0, unavailable("pool", asset, err)
	}
	price, err := strconv.ParseFloat(resp.AssetPriceUSD, 64)
	if err != nil {
		return 0, unavailable("pool", asset, fmt.Errorf("parse assetPriceUSD %q: %w", resp.AssetPriceUSD, err))
	}
	if !validPrice(price) {
		return 0, unavailable("pool", asset, fmt.Errorf("invalid price %v", price))
	}
	return price, nil
}
