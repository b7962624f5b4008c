// Package feed fetches the latest asset price from external sources and
// appends it to the base series once per base interval.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"alphabot/internal/breaker"
)

// ErrFeedUnavailable wraps every failure to obtain a price.
var ErrFeedUnavailable = errors.New("feed: price unavailable")

// PriceFeed is the price source port.
type PriceFeed interface {
	GetLatestPrice(ctx context.Context, asset string) (float64, error)
}

// httpSource is shared by the HTTP JSON feeds.
type httpSource struct {
	client *http.Client
	cb     *breaker.Breaker
}

func newHTTPSource(name string) httpSource {
	return httpSource{
		client: &http.Client{Timeout: 10 * time.Second},
		cb:     breaker.New(name, 5, 30*time.Second),
	}
}

// getJSON issues a GET through the breaker and decodes the body into v.
func (h httpSource) getJSON(ctx context.Context, url string, v interface{}) error {
	return h.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		resp, err := h.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
			return fmt.Errorf("status %d: %s", resp.StatusCode, body)
		}
		return json.NewDecoder(resp.Body).Decode(v)
	})
}

func unavailable(source, asset string, err error) error {
	return fmt.Errorf("%w: %s %s: %v", ErrFeedUnavailable, source, asset, err)
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}
