package feed

import (
	"context"
	"log"
	"time"

	"alphabot/internal/model"
)

// TickSink accepts base samples. series.Store implements it.
type TickSink interface {
	AppendTick(t model.Tick) error
}

// Poller is the single writer of the base series: once per interval it
// fetches the price and appends a tick. A failed fetch drops that tick.
type Poller struct {
	feed     PriceFeed
	sink     TickSink
	asset    string
	interval time.Duration
	now      func() time.Time

	// Metrics hooks (optional)
	OnTick  func(t model.Tick)
	OnError func(err error)
}

// NewPoller creates a poller for asset.
func NewPoller(feed PriceFeed, sink TickSink, asset string, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{feed: feed, sink: sink, asset: asset, interval: interval, now: time.Now}
}

// Poll fetches one price and appends it.
func (p *Poller) Poll(ctx context.Context) (model.Tick, error) {
	price, err := p.feed.GetLatestPrice(ctx, p.asset)
	if err != nil {
		p.fail(err)
		return model.Tick{}, err
	}
	t := model.Tick{TS: p.now().UTC(), Price: price}
	if err := p.sink.AppendTick(t); err != nil {
		p.fail(err)
		return model.Tick{}, err
	}
	if p.OnTick != nil {
		p.OnTick(t)
	}
	return t, nil
}

func (p *Poller) fail(err error) {
	log.Printf("[feed] %s: tick dropped: %v", p.asset, err)
	if p.OnError != nil {
		p.OnError(err)
	}
}

// Run polls immediately and then every interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	log.Printf("[feed] polling %s every %s", p.asset, p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		p.Poll(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
