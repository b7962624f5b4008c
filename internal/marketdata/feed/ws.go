package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// PriceMessage is the wire format streamed by the price server:
//
//	{"asset":"BTC.BTC","price":65012.5,"ts":"2024-01-01T00:00:00Z"}
type PriceMessage struct {
	Asset string    `json:"asset"`
	Price float64   `json:"price"`
	TS    time.Time `json:"ts"`
}

// WSConfig configures the websocket subscriber.
type WSConfig struct {
	// URL of the price websocket, e.g. "ws://localhost:9001/ws"
	URL string

	// ReconnectDelay is the initial reconnect delay. Defaults to 2s.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration

	// MaxAge is how old the cached price may be before it is reported
	// unavailable. Defaults to 2m.
	MaxAge time.Duration
}

func (c *WSConfig) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
	if c.MaxAge == 0 {
		c.MaxAge = 2 * time.Minute
	}
}

type cached struct {
	price float64
	at    time.Time
}

// WSFeed subscribes to a streaming price server and serves the newest price
// per asset from memory.
type WSFeed struct {
	cfg WSConfig
	now func() time.Time

	mu     sync.RWMutex
	latest map[string]cached

	// Optional hooks
	OnReconnect func()
	OnConnected func(connected bool)
}

// NewWSFeed creates a websocket feed. Returns an error if the URL is
// unparseable.
func NewWSFeed(cfg WSConfig) (*WSFeed, error) {
	cfg.defaults()
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, err
	}
	return &WSFeed{cfg: cfg, now: time.Now, latest: make(map[string]cached)}, nil
}

func (f *WSFeed) GetLatestPrice(_ context.Context, asset string) (float64, error) {
	f.mu.RLock()
	c, ok := f.latest[asset]
	f.mu.RUnlock()
	if !ok {
		return 0, unavailable("ws", asset, fmt.Errorf("no price received"))
	}
	if age := f.now().Sub(c.at); age > f.cfg.MaxAge {
		return 0, unavailable("ws", asset, fmt.Errorf("stale price (age %s)", age.Round(time.Second)))
	}
	return c.price, nil
}

func (f *WSFeed) store(m PriceMessage) {
	f.mu.Lock()
	f.latest[m.Asset] = cached{price: m.Price, at: f.now()}
	f.mu.Unlock()
}

// Start connects and streams prices until ctx is cancelled, reconnecting
// with exponential backoff.
func (f *WSFeed) Start(ctx context.Context) error {
	delay := f.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := f.runOnce(ctx)
		if f.OnConnected != nil {
			f.OnConnected(false)
		}
		if err == nil {
			return nil
		}

		log.Printf("[feed-ws] disconnected (%v), reconnecting in %s...", err, delay)
		if f.OnReconnect != nil {
			f.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > f.cfg.MaxReconnectDelay {
			delay = f.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection and reads until disconnect or ctx cancel.
func (f *WSFeed) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("[feed-ws] connected to %s", f.cfg.URL)
	if f.OnConnected != nil {
		f.OnConnected(true)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var m PriceMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			log.Printf("[feed-ws] parse error: %v (raw: %s)", err, raw)
			continue
		}
		if m.Asset == "" || !validPrice(m.Price) {
			log.Printf("[feed-ws] skipping invalid message: %s", raw)
			continue
		}
		f.store(m)
	}
}
